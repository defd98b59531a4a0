// Package index builds the retrieval store from source documents: it loads
// text, HTML and PDF files, splits them into chunks, embeds the chunks and
// writes them to a collection.
package index

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// ErrUnsupportedFormat is returned by Load for file extensions it cannot read.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Document is the plain text of one source file.
type Document struct {
	// Source is the file name without directory or extension.
	Source string
	Text   string
}

// Load reads the file at path and returns its plain text. The format is
// chosen by extension: .txt and .md are read as is, .html and .htm have
// their markup stripped, .pdf is text-extracted.
func Load(path string) (Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	doc := Document{Source: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))}

	var (
		text string
		err  error
	)
	switch ext {
	case ".txt", ".md", "":
		var b []byte
		b, err = os.ReadFile(path)
		text = string(b)
	case ".html", ".htm":
		text, err = loadHTML(path)
	case ".pdf":
		text, err = loadPDF(path)
	default:
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return Document{}, fmt.Errorf("loading %s: %w", path, err)
	}

	doc.Text = strings.ReplaceAll(text, "\r\n", "\n")
	return doc, nil
}

func loadHTML(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return htmlText(f)
}

// blockElements end a paragraph when their content is flattened to text.
var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "table": true, "tr": true, "pre": true, "blockquote": true,
}

var (
	spaceRun     = regexp.MustCompile(`[ \t]+`)
	paragraphRun = regexp.MustCompile(`\n{3,}`)
)

// htmlText flattens the document body to text with a blank line after every
// block element, so paragraph splitting follows the markup.
func htmlText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "head", "noscript":
				return
			case "br":
				buf.WriteString("\n")
			}
		}
		if n.Type == html.TextNode {
			buf.WriteString(spaceRun.ReplaceAllString(strings.ReplaceAll(n.Data, "\n", " "), " "))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			buf.WriteString("\n\n")
		}
	}
	walk(doc)

	lines := strings.Split(buf.String(), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	text := paragraphRun.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(text), nil
}

func loadPDF(path string) (string, error) {
	f, rdr, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	b, err := rdr.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	if _, err := io.Copy(&buf, b); err != nil {
		return "", fmt.Errorf("reading pdf buffer: %w", err)
	}
	if strings.TrimSpace(buf.String()) == "" {
		return "", errors.New("no text extracted from pdf")
	}
	return buf.String(), nil
}
