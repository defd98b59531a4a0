package index

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoad_Text(t *testing.T) {
	path := writeFile(t, "university_docs.txt", "Table Students\r\n\r\nTable Courses\r\n")

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Source != "university_docs" {
		t.Errorf("Source = %q, want %q", doc.Source, "university_docs")
	}
	if want := "Table Students\n\nTable Courses\n"; doc.Text != want {
		t.Errorf("Text = %q, want %q", doc.Text, want)
	}
}

func TestLoad_HTML(t *testing.T) {
	page := `<html><head><title>ignored</title><style>p{}</style></head>
<body>
  <h1>Schema</h1>
  <p>Table Students has   columns id and name.</p>
  <script>var x = 1;</script>
  <ul><li>Courses</li><li>Departments</li></ul>
</body></html>`
	path := writeFile(t, "schema.html", page)

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := Split(doc.Text, SplitParagraph)
	want := []string{"Schema", "Table Students has columns id and name.", "Courses", "Departments"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("chunks mismatch (-want +got):\n%s", diff)
	}
	if strings.Contains(doc.Text, "var x") || strings.Contains(doc.Text, "ignored") {
		t.Errorf("script or head content leaked: %q", doc.Text)
	}
}

func TestLoad_Unsupported(t *testing.T) {
	path := writeFile(t, "data.xlsx", "x")

	_, err := Load(path)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestLoad_CorruptPDF(t *testing.T) {
	path := writeFile(t, "broken.pdf", "not a pdf")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for corrupt pdf")
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
