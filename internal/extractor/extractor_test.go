package extractor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		filename string
		want     any
	}{
		{"report.pdf", &PDF{}},
		{"notes.txt", &Text{}},
		{"README.md", &Markdown{}},
		{"index.html", &HTML{}},
		{"data.csv", &CSV{}},
		{"letter.docx", &DOCX{}},
	}
	for _, tt := range tests {
		ext, err := ForFile(tt.filename)
		require.NoError(t, err, tt.filename)
		assert.IsType(t, tt.want, ext, tt.filename)
	}

	_, err := ForFile("archive.zip")
	assert.Error(t, err)
	assert.False(t, IsSupportedExtension("archive.zip"))
	assert.True(t, IsSupportedExtension("Report.PDF"))
}

func TestTextExtract(t *testing.T) {
	input := "First paragraph\nstill first.\n\n\nSecond paragraph.\n"
	doc, err := (&Text{}).Extract(strings.NewReader(input), "notes.txt")
	require.NoError(t, err)

	assert.Equal(t, "notes", doc.Title)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, "First paragraph\nstill first.\n\nSecond paragraph.", doc.Pages[0].Text)
}

func TestTextExtract_Empty(t *testing.T) {
	doc, err := (&Text{}).Extract(strings.NewReader("  \n \n"), "blank.txt")
	require.NoError(t, err)
	assert.Empty(t, doc.Pages)
}

func TestMarkdownExtract(t *testing.T) {
	input := "# Quarterly Report\n\nRevenue grew.\n\n## Details\n\nMore numbers here.\n"
	doc, err := (&Markdown{}).Extract(strings.NewReader(input), "report.md")
	require.NoError(t, err)

	assert.Equal(t, "Quarterly Report", doc.Title)
	require.Len(t, doc.Pages, 1)
	text := doc.Pages[0].Text
	assert.Contains(t, text, "Revenue grew.")
	assert.Contains(t, text, "Details")
	assert.Contains(t, text, "More numbers here.")
}

func TestHTMLExtract(t *testing.T) {
	input := `<html><head><title>Site Title</title><style>.x{}</style></head>
<body><nav>skip me</nav><h1>Heading</h1><p>Body text.</p><script>var no;</script></body></html>`
	doc, err := (&HTML{}).Extract(strings.NewReader(input), "page.html")
	require.NoError(t, err)

	assert.Equal(t, "Site Title", doc.Title)
	require.Len(t, doc.Pages, 1)
	text := doc.Pages[0].Text
	assert.Contains(t, text, "Heading")
	assert.Contains(t, text, "Body text.")
	assert.NotContains(t, text, "skip me")
	assert.NotContains(t, text, "var no")
}

func TestCSVExtract(t *testing.T) {
	input := "name,city\nada,london\ngrace,washington\n"
	doc, err := (&CSV{}).Extract(strings.NewReader(input), "people.csv")
	require.NoError(t, err)

	require.Len(t, doc.Pages, 1)
	text := doc.Pages[0].Text
	assert.Contains(t, text, "Headers: name, city")
	assert.Contains(t, text, "name: ada, city: london")
	assert.Contains(t, text, "name: grace, city: washington")
}
