package document

// Document is an extracted source file: an ordered sequence of pages.
// It is immutable once produced by an extractor.
type Document struct {
	ID    string // Stable identifier (UUID assigned at ingest time)
	Title string // Document title (from metadata or filename)
	Pages []Page // Ordered pages; single-page for formats without pagination
}

// Page holds the raw text of one source page.
type Page struct {
	Number int // 1-based page number
	Text   string
}

// PageBoundary marks where a page begins inside the concatenated text.
// Start is a rune offset.
type PageBoundary struct {
	Page  int
	Start int
}

// Chunk is a bounded, overlapping window over a document's text with
// positional metadata for indexing and citation. Offsets are rune
// offsets into the concatenated document text.
type Chunk struct {
	Text        string `json:"text"`
	Index       int    `json:"index"` // Zero-based position in emission order, dense
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	PageStart   int    `json:"page_start,omitempty"` // First page the chunk's characters fall on
	PageEnd     int    `json:"page_end,omitempty"`   // Last page, inclusive
	Overlap     int    `json:"overlap"`              // Runes shared with the previous chunk (0 for the first)
}

// Concat joins the page texts into one string and records a boundary at
// the rune offset where each page begins. Pages are separated by a
// single newline so boundaries stay exact.
func (d *Document) Concat() (string, []PageBoundary) {
	var text []rune
	bounds := make([]PageBoundary, 0, len(d.Pages))
	for i, p := range d.Pages {
		if i > 0 {
			text = append(text, '\n')
		}
		bounds = append(bounds, PageBoundary{Page: p.Number, Start: len(text)})
		text = append(text, []rune(p.Text)...)
	}
	return string(text), bounds
}
