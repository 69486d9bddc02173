package extractor

import (
	"bufio"
	"io"
	"strings"

	"github.com/octorag/octorag/internal/document"
)

// Text handles plain text files. Paragraphs are preserved as
// blank-line-separated blocks within a single page.
type Text struct{}

func (p *Text) Extract(r io.Reader, filename string) (*document.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var paragraphs []string
	var current strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		} else {
			if current.Len() > 0 {
				current.WriteString("\n")
			}
			current.WriteString(line)
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return singlePage(titleFromFilename(filename), strings.Join(paragraphs, "\n\n")), nil
}
