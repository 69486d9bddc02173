package chunker

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/octorag/octorag/internal/document"
)

// Error taxonomy. Both are detected before any chunk is produced, so a
// failed call never returns partial output.
var (
	ErrConfig   = errors.New("invalid chunking config")
	ErrEncoding = errors.New("text is not valid UTF-8")
)

// Mode selects how split points are chosen.
type Mode string

const (
	ModeAuto  Mode = "auto"  // Detect script from the text itself
	ModeLatin Mode = "latin" // Whitespace and sentence punctuation boundaries
	ModeCJK   Mode = "cjk"   // Per-rune units, CJK punctuation boundaries
)

// Config controls chunking behavior. Sizes are in runes.
type Config struct {
	MaxChunkSize int  // Hard upper bound on chunk length, > 0
	Overlap      int  // Runes shared between consecutive chunks, 0 <= Overlap < MaxChunkSize
	Language     Mode // Empty defaults to ModeAuto
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxChunkSize: 1000,
		Overlap:      200,
		Language:     ModeAuto,
	}
}

// Validate rejects configs that could stall the walk or emit unbounded
// chunks.
func (c Config) Validate() error {
	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("%w: max_chunk_size must be > 0, got %d", ErrConfig, c.MaxChunkSize)
	}
	if c.Overlap < 0 || c.Overlap >= c.MaxChunkSize {
		return fmt.Errorf("%w: overlap must be in [0, max_chunk_size), got %d with max_chunk_size %d",
			ErrConfig, c.Overlap, c.MaxChunkSize)
	}
	switch c.Language {
	case "", ModeAuto, ModeLatin, ModeCJK:
	default:
		return fmt.Errorf("%w: unknown language mode %q", ErrConfig, c.Language)
	}
	return nil
}

// Split walks text producing overlapping windows of at most
// cfg.MaxChunkSize runes. Each window after the first starts exactly
// cfg.Overlap runes before the previous window's end, so consecutive
// chunks overlap by exactly cfg.Overlap and the union of all windows
// covers the full text with no gaps. Window ends prefer the nearest
// preceding sentence or clause boundary within a bounded back-off
// distance; a hard cut at the size limit guarantees progress.
//
// bounds (may be nil) is only used to annotate chunks with page spans.
// Split is pure: identical inputs produce identical output.
func Split(text string, bounds []document.PageBoundary, cfg Config) ([]document.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: input contains invalid byte sequences", ErrEncoding)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	runes := []rune(text)
	mode := cfg.Language
	if mode == "" || mode == ModeAuto {
		mode = DetectScript(runes)
	}

	// Cap the back-off so every step still advances: the next start is
	// end-Overlap, so end must stay above start+Overlap.
	maxBack := cfg.MaxChunkSize / 4
	if limit := cfg.MaxChunkSize - cfg.Overlap - 1; maxBack > limit {
		maxBack = limit
	}

	var chunks []document.Chunk
	start := 0
	prevEnd := 0
	for start < len(runes) {
		end := start + cfg.MaxChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else if maxBack > 0 {
			end = backOff(runes, start, end, maxBack, mode)
		}

		overlap := 0
		if len(chunks) > 0 {
			overlap = prevEnd - start
		}
		chunks = append(chunks, document.Chunk{
			Text:        string(runes[start:end]),
			Index:       len(chunks),
			StartOffset: start,
			EndOffset:   end,
			PageStart:   pageAt(bounds, start),
			PageEnd:     pageAt(bounds, end-1),
			Overlap:     overlap,
		})

		if end == len(runes) {
			break
		}
		prevEnd = end
		start = end - cfg.Overlap
	}
	return chunks, nil
}

// backOff searches backwards from end for the nearest boundary to cut
// at. Sentence enders win over clause punctuation, which wins over
// whitespace; whitespace is not considered in CJK mode since it is not
// a reliable word boundary there. Returns end unchanged when no
// boundary exists within maxBack runes.
func backOff(runes []rune, start, end, maxBack int, mode Mode) int {
	lowest := end - maxBack
	if lowest <= start {
		lowest = start + 1
	}
	bestClause := 0
	bestSpace := 0
	for j := end; j >= lowest; j-- {
		prev := runes[j-1]
		var next rune
		if j < len(runes) {
			next = runes[j]
		}
		if isSentenceEnd(prev, next) {
			return j
		}
		if bestClause == 0 && isClauseEnd(prev, next) {
			bestClause = j
		}
		if mode != ModeCJK && bestSpace == 0 && unicode.IsSpace(prev) {
			bestSpace = j
		}
	}
	if bestClause != 0 {
		return bestClause
	}
	if bestSpace != 0 {
		return bestSpace
	}
	return end
}

func isSentenceEnd(r, next rune) bool {
	switch r {
	case '。', '！', '？':
		return true
	case '.', '!', '?':
		return next == ' ' || next == '\n' || next == '\t' || next == 0
	}
	return false
}

func isClauseEnd(r, next rune) bool {
	switch r {
	case '，', '；', '：', '、':
		return true
	case ';', ':', ',':
		return next == ' ' || next == '\n' || next == 0
	case '\n':
		return true
	}
	return false
}

// pageAt locates the page whose interval contains the given rune
// offset. Boundaries are monotonically increasing, so a binary search
// over Start suffices. Returns 0 when no boundaries were provided.
func pageAt(bounds []document.PageBoundary, off int) int {
	if len(bounds) == 0 {
		return 0
	}
	i := sort.Search(len(bounds), func(i int) bool { return bounds[i].Start > off }) - 1
	if i < 0 {
		i = 0
	}
	return bounds[i].Page
}
