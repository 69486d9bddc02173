package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/octorag/octorag/internal/chunker"
	"github.com/octorag/octorag/internal/config"
	"github.com/octorag/octorag/internal/embedding"
	"github.com/octorag/octorag/internal/extractor"
	"github.com/octorag/octorag/internal/llm"
	"github.com/octorag/octorag/internal/search"
)

// bulkBatchSize bounds the NDJSON payload of a single bulk request.
const bulkBatchSize = 100

// Worker processes a single document job.
type Worker struct {
	embed *embedding.Client
	llm   *llm.Client
	es    *search.Client
	log   *slog.Logger
	cfg   config.Config
}

func NewWorker(embed *embedding.Client, llmc *llm.Client, es *search.Client, log *slog.Logger, cfg config.Config) *Worker {
	return &Worker{
		embed: embed,
		llm:   llmc,
		es:    es,
		log:   log,
		cfg:   cfg,
	}
}

// chunkConfig resolves per-job overrides against server defaults.
func (w *Worker) chunkConfig(job *Job) chunker.Config {
	cfg := chunker.Config{
		MaxChunkSize: w.cfg.DefaultChunkSize,
		Overlap:      w.cfg.DefaultChunkOverlap,
		Language:     chunker.Mode(w.cfg.DefaultLanguage),
	}
	if job.ChunkSize > 0 {
		cfg.MaxChunkSize = job.ChunkSize
	}
	if job.ChunkOverlap != nil {
		cfg.Overlap = *job.ChunkOverlap
	}
	if job.Language != "" {
		cfg.Language = job.Language
	}
	return cfg
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "file_id", job.FileID, "filename", job.Filename)

	// Phase 1: Extract
	job.SetStatus(StatusExtracting, "extracting")
	ex, err := extractor.ForFile(job.Filename)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "extracting")
		return
	}
	if p, ok := ex.(*extractor.PDF); ok {
		p.FallbackPdftotext = w.cfg.PDFFallbackPdftotext
	}

	data := job.FileData()
	doc, err := ex.Extract(bytes.NewReader(data), job.Filename)
	if err != nil {
		log.Error("extract failed", "error", err)
		job.AddError(fmt.Sprintf("extract: %s", err))
		job.SetStatus(StatusFailed, "extracting")
		return
	}
	if job.Title != "" {
		doc.Title = job.Title
	} else {
		job.SetTitle(doc.Title)
	}

	text, bounds := doc.Concat()
	job.SetContentHash(ContentHashHex([]byte(text)))

	// Phase 2: Chunk
	job.SetStatus(StatusChunking, "chunking")
	chunks, err := chunker.Split(text, bounds, w.chunkConfig(job))
	if err != nil {
		log.Error("chunking failed", "error", err)
		job.AddError(fmt.Sprintf("chunk: %s", err))
		job.SetStatus(StatusFailed, "chunking")
		return
	}
	job.SetTotalChunks(len(chunks))
	log.Info("chunked document", "chunks", len(chunks), "pages", len(doc.Pages))

	if len(chunks) == 0 {
		log.Warn("no chunks produced")
		job.AddError("no extractable content")
		job.SetStatus(StatusFailed, "chunking")
		return
	}

	// Phase 3: Tag and embed chunks with bounded concurrency.
	job.SetStatus(StatusEmbedding, "embedding")
	docs := make([]search.BulkDoc, len(chunks))
	failed := make([]bool, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.MaxConcurrentEmbed)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			defer job.IncrChunksProcessed()

			tags, err := w.extractTags(gctx, chunk.Text)
			if err != nil {
				// Tags enrich retrieval but are not required.
				log.Warn("tag extraction failed", "chunk", chunk.Index, "error", err)
				tags = nil
			}

			vectors, err := w.embedWithRetry(gctx, log, chunk.Index,
				[]string{chunk.Text, metaText(chunk.Text, job.Filename, tags)})
			if err != nil {
				job.AddError(fmt.Sprintf("chunk %d: embed: %s", chunk.Index, err))
				failed[i] = true
				return nil
			}

			docs[i] = search.BulkDoc{
				ID: fmt.Sprintf("%s-%d-%d", job.FileID, chunk.PageStart, chunk.Index),
				Doc: search.ChunkDoc{
					Text:           chunk.Text,
					Vector:         vectors[0],
					VectorTextMeta: vectors[1],
					FileID:         job.FileID,
					FileName:       job.Filename,
					FileSize:       int64(len(data)),
					Tags:           tags,
					PagesTotal:     len(doc.Pages),
					PageNumber:     chunk.PageStart,
					ChunkIndex:     chunk.Index,
					StartOffset:    chunk.StartOffset,
					EndOffset:      chunk.EndOffset,
					PageStart:      chunk.PageStart,
					PageEnd:        chunk.PageEnd,
				},
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "embedding")
		return
	}

	ready := make([]search.BulkDoc, 0, len(docs))
	for i := range docs {
		if !failed[i] {
			ready = append(ready, docs[i])
		}
	}
	hadErrors := len(ready) < len(chunks)
	if len(ready) == 0 {
		job.SetStatus(StatusFailed, "embedding")
		return
	}

	// Phase 4: Index
	job.SetStatus(StatusIndexing, "indexing")
	if err := w.es.EnsureIndex(ctx, job.Index, w.cfg.VectorDim); err != nil {
		log.Error("ensure index failed", "index", job.Index, "error", err)
		job.AddError(fmt.Sprintf("index %s: %s", job.Index, err))
		job.SetStatus(StatusFailed, "indexing")
		return
	}

	ig, igctx := errgroup.WithContext(ctx)
	ig.SetLimit(w.cfg.MaxConcurrentIndex)
	for start := 0; start < len(ready); start += bulkBatchSize {
		batch := ready[start:min(start+bulkBatchSize, len(ready))]
		ig.Go(func() error {
			indexed, err := w.es.Bulk(igctx, job.Index, batch, false)
			job.AddChunksIndexed(indexed)
			if err != nil {
				log.Error("bulk index failed", "indexed", indexed, "batch", len(batch), "error", err)
				job.AddError(fmt.Sprintf("bulk: %s", err))
			}
			return nil
		})
	}
	_ = ig.Wait()
	job.ClearFileData()

	snap := job.Snapshot()
	log.Info("indexing complete", "indexed", snap.Progress.ChunksIndexed, "total", len(chunks))

	switch {
	case snap.Progress.ChunksIndexed == 0:
		job.SetStatus(StatusFailed, "indexing")
	case hadErrors || snap.Progress.ChunksIndexed < len(chunks):
		job.SetStatus(StatusPartial, "done")
	default:
		job.SetStatus(StatusCompleted, "done")
	}
}

// embedWithRetry embeds a batch of texts in one provider call, retrying
// transient errors.
func (w *Worker) embedWithRetry(ctx context.Context, log *slog.Logger, chunkIdx int, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		vectors, err := w.embed.EmbedBatch(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			break
		}
		log.Warn("retryable embedding error", "chunk", chunkIdx, "attempt", attempt, "error", err)
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// extractTags asks the LLM for structured tags, retrying transient errors.
func (w *Worker) extractTags(ctx context.Context, text string) (map[string]any, error) {
	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		tags, err := w.llm.ExtractTags(ctx, text, llm.DefaultTagKeys)
		if err == nil {
			return tags, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			break
		}
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// metaText builds the enriched text used for the metadata vector: the
// chunk body plus a JSON block of filename and extracted tags.
func metaText(text, filename string, tags map[string]any) string {
	meta := map[string]any{"document_file_name": filename}
	for k, v := range tags {
		meta[k] = v
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return text
	}
	return text + "\n" + string(b)
}
