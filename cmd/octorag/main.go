// Command octorag is the local workflow CLI: it ingests files, queries
// the index, and asks retrieval-augmented questions without going
// through the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/octorag/octorag/internal/chunker"
	"github.com/octorag/octorag/internal/config"
	"github.com/octorag/octorag/internal/embedding"
	"github.com/octorag/octorag/internal/llm"
	"github.com/octorag/octorag/internal/pipeline"
	"github.com/octorag/octorag/internal/search"
)

const usage = `usage: octorag <command> [flags]

commands:
  ingest   extract, chunk, embed and index a local file
  search   query the index
  ask      ask a question over indexed documents
  browse   list indexed documents
  clean    delete documents or a whole index
`

type app struct {
	cfg   config.Config
	log   *slog.Logger
	es    *search.Client
	embed *embedding.Client
	llm   *llm.Client
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.Load()
	if err != nil {
		fatal("load configuration: %v", err)
	}

	a := &app{
		cfg: cfg,
		log: log,
		es: search.NewClient(search.Config{
			URL:      cfg.ESURL,
			Username: cfg.ESUsername,
			Password: cfg.ESPassword,
			Timeout:  cfg.ESTimeout,
		}),
		embed: embedding.NewClient(embedding.Config{
			BaseURL:   cfg.OpenAIAPIBase,
			APIKey:    cfg.OpenAIAPIKey,
			Model:     cfg.EmbedModel,
			Timeout:   cfg.LLMTimeout,
			CacheSize: cfg.EmbedCacheSize,
		}),
		llm: llm.NewClient(llm.Config{
			BaseURL: cfg.OpenAIAPIBase,
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.LLMModel,
			Timeout: cfg.LLMTimeout,
		}),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "ingest":
		err = a.ingest(ctx, os.Args[2:])
	case "search":
		err = a.search(ctx, os.Args[2:])
	case "ask":
		err = a.ask(ctx, os.Args[2:])
	case "browse":
		err = a.browse(ctx, os.Args[2:])
	case "clean":
		err = a.clean(ctx, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fatal("%v", err)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "octorag: "+format+"\n", args...)
	os.Exit(1)
}

func (a *app) ingest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	file := fs.String("file", "", "path of the file to ingest (required)")
	index := fs.String("index", a.cfg.DefaultIndex, "target index")
	title := fs.String("title", "", "document title override")
	chunkSize := fs.Int("chunk-size", 0, "chunk size override in runes")
	overlap := fs.Int("overlap", -1, "chunk overlap override in runes")
	language := fs.String("language", "", "chunking language mode: auto, latin or cjk")
	fs.Parse(args)

	if *file == "" {
		return fmt.Errorf("ingest: -file is required")
	}
	data, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("read %s: %w", *file, err)
	}

	now := time.Now()
	job := &pipeline.Job{
		ID:        uuid.NewString(),
		FileID:    uuid.NewString(),
		Status:    pipeline.StatusQueued,
		Phase:     "queued",
		Filename:  *file,
		Title:     *title,
		Index:     *index,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if *chunkSize > 0 {
		job.ChunkSize = *chunkSize
	}
	if *overlap >= 0 {
		job.ChunkOverlap = overlap
	}
	if *language != "" {
		job.Language = chunker.Mode(*language)
	}
	job.SetFileData(data)

	w := pipeline.NewWorker(a.embed, a.llm, a.es, a.log, a.cfg)
	w.Process(ctx, job)

	snap := job.Snapshot()
	printJSON(map[string]any{
		"file_id":      snap.FileID,
		"status":       snap.Status,
		"title":        snap.Title,
		"index":        snap.Index,
		"content_hash": snap.ContentHash,
		"progress":     snap.Progress,
	})
	if snap.Status != pipeline.StatusCompleted && snap.Status != pipeline.StatusPartial {
		return fmt.Errorf("ingest failed in phase %s", snap.Phase)
	}
	return nil
}

func (a *app) search(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	query := fs.String("query", "", "search query (required)")
	index := fs.String("index", a.cfg.DefaultIndex, "index to search")
	topK := fs.Int("top-k", 5, "number of results")
	mode := fs.String("mode", "vector", "retrieval mode: vector or text")
	fs.Parse(args)

	if *query == "" {
		return fmt.Errorf("search: -query is required")
	}

	hits, err := a.retrieve(ctx, *index, *query, *topK, *mode)
	if err != nil {
		return err
	}
	for _, h := range hits {
		fmt.Printf("%.4f  %s (page %d, chunk %d)\n    %s\n",
			h.Score, h.Source.FileName, h.Source.PageNumber, h.Source.ChunkIndex,
			firstLine(h.Source.Text))
	}
	return nil
}

func (a *app) ask(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	question := fs.String("question", "", "the question to answer (required)")
	index := fs.String("index", a.cfg.DefaultIndex, "index to search")
	topK := fs.Int("top-k", 5, "number of context chunks")
	stream := fs.Bool("stream", false, "stream the answer as it is generated")
	fs.Parse(args)

	if *question == "" {
		return fmt.Errorf("ask: -question is required")
	}

	hits, err := a.retrieve(ctx, *index, *question, *topK, "vector")
	if err != nil {
		return err
	}
	contexts := make([]llm.Context, 0, len(hits))
	for _, h := range hits {
		contexts = append(contexts, llm.Context{
			Text:  h.Source.Text,
			Score: h.Score,
			Metadata: map[string]any{
				"document_file_name": h.Source.FileName,
				"page_number":        h.Source.PageNumber,
			},
		})
	}

	if *stream {
		deltas, errs, err := a.llm.AnswerStream(ctx, *question, contexts)
		if err != nil {
			return err
		}
		for delta := range deltas {
			fmt.Print(delta)
		}
		fmt.Println()
		return <-errs
	}

	answer, err := a.llm.Answer(ctx, *question, contexts)
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}

func (a *app) browse(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("browse", flag.ExitOnError)
	index := fs.String("index", a.cfg.DefaultIndex, "index to browse")
	size := fs.Int("size", 100, "max chunks to list")
	from := fs.Int("from", 0, "offset into the chunk listing")
	fs.Parse(args)

	hits, err := a.es.Browse(ctx, *index, *size, *from)
	if err != nil {
		return err
	}
	for _, h := range hits {
		fmt.Printf("%s  %s  page %d  chunk %d  [%d:%d)\n",
			h.Source.FileID, h.Source.FileName, h.Source.PageNumber,
			h.Source.ChunkIndex, h.Source.StartOffset, h.Source.EndOffset)
	}
	return nil
}

func (a *app) clean(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("clean", flag.ExitOnError)
	index := fs.String("index", a.cfg.DefaultIndex, "target index")
	fileID := fs.String("file-id", "", "delete only chunks of this file")
	dropIndex := fs.Bool("drop-index", false, "delete the index itself")
	fs.Parse(args)

	switch {
	case *dropIndex:
		if err := a.es.DeleteIndex(ctx, *index); err != nil {
			return err
		}
		fmt.Printf("index %s deleted\n", *index)
	case *fileID != "":
		n, err := a.es.DeleteByFileID(ctx, *index, *fileID)
		if err != nil {
			return err
		}
		fmt.Printf("%d chunks deleted\n", n)
	default:
		n, err := a.es.DeleteAllDocs(ctx, *index)
		if err != nil {
			return err
		}
		fmt.Printf("%d chunks deleted\n", n)
	}
	return nil
}

func (a *app) retrieve(ctx context.Context, index, query string, topK int, mode string) ([]search.Hit, error) {
	if mode == "text" {
		return a.es.MatchSearch(ctx, index, query, topK)
	}
	vector, err := a.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return a.es.KNNSearch(ctx, index, vector, topK, 0)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func firstLine(s string) string {
	const max = 160
	for i, r := range s {
		if r == '\n' || i >= max {
			return s[:i] + "…"
		}
	}
	return s
}
