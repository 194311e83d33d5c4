package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carrelhq/carrel/internal/store"
)

// ingestBatchSize is how many chunks are embedded per provider call.
const ingestBatchSize = 32

// chunkLine is one JSONL record from the document processor.
type chunkLine struct {
	Text          string `json:"text"`
	SourceFile    string `json:"source_file"`
	DocID         string `json:"doc_id"`
	PageNum       int    `json:"page_num"`
	ChunkIdx      int    `json:"chunk_idx"`
	HeadingPath   string `json:"heading_path"`
	HeadingLevel  int    `json:"heading_level"`
	ChunkType     string `json:"chunk_type"`
	SentenceCount int    `json:"sentence_count"`
	ListType      string `json:"list_type"`
	ListLength    int    `json:"list_length"`
}

func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file.jsonl>",
		Short: "Ingest processed chunks into the workspace",
		Long: `Ingest reads chunk records produced by a document processor, one
JSON object per line, embeds them with the configured provider and
stores them in the workspace.

Example record:
  {"text":"Entropy measures...","source_file":"thermo.pdf","doc_id":"thermo","page_num":12,"chunk_idx":3,"heading_path":"ch2/entropy","heading_level":2,"chunk_type":"definition","sentence_count":4}

Use "-" to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), cmd, args[0])
		},
	}
	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, path string) error {
	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	embedder, err := app.Embedder(ctx)
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	var (
		batch    []chunkLine
		inserted int
		skipped  int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding failed: %w", err)
		}
		for i, c := range batch {
			_, err := app.Engine.Ingest(ctx, store.ChunkInput{
				Text:           c.Text,
				Embedding:      vectors[i],
				SourceFile:     c.SourceFile,
				DocID:          c.DocID,
				PageNum:        c.PageNum,
				ChunkIdx:       c.ChunkIdx,
				ModelSignature: embedder.ModelName(),
				HeadingPath:    c.HeadingPath,
				HeadingLevel:   c.HeadingLevel,
				ChunkType:      store.ChunkType(c.ChunkType),
				SentenceCount:  c.SentenceCount,
				ListType:       c.ListType,
				ListLength:     c.ListLength,
			})
			switch {
			case err == nil:
				inserted++
			case errors.Is(err, store.ErrShortChunk):
				skipped++
			default:
				return err
			}
		}
		batch = batch[:0]
		return nil
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var c chunkLine
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		batch = append(batch, c)
		if len(batch) >= ingestBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if err := flush(); err != nil {
		return err
	}

	slog.Info("ingest_complete",
		slog.Int("inserted", inserted),
		slog.Int("skipped", skipped))
	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d chunks (%d skipped) into workspace %q\n",
		inserted, skipped, app.Config.Workspace.Name)
	return nil
}
