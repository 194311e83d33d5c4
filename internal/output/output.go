// Package output renders search results and status lines for the CLI.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/carrelhq/carrel/internal/search"
)

// snippetLength caps how much chunk text a result row shows.
const snippetLength = 160

// Writer provides formatted output for the CLI.
type Writer struct {
	out io.Writer
}

// New creates a Writer targeting out.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a plain status line.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(msg string) {
	_, _ = fmt.Fprintln(w.out, msg)
}

// Statusf prints a formatted status line.
func (w *Writer) Statusf(format string, args ...any) {
	w.Status(fmt.Sprintf(format, args...))
}

// Warningf prints a formatted warning line.
func (w *Writer) Warningf(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, "warning: "+format+"\n", args...)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Results renders ranked candidates as a human-readable list.
func (w *Writer) Results(query string, results []*search.RankedCandidate) {
	if len(results) == 0 {
		w.Statusf("No results for %q", query)
		return
	}
	w.Statusf("%d results for %q", len(results), query)
	w.Newline()
	for i, r := range results {
		marker := ""
		if r.Exploratory {
			marker = " [exploratory]"
		}
		_, _ = fmt.Fprintf(w.out, "%2d. %s  (score %.4f)%s\n",
			i+1, location(r), r.Score, marker)
		_, _ = fmt.Fprintf(w.out, "    %s\n", Snippet(r.Chunk.Text, snippetLength))
	}
}

// resultRow is the JSON shape of one rendered result.
type resultRow struct {
	Rank        int     `json:"rank"`
	ChunkID     int64   `json:"chunk_id"`
	DocID       string  `json:"doc_id"`
	SourceFile  string  `json:"source_file"`
	PageNum     int     `json:"page_num"`
	HeadingPath string  `json:"heading_path"`
	ChunkType   string  `json:"chunk_type"`
	Score       float64 `json:"score"`
	Similarity  float64 `json:"similarity,omitempty"`
	Exploratory bool    `json:"exploratory,omitempty"`
	Text        string  `json:"text"`
}

// ResultsJSON renders ranked candidates as a JSON array.
func (w *Writer) ResultsJSON(results []*search.RankedCandidate) error {
	rows := make([]resultRow, len(results))
	for i, r := range results {
		rows[i] = resultRow{
			Rank:        i + 1,
			ChunkID:     r.Chunk.ID,
			DocID:       r.Chunk.DocID,
			SourceFile:  r.Chunk.SourceFile,
			PageNum:     r.Chunk.PageNum,
			HeadingPath: r.Chunk.HeadingPath,
			ChunkType:   string(r.Chunk.ChunkType),
			Score:       r.Score,
			Similarity:  r.Similarity,
			Exploratory: r.Exploratory,
			Text:        r.Chunk.Text,
		}
	}
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// location formats where a result came from, e.g.
// "thermo.pdf p.12 ch2/entropy".
func location(r *search.RankedCandidate) string {
	var b strings.Builder
	if r.Chunk.SourceFile != "" {
		b.WriteString(r.Chunk.SourceFile)
	} else {
		b.WriteString(r.Chunk.DocID)
	}
	if r.Chunk.PageNum > 0 {
		fmt.Fprintf(&b, " p.%d", r.Chunk.PageNum)
	}
	if r.Chunk.HeadingPath != "" {
		b.WriteString(" ")
		b.WriteString(r.Chunk.HeadingPath)
	}
	return b.String()
}

// Snippet collapses whitespace and truncates text at a rune boundary.
func Snippet(text string, max int) string {
	collapsed := strings.Join(strings.FieldsFunc(text, unicode.IsSpace), " ")
	runes := []rune(collapsed)
	if len(runes) <= max {
		return collapsed
	}
	return string(runes[:max-1]) + "…"
}
