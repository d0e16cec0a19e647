package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestIngestCSV_ContentColumn(t *testing.T) {
	csvData := "\ufeffTitle,Content\nHours,We are open 9-5\nEmpty,\nParking,Parking is free\n"
	emb := &mockEmbedder{}
	w := &mockWriter{}

	stats, err := NewIngestService(emb, w, zap.NewNop()).IngestCSV(context.Background(), strings.NewReader(csvData), "faq.csv", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Rows != 2 || stats.Skipped != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(w.chunks) != 2 || w.chunks[0].Content != "We are open 9-5" || w.chunks[1].Source != "faq.csv:4" {
		t.Errorf("unexpected chunks: %+v", w.chunks)
	}
	if w.schemas != 1 || w.resets != 0 {
		t.Errorf("schemas=%d resets=%d", w.schemas, w.resets)
	}
	if len(w.chunks[0].Embedding) != 1 {
		t.Errorf("chunk not embedded")
	}
}

func TestIngestCSV_JoinsColumnsWithoutContent(t *testing.T) {
	csvData := "course,duration,price\nPython,8 weeks,$100\n,,\n"
	w := &mockWriter{}

	stats, err := NewIngestService(&mockEmbedder{}, w, zap.NewNop()).IngestCSV(context.Background(), strings.NewReader(csvData), "courses.csv", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Rows != 1 || stats.Skipped != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if w.chunks[0].Content != "course: Python. duration: 8 weeks. price: $100" {
		t.Errorf("content = %q", w.chunks[0].Content)
	}
	if w.resets != 1 {
		t.Errorf("recreate should reset the index")
	}
}

func TestIngestCSV_StableIDs(t *testing.T) {
	csvData := "content\nsame passage\n"
	w := &mockWriter{}
	svc := NewIngestService(&mockEmbedder{}, w, zap.NewNop())

	for range 2 {
		if _, err := svc.IngestCSV(context.Background(), strings.NewReader(csvData), "a.csv", false); err != nil {
			t.Fatal(err)
		}
	}
	if w.chunks[0].ID != w.chunks[1].ID {
		t.Errorf("re-ingest should reuse IDs: %s vs %s", w.chunks[0].ID, w.chunks[1].ID)
	}
}

func TestIngestCSV_IDColumnNamesPassage(t *testing.T) {
	w := &mockWriter{}
	svc := NewIngestService(&mockEmbedder{}, w, zap.NewNop())

	for _, csvData := range []string{"id,content\nhours,We are open 9-5\n", "id,content\nhours,We are open 8-6\n"} {
		if _, err := svc.IngestCSV(context.Background(), strings.NewReader(csvData), "faq.csv", false); err != nil {
			t.Fatal(err)
		}
	}

	keys := map[string]string{}
	for _, c := range w.chunks {
		keys[c.ID] = c.Content
	}
	if len(keys) != 1 || keys["hours"] != "We are open 8-6" {
		t.Errorf("expected one passage under id hours, got %v", keys)
	}
}

func TestIngestCSV_BlankIDFallsBackToDerived(t *testing.T) {
	csvData := "id,course,duration\n,Python,8 weeks\n"
	w := &mockWriter{}

	if _, err := NewIngestService(&mockEmbedder{}, w, zap.NewNop()).
		IngestCSV(context.Background(), strings.NewReader(csvData), "c.csv", false); err != nil {
		t.Fatal(err)
	}
	if len(w.chunks) != 1 || w.chunks[0].ID == "" {
		t.Fatalf("unexpected chunks: %+v", w.chunks)
	}
	if w.chunks[0].Content != "course: Python. duration: 8 weeks" {
		t.Errorf("id column must not leak into content: %q", w.chunks[0].Content)
	}
}

func TestIngestCSV_Batches(t *testing.T) {
	var b strings.Builder
	b.WriteString("content\n")
	for i := range ingestBatch + 5 {
		fmt.Fprintf(&b, "passage %d\n", i)
	}
	emb := &mockEmbedder{}
	w := &mockWriter{}

	stats, err := NewIngestService(emb, w, zap.NewNop()).IngestCSV(context.Background(), strings.NewReader(b.String()), "big.csv", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Rows != ingestBatch+5 || stats.Tokens != ingestBatch+5 {
		t.Errorf("stats = %+v", stats)
	}
	if len(emb.batchSizes) != 2 || emb.batchSizes[0] != ingestBatch || emb.batchSizes[1] != 5 {
		t.Errorf("batch sizes = %v", emb.batchSizes)
	}
}

func TestIngestCSV_Errors(t *testing.T) {
	if _, err := NewIngestService(&mockEmbedder{}, &mockWriter{}, zap.NewNop()).
		IngestCSV(context.Background(), strings.NewReader(""), "e.csv", false); err == nil {
		t.Error("expected error for empty file")
	}

	embErr := errors.New("provider down")
	if _, err := NewIngestService(&mockEmbedder{err: embErr}, &mockWriter{}, zap.NewNop()).
		IngestCSV(context.Background(), strings.NewReader("content\nx\n"), "e.csv", false); !errors.Is(err, embErr) {
		t.Errorf("expected embedding error, got %v", err)
	}

	writeErr := errors.New("redis down")
	if _, err := NewIngestService(&mockEmbedder{}, &mockWriter{upsertErr: writeErr}, zap.NewNop()).
		IngestCSV(context.Background(), strings.NewReader("content\nx\n"), "e.csv", false); !errors.Is(err, writeErr) {
		t.Errorf("expected write error, got %v", err)
	}
}
