package knowledge

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/semroute/internal/domain"
	kbrepo "github.com/kailas-cloud/semroute/internal/repository/knowledge"
)

// ingestBatch is the number of rows embedded and written per round trip.
const ingestBatch = 100

// idColumn optionally names each passage. Rows without one get an ID derived from source and content.
const idColumn = "id"

// chunkNamespace derives stable chunk IDs so re-ingesting a file overwrites its passages.
var chunkNamespace = uuid.MustParse("6f1c2a8e-4b7d-5e3f-9a10-2c4d6e8f0a1b")

// contentColumns are header names whose cell is used verbatim as the passage.
var contentColumns = []string{"content", "text", "chunk", "answer"}

// IngestService loads CSV knowledge files into the index.
type IngestService struct {
	embedder domain.Embedder
	writer   Writer
	logger   *zap.Logger
}

// IngestStats summarizes one ingest run.
type IngestStats struct {
	Rows    int
	Skipped int
	Tokens  int
}

// NewIngestService creates an IngestService.
func NewIngestService(e domain.Embedder, w Writer, l *zap.Logger) *IngestService {
	return &IngestService{embedder: e, writer: w, logger: l}
}

// IngestCSV reads r (first row is the header) and indexes one passage per row.
// source labels the passages, typically the file name. recreate wipes the index first.
func (s *IngestService) IngestCSV(ctx context.Context, r io.Reader, source string, recreate bool) (IngestStats, error) {
	if recreate {
		if err := s.writer.Reset(ctx); err != nil {
			return IngestStats{}, fmt.Errorf("reset index: %w", err)
		}
	}
	if err := s.writer.EnsureSchema(ctx); err != nil {
		return IngestStats{}, fmt.Errorf("ensure schema: %w", err)
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return IngestStats{}, fmt.Errorf("read header: %w", err)
	}
	header = normalizeHeader(header)

	var stats IngestStats
	batch := make([]kbrepo.Chunk, 0, ingestBatch)
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read row %d: %w", line+1, err)
		}
		line++

		content := rowContent(header, record)
		if content == "" {
			stats.Skipped++
			continue
		}
		label := fmt.Sprintf("%s:%d", source, line)
		batch = append(batch, kbrepo.Chunk{
			ID:      chunkID(header, record, source, content),
			Content: content,
			Source:  label,
		})

		if len(batch) == ingestBatch {
			if err := s.flush(ctx, batch, &stats); err != nil {
				return stats, err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := s.flush(ctx, batch, &stats); err != nil {
			return stats, err
		}
	}

	s.logger.Info("Knowledge ingested",
		zap.String("source", source),
		zap.Int("rows", stats.Rows),
		zap.Int("skipped", stats.Skipped),
		zap.Int("tokens", stats.Tokens),
	)
	return stats, nil
}

func (s *IngestService) flush(ctx context.Context, batch []kbrepo.Chunk, stats *IngestStats) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}
	res, err := domain.EmbedAll(ctx, s.embedder, texts)
	if err != nil {
		return fmt.Errorf("embed passages: %w", err)
	}
	if len(res.Embeddings) != len(batch) {
		return fmt.Errorf("%w: got %d vectors for %d passages",
			domain.ErrEmbeddingProviderError, len(res.Embeddings), len(batch))
	}
	for i := range batch {
		batch[i].Embedding = res.Embeddings[i]
	}
	if err := s.writer.Upsert(ctx, batch); err != nil {
		return fmt.Errorf("write passages: %w", err)
	}
	stats.Rows += len(batch)
	stats.Tokens += res.TotalTokens
	return nil
}

// chunkID prefers the row's id cell so an edited row replaces its old passage.
func chunkID(header, record []string, source, content string) string {
	if i := slices.Index(header, idColumn); i >= 0 && i < len(record) {
		if id := strings.TrimSpace(record[i]); id != "" {
			return id
		}
	}
	return uuid.NewSHA1(chunkNamespace, []byte(source+"\x00"+content)).String()
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}
	return out
}

// rowContent uses the dedicated content column when the header has one, otherwise joins "header: value"
// pairs of every column except id.
func rowContent(header, record []string) string {
	for _, name := range contentColumns {
		if i := slices.Index(header, name); i >= 0 {
			if i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}
	}

	parts := make([]string, 0, len(record))
	for i, v := range record {
		v = strings.TrimSpace(v)
		if v == "" || (i < len(header) && header[i] == idColumn) {
			continue
		}
		if i < len(header) && header[i] != "" {
			parts = append(parts, header[i]+": "+v)
		} else {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ". ")
}
