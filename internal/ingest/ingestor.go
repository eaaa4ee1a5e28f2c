// Package ingest coordinates the document pipeline: extract each file, chunk
// the text, then push everything through the embedding and vector upsert
// services in bounded sequential batches.
package ingest

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"aiscaleup.com/alex-assistant/internal/extract"
	"aiscaleup.com/alex-assistant/internal/textutil"
	"aiscaleup.com/alex-assistant/internal/vector"
)

// BatchSize bounds how many records go through one embed+upsert round trip.
const BatchSize = 100

const (
	uploaderTag = "AlexAI-Uploader"
	chatTag     = "AlexAI"
)

// Embedder turns a batch of texts into one vector per text, order-preserving.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Upserter writes embedded records to the namespaced vector store.
type Upserter interface {
	Upsert(ctx context.Context, vectors []vector.Vector) error
}

// File is one pending upload: the original filename and its raw bytes.
type File struct {
	Name string
	Data []byte
}

type Ingestor struct {
	embedder Embedder
	vectors  Upserter
}

func NewIngestor(embedder Embedder, vectors Upserter) *Ingestor {
	return &Ingestor{embedder: embedder, vectors: vectors}
}

// record pairs a chunk with its id and the metadata copied onto its vector.
type record struct {
	id       string
	text     string
	metadata map[string]any
}

// IngestFiles runs the full pipeline for a set of uploads attached to one
// chat turn. Files whose extracted text is blank are skipped. All chunk
// records across all files are accumulated into one flat list and processed
// in sequential batches: a batch's upsert completes before the next batch's
// embedding request starts. A failed batch aborts the run; batches already
// upserted stay committed.
func (i *Ingestor) IngestFiles(ctx context.Context, files []File, sessionID string) error {
	uploadedAt := time.Now().UTC().Format(time.RFC3339)

	var records []record
	for _, f := range files {
		text := extract.Text(f.Name, f.Data)
		if strings.TrimSpace(text) == "" {
			log.Printf("ingest: skipping %s, no extractable text", f.Name)
			continue
		}

		chunks := textutil.Chunk(text, textutil.DefaultChunkSize, textutil.DefaultChunkOverlap)
		docID := fmt.Sprintf("%s:%d", f.Name, time.Now().UnixMilli())
		for idx, chunk := range chunks {
			records = append(records, record{
				id:   fmt.Sprintf("%s#%d", docID, idx),
				text: chunk,
				metadata: map[string]any{
					"text":        chunk,
					"file_name":   f.Name,
					"doc_id":      docID,
					"chunk_index": idx,
					"source":      extract.FormatForFilename(f.Name).String(),
					"size_bytes":  len(f.Data),
					"uploaded_at": uploadedAt,
					"session_id":  sessionID,
					"app":         uploaderTag,
				},
			})
		}
	}
	if len(records) == 0 {
		return nil
	}

	for start := 0; start < len(records); start += BatchSize {
		end := min(start+BatchSize, len(records))
		if err := i.flush(ctx, records[start:end]); err != nil {
			return fmt.Errorf("batch starting at record %d: %w", start, err)
		}
	}
	return nil
}

// flush embeds one batch and upserts the resulting vectors in one request.
func (i *Ingestor) flush(ctx context.Context, batch []record) error {
	texts := make([]string, len(batch))
	for idx := range batch {
		texts[idx] = batch[idx].text
	}

	embeddings, err := i.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if len(embeddings) != len(batch) {
		return fmt.Errorf("embed size mismatch: got %d want %d", len(embeddings), len(batch))
	}

	vectors := make([]vector.Vector, len(batch))
	for idx := range batch {
		vectors[idx] = vector.Vector{
			ID:       batch[idx].id,
			Values:   embeddings[idx],
			Metadata: batch[idx].metadata,
		}
	}
	if err := i.vectors.Upsert(ctx, vectors); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// UpsertMessage writes a single chat message to the namespace so the agent
// can recall it in later turns.
func (i *Ingestor) UpsertMessage(ctx context.Context, text, sender, sessionID string) error {
	embeddings, err := i.embedder.EmbedBatch(ctx, []string{text})
	if err != nil {
		return fmt.Errorf("embed message: %w", err)
	}
	if len(embeddings) != 1 || len(embeddings[0]) == 0 {
		return fmt.Errorf("no embedding returned for message")
	}

	v := vector.Vector{
		ID:     newMessageID(),
		Values: embeddings[0],
		Metadata: map[string]any{
			"text":       text,
			"sender":     sender,
			"session_id": sessionID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"source":     "alex-ai-chat-message",
			"app":        chatTag,
		},
	}
	if err := i.vectors.Upsert(ctx, []vector.Vector{v}); err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	return nil
}

func newMessageID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("msg_%d_%s", time.Now().UnixMilli(), suffix)
}
