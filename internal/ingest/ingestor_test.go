package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aiscaleup.com/alex-assistant/internal/vector"
)

type fakeEmbedder struct {
	batches [][]string
	err     error
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, texts)
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{float32(i), 0.5}
	}
	return out, nil
}

type fakeUpserter struct {
	batches [][]vector.Vector
	failOn  int // 1-based call number to fail on; 0 means never
}

func (f *fakeUpserter) Upsert(ctx context.Context, vectors []vector.Vector) error {
	f.batches = append(f.batches, vectors)
	if f.failOn != 0 && len(f.batches) == f.failOn {
		return errors.New("upsert rejected")
	}
	return nil
}

func TestIngestSingleSmallFile(t *testing.T) {
	emb := &fakeEmbedder{}
	ups := &fakeUpserter{}
	ing := NewIngestor(emb, ups)

	files := []File{{Name: "notes.txt", Data: []byte("hello world")}}
	err := ing.IngestFiles(context.Background(), files, "session_1_abc")
	require.NoError(t, err)

	// Exactly one chunk record, one embedding call, one upsert call.
	require.Len(t, emb.batches, 1)
	assert.Equal(t, []string{"hello world"}, emb.batches[0])
	require.Len(t, ups.batches, 1)
	require.Len(t, ups.batches[0], 1)

	v := ups.batches[0][0]
	assert.True(t, strings.HasPrefix(v.ID, "notes.txt:"))
	assert.True(t, strings.HasSuffix(v.ID, "#0"))
	assert.Equal(t, "hello world", v.Metadata["text"])
	assert.Equal(t, "notes.txt", v.Metadata["file_name"])
	assert.Equal(t, 0, v.Metadata["chunk_index"])
	assert.Equal(t, "plain", v.Metadata["source"])
	assert.Equal(t, "session_1_abc", v.Metadata["session_id"])
}

func TestIngestBlankFileIsSkipped(t *testing.T) {
	emb := &fakeEmbedder{}
	ups := &fakeUpserter{}
	ing := NewIngestor(emb, ups)

	files := []File{{Name: "empty.txt", Data: []byte("   \n\n  ")}}
	err := ing.IngestFiles(context.Background(), files, "session_1_abc")
	require.NoError(t, err)

	// No records means no network calls at all.
	assert.Empty(t, emb.batches)
	assert.Empty(t, ups.batches)
}

func TestIngestBadFileDoesNotAbortOthers(t *testing.T) {
	emb := &fakeEmbedder{}
	ups := &fakeUpserter{}
	ing := NewIngestor(emb, ups)

	files := []File{
		{Name: "broken.pdf", Data: []byte("not a pdf")},
		{Name: "ok.txt", Data: []byte("still ingested")},
	}
	err := ing.IngestFiles(context.Background(), files, "s")
	require.NoError(t, err)

	require.Len(t, ups.batches, 1)
	require.Len(t, ups.batches[0], 1)
	assert.Equal(t, "ok.txt", ups.batches[0][0].Metadata["file_name"])
}

func TestIngestBatchesOfAtMost100(t *testing.T) {
	emb := &fakeEmbedder{}
	ups := &fakeUpserter{}
	ing := NewIngestor(emb, ups)

	// Large enough to produce a few hundred chunk records.
	big := strings.Repeat("parola dopo parola senza fine ", 10000)
	err := ing.IngestFiles(context.Background(), []File{{Name: "big.txt", Data: []byte(big)}}, "s")
	require.NoError(t, err)

	require.Greater(t, len(ups.batches), 1)
	require.Equal(t, len(emb.batches), len(ups.batches))
	total := 0
	for i, b := range ups.batches {
		assert.LessOrEqual(t, len(b), BatchSize)
		if i < len(ups.batches)-1 {
			assert.Equal(t, BatchSize, len(b))
		}
		total += len(b)
	}
	// Contiguous zero-based chunk indices across the whole document.
	assert.Equal(t, 0, ups.batches[0][0].Metadata["chunk_index"])
	last := ups.batches[len(ups.batches)-1]
	assert.Equal(t, total-1, last[len(last)-1].Metadata["chunk_index"])
}

func TestIngestFailedBatchAbortsRunKeepsEarlierBatches(t *testing.T) {
	emb := &fakeEmbedder{}
	ups := &fakeUpserter{failOn: 2}
	ing := NewIngestor(emb, ups)

	big := strings.Repeat("parola dopo parola senza fine ", 10000)
	err := ing.IngestFiles(context.Background(), []File{{Name: "big.txt", Data: []byte(big)}}, "s")
	require.Error(t, err)

	// The second upsert failed, so exactly two embed calls and two upsert
	// attempts happened; nothing after the failure was embedded.
	assert.Len(t, emb.batches, 2)
	assert.Len(t, ups.batches, 2)
}

func TestUpsertMessage(t *testing.T) {
	emb := &fakeEmbedder{}
	ups := &fakeUpserter{}
	ing := NewIngestor(emb, ups)

	err := ing.UpsertMessage(context.Background(), "ricordati di questo", "user", "session_9_xyz")
	require.NoError(t, err)

	require.Len(t, ups.batches, 1)
	require.Len(t, ups.batches[0], 1)
	v := ups.batches[0][0]
	assert.True(t, strings.HasPrefix(v.ID, "msg_"))
	assert.Equal(t, "ricordati di questo", v.Metadata["text"])
	assert.Equal(t, "user", v.Metadata["sender"])
	assert.Equal(t, "session_9_xyz", v.Metadata["session_id"])
}
