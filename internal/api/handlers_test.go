package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aiscaleup.com/alex-assistant/internal/core"
	"aiscaleup.com/alex-assistant/internal/ingest"
	"aiscaleup.com/alex-assistant/internal/store"
	"aiscaleup.com/alex-assistant/internal/vector"
)

type stubEmbedder struct{}

func (stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1}
	}
	return out, nil
}

type stubUpserter struct{}

func (stubUpserter) Upsert(ctx context.Context, vectors []vector.Vector) error { return nil }

func newTestAPI(t *testing.T) (http.Handler, *store.SQLiteStore) {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"type\":\"item\",\"content\":\"Certo, \"}\n")
		fmt.Fprint(w, "data: {\"type\":\"item\",\"content\":\"posso aiutarti.\"}\n")
		fmt.Fprint(w, "data: {\"type\":\"end\",\"title\":\"Aiuto\"}\n")
	}))
	t.Cleanup(backend.Close)

	ing := ingest.NewIngestor(stubEmbedder{}, stubUpserter{})
	cs := core.NewChatService(st, ing, backend.URL, backend.Client())
	return NewRouter(NewAPIHandler(st, cs)), st
}

func TestSessionLifecycle(t *testing.T) {
	router, _ := newTestAPI(t)

	// Create
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created store.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	require.Len(t, created.Messages, 1)
	assert.Equal(t, store.SenderAssistant, created.Messages[0].Sender)

	// List
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []store.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)

	// Load
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+created.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// Unknown id
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/session_0_nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Delete the only session: a fresh replacement appears.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+created.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var deleted DeleteSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &deleted))
	require.NotNil(t, deleted.Replacement)
	assert.NotEqual(t, created.ID, deleted.Replacement.ID)
}

func TestSendMessageJSON(t *testing.T) {
	router, st := newTestAPI(t)
	session, err := st.CreateSession()
	require.NoError(t, err)

	body := bytes.NewBufferString(`{"text":"Mi serve aiuto"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+session.ID+"/messages", body)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SendMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 3)
	assert.Equal(t, "Mi serve aiuto", resp.Messages[1].Text)
	assert.Equal(t, "Certo, posso aiutarti.", resp.Messages[2].Text)

	persisted, err := st.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Aiuto", persisted.Title)
}

func TestSendMessageMultipartWithSSE(t *testing.T) {
	router, st := newTestAPI(t)
	session, err := st.CreateSession()
	require.NoError(t, err)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	require.NoError(t, form.WriteField("text", "Leggi questo"))
	part, err := form.CreateFormFile("files", "note.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("appunti della riunione"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+session.ID+"/messages", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "text/event-stream")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	frames := strings.Split(strings.TrimSpace(rec.Body.String()), "\n\n")
	require.NotEmpty(t, frames)

	var last streamFrame
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frames[len(frames)-1], "data: ")), &last))
	assert.Equal(t, "done", last.Type)
	require.Len(t, last.Messages, 3)
	assert.Equal(t, "Leggi questo", last.Messages[1].Text)
	require.Len(t, last.Messages[1].Attachments, 1)
	assert.Equal(t, "note.txt", last.Messages[1].Attachments[0].Name)
}

func TestSendMessageRejectsEmpty(t *testing.T) {
	router, st := newTestAPI(t)
	session, err := st.CreateSession()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+session.ID+"/messages",
		bytes.NewBufferString(`{"text":"  "}`))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettingsRoundtrip(t *testing.T) {
	router, _ := newTestAPI(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/settings", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var settings SettingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.True(t, settings.UseMemory)
	assert.True(t, settings.SidebarVisible)

	req := httptest.NewRequest(http.MethodPut, "/api/settings",
		bytes.NewBufferString(`{"use_memory":false}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.False(t, settings.UseMemory)
	assert.True(t, settings.SidebarVisible)
}
