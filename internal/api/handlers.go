package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"aiscaleup.com/alex-assistant/internal/core"
	"aiscaleup.com/alex-assistant/internal/ingest"
	"aiscaleup.com/alex-assistant/internal/store"
)

// maxUploadBytes bounds one multipart send request in memory.
const maxUploadBytes = 32 << 20

type APIHandler struct {
	store       *store.SQLiteStore
	chatService *core.ChatService
}

func NewAPIHandler(st *store.SQLiteStore, cs *core.ChatService) *APIHandler {
	return &APIHandler{store: st, chatService: cs}
}

func (h *APIHandler) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.ListSessions()
	if err != nil {
		log.Printf("Error listing sessions: %v", err)
		http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(sessions)
}

func (h *APIHandler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, err := h.store.CreateSession()
	if err != nil {
		log.Printf("Error creating session: %v", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(session)
}

// GetSessionHandler loads a session and marks it active, mirroring what
// opening a conversation in the sidebar does.
func (h *APIHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.store.LoadSession(sessionID)
	if err != nil {
		log.Printf("Error loading session %s: %v", sessionID, err)
		http.Error(w, "Failed to load session", http.StatusInternalServerError)
		return
	}
	if session == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(session)
}

type DeleteSessionResponse struct {
	Replacement *store.Session `json:"replacement,omitempty"`
}

func (h *APIHandler) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	replacement, err := h.store.DeleteSession(sessionID)
	if err != nil {
		log.Printf("Error deleting session %s: %v", sessionID, err)
		http.Error(w, "Failed to delete session", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(DeleteSessionResponse{Replacement: replacement})
}

type SendMessageResponse struct {
	Messages []store.Message `json:"messages"`
}

// SendMessageHandler accepts either a multipart form (field "text" plus any
// number of "files" parts) or a JSON body {"text": ...}. When the client asks
// for text/event-stream the cumulative message list is re-emitted as SSE
// frames while the reply streams in; otherwise the final list is returned as
// one JSON document.
func (h *APIHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	text, files, err := parseSendRequest(r)
	if err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(text) == "" && len(files) == 0 {
		http.Error(w, "Message text or attachments are required", http.StatusBadRequest)
		return
	}

	req := core.SendRequest{SessionID: sessionID, Text: text, Files: files}

	if wantsEventStream(r) {
		h.sendStreaming(w, r, req)
		return
	}

	messages, err := h.chatService.Send(r.Context(), req)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		log.Printf("Error sending message for session %s: %v", sessionID, err)
		http.Error(w, "Failed to send message", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(SendMessageResponse{Messages: messages})
}

type streamFrame struct {
	Type     string          `json:"type"`
	Messages []store.Message `json:"messages"`
}

func (h *APIHandler) sendStreaming(w http.ResponseWriter, r *http.Request, req core.SendRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	emit := func(frame streamFrame) {
		payload, err := json.Marshal(frame)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	req.OnUpdate = func(messages []store.Message) {
		emit(streamFrame{Type: "update", Messages: messages})
	}

	messages, err := h.chatService.Send(r.Context(), req)
	if err != nil {
		// Headers are already out; the error travels in-band.
		log.Printf("Error sending message for session %s: %v", req.SessionID, err)
		fmt.Fprintf(w, "data: {\"type\":\"error\"}\n\n")
		flusher.Flush()
		return
	}
	emit(streamFrame{Type: "done", Messages: messages})
}

func parseSendRequest(r *http.Request) (string, []ingest.File, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return "", nil, err
		}
		return body.Text, nil, nil
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", nil, err
	}

	var files []ingest.File
	for _, header := range r.MultipartForm.File["files"] {
		f, err := header.Open()
		if err != nil {
			return "", nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return "", nil, err
		}
		files = append(files, ingest.File{Name: header.Filename, Data: data})
	}
	return r.FormValue("text"), files, nil
}

func wantsEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

type SettingsResponse struct {
	UseMemory      bool `json:"use_memory"`
	SidebarVisible bool `json:"sidebar_visible"`
}

func (h *APIHandler) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	useMemory, err := h.store.UseMemory()
	if err != nil {
		log.Printf("Error reading settings: %v", err)
		http.Error(w, "Failed to read settings", http.StatusInternalServerError)
		return
	}
	sidebar, err := h.store.SidebarVisible()
	if err != nil {
		log.Printf("Error reading settings: %v", err)
		http.Error(w, "Failed to read settings", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(SettingsResponse{UseMemory: useMemory, SidebarVisible: sidebar})
}

type UpdateSettingsRequest struct {
	UseMemory      *bool `json:"use_memory,omitempty"`
	SidebarVisible *bool `json:"sidebar_visible,omitempty"`
}

func (h *APIHandler) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.UseMemory != nil {
		if err := h.store.SetUseMemory(*req.UseMemory); err != nil {
			log.Printf("Error updating settings: %v", err)
			http.Error(w, "Failed to update settings", http.StatusInternalServerError)
			return
		}
	}
	if req.SidebarVisible != nil {
		if err := h.store.SetSidebarVisible(*req.SidebarVisible); err != nil {
			log.Printf("Error updating settings: %v", err)
			http.Error(w, "Failed to update settings", http.StatusInternalServerError)
			return
		}
	}
	h.GetSettingsHandler(w, r)
}
