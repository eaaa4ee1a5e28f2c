// Package core drives one chat turn end to end: optimistic user append,
// best-effort attachment ingestion, the streaming request to the agent
// backend, and the final commit to the conversation store.
package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"aiscaleup.com/alex-assistant/internal/ingest"
	"aiscaleup.com/alex-assistant/internal/store"
	"aiscaleup.com/alex-assistant/internal/stream"
)

const (
	// ErrorReply is appended when the streaming request fails; failures stay
	// conversational rather than becoming blocking errors.
	ErrorReply = "Errore di connessione. Riprova più tardi."

	// placeholderReply marks the transient assistant message shown while the
	// stream is still running.
	placeholderReply = "..."

	attachmentsOnlyText  = "📎 Allegati"
	attachmentsOnlyInput = "(allegati inviati)"
)

type ChatService struct {
	store    *store.SQLiteStore
	ingestor *ingest.Ingestor
	endpoint string
	client   *http.Client
}

// NewChatService wires the send flow. httpClient may be nil; the default has
// no timeout of its own since replies stream for as long as the agent talks.
func NewChatService(st *store.SQLiteStore, ing *ingest.Ingestor, endpoint string, httpClient *http.Client) *ChatService {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &ChatService{store: st, ingestor: ing, endpoint: endpoint, client: httpClient}
}

// SendRequest is one user turn: the typed text, any pending uploads, and a
// callback that receives the full message list after every visible change.
type SendRequest struct {
	SessionID string
	Text      string
	Files     []ingest.File
	OnUpdate  func(messages []store.Message)
}

type chatRequest struct {
	Action    string         `json:"action"`
	ChatInput string         `json:"chatInput"`
	SessionID string         `json:"sessionId"`
	UseMemory bool           `json:"useMemory"`
	Metadata  map[string]any `json:"metadata"`
}

// Send runs one turn and returns the committed message list. Ingestion
// failures are logged and swallowed; a failed stream appends ErrorReply
// instead of propagating, so the caller always gets a displayable list.
func (s *ChatService) Send(ctx context.Context, req SendRequest) ([]store.Message, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" && len(req.Files) == 0 {
		return nil, fmt.Errorf("nothing to send")
	}

	session, err := s.store.GetSession(req.SessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("session %s not found", req.SessionID)
	}

	userMsg := store.Message{
		Sender: store.SenderUser,
		Text:   text,
		Time:   clock(),
	}
	if userMsg.Text == "" {
		userMsg.Text = attachmentsOnlyText
	}
	for _, f := range req.Files {
		userMsg.Attachments = append(userMsg.Attachments, store.Attachment{Name: f.Name})
	}

	// Optimistic append: the user sees their message before any I/O starts.
	base := append(append([]store.Message{}, session.Messages...), userMsg)
	s.publish(req.OnUpdate, base)

	// Ingestion is best-effort enrichment, never a prerequisite for a reply.
	if len(req.Files) > 0 {
		if err := s.ingestor.IngestFiles(ctx, req.Files, req.SessionID); err != nil {
			log.Printf("chat: attachment ingestion failed for session %s: %v", req.SessionID, err)
		}
	}

	s.publish(req.OnUpdate, withReply(base, store.Message{
		Sender: store.SenderAssistant,
		Text:   placeholderReply,
		Time:   clock(),
	}))

	result, err := s.streamReply(ctx, req, text, base)
	if err != nil {
		log.Printf("chat: streaming request failed for session %s: %v", req.SessionID, err)
		failed := withReply(base, store.Message{
			Sender: store.SenderAssistant,
			Text:   ErrorReply,
			Time:   clock(),
		})
		s.publish(req.OnUpdate, failed)
		return failed, nil
	}

	final := withReply(base, store.Message{
		Sender: store.SenderAssistant,
		Text:   result.Text,
		Time:   clock(),
	})
	s.publish(req.OnUpdate, final)

	if _, err := s.store.SaveSession(req.SessionID, final, result.Title); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	s.rememberMessage(ctx, req.SessionID, text)

	return final, nil
}

// streamReply issues the chat request and drives the assembler, republishing
// the cumulative assistant text after every delta.
func (s *ChatService) streamReply(ctx context.Context, req SendRequest, text string, base []store.Message) (stream.Result, error) {
	input := text
	if input == "" {
		input = attachmentsOnlyInput
	}

	useMemory, err := s.store.UseMemory()
	if err != nil {
		return stream.Result{}, err
	}
	namespace, err := s.store.Namespace()
	if err != nil {
		return stream.Result{}, err
	}

	body, err := json.Marshal(chatRequest{
		Action:    "sendMessage",
		ChatInput: input,
		SessionID: req.SessionID,
		UseMemory: useMemory,
		Metadata: map[string]any{
			"source":      "alex-ai-chat",
			"attachments": len(req.Files) > 0,
			"namespace":   namespace,
		},
	})
	if err != nil {
		return stream.Result{}, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return stream.Result{}, fmt.Errorf("failed to build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return stream.Result{}, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return stream.Result{}, fmt.Errorf("chat request failed: %s", resp.Status)
	}

	return stream.Assemble(resp.Body, func(accumulated string) {
		s.publish(req.OnUpdate, withReply(base, store.Message{
			Sender: store.SenderAssistant,
			Text:   accumulated,
			Time:   clock(),
		}))
	})
}

// rememberMessage writes the user's message to the vector namespace when the
// memory flag is on. Best-effort: failures are logged, never surfaced.
func (s *ChatService) rememberMessage(ctx context.Context, sessionID, text string) {
	if text == "" {
		return
	}
	useMemory, err := s.store.UseMemory()
	if err != nil || !useMemory {
		return
	}
	if err := s.ingestor.UpsertMessage(ctx, text, store.SenderUser, sessionID); err != nil {
		log.Printf("chat: message memory write failed for session %s: %v", sessionID, err)
	}
}

func (s *ChatService) publish(onUpdate func([]store.Message), messages []store.Message) {
	if onUpdate != nil {
		onUpdate(messages)
	}
}

// withReply returns base plus one assistant message, without aliasing base's
// backing array across successive republications.
func withReply(base []store.Message, m store.Message) []store.Message {
	out := make([]store.Message, len(base)+1)
	copy(out, base)
	out[len(base)] = m
	return out
}

func clock() string {
	return time.Now().Format("15:04")
}
