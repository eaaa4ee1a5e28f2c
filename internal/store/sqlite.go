package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	// GreetingMessage seeds every new session.
	GreetingMessage = "Ciao! Sono Alex AI, il tuo Cross-Platform Ads Strategist di livello mondiale " +
		"specializzato nella creazione e ottimizzazione di campagne pubblicitarie integrate. " +
		"Come posso supportarti oggi?"

	// DefaultTitle is the generic fallback when no better title can be derived.
	DefaultTitle = "Nuova Chat"

	titlePrefixLen = 30
)

// App-state keys. The namespace id is created once and reused for every
// vector write thereafter; the rest are UI-facing toggles.
const (
	stateNamespace      = "namespace"
	stateUseMemory      = "use_memory"
	stateSidebarVisible = "sidebar_visible"
	stateActiveSession  = "active_session"
)

// SQLiteStore owns chat sessions and the durable per-install state.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS sessions (
        id TEXT PRIMARY KEY,
        title TEXT NOT NULL,
        messages_json TEXT NOT NULL, -- ordered message list as one JSON array
        last_modified INTEGER NOT NULL -- unix milliseconds
    );

    CREATE TABLE IF NOT EXISTS app_state (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// App-state methods

func (s *SQLiteStore) getState(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM app_state WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to query app state %q: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) setState(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO app_state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("failed to set app state %q: %w", key, err)
	}
	return nil
}

// Namespace returns the install's vector namespace, generating and persisting
// it on first use. Every vector this install writes shares the returned id.
func (s *SQLiteStore) Namespace() (string, error) {
	ns, err := s.getState(stateNamespace)
	if err != nil {
		return "", err
	}
	if ns != "" {
		return ns, nil
	}
	ns = uuid.NewString()
	if err := s.setState(stateNamespace, ns); err != nil {
		return "", err
	}
	return ns, nil
}

// UseMemory reports the memory-use flag; it defaults to on.
func (s *SQLiteStore) UseMemory() (bool, error) {
	v, err := s.getState(stateUseMemory)
	return v != "false", err
}

func (s *SQLiteStore) SetUseMemory(enabled bool) error {
	return s.setState(stateUseMemory, fmt.Sprintf("%t", enabled))
}

// SidebarVisible reports the sidebar flag; it defaults to on.
func (s *SQLiteStore) SidebarVisible() (bool, error) {
	v, err := s.getState(stateSidebarVisible)
	return v != "false", err
}

func (s *SQLiteStore) SetSidebarVisible(visible bool) error {
	return s.setState(stateSidebarVisible, fmt.Sprintf("%t", visible))
}

// ActiveSessionID returns the most recently active session id, or "".
func (s *SQLiteStore) ActiveSessionID() (string, error) {
	return s.getState(stateActiveSession)
}

// Session methods

// CreateSession starts a fresh session seeded with the greeting message,
// persists it immediately and makes it active.
func (s *SQLiteStore) CreateSession() (*Session, error) {
	session := &Session{
		ID:    newSessionID(),
		Title: DefaultTitle,
		Messages: []Message{{
			Sender: SenderAssistant,
			Text:   GreetingMessage,
			Time:   time.Now().Format("15:04"),
		}},
		LastModified: time.Now().UnixMilli(),
	}

	messagesJSON, err := json.Marshal(session.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal messages: %w", err)
	}
	_, err = s.db.Exec(
		"INSERT INTO sessions (id, title, messages_json, last_modified) VALUES (?, ?, ?, ?)",
		session.ID, session.Title, string(messagesJSON), session.LastModified)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}

	if err := s.setState(stateActiveSession, session.ID); err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession returns a session by id, or (nil, nil) if it does not exist.
func (s *SQLiteStore) GetSession(id string) (*Session, error) {
	var session Session
	var messagesJSON string
	err := s.db.QueryRow(
		"SELECT id, title, messages_json, last_modified FROM sessions WHERE id = ?", id).
		Scan(&session.ID, &session.Title, &messagesJSON, &session.LastModified)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	if err := json.Unmarshal([]byte(messagesJSON), &session.Messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal messages for session %s: %w", id, err)
	}
	return &session, nil
}

// LoadSession makes a session active and returns it. An unknown id is a
// silent no-op returning (nil, nil).
func (s *SQLiteStore) LoadSession(id string) (*Session, error) {
	session, err := s.GetSession(id)
	if err != nil || session == nil {
		return session, err
	}
	if err := s.setState(stateActiveSession, id); err != nil {
		return nil, err
	}
	return session, nil
}

// SaveSession upserts the message list and bumps last_modified. When title is
// empty it falls back to the existing title, then to a short prefix of the
// first assistant message, then to the generic default.
func (s *SQLiteStore) SaveSession(id string, messages []Message, title string) (*Session, error) {
	if title == "" {
		existing, err := s.GetSession(id)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.Title != "" {
			title = existing.Title
		} else {
			title = deriveTitle(messages)
		}
	}

	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal messages: %w", err)
	}

	now := time.Now().UnixMilli()
	_, err = s.db.Exec(`
        INSERT INTO sessions (id, title, messages_json, last_modified) VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET title = excluded.title,
            messages_json = excluded.messages_json,
            last_modified = excluded.last_modified`,
		id, title, string(messagesJSON), now)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert session: %w", err)
	}

	return &Session{ID: id, Title: title, Messages: messages, LastModified: now}, nil
}

// DeleteSession removes a session. If the deleted session was active, or the
// store would be left empty, a replacement session is created and returned;
// otherwise the returned session is nil. The store never holds zero sessions.
func (s *SQLiteStore) DeleteSession(id string) (*Session, error) {
	active, err := s.ActiveSessionID()
	if err != nil {
		return nil, err
	}

	if _, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("failed to delete session: %w", err)
	}

	var remaining int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&remaining); err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}

	if id == active || remaining == 0 {
		return s.CreateSession()
	}
	return nil, nil
}

// ListSessions returns all sessions, most recently modified first.
func (s *SQLiteStore) ListSessions() ([]Session, error) {
	rows, err := s.db.Query(
		"SELECT id, title, messages_json, last_modified FROM sessions ORDER BY last_modified DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var session Session
		var messagesJSON string
		if err := rows.Scan(&session.ID, &session.Title, &messagesJSON, &session.LastModified); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		if err := json.Unmarshal([]byte(messagesJSON), &session.Messages); err != nil {
			return nil, fmt.Errorf("failed to unmarshal messages for session %s: %w", session.ID, err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// deriveTitle takes the first assistant message's opening characters, or the
// generic default when there is none.
func deriveTitle(messages []Message) string {
	for _, m := range messages {
		if m.Sender != SenderAssistant || m.Text == "" {
			continue
		}
		runes := []rune(m.Text)
		if len(runes) > titlePrefixLen {
			runes = runes[:titlePrefixLen]
		}
		return string(runes)
	}
	return DefaultTitle
}

// newSessionID mirrors the session_<millis>_<suffix> shape the chat backend
// already keys its memory on.
func newSessionID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), suffix)
}
