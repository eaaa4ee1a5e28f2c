package store

const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// Attachment is the name of a file attached to a chat turn.
type Attachment struct {
	Name string `json:"name"`
}

// Message is one entry in a session's ordered message list. Messages are
// immutable once appended; only the in-progress assistant reply is replaced
// while a stream is running, and that happens outside the store.
type Message struct {
	Sender      string       `json:"sender"`
	Text        string       `json:"text"`
	Time        string       `json:"time"` // display string, HH:MM
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Session is one conversation thread. LastModified is Unix milliseconds;
// recency ordering for listings is derived from it.
type Session struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Messages     []Message `json:"messages"`
	LastModified int64     `json:"last_modified"`
}

// Settings are the durable per-install flags.
type Settings struct {
	UseMemory      bool `json:"use_memory"`
	SidebarVisible bool `json:"sidebar_visible"`
}
