package history

import (
	"time"

	"github.com/comigor/ecofarmcast-go/internal/transcript"
)

// Message represents a single conversational message persisted in SQLite.
type Message struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	MessageID string    `json:"message_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	IsError   bool      `json:"is_error"`
	CreatedAt time.Time `json:"created_at"`
}

// FromTranscript converts a transcript turn of sessionID into an archive entry.
func FromTranscript(sessionID string, m transcript.Message) Message {
	return Message{
		SessionID: sessionID,
		MessageID: m.ID,
		Role:      m.Role(),
		Content:   m.Text,
		IsError:   m.IsError,
		CreatedAt: m.Timestamp,
	}
}
