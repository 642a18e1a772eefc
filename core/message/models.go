package message

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/muziki/core"
)

// Message is one direct message between a teacher and one of their students.
type Message struct {
	ID         string      `json:"id"`
	SenderID   string      `json:"sender_id"`
	ReceiverID string      `json:"receiver_id"`
	Content    string      `json:"content"`
	ReadAt     null.Time   `json:"read_at,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

func (m *Message) IsRead() bool { return m.ReadAt.Valid }

// NewMessage contains information needed to send a message.
type NewMessage struct {
	ReceiverID string `json:"receiver_id" validate:"required"`
	Content    string `json:"content" validate:"required"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Content = core.CleanString(nm.Content)
	return validate.Struct(nm)
}
