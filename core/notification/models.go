package notification

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Categories tag notifications by the event that produced them.
const (
	CategoryAssignment = "assignment"
	CategorySubmission = "submission"
	CategoryFeedback   = "feedback"
	CategoryLesson     = "lesson"
	CategoryMessage    = "message"
)

// UnreadLimit caps how many unread notifications are returned to a client.
const UnreadLimit = 20

// Notification is a one-way, single-recipient record created as a side effect
// of another user's action. Its only transition is unread -> read.
type Notification struct {
	ID          string      `json:"id"`
	RecipientID string      `json:"recipient_id"`
	Category    string      `json:"category"`
	Title       string      `json:"title"`
	Body        null.String `json:"body,omitempty"`
	Link        null.String `json:"link,omitempty"`
	ReadAt      null.Time   `json:"read_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

func (n *Notification) IsRead() bool { return n.ReadAt.Valid }
