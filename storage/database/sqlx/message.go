package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/muziki/core/message"
)

type messageRepository struct {
	db *sqlx.DB
}

var _ message.Repository = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(db *sqlx.DB) *messageRepository {
	return &messageRepository{db: db}
}

type dbMessage struct {
	ID         string    `db:"id"`
	SenderID   string    `db:"sender_id"`
	ReceiverID string    `db:"receiver_id"`
	Content    string    `db:"content"`
	ReadAt     null.Time `db:"read_at"`
	CreatedAt  time.Time `db:"created_at"`
}

func (repo messageRepository) unrow(m dbMessage) message.Message {
	return message.Message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		ReadAt:     m.ReadAt,
		CreatedAt:  m.CreatedAt,
	}
}

func (repo messageRepository) CreateMessage(ctx context.Context, msg message.Message) (message.Message, error) {
	msg.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO message (id, sender_id, receiver_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		msg.ID, msg.SenderID, msg.ReceiverID, msg.Content, msg.CreatedAt.UTC())
	if err != nil {
		return message.Message{}, errors.Wrap(err, "inserting message")
	}
	return msg, nil
}

func (repo messageRepository) QueryConversation(ctx context.Context, userID, otherID string) ([]message.Message, error) {
	var rows []dbMessage
	q := `
		SELECT id, sender_id, receiver_id, content, read_at, created_at
		FROM message
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at`
	if err := repo.db.SelectContext(ctx, &rows, q, userID, otherID); err != nil {
		return nil, errors.Wrap(err, "querying conversation")
	}
	msgs := make([]message.Message, 0, len(rows))
	for _, m := range rows {
		msgs = append(msgs, repo.unrow(m))
	}
	return msgs, nil
}

func (repo messageRepository) MarkConversationRead(ctx context.Context, readerID, otherID string, readAt time.Time) error {
	_, err := repo.db.ExecContext(ctx, `
		UPDATE message SET read_at = $1
		WHERE receiver_id = $2 AND sender_id = $3 AND read_at IS NULL`,
		readAt.UTC(), readerID, otherID)
	return errors.Wrap(err, "marking conversation read")
}
