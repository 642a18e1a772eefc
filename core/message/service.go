package message

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/muziki/core/notification"
	"github.com/trezcool/muziki/core/user"
)

var (
	ErrNotFound   = errors.New("message not found")
	ErrNotContact = errors.New("you can only message members of your studio")
)

type (
	Repository interface {
		CreateMessage(ctx context.Context, msg Message) (Message, error)
		// QueryConversation returns both directions of traffic between two
		// users, oldest first.
		QueryConversation(ctx context.Context, userID, otherID string) ([]Message, error)
		// MarkConversationRead marks all unread messages sent by otherID to
		// readerID as read.
		MarkConversationRead(ctx context.Context, readerID, otherID string, readAt time.Time) error
	}

	Service struct {
		repo     Repository
		usrSvc   *user.Service
		notifSvc *notification.Service
	}
)

func NewService(repo Repository, usrSvc *user.Service, notifSvc *notification.Service) *Service {
	return &Service{repo: repo, usrSvc: usrSvc, notifSvc: notifSvc}
}

// Contacts returns who the user may message: a teacher gets their roster, a
// student gets their teacher.
func (svc *Service) Contacts(ctx context.Context, usr user.User) ([]user.User, error) {
	if usr.IsTeacher() {
		students, err := svc.usrSvc.Students(ctx, usr)
		if err != nil {
			return nil, err
		}
		contacts := make([]user.User, 0, len(students))
		for _, s := range students {
			contacts = append(contacts, s.User)
		}
		return contacts, nil
	}

	prof, err := svc.usrSvc.GetStudentProfile(ctx, usr.ID)
	if err != nil {
		if err == user.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	teacher, err := svc.usrSvc.GetByID(ctx, prof.TeacherID)
	if err != nil {
		return nil, err
	}
	return []user.User{teacher}, nil
}

// Send delivers a message to a studio contact and notifies the receiver.
func (svc *Service) Send(ctx context.Context, sender user.User, nm NewMessage) (Message, error) {
	if err := svc.checkContact(ctx, sender, nm.ReceiverID); err != nil {
		return Message{}, err
	}

	msg, err := svc.repo.CreateMessage(ctx, Message{
		SenderID:   sender.ID,
		ReceiverID: nm.ReceiverID,
		Content:    nm.Content,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return Message{}, err
	}

	svc.notifSvc.Notify(ctx, msg.ReceiverID, notification.CategoryMessage,
		"New Message",
		fmt.Sprintf("%s sent you a message.", sender.Name),
		"/dashboard/messages",
	)
	return msg, nil
}

// Conversation returns the thread between the user and a contact.
func (svc *Service) Conversation(ctx context.Context, usr user.User, contactID string) ([]Message, error) {
	if err := svc.checkContact(ctx, usr, contactID); err != nil {
		return nil, err
	}
	return svc.repo.QueryConversation(ctx, usr.ID, contactID)
}

// MarkRead marks the contact's messages to the user as read.
func (svc *Service) MarkRead(ctx context.Context, usr user.User, contactID string) error {
	return svc.repo.MarkConversationRead(ctx, usr.ID, contactID, time.Now().UTC())
}

func (svc *Service) checkContact(ctx context.Context, usr user.User, otherID string) error {
	contacts, err := svc.Contacts(ctx, usr)
	if err != nil {
		return err
	}
	for _, c := range contacts {
		if c.ID == otherID {
			return nil
		}
	}
	return ErrNotContact
}
