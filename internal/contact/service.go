package contact

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// ReceivedMessage is the confirmation shown to the sender.
const ReceivedMessage = "Message received! We'll get back to you soon."

const (
	maxNameLen    = 120
	maxEmailLen   = 254
	maxMessageLen = 5000
)

// SubmitInput is a contact form submission.
type SubmitInput struct {
	Name    string
	Email   string
	Message string
}

// Service stores contact form submissions.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*models.ContactMessage, error)
}

type messageStore interface {
	Create(ctx context.Context, msg *models.ContactMessage) error
}

// Repository persists contact messages.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a contact repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts msg.
func (r *Repository) Create(ctx context.Context, msg *models.ContactMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

type service struct {
	repo messageStore
	logg *logger.Logger
}

// NewService constructs the contact service.
func NewService(repo messageStore, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("contact repository required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*models.ContactMessage, error) {
	msg := models.ContactMessage{
		Name:    strings.TrimSpace(input.Name),
		Email:   strings.ToLower(strings.TrimSpace(input.Email)),
		Message: strings.TrimSpace(input.Message),
	}
	if details := validate(msg); len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}

	if err := s.repo.Create(ctx, &msg); err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "contact.persist_failed", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store contact message")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"contact_id": msg.ID.String(),
			"email":      msg.Email,
		})
		s.logg.Info(logCtx, "contact.received")
	}
	return &msg, nil
}

func validate(msg models.ContactMessage) map[string]string {
	details := map[string]string{}
	switch {
	case msg.Name == "":
		details["name"] = "is required"
	case utf8.RuneCountInString(msg.Name) > maxNameLen:
		details["name"] = fmt.Sprintf("must be at most %d characters", maxNameLen)
	}
	switch {
	case msg.Email == "":
		details["email"] = "is required"
	case len(msg.Email) > maxEmailLen:
		details["email"] = fmt.Sprintf("must be at most %d characters", maxEmailLen)
	default:
		if addr, err := mail.ParseAddress(msg.Email); err != nil || addr.Address != msg.Email {
			details["email"] = "must be a valid email"
		}
	}
	switch {
	case msg.Message == "":
		details["message"] = "is required"
	case utf8.RuneCountInString(msg.Message) > maxMessageLen:
		details["message"] = fmt.Sprintf("must be at most %d characters", maxMessageLen)
	}
	return details
}
