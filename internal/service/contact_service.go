package service

import (
	"context"
	"errors"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/mailer"
	"github.com/unclebandit/mailblast-backend/internal/model"
	"github.com/unclebandit/mailblast-backend/internal/repository"
)

const maxNameLen = 255

// ContactService handles contact CRUD with the listing search filter.
type ContactService struct {
	ContactRepo repository.ContactRepositoryInterface
	Log         *zap.Logger
}

// ContactDetails is a contact plus the campaigns that targeted it.
type ContactDetails struct {
	model.Contact
	Campaigns []model.ContactCampaign `json:"campaigns"`
}

func (s *ContactService) CreateContact(ctx context.Context, name, email string) (*model.Contact, error) {
	name, email, err := s.validateContact(ctx, name, email, 0)
	if err != nil {
		return nil, err
	}

	c := &model.Contact{Name: name, Email: email}
	if err := s.ContactRepo.Create(ctx, c); err != nil {
		return nil, mapUniqueViolation(err)
	}
	s.Log.Info("contact created", zap.Int64("contact_id", c.ID))
	return c, nil
}

func (s *ContactService) UpdateContact(ctx context.Context, id int64, name, email string) (*model.Contact, error) {
	c, err := s.ContactRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	name, email, err = s.validateContact(ctx, name, email, id)
	if err != nil {
		return nil, err
	}

	c.Name = name
	c.Email = email
	if err := s.ContactRepo.Update(ctx, c); err != nil {
		return nil, mapUniqueViolation(err)
	}
	return c, nil
}

// DeleteContact refuses to remove a contact that any campaign recipient
// row still references, so no status row is left dangling.
func (s *ContactService) DeleteContact(ctx context.Context, id int64) error {
	if _, err := s.ContactRepo.GetByID(ctx, id); err != nil {
		return err
	}

	refs, err := s.ContactRepo.ReferenceCount(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return appErrors.NewContactInUse(id, refs)
	}
	return s.ContactRepo.Delete(ctx, id)
}

func (s *ContactService) GetContactDetails(ctx context.Context, id int64) (*ContactDetails, error) {
	c, err := s.ContactRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	campaigns, err := s.ContactRepo.CampaignsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ContactDetails{Contact: *c, Campaigns: campaigns}, nil
}

// ListContacts fetches contacts ordered by name, filtered by a
// name-or-email search term when given.
func (s *ContactService) ListContacts(ctx context.Context, page, pageSize int, search string) ([]model.Contact, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	contacts, total, err := s.ContactRepo.List(ctx, offset, pageSize, search)
	if err != nil {
		return nil, nil, err
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}
	return contacts, pagination, nil
}

func (s *ContactService) validateContact(ctx context.Context, name, email string, selfID int64) (string, string, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name == "" {
		return "", "", appErrors.NewValidation("name", "must not be empty")
	}
	if len(name) > maxNameLen {
		return "", "", appErrors.NewValidation("name", "must be at most 255 characters")
	}
	if !mailer.ValidEmail(email) {
		return "", "", appErrors.NewValidation("email", "must be a valid email address")
	}
	if len(email) > maxNameLen {
		return "", "", appErrors.NewValidation("email", "must be at most 255 characters")
	}

	existing, err := s.ContactRepo.GetByEmail(ctx, email)
	if err != nil {
		return "", "", err
	}
	if existing != nil && existing.ID != selfID {
		return "", "", appErrors.NewValidation("email", "is already taken")
	}

	return name, email, nil
}

// mapUniqueViolation converts the unique-index race on contacts.email into
// the same validation error the pre-check produces.
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return appErrors.NewValidation("email", "is already taken")
	}
	return err
}
