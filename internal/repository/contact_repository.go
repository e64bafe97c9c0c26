package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/model"
)

// ContactRepositoryInterface defines methods used by services
type ContactRepositoryInterface interface {
	Create(ctx context.Context, c *model.Contact) error
	GetByID(ctx context.Context, id int64) (*model.Contact, error)
	GetByEmail(ctx context.Context, email string) (*model.Contact, error)
	Update(ctx context.Context, c *model.Contact) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, offset, limit int, search string) ([]model.Contact, int, error)
	ExistingIDs(ctx context.Context, ids []int64) ([]int64, error)
	ReferenceCount(ctx context.Context, contactID int64) (int, error)
	CampaignsFor(ctx context.Context, contactID int64) ([]model.ContactCampaign, error)
}

// ContactRepository is the concrete PostgreSQL implementation
type ContactRepository struct {
	DB *sqlx.DB
}

func (r *ContactRepository) Create(ctx context.Context, c *model.Contact) error {
	query := `
        INSERT INTO contacts (name, email)
        VALUES ($1, $2)
        RETURNING id, created_at, updated_at
    `
	err := r.DB.QueryRowxContext(ctx, query, c.Name, c.Email).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}
	return nil
}

func (r *ContactRepository) GetByID(ctx context.Context, id int64) (*model.Contact, error) {
	var c model.Contact
	err := r.DB.GetContext(ctx, &c, `
        SELECT id, name, email, created_at, updated_at
        FROM contacts WHERE id = $1
    `, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewContactNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

// GetByEmail returns nil, nil when no contact has the address.
func (r *ContactRepository) GetByEmail(ctx context.Context, email string) (*model.Contact, error) {
	var c model.Contact
	err := r.DB.GetContext(ctx, &c, `
        SELECT id, name, email, created_at, updated_at
        FROM contacts WHERE email = $1
    `, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *ContactRepository) Update(ctx context.Context, c *model.Contact) error {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE contacts SET name=$1, email=$2, updated_at=NOW() WHERE id=$3
    `, c.Name, c.Email, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErrors.NewContactNotFound(c.ID)
	}
	return nil
}

func (r *ContactRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM contacts WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErrors.NewContactNotFound(id)
	}
	return nil
}

// List returns a page of contacts ordered by name, optionally filtered by
// a case-insensitive match on name or email, plus the total count.
func (r *ContactRepository) List(ctx context.Context, offset, limit int, search string) ([]model.Contact, int, error) {
	contacts := []model.Contact{}
	query := `SELECT id, name, email, created_at, updated_at FROM contacts WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM contacts WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if search != "" {
		clause := fmt.Sprintf(" AND (name ILIKE $%d OR email ILIKE $%d)", argPos, argPos)
		query += clause
		countQuery += clause
		args = append(args, "%"+search+"%")
		argPos++
	}

	var total int
	if err := r.DB.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(" ORDER BY name ASC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	if err := r.DB.SelectContext(ctx, &contacts, query, args...); err != nil {
		return nil, 0, err
	}

	return contacts, total, nil
}

// ExistingIDs filters ids down to the ones present in the contacts table.
func (r *ContactRepository) ExistingIDs(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return []int64{}, nil
	}
	query, args, err := sqlx.In(`SELECT id FROM contacts WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	query = r.DB.Rebind(query)

	found := []int64{}
	if err := r.DB.SelectContext(ctx, &found, query, args...); err != nil {
		return nil, err
	}
	return found, nil
}

// ReferenceCount counts the email status rows pointing at the contact.
// Deletion is refused while this is non-zero.
func (r *ContactRepository) ReferenceCount(ctx context.Context, contactID int64) (int, error) {
	var count int
	err := r.DB.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM email_statuses WHERE contact_id = $1`, contactID)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CampaignsFor lists the campaigns that targeted the contact together with
// the per-contact delivery outcome, newest first.
func (r *ContactRepository) CampaignsFor(ctx context.Context, contactID int64) ([]model.ContactCampaign, error) {
	out := []model.ContactCampaign{}
	err := r.DB.SelectContext(ctx, &out, `
        SELECT c.id AS campaign_id, c.subject, es.status, es.sent_at
        FROM email_statuses es
        JOIN campaigns c ON c.id = es.campaign_id
        WHERE es.contact_id = $1
        ORDER BY c.created_at DESC
    `, contactID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)
