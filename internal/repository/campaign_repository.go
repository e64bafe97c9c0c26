package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/model"
)

// CampaignRepositoryInterface defines methods used by services
type CampaignRepositoryInterface interface {
	CreateWithRecipients(ctx context.Context, c *model.Campaign, contactIDs []int64) error
	UpdateDraftWithRecipients(ctx context.Context, c *model.Campaign, contactIDs []int64) error
	GetByID(ctx context.Context, id int64) (*model.Campaign, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, offset, limit int) ([]model.CampaignSummary, int, error)

	// MarkSending transitions draft -> sending. Returns false when the
	// campaign was not in draft (the optimistic guard lost).
	MarkSending(ctx context.Context, id int64) (bool, error)

	// Finalize conditionally settles a sending campaign with no pending
	// rows. Returns the terminal status it applied, or "" on no-op.
	Finalize(ctx context.Context, id int64) (string, error)
}

// CampaignRepository is the concrete PostgreSQL implementation
type CampaignRepository struct {
	DB *sqlx.DB
}

// CreateWithRecipients inserts the campaign in draft plus one pending email
// status row per recipient, all-or-nothing.
func (r *CampaignRepository) CreateWithRecipients(ctx context.Context, c *model.Campaign, contactIDs []int64) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	c.Status = model.CampaignStatusDraft
	err = tx.QueryRowxContext(ctx, `
        INSERT INTO campaigns (subject, body, status)
        VALUES ($1, $2, $3)
        RETURNING id, created_at, updated_at
    `, c.Subject, c.Body, c.Status).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	if err := insertPendingStatuses(ctx, tx, c.ID, contactIDs); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateDraftWithRecipients rewrites subject/body and replaces the whole
// recipient set with fresh pending rows, all-or-nothing. The caller has
// already verified the campaign is still a draft.
func (r *CampaignRepository) UpdateDraftWithRecipients(ctx context.Context, c *model.Campaign, contactIDs []int64) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
        UPDATE campaigns SET subject=$1, body=$2, updated_at=NOW()
        WHERE id=$3 AND status=$4
    `, c.Subject, c.Body, c.ID, model.CampaignStatusDraft)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either gone or no longer draft; re-check outside the tx is
		// pointless, report the state error from what we know.
		return appErrors.NewInvalidState(c.ID, "", "update")
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM email_statuses WHERE campaign_id=$1`, c.ID); err != nil {
		return fmt.Errorf("failed to clear recipients: %w", err)
	}

	if err := insertPendingStatuses(ctx, tx, c.ID, contactIDs); err != nil {
		return err
	}

	return tx.Commit()
}

func insertPendingStatuses(ctx context.Context, tx *sqlx.Tx, campaignID int64, contactIDs []int64) error {
	for _, contactID := range contactIDs {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO email_statuses (campaign_id, contact_id, status)
            VALUES ($1, $2, $3)
        `, campaignID, contactID, model.EmailStatusPending)
		if err != nil {
			return fmt.Errorf("failed to create email status for contact %d: %w", contactID, err)
		}
	}
	return nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	var c model.Campaign
	err := r.DB.GetContext(ctx, &c, `
        SELECT id, subject, body, status, sent_at, created_at, updated_at
        FROM campaigns WHERE id=$1
    `, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) Delete(ctx context.Context, id int64) error {
	// Email status rows go with the campaign via ON DELETE CASCADE.
	res, err := r.DB.ExecContext(ctx, `DELETE FROM campaigns WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErrors.NewCampaignNotFound(id)
	}
	return nil
}

// List returns a page of campaigns newest first, each with its recipient
// counts, plus the total campaign count.
func (r *CampaignRepository) List(ctx context.Context, offset, limit int) ([]model.CampaignSummary, int, error) {
	campaigns := []model.CampaignSummary{}
	err := r.DB.SelectContext(ctx, &campaigns, `
        SELECT c.id, c.subject, c.body, c.status, c.sent_at, c.created_at, c.updated_at,
               COUNT(es.id) FILTER (WHERE es.status = 'sent')    AS sent_count,
               COUNT(es.id) FILTER (WHERE es.status = 'failed')  AS failed_count,
               COUNT(es.id) FILTER (WHERE es.status = 'pending') AS pending_count
        FROM campaigns c
        LEFT JOIN email_statuses es ON es.campaign_id = c.id
        GROUP BY c.id
        ORDER BY c.created_at DESC, c.id DESC
        LIMIT $1 OFFSET $2
    `, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.DB.GetContext(ctx, &total, `SELECT COUNT(*) FROM campaigns`); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

func (r *CampaignRepository) MarkSending(ctx context.Context, id int64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE campaigns SET status=$1, updated_at=NOW()
        WHERE id=$2 AND status=$3
    `, model.CampaignStatusSending, id, model.CampaignStatusDraft)
	if err != nil {
		return false, fmt.Errorf("failed to mark campaign sending: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// Finalize settles the campaign in a single conditional statement so that
// concurrent send jobs cannot finalize it twice: it only fires while the
// campaign is still sending and no pending rows remain. The terminal status
// is sent when at least one recipient row is sent, failed otherwise.
func (r *CampaignRepository) Finalize(ctx context.Context, id int64) (string, error) {
	var status string
	err := r.DB.QueryRowxContext(ctx, `
        UPDATE campaigns SET
            status = CASE WHEN EXISTS (
                SELECT 1 FROM email_statuses
                WHERE campaign_id = campaigns.id AND status = 'sent'
            ) THEN 'sent' ELSE 'failed' END,
            sent_at = NOW(),
            updated_at = NOW()
        WHERE id = $1
          AND status = 'sending'
          AND NOT EXISTS (
                SELECT 1 FROM email_statuses
                WHERE campaign_id = campaigns.id AND status = 'pending'
          )
        RETURNING status
    `, id).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil // still pending rows, or already terminal
		}
		return "", fmt.Errorf("failed to finalize campaign: %w", err)
	}
	return status, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
