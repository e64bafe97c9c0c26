package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/unclebandit/mailblast-backend/internal/model"
)

// EmailStatusRepositoryInterface defines methods used by services and jobs
type EmailStatusRepositoryInterface interface {
	GetByID(ctx context.Context, id int64) (*model.EmailStatus, error)
	PendingIDs(ctx context.Context, campaignID int64) ([]int64, error)
	ListByCampaign(ctx context.Context, campaignID int64) ([]model.RecipientStatus, error)
	CountByStatus(ctx context.Context, campaignID int64) (model.StatusCounts, error)

	// MarkSent and MarkFailed settle one row. Both are conditional on the
	// row still being pending; a false return means it was already
	// terminal and nothing changed.
	MarkSent(ctx context.Context, id int64) (bool, error)
	MarkFailed(ctx context.Context, id int64, errorMessage string) (bool, error)
}

// EmailStatusRepository is the concrete PostgreSQL implementation
type EmailStatusRepository struct {
	DB *sqlx.DB
}

// GetByID returns nil, nil when the row does not exist (e.g. the recipient
// set was replaced while a stale job was in flight).
func (r *EmailStatusRepository) GetByID(ctx context.Context, id int64) (*model.EmailStatus, error) {
	var s model.EmailStatus
	err := r.DB.GetContext(ctx, &s, `
        SELECT id, campaign_id, contact_id, status, sent_at, error_message, created_at, updated_at
        FROM email_statuses WHERE id=$1
    `, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *EmailStatusRepository) PendingIDs(ctx context.Context, campaignID int64) ([]int64, error) {
	ids := []int64{}
	err := r.DB.SelectContext(ctx, &ids, `
        SELECT id FROM email_statuses
        WHERE campaign_id=$1 AND status=$2
        ORDER BY id
    `, campaignID, model.EmailStatusPending)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *EmailStatusRepository) ListByCampaign(ctx context.Context, campaignID int64) ([]model.RecipientStatus, error) {
	rows := []model.RecipientStatus{}
	err := r.DB.SelectContext(ctx, &rows, `
        SELECT es.id, es.campaign_id, es.contact_id, es.status, es.sent_at,
               es.error_message, es.created_at, es.updated_at,
               c.name AS contact_name, c.email AS contact_email
        FROM email_statuses es
        JOIN contacts c ON c.id = es.contact_id
        WHERE es.campaign_id=$1
        ORDER BY es.created_at, es.id
    `, campaignID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *EmailStatusRepository) CountByStatus(ctx context.Context, campaignID int64) (model.StatusCounts, error) {
	var counts model.StatusCounts
	rows, err := r.DB.QueryxContext(ctx, `
        SELECT status, COUNT(*) FROM email_statuses
        WHERE campaign_id=$1 GROUP BY status
    `, campaignID)
	if err != nil {
		return counts, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return counts, err
		}
		switch status {
		case model.EmailStatusPending:
			counts.Pending = count
		case model.EmailStatusSent:
			counts.Sent = count
		case model.EmailStatusFailed:
			counts.Failed = count
		}
		counts.Total += count
	}
	return counts, rows.Err()
}

func (r *EmailStatusRepository) MarkSent(ctx context.Context, id int64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE email_statuses
        SET status=$1, sent_at=NOW(), updated_at=NOW()
        WHERE id=$2 AND status=$3
    `, model.EmailStatusSent, id, model.EmailStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to mark email status sent: %w", err)
	}
	return oneRowChanged(res)
}

func (r *EmailStatusRepository) MarkFailed(ctx context.Context, id int64, errorMessage string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE email_statuses
        SET status=$1, error_message=$2, updated_at=NOW()
        WHERE id=$3 AND status=$4
    `, model.EmailStatusFailed, errorMessage, id, model.EmailStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to mark email status failed: %w", err)
	}
	return oneRowChanged(res)
}

func oneRowChanged(res sql.Result) (bool, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

var _ EmailStatusRepositoryInterface = (*EmailStatusRepository)(nil)
