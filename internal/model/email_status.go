package model

import "time"

// EmailStatus statuses. Rows start pending and are written exactly once,
// to sent or failed, by the send job for the (campaign, contact) pair.
const (
	EmailStatusPending = "pending"
	EmailStatusSent    = "sent"
	EmailStatusFailed  = "failed"
)

type EmailStatus struct {
	ID           int64      `db:"id" json:"id"`
	CampaignID   int64      `db:"campaign_id" json:"campaign_id"`
	ContactID    int64      `db:"contact_id" json:"contact_id"`
	Status       string     `db:"status" json:"status"`
	SentAt       *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	ErrorMessage string     `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Terminal reports whether the row has left pending.
func (s *EmailStatus) Terminal() bool {
	return s.Status == EmailStatusSent || s.Status == EmailStatusFailed
}

// RecipientStatus is an EmailStatus joined with the contact's identity,
// as shown on the campaign detail page.
type RecipientStatus struct {
	EmailStatus
	ContactName  string `db:"contact_name" json:"contact_name"`
	ContactEmail string `db:"contact_email" json:"contact_email"`
}
