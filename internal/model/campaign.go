package model

import "time"

// Campaign statuses. A campaign only ever moves forward:
// draft -> sending -> sent|failed.
const (
	CampaignStatusDraft   = "draft"
	CampaignStatusSending = "sending"
	CampaignStatusSent    = "sent"
	CampaignStatusFailed  = "failed"
)

type Campaign struct {
	ID        int64      `db:"id" json:"id"`
	Subject   string     `db:"subject" json:"subject"`
	Body      string     `db:"body" json:"body"`
	Status    string     `db:"status" json:"status"`
	SentAt    *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Terminal reports whether the campaign has reached a final status.
func (c *Campaign) Terminal() bool {
	return c.Status == CampaignStatusSent || c.Status == CampaignStatusFailed
}

// StatusCounts is the per-status breakdown of a campaign's recipients.
type StatusCounts struct {
	Total   int `db:"total" json:"total"`
	Pending int `db:"pending" json:"pending"`
	Sent    int `db:"sent" json:"sent"`
	Failed  int `db:"failed" json:"failed"`
}

// CampaignSummary is a campaign row plus its recipient counts, as shown
// on the listing page.
type CampaignSummary struct {
	Campaign
	SentCount    int `db:"sent_count" json:"sent_count"`
	FailedCount  int `db:"failed_count" json:"failed_count"`
	PendingCount int `db:"pending_count" json:"pending_count"`
}
