package model

import "time"

type Contact struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ContactCampaign is a campaign the contact was targeted by, with the
// delivery outcome for that contact.
type ContactCampaign struct {
	CampaignID int64      `db:"campaign_id" json:"campaign_id"`
	Subject    string     `db:"subject" json:"subject"`
	Status     string     `db:"status" json:"status"`
	SentAt     *time.Time `db:"sent_at" json:"sent_at,omitempty"`
}
