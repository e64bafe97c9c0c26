package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/model"
	"github.com/unclebandit/mailblast-backend/internal/queue"
	"github.com/unclebandit/mailblast-backend/internal/repository"
)

const maxSubjectLen = 255

// CampaignService orchestrates the campaign lifecycle: draft creation with
// recipient fan-out, draft edits, and the send trigger that enqueues one
// job per pending recipient.
type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	ContactRepo  repository.ContactRepositoryInterface
	StatusRepo   repository.EmailStatusRepositoryInterface
	Queue        queue.Queue
	Log          *zap.Logger
}

// SendCampaignResult reports what the send trigger did before returning.
type SendCampaignResult struct {
	CampaignID int64  `json:"campaign_id"`
	JobsQueued int    `json:"jobs_queued"`
	Status     string `json:"status"`
}

// CampaignDetails is a campaign with its full recipient status list and
// aggregate counts.
type CampaignDetails struct {
	model.Campaign
	Recipients []model.RecipientStatus `json:"recipients"`
	Stats      model.StatusCounts      `json:"stats"`
}

// CreateCampaign validates the input and creates the draft campaign plus
// one pending email status row per recipient as a single atomic unit.
func (s *CampaignService) CreateCampaign(ctx context.Context, subject, body string, recipientIDs []int64) (*model.Campaign, error) {
	recipients, err := s.validateInput(ctx, subject, body, recipientIDs)
	if err != nil {
		return nil, err
	}

	c := &model.Campaign{Subject: subject, Body: body}
	if err := s.CampaignRepo.CreateWithRecipients(ctx, c, recipients); err != nil {
		return nil, err
	}

	s.Log.Info("campaign created",
		zap.Int64("campaign_id", c.ID),
		zap.Int("recipients", len(recipients)),
	)
	return c, nil
}

// UpdateCampaign rewrites a draft's subject/body and replaces its recipient
// set with fresh pending rows. Campaigns past draft are rejected.
func (s *CampaignService) UpdateCampaign(ctx context.Context, id int64, subject, body string, recipientIDs []int64) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CampaignStatusDraft {
		return nil, appErrors.NewInvalidState(id, c.Status, "update")
	}

	recipients, err := s.validateInput(ctx, subject, body, recipientIDs)
	if err != nil {
		return nil, err
	}

	c.Subject = subject
	c.Body = body
	if err := s.CampaignRepo.UpdateDraftWithRecipients(ctx, c, recipients); err != nil {
		return nil, err
	}

	s.Log.Info("campaign updated",
		zap.Int64("campaign_id", c.ID),
		zap.Int("recipients", len(recipients)),
	)
	return c, nil
}

// SendCampaign transitions a draft to sending and enqueues one send job per
// pending recipient, then returns without waiting for delivery. A campaign
// with nothing pending is settled on the spot.
func (s *CampaignService) SendCampaign(ctx context.Context, id int64) (*SendCampaignResult, error) {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CampaignStatusDraft {
		return nil, appErrors.NewInvalidState(id, c.Status, "send")
	}

	ok, err := s.CampaignRepo.MarkSending(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race with a concurrent send trigger; report the
		// status the winner left behind.
		cur, err := s.CampaignRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, appErrors.NewInvalidState(id, cur.Status, "send")
	}

	pending, err := s.StatusRepo.PendingIDs(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &SendCampaignResult{CampaignID: id, Status: model.CampaignStatusSending}

	if len(pending) == 0 {
		// Nothing to deliver: settle immediately. With zero sent rows the
		// terminal status is failed.
		status, err := s.CampaignRepo.Finalize(ctx, id)
		if err != nil {
			return nil, err
		}
		if status != "" {
			result.Status = status
		}
		return result, nil
	}

	for _, statusID := range pending {
		job := queue.SendEmailJob{EmailStatusID: statusID}
		if err := s.Queue.Publish(ctx, queue.TopicCampaignSends, job); err != nil {
			s.Log.Error("failed to enqueue send job",
				zap.Int64("campaign_id", id),
				zap.Int64("email_status_id", statusID),
				zap.Error(err),
			)
			continue
		}
		result.JobsQueued++
	}

	s.Log.Info("campaign dispatched",
		zap.Int64("campaign_id", id),
		zap.Int("jobs_queued", result.JobsQueued),
	)
	return result, nil
}

// DeleteCampaign removes a campaign and its recipient rows. Sending and
// sent campaigns are protected; draft and failed ones are deletable.
func (s *CampaignService) DeleteCampaign(ctx context.Context, id int64) error {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c.Status == model.CampaignStatusSending || c.Status == model.CampaignStatusSent {
		return appErrors.NewInvalidState(id, c.Status, "delete")
	}
	return s.CampaignRepo.Delete(ctx, id)
}

// ListCampaigns fetches campaigns newest first with recipient counts.
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int) ([]model.CampaignSummary, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 15
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	campaigns, total, err := s.CampaignRepo.List(ctx, offset, pageSize)
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
	return campaigns, pagination, nil
}

// GetCampaignDetails fetches a campaign with its recipient rows and counts.
func (s *CampaignService) GetCampaignDetails(ctx context.Context, id int64) (*CampaignDetails, error) {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	recipients, err := s.StatusRepo.ListByCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	stats, err := s.StatusRepo.CountByStatus(ctx, id)
	if err != nil {
		return nil, err
	}

	return &CampaignDetails{Campaign: *c, Recipients: recipients, Stats: stats}, nil
}

// validateInput checks subject, body, and the recipient list, and returns
// the recipient ids deduplicated in request order.
func (s *CampaignService) validateInput(ctx context.Context, subject, body string, recipientIDs []int64) ([]int64, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, appErrors.NewValidation("subject", "must not be empty")
	}
	if len(subject) > maxSubjectLen {
		return nil, appErrors.NewValidation("subject", "must be at most 255 characters")
	}
	if strings.TrimSpace(body) == "" {
		return nil, appErrors.NewValidation("body", "must not be empty")
	}
	if len(recipientIDs) == 0 {
		return nil, appErrors.NewValidation("recipients", "must not be empty")
	}

	// The (campaign, contact) pair is the key; duplicates collapse.
	seen := make(map[int64]struct{}, len(recipientIDs))
	recipients := make([]int64, 0, len(recipientIDs))
	for _, id := range recipientIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		recipients = append(recipients, id)
	}

	existing, err := s.ContactRepo.ExistingIDs(ctx, recipients)
	if err != nil {
		return nil, err
	}
	if len(existing) != len(recipients) {
		return nil, appErrors.NewValidation("recipients", "contains unknown contact ids")
	}

	return recipients, nil
}
