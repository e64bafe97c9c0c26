package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/mailer"
	"github.com/unclebandit/mailblast-backend/internal/metrics"
	"github.com/unclebandit/mailblast-backend/internal/model"
	"github.com/unclebandit/mailblast-backend/internal/queue"
	"github.com/unclebandit/mailblast-backend/internal/repository"
)

// SendJobProcessor executes one delivery attempt: send the email, settle
// the recipient row, then try to finalize the owning campaign. The
// dispatcher retries it on returned errors, so every store write is
// conditional and safe to repeat.
type SendJobProcessor struct {
	CampaignRepo repository.CampaignRepositoryInterface
	ContactRepo  repository.ContactRepositoryInterface
	StatusRepo   repository.EmailStatusRepositoryInterface
	Sender       mailer.Sender
	Log          *zap.Logger
}

// Process handles one queued job. A nil return acks the job; an error hands
// it back for retry up to the dispatcher's attempt limit.
func (p *SendJobProcessor) Process(ctx context.Context, job queue.SendEmailJob) error {
	st, err := p.StatusRepo.GetByID(ctx, job.EmailStatusID)
	if err != nil {
		metrics.SendJobRetries.Inc()
		return err
	}
	if st == nil {
		// Row replaced or campaign deleted since enqueue; nothing to do.
		p.Log.Warn("email status row gone, dropping job",
			zap.Int64("email_status_id", job.EmailStatusID))
		return nil
	}
	if st.Terminal() {
		// Redelivered job; the row is already settled. Re-attempting
		// finalization is harmless and covers a crash between the row
		// write and the campaign check.
		return p.finalize(ctx, st.CampaignID)
	}

	campaign, err := p.CampaignRepo.GetByID(ctx, st.CampaignID)
	if err != nil {
		if appErrors.IsNotFound(err) {
			p.Log.Warn("campaign gone, dropping job",
				zap.Int64("email_status_id", job.EmailStatusID),
				zap.Int64("campaign_id", st.CampaignID))
			return nil
		}
		metrics.SendJobRetries.Inc()
		return err
	}

	contact, err := p.ContactRepo.GetByID(ctx, st.ContactID)
	if err != nil {
		if appErrors.IsNotFound(err) {
			p.Log.Warn("contact gone, dropping job",
				zap.Int64("email_status_id", job.EmailStatusID),
				zap.Int64("contact_id", st.ContactID))
			return nil
		}
		metrics.SendJobRetries.Inc()
		return err
	}

	p.Log.Info("sending campaign email",
		zap.Int64("campaign_id", campaign.ID),
		zap.Int64("contact_id", contact.ID),
		zap.String("email", contact.Email),
	)

	start := time.Now()
	sendErr := p.Sender.Send(ctx, contact.Email, campaign.Subject, campaign.Body)
	elapsed := time.Since(start).Seconds()

	switch {
	case sendErr == nil:
		metrics.RecordSendDuration(model.EmailStatusSent, elapsed)
		if _, err := p.StatusRepo.MarkSent(ctx, st.ID); err != nil {
			metrics.SendJobRetries.Inc()
			return err
		}
		metrics.EmailsProcessed.WithLabelValues(model.EmailStatusSent).Inc()

	case errors.Is(sendErr, mailer.ErrSendFailed):
		// Provider said no. That is a terminal outcome for this
		// recipient, not a job failure; record it and move on.
		metrics.RecordSendDuration(model.EmailStatusFailed, elapsed)
		if _, err := p.StatusRepo.MarkFailed(ctx, st.ID, sendErr.Error()); err != nil {
			metrics.SendJobRetries.Inc()
			return err
		}
		metrics.EmailsProcessed.WithLabelValues(model.EmailStatusFailed).Inc()

	default:
		// Infrastructure failure; let the dispatcher retry the attempt.
		metrics.RecordSendDuration(model.EmailStatusFailed, elapsed)
		metrics.SendJobRetries.Inc()
		return sendErr
	}

	return p.finalize(ctx, st.CampaignID)
}

// Exhausted is the dispatcher's compensation hook: when a job burns through
// its attempts, the row must still leave pending so the campaign can settle.
func (p *SendJobProcessor) Exhausted(ctx context.Context, job queue.SendEmailJob, cause error) {
	msg := "send job attempts exhausted"
	if cause != nil {
		msg = cause.Error()
	}

	changed, err := p.StatusRepo.MarkFailed(ctx, job.EmailStatusID, msg)
	if err != nil {
		p.Log.Error("failed to settle exhausted job",
			zap.Int64("email_status_id", job.EmailStatusID),
			zap.Error(err),
		)
		return
	}
	if changed {
		metrics.EmailsProcessed.WithLabelValues(model.EmailStatusFailed).Inc()
	}

	st, err := p.StatusRepo.GetByID(ctx, job.EmailStatusID)
	if err != nil || st == nil {
		return
	}
	if err := p.finalize(ctx, st.CampaignID); err != nil {
		p.Log.Error("failed to finalize campaign after exhausted job",
			zap.Int64("campaign_id", st.CampaignID),
			zap.Error(err),
		)
	}
}

// finalize attempts the idempotent terminal transition. The conditional
// update fires for exactly one of the racing jobs; everyone else no-ops.
func (p *SendJobProcessor) finalize(ctx context.Context, campaignID int64) error {
	status, err := p.CampaignRepo.Finalize(ctx, campaignID)
	if err != nil {
		return err
	}
	if status != "" {
		metrics.CampaignsFinalized.WithLabelValues(status).Inc()
		p.Log.Info("campaign finalized",
			zap.Int64("campaign_id", campaignID),
			zap.String("status", status),
		)
	}
	return nil
}
