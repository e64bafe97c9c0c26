package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/model"
	"github.com/unclebandit/mailblast-backend/internal/service"
)

func newCampaignService(store *memStore, q *fakeQueue) *service.CampaignService {
	return &service.CampaignService{
		CampaignRepo: store,
		ContactRepo:  contactRepo{store},
		StatusRepo:   statusRepo{store},
		Queue:        q,
		Log:          zap.NewNop(),
	}
}

func TestCreateCampaign(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newCampaignService(store, &fakeQueue{})

	a := store.addContact("Alice", "alice@example.com")
	b := store.addContact("Bob", "bob@example.com")
	c := store.addContact("Carol", "carol@example.com")

	campaign, err := svc.CreateCampaign(ctx, "Hello", "Body text", []int64{a.ID, b.ID, c.ID})
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusDraft, campaign.Status)
	assert.Nil(t, campaign.SentAt)

	counts, err := store.CountByStatus(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Total)
	assert.Equal(t, 3, counts.Pending)
}

func TestCreateCampaignDeduplicatesRecipients(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newCampaignService(store, &fakeQueue{})

	a := store.addContact("Alice", "alice@example.com")

	campaign, err := svc.CreateCampaign(ctx, "Hello", "Body", []int64{a.ID, a.ID, a.ID})
	require.NoError(t, err)

	counts, _ := store.CountByStatus(ctx, campaign.ID)
	assert.Equal(t, 1, counts.Total)
}

func TestCreateCampaignValidation(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newCampaignService(store, &fakeQueue{})
	a := store.addContact("Alice", "alice@example.com")

	tests := []struct {
		name       string
		subject    string
		body       string
		recipients []int64
	}{
		{"empty subject", "", "body", []int64{a.ID}},
		{"whitespace subject", "   ", "body", []int64{a.ID}},
		{"subject too long", strings.Repeat("x", 256), "body", []int64{a.ID}},
		{"empty body", "subject", "", []int64{a.ID}},
		{"no recipients", "subject", "body", nil},
		{"unknown recipient", "subject", "body", []int64{a.ID, 9999}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateCampaign(ctx, tt.subject, tt.body, tt.recipients)
			assert.True(t, appErrors.IsValidation(err), "expected validation error, got %v", err)
		})
	}

	// Nothing was persisted by the failed attempts.
	_, total, err := store.List(ctx, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestUpdateCampaignReplacesRecipients(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newCampaignService(store, &fakeQueue{})

	a := store.addContact("Alice", "alice@example.com")
	b := store.addContact("Bob", "bob@example.com")
	c := store.addContact("Carol", "carol@example.com")

	campaign, err := svc.CreateCampaign(ctx, "Hello", "Body", []int64{a.ID, b.ID})
	require.NoError(t, err)

	_, err = svc.UpdateCampaign(ctx, campaign.ID, "Hello v2", "Body v2", []int64{a.ID, c.ID})
	require.NoError(t, err)

	counts, _ := store.CountByStatus(ctx, campaign.ID)
	assert.Equal(t, 2, counts.Total)
	assert.Equal(t, 2, counts.Pending)

	assert.NotNil(t, store.statusByPair(campaign.ID, a.ID))
	assert.Nil(t, store.statusByPair(campaign.ID, b.ID))
	assert.NotNil(t, store.statusByPair(campaign.ID, c.ID))

	got, _ := store.GetByID(ctx, campaign.ID)
	assert.Equal(t, "Hello v2", got.Subject)
	assert.Equal(t, "Body v2", got.Body)
}

func TestUpdateCampaignRejectedPastDraft(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newCampaignService(store, &fakeQueue{})
	a := store.addContact("Alice", "alice@example.com")

	for _, status := range []string{
		model.CampaignStatusSending,
		model.CampaignStatusSent,
		model.CampaignStatusFailed,
	} {
		t.Run(status, func(t *testing.T) {
			campaign, err := svc.CreateCampaign(ctx, "Hello", "Body", []int64{a.ID})
			require.NoError(t, err)
			store.campaigns[campaign.ID].Status = status

			_, err = svc.UpdateCampaign(ctx, campaign.ID, "New", "New", []int64{a.ID})
			assert.True(t, appErrors.IsInvalidState(err), "expected state error, got %v", err)
		})
	}
}

func TestSendCampaignDispatchesPendingJobs(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	q := &fakeQueue{}
	svc := newCampaignService(store, q)

	a := store.addContact("Alice", "alice@example.com")
	b := store.addContact("Bob", "bob@example.com")
	c := store.addContact("Carol", "carol@example.com")

	campaign, err := svc.CreateCampaign(ctx, "Hello", "Body", []int64{a.ID, b.ID, c.ID})
	require.NoError(t, err)

	result, err := svc.SendCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, result.JobsQueued)
	assert.Equal(t, model.CampaignStatusSending, result.Status)
	assert.Len(t, q.jobs, 3)

	got, _ := store.GetByID(ctx, campaign.ID)
	assert.Equal(t, model.CampaignStatusSending, got.Status)
}

func TestSendCampaignRejectedPastDraft(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	q := &fakeQueue{}
	svc := newCampaignService(store, q)
	a := store.addContact("Alice", "alice@example.com")

	campaign, err := svc.CreateCampaign(ctx, "Hello", "Body", []int64{a.ID})
	require.NoError(t, err)
	store.campaigns[campaign.ID].Status = model.CampaignStatusSent

	_, err = svc.SendCampaign(ctx, campaign.ID)
	assert.True(t, appErrors.IsInvalidState(err))
	assert.Empty(t, q.jobs)

	got, _ := store.GetByID(ctx, campaign.ID)
	assert.Equal(t, model.CampaignStatusSent, got.Status)
}

func TestSendCampaignWithNoPendingRowsFinalizesImmediately(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	q := &fakeQueue{}
	svc := newCampaignService(store, q)
	a := store.addContact("Alice", "alice@example.com")

	campaign, err := svc.CreateCampaign(ctx, "Hello", "Body", []int64{a.ID})
	require.NoError(t, err)

	// Strip the recipient rows behind the service's back. With nothing to
	// deliver and zero sent rows the campaign settles as failed.
	store.mu.Lock()
	for id, s := range store.statuses {
		if s.CampaignID == campaign.ID {
			delete(store.statuses, id)
		}
	}
	store.mu.Unlock()

	result, err := svc.SendCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.JobsQueued)
	assert.Equal(t, model.CampaignStatusFailed, result.Status)

	got, _ := store.GetByID(ctx, campaign.ID)
	assert.Equal(t, model.CampaignStatusFailed, got.Status)
	assert.NotNil(t, got.SentAt)
}

func TestDeleteCampaignProtection(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newCampaignService(store, &fakeQueue{})
	a := store.addContact("Alice", "alice@example.com")

	tests := []struct {
		status    string
		deletable bool
	}{
		{model.CampaignStatusDraft, true},
		{model.CampaignStatusFailed, true},
		{model.CampaignStatusSending, false},
		{model.CampaignStatusSent, false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			campaign, err := svc.CreateCampaign(ctx, "Hello", "Body", []int64{a.ID})
			require.NoError(t, err)
			store.campaigns[campaign.ID].Status = tt.status

			err = svc.DeleteCampaign(ctx, campaign.ID)
			if tt.deletable {
				require.NoError(t, err)
				_, err = store.GetByID(ctx, campaign.ID)
				assert.True(t, appErrors.IsNotFound(err))
			} else {
				assert.True(t, appErrors.IsInvalidState(err))
			}
		})
	}
}

func TestListCampaignsPagination(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newCampaignService(store, &fakeQueue{})
	a := store.addContact("Alice", "alice@example.com")

	for i := 0; i < 20; i++ {
		_, err := svc.CreateCampaign(ctx, "Hello", "Body", []int64{a.ID})
		require.NoError(t, err)
	}

	campaigns, pagination, err := svc.ListCampaigns(ctx, 1, 0)
	require.NoError(t, err)
	assert.Len(t, campaigns, 15) // default page size
	assert.Equal(t, 20, pagination["total_count"])
	assert.Equal(t, 2, pagination["total_pages"])

	// Newest first.
	assert.Greater(t, campaigns[0].ID, campaigns[1].ID)

	second, _, err := svc.ListCampaigns(ctx, 2, 15)
	require.NoError(t, err)
	assert.Len(t, second, 5)
}

func TestGetCampaignDetails(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newCampaignService(store, &fakeQueue{})

	a := store.addContact("Alice", "alice@example.com")
	b := store.addContact("Bob", "bob@example.com")

	campaign, err := svc.CreateCampaign(ctx, "Hello", "Body", []int64{a.ID, b.ID})
	require.NoError(t, err)

	details, err := svc.GetCampaignDetails(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Len(t, details.Recipients, 2)
	assert.Equal(t, 2, details.Stats.Total)
	assert.Equal(t, 2, details.Stats.Pending)
	assert.Equal(t, "alice@example.com", details.Recipients[0].ContactEmail)
}
