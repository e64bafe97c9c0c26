package service_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/model"
	"github.com/unclebandit/mailblast-backend/internal/queue"
	"github.com/unclebandit/mailblast-backend/internal/repository"
)

// memStore is an in-memory stand-in for the three repositories. All
// methods hold one mutex, so the conditional updates (MarkSent,
// MarkFailed, MarkSending, Finalize) are atomic the way the SQL
// statements are.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	campaigns map[int64]*model.Campaign
	contacts  map[int64]*model.Contact
	statuses  map[int64]*model.EmailStatus
}

func newMemStore() *memStore {
	return &memStore{
		campaigns: make(map[int64]*model.Campaign),
		contacts:  make(map[int64]*model.Contact),
		statuses:  make(map[int64]*model.EmailStatus),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addContact(name, email string) *model.Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &model.Contact{ID: m.id(), Name: name, Email: email, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.contacts[c.ID] = c
	return c
}

// statusByPair finds the row for a (campaign, contact) pair, nil if none.
func (m *memStore) statusByPair(campaignID, contactID int64) *model.EmailStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.statuses {
		if s.CampaignID == campaignID && s.ContactID == contactID {
			cp := *s
			return &cp
		}
	}
	return nil
}

func (m *memStore) campaignStatuses(campaignID int64) []*model.EmailStatus {
	out := []*model.EmailStatus{}
	for _, s := range m.statuses {
		if s.CampaignID == campaignID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ---- CampaignRepositoryInterface ----

func (m *memStore) CreateWithRecipients(_ context.Context, c *model.Campaign, contactIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id()
	c.Status = model.CampaignStatusDraft
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	m.campaigns[c.ID] = &cp
	for _, contactID := range contactIDs {
		m.statuses[m.id()] = &model.EmailStatus{
			ID:         m.nextID,
			CampaignID: c.ID,
			ContactID:  contactID,
			Status:     model.EmailStatusPending,
			CreatedAt:  time.Now(),
		}
	}
	return nil
}

func (m *memStore) UpdateDraftWithRecipients(_ context.Context, c *model.Campaign, contactIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.campaigns[c.ID]
	if !ok || stored.Status != model.CampaignStatusDraft {
		return appErrors.NewInvalidState(c.ID, "", "update")
	}
	stored.Subject = c.Subject
	stored.Body = c.Body
	stored.UpdatedAt = time.Now()
	for id, s := range m.statuses {
		if s.CampaignID == c.ID {
			delete(m.statuses, id)
		}
	}
	for _, contactID := range contactIDs {
		m.statuses[m.id()] = &model.EmailStatus{
			ID:         m.nextID,
			CampaignID: c.ID,
			ContactID:  contactID,
			Status:     model.EmailStatusPending,
			CreatedAt:  time.Now(),
		}
	}
	return nil
}

func (m *memStore) GetByID(_ context.Context, id int64) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[id]; !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	delete(m.campaigns, id)
	for sid, s := range m.statuses {
		if s.CampaignID == id {
			delete(m.statuses, sid)
		}
	}
	return nil
}

func (m *memStore) List(_ context.Context, offset, limit int) ([]model.CampaignSummary, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := []model.CampaignSummary{}
	for _, c := range m.campaigns {
		sum := model.CampaignSummary{Campaign: *c}
		for _, s := range m.campaignStatuses(c.ID) {
			switch s.Status {
			case model.EmailStatusSent:
				sum.SentCount++
			case model.EmailStatusFailed:
				sum.FailedCount++
			case model.EmailStatusPending:
				sum.PendingCount++
			}
		}
		all = append(all, sum)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *memStore) MarkSending(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.Status != model.CampaignStatusDraft {
		return false, nil
	}
	c.Status = model.CampaignStatusSending
	c.UpdatedAt = time.Now()
	return true, nil
}

func (m *memStore) Finalize(_ context.Context, id int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.Status != model.CampaignStatusSending {
		return "", nil
	}
	anySent := false
	for _, s := range m.campaignStatuses(id) {
		if s.Status == model.EmailStatusPending {
			return "", nil
		}
		if s.Status == model.EmailStatusSent {
			anySent = true
		}
	}
	if anySent {
		c.Status = model.CampaignStatusSent
	} else {
		c.Status = model.CampaignStatusFailed
	}
	now := time.Now()
	c.SentAt = &now
	c.UpdatedAt = now
	return c.Status, nil
}

// ---- ContactRepositoryInterface ----

func (m *memStore) Create(_ context.Context, c *model.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	m.contacts[c.ID] = &cp
	return nil
}

func (m *memStore) contactGet(id int64) (*model.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok {
		return nil, appErrors.NewContactNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) GetByEmail(_ context.Context, email string) (*model.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.contacts {
		if strings.EqualFold(c.Email, email) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) Update(_ context.Context, c *model.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.contacts[c.ID]
	if !ok {
		return appErrors.NewContactNotFound(c.ID)
	}
	stored.Name = c.Name
	stored.Email = c.Email
	stored.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) ExistingIDs(_ context.Context, ids []int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := []int64{}
	for _, id := range ids {
		if _, ok := m.contacts[id]; ok {
			found = append(found, id)
		}
	}
	return found, nil
}

func (m *memStore) ReferenceCount(_ context.Context, contactID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, s := range m.statuses {
		if s.ContactID == contactID {
			count++
		}
	}
	return count, nil
}

func (m *memStore) CampaignsFor(_ context.Context, contactID int64) ([]model.ContactCampaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.ContactCampaign{}
	for _, s := range m.statuses {
		if s.ContactID != contactID {
			continue
		}
		c := m.campaigns[s.CampaignID]
		out = append(out, model.ContactCampaign{
			CampaignID: s.CampaignID,
			Subject:    c.Subject,
			Status:     s.Status,
			SentAt:     s.SentAt,
		})
	}
	return out, nil
}

// ---- EmailStatusRepositoryInterface ----

func (m *memStore) statusGet(id int64) (*model.EmailStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.statuses[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) PendingIDs(_ context.Context, campaignID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []int64{}
	for _, s := range m.campaignStatuses(campaignID) {
		if s.Status == model.EmailStatusPending {
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}

func (m *memStore) ListByCampaign(_ context.Context, campaignID int64) ([]model.RecipientStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.RecipientStatus{}
	for _, s := range m.campaignStatuses(campaignID) {
		rs := model.RecipientStatus{EmailStatus: *s}
		if c, ok := m.contacts[s.ContactID]; ok {
			rs.ContactName = c.Name
			rs.ContactEmail = c.Email
		}
		out = append(out, rs)
	}
	return out, nil
}

func (m *memStore) CountByStatus(_ context.Context, campaignID int64) (model.StatusCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var counts model.StatusCounts
	for _, s := range m.campaignStatuses(campaignID) {
		switch s.Status {
		case model.EmailStatusPending:
			counts.Pending++
		case model.EmailStatusSent:
			counts.Sent++
		case model.EmailStatusFailed:
			counts.Failed++
		}
		counts.Total++
	}
	return counts, nil
}

func (m *memStore) MarkSent(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.statuses[id]
	if !ok || s.Status != model.EmailStatusPending {
		return false, nil
	}
	now := time.Now()
	s.Status = model.EmailStatusSent
	s.SentAt = &now
	s.UpdatedAt = now
	return true, nil
}

func (m *memStore) MarkFailed(_ context.Context, id int64, errorMessage string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.statuses[id]
	if !ok || s.Status != model.EmailStatusPending {
		return false, nil
	}
	s.Status = model.EmailStatusFailed
	s.ErrorMessage = errorMessage
	s.UpdatedAt = time.Now()
	return true, nil
}

// contactRepo adapts memStore to the contact interface; GetByID clashes
// with the campaign one, so the contact view goes through a wrapper.
type contactRepo struct {
	*memStore
}

func (r contactRepo) GetByID(ctx context.Context, id int64) (*model.Contact, error) {
	return r.contactGet(id)
}

func (r contactRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.contacts[id]; !ok {
		return appErrors.NewContactNotFound(id)
	}
	delete(r.contacts, id)
	return nil
}

func (r contactRepo) List(_ context.Context, offset, limit int, search string) ([]model.Contact, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := []model.Contact{}
	for _, c := range r.contacts {
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Name), strings.ToLower(search)) &&
			!strings.Contains(strings.ToLower(c.Email), strings.ToLower(search)) {
			continue
		}
		all = append(all, *c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// statusRepo adapts memStore to the email status interface; its GetByID
// clashes with the campaign one in the same way.
type statusRepo struct {
	*memStore
}

func (r statusRepo) GetByID(_ context.Context, id int64) (*model.EmailStatus, error) {
	return r.statusGet(id)
}

// fakeQueue records published jobs instead of dispatching them.
type fakeQueue struct {
	mu   sync.Mutex
	jobs []queue.SendEmailJob
	err  error
}

func (q *fakeQueue) Publish(_ context.Context, _ string, job queue.SendEmailJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

// senderFunc adapts a function to the mailer.Sender interface.
type senderFunc func(ctx context.Context, to, subject, body string) error

func (f senderFunc) Send(ctx context.Context, to, subject, body string) error {
	return f(ctx, to, subject, body)
}

var (
	_ repository.CampaignRepositoryInterface    = (*memStore)(nil)
	_ repository.EmailStatusRepositoryInterface = statusRepo{}
	_ repository.ContactRepositoryInterface     = contactRepo{}
	_ queue.Queue                               = (*fakeQueue)(nil)
)
