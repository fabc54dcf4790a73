package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tarlanaraujo/TarlanTV/internal/models"
	"github.com/tarlanaraujo/TarlanTV/internal/store"
)

// memStore is an in-memory store.Store that enforces the job state machine.
type memStore struct {
	mu       sync.Mutex
	nextJob  int64
	nextChan int64
	jobs     map[int64]*models.Job
	channels map[int64]*models.Channel
	order    map[int64][]int64
	exports  []models.PlaylistExport
	updates  int

	getErr   error
	startErr error
}

var _ store.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		jobs:     make(map[int64]*models.Job),
		channels: make(map[int64]*models.Channel),
		order:    make(map[int64][]int64),
	}
}

func (m *memStore) CreateJob(_ context.Context, sourceURL string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextJob++
	now := time.Now()
	j := &models.Job{ID: m.nextJob, SourceURL: sourceURL, Status: models.JobPending, CreatedAt: now, UpdatedAt: now}
	m.jobs[j.ID] = j
	cp := *j
	return &cp, nil
}

func (m *memStore) GetJob(_ context.Context, jobID int64) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	j, ok := m.jobs[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memStore) ListJobs(_ context.Context, limit int) ([]models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID > out[b].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) transition(jobID int64, from []models.JobStatus, to models.JobStatus) (*models.Job, error) {
	j, ok := m.jobs[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	for _, s := range from {
		if j.Status == s {
			j.Status = to
			j.UpdatedAt = time.Now()
			return j, nil
		}
	}
	return nil, store.ErrInvalidTransition
}

func (m *memStore) StartJob(_ context.Context, jobID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	_, err := m.transition(jobID, []models.JobStatus{models.JobPending}, models.JobProcessing)
	return err
}

func (m *memStore) FailJob(_ context.Context, jobID int64, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, err := m.transition(jobID, []models.JobStatus{models.JobPending, models.JobProcessing}, models.JobFailed)
	if err != nil {
		return err
	}
	j.Title = &title
	return nil
}

func (m *memStore) FailStaleJobs(_ context.Context, before time.Time, title string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, j := range m.jobs {
		if !j.Status.Terminal() && j.UpdatedAt.Before(before) {
			t := title
			j.Status, j.Title = models.JobFailed, &t
			n++
		}
	}
	return n, nil
}

func (m *memStore) CompleteJob(_ context.Context, jobID int64, title string, channels []models.Channel) ([]models.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, err := m.transition(jobID, []models.JobStatus{models.JobProcessing}, models.JobCompleted)
	if err != nil {
		return nil, err
	}
	j.Title = &title
	j.ChannelsFound = len(channels)
	out := make([]models.Channel, len(channels))
	for i, ch := range channels {
		m.nextChan++
		ch.ID, ch.JobID = m.nextChan, jobID
		stored := ch
		m.channels[ch.ID] = &stored
		m.order[jobID] = append(m.order[jobID], ch.ID)
		out[i] = ch
	}
	return out, nil
}

func (m *memStore) RefreshValidCount(_ context.Context, jobID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return 0, store.ErrNotFound
	}
	n := 0
	for _, id := range m.order[jobID] {
		if m.channels[id].Working() {
			n++
		}
	}
	j.ValidChannelsCount = n
	return n, nil
}

func (m *memStore) ListChannels(_ context.Context, jobID int64) ([]models.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Channel, 0, len(m.order[jobID]))
	for _, id := range m.order[jobID] {
		out = append(out, *m.channels[id])
	}
	return out, nil
}

func (m *memStore) GetChannel(_ context.Context, channelID int64) (*models.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[channelID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *ch
	return &cp, nil
}

func (m *memStore) UpdateChannelStatus(_ context.Context, channelID int64, working bool, checkedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[channelID]
	if !ok {
		return store.ErrNotFound
	}
	ch.MarkChecked(working, checkedAt)
	m.updates++
	return nil
}

func (m *memStore) CreateExport(_ context.Context, e *models.PlaylistExport) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.exports) + 1)
	e.CreatedAt = time.Now()
	m.exports = append(m.exports, *e)
	return e.ID, nil
}

func (m *memStore) job(id int64) models.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.jobs[id]
}
