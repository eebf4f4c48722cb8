package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canteen-backend/internal/config"
	"canteen-backend/internal/models"
)

type fakePrintStore struct {
	mu     sync.Mutex
	jobs   map[int]*models.PrintJob
	nextID int
}

func newFakePrintStore() *fakePrintStore {
	return &fakePrintStore{jobs: map[int]*models.PrintJob{}}
}

func (f *fakePrintStore) Enqueue(_ context.Context, j *models.PrintJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	j.ID = f.nextID
	j.Status = models.PrintQueued
	f.jobs[j.ID] = j
	return nil
}

func (f *fakePrintStore) Depth(_ context.Context, theaterID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	depth := 0
	for _, j := range f.jobs {
		if j.TheaterID == theaterID && (j.Status == models.PrintQueued || j.Status == models.PrintDelivering) {
			depth++
		}
	}
	return depth, nil
}

func (f *fakePrintStore) ClaimNext(_ context.Context, theaterID int, now time.Time) (*models.PrintJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *models.PrintJob
	for _, j := range f.jobs {
		if j.TheaterID != theaterID || j.Status != models.PrintQueued || j.NextAttemptAt.After(now) {
			continue
		}
		if best == nil || j.ID < best.ID {
			best = j
		}
	}
	if best == nil {
		return nil, nil
	}
	best.Status = models.PrintDelivering
	best.Attempts++
	copied := *best
	return &copied, nil
}

func (f *fakePrintStore) MarkDelivered(_ context.Context, id int, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.jobs[id]
	j.Status = models.PrintDelivered
	j.DeliveredAt = &at
	return nil
}

func (f *fakePrintStore) Requeue(_ context.Context, id int, lastError string, nextAttempt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.jobs[id]
	j.Status = models.PrintQueued
	j.LastError = lastError
	j.NextAttemptAt = nextAttempt
	return nil
}

func (f *fakePrintStore) MarkFailed(_ context.Context, id int, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.jobs[id]
	j.Status = models.PrintFailed
	j.LastError = lastError
	return nil
}

func (f *fakePrintStore) ResetStuck(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, j := range f.jobs {
		if j.Status == models.PrintDelivering {
			j.Status = models.PrintQueued
			n++
		}
	}
	return n, nil
}

func (f *fakePrintStore) Retry(_ context.Context, theaterID, id int, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok || j.TheaterID != theaterID || j.Status != models.PrintFailed {
		return models.NewNotFoundError("failed print job")
	}
	j.Status = models.PrintQueued
	j.Attempts = 0
	j.LastError = ""
	j.NextAttemptAt = now
	return nil
}

func (f *fakePrintStore) QueueStatus(_ context.Context, theaterID int) (*models.PrintQueueStatus, error) {
	depth, _ := f.Depth(context.Background(), theaterID)
	f.mu.Lock()
	defer f.mu.Unlock()
	st := &models.PrintQueueStatus{TheaterID: theaterID, QueueDepth: depth}
	for _, j := range f.jobs {
		if j.TheaterID == theaterID && j.Status == models.PrintFailed {
			st.FailedJobs++
		}
	}
	return st, nil
}

func (f *fakePrintStore) TheatersWithQueued(_ context.Context, now time.Time) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[int]bool{}
	var out []int
	for _, j := range f.jobs {
		if j.Status == models.PrintQueued && !j.NextAttemptAt.After(now) && !seen[j.TheaterID] {
			seen[j.TheaterID] = true
			out = append(out, j.TheaterID)
		}
	}
	return out, nil
}

func (f *fakePrintStore) ListRecent(_ context.Context, theaterID, limit int) ([]*models.PrintJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PrintJob
	for _, j := range f.jobs {
		if j.TheaterID == theaterID {
			copied := *j
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakePrintStore) job(id int) models.PrintJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.jobs[id]
}

// fakeChannel scripts ack outcomes per call
type fakeChannel struct {
	mu      sync.Mutex
	healthy bool
	acks    []bool // outcome per successive Send; exhausted = ack
	sends   int
}

func (f *fakeChannel) Send(_ context.Context, frame *models.PrintFrame, _ time.Duration) (*models.PrintAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ok := true
	if f.sends < len(f.acks) {
		ok = f.acks[f.sends]
	}
	f.sends++
	return &models.PrintAck{JobID: frame.JobID, OK: ok, Message: "printer offline"}, nil
}

func (f *fakeChannel) Healthy(int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthy
}

type fakeTheaterReader struct{}

func (fakeTheaterReader) Get(_ context.Context, id int) (*models.Theater, error) {
	return &models.Theater{ID: id, Name: "PVR Phoenix"}, nil
}

func printTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Print.MaxQueueDepth = 3
	cfg.Print.AckTimeout = 100 * time.Millisecond
	cfg.Print.MaxAttempts = 4
	return cfg
}

func testOrder(theaterID int) *models.Order {
	return &models.Order{
		ID: 1, OrderNumber: 42, TheaterID: theaterID,
		Channel: models.ChannelPOS, Status: models.OrderPending,
		Items: []models.OrderItem{{Name: "Popcorn", Quantity: 1, UnitPrice: 150, TotalPrice: 150}},
		Total: 150,
	}
}

func TestEnqueueOrderRespectsDepthCap(t *testing.T) {
	store := newFakePrintStore()
	d := NewPrintDispatcher(printTestConfig(), store, &fakeChannel{}, fakeTheaterReader{})

	for i := 0; i < 3; i++ {
		require.NoError(t, d.EnqueueOrder(context.Background(), testOrder(1), ""))
	}

	err := d.EnqueueOrder(context.Background(), testOrder(1), "")
	require.Error(t, err)
	appErr := models.AsAppError(err)
	assert.Equal(t, models.ErrServiceUnavailable, appErr.Kind)
	assert.True(t, appErr.Retryable())

	// A different theater has its own cap
	require.NoError(t, d.EnqueueOrder(context.Background(), testOrder(2), ""))
}

func TestEnqueueOrderRendersReceipt(t *testing.T) {
	store := newFakePrintStore()
	d := NewPrintDispatcher(printTestConfig(), store, &fakeChannel{}, fakeTheaterReader{})

	require.NoError(t, d.EnqueueOrder(context.Background(), testOrder(1), "kiosk-2"))
	job := store.job(1)
	assert.Equal(t, models.PrintQueued, job.Status)
	assert.Equal(t, "kiosk-2", job.PrinterHint)
	assert.Contains(t, job.Receipt, "PVR Phoenix")
	assert.Contains(t, job.Receipt, "Popcorn")
}

func TestDeliverAckSettlesJob(t *testing.T) {
	store := newFakePrintStore()
	d := NewPrintDispatcher(printTestConfig(), store, &fakeChannel{healthy: true}, fakeTheaterReader{})

	require.NoError(t, d.EnqueueOrder(context.Background(), testOrder(1), ""))
	job, err := store.ClaimNext(context.Background(), 1, time.Now())
	require.NoError(t, err)
	require.NotNil(t, job)

	d.deliver(context.Background(), job)

	settled := store.job(job.ID)
	assert.Equal(t, models.PrintDelivered, settled.Status)
	require.NotNil(t, settled.DeliveredAt)
}

func TestDeliverNackRequeuesWithBackoff(t *testing.T) {
	store := newFakePrintStore()
	ch := &fakeChannel{healthy: true, acks: []bool{false}}
	d := NewPrintDispatcher(printTestConfig(), store, ch, fakeTheaterReader{})

	require.NoError(t, d.EnqueueOrder(context.Background(), testOrder(1), ""))
	before := time.Now()
	job, err := store.ClaimNext(context.Background(), 1, before)
	require.NoError(t, err)

	d.deliver(context.Background(), job)

	requeued := store.job(job.ID)
	assert.Equal(t, models.PrintQueued, requeued.Status)
	assert.Equal(t, 1, requeued.Attempts)
	assert.Equal(t, "printer offline", requeued.LastError)
	// First retry waits one second
	assert.True(t, requeued.NextAttemptAt.After(before.Add(900*time.Millisecond)))
	assert.True(t, requeued.NextAttemptAt.Before(before.Add(3*time.Second)))
}

func TestDeliverExhaustedAttemptsFailTerminally(t *testing.T) {
	store := newFakePrintStore()
	ch := &fakeChannel{healthy: true, acks: []bool{false, false, false, false}}
	d := NewPrintDispatcher(printTestConfig(), store, ch, fakeTheaterReader{})

	require.NoError(t, d.EnqueueOrder(context.Background(), testOrder(1), ""))

	// Drive all four attempts by claiming past the backoff each time
	now := time.Now()
	for i := 0; i < 4; i++ {
		job, err := store.ClaimNext(context.Background(), 1, now.Add(time.Hour))
		require.NoError(t, err)
		require.NotNil(t, job, "attempt %d", i+1)
		d.deliver(context.Background(), job)
	}

	final := store.job(1)
	assert.Equal(t, models.PrintFailed, final.Status)
	assert.Equal(t, 4, final.Attempts)

	// No fifth claim
	job, err := store.ClaimNext(context.Background(), 1, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestRetryJobResetsFailedJob(t *testing.T) {
	store := newFakePrintStore()
	d := NewPrintDispatcher(printTestConfig(), store, &fakeChannel{}, fakeTheaterReader{})

	require.NoError(t, d.EnqueueOrder(context.Background(), testOrder(1), ""))
	require.NoError(t, store.MarkFailed(context.Background(), 1, "gave up"))

	require.NoError(t, d.RetryJob(context.Background(), 1, 1))
	job := store.job(1)
	assert.Equal(t, models.PrintQueued, job.Status)
	assert.Equal(t, 0, job.Attempts)

	// Only terminally failed jobs can be retried
	err := d.RetryJob(context.Background(), 1, 1)
	require.Error(t, err)
	assert.Equal(t, models.ErrNotFound, models.AsAppError(err).Kind)
}

func TestQueueStatusReportsAgentHealth(t *testing.T) {
	store := newFakePrintStore()
	ch := &fakeChannel{healthy: false}
	d := NewPrintDispatcher(printTestConfig(), store, ch, fakeTheaterReader{})

	require.NoError(t, d.EnqueueOrder(context.Background(), testOrder(1), ""))
	require.NoError(t, d.EnqueueOrder(context.Background(), testOrder(1), ""))

	st, err := d.QueueStatus(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, st.QueueDepth)
	assert.False(t, st.AgentHealthy)

	ch.healthy = true
	st, err = d.QueueStatus(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, st.AgentHealthy)
}

func TestClaimOrderIsFIFO(t *testing.T) {
	store := newFakePrintStore()
	d := NewPrintDispatcher(printTestConfig(), store, &fakeChannel{}, fakeTheaterReader{})

	cfg := printTestConfig()
	cfg.Print.MaxQueueDepth = 10
	d.cfg = cfg

	for i := 0; i < 3; i++ {
		o := testOrder(1)
		o.OrderNumber = int64(100 + i)
		require.NoError(t, d.EnqueueOrder(context.Background(), o, ""))
	}

	var got []int64
	for {
		job, err := store.ClaimNext(context.Background(), 1, time.Now())
		require.NoError(t, err)
		if job == nil {
			break
		}
		got = append(got, job.OrderNumber)
	}
	assert.Equal(t, []int64{100, 101, 102}, got)
}
