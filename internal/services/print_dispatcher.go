package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"canteen-backend/internal/config"
	"canteen-backend/internal/metrics"
	"canteen-backend/internal/models"
	"canteen-backend/internal/timeutil"
)

type printStore interface {
	Enqueue(ctx context.Context, j *models.PrintJob) error
	Depth(ctx context.Context, theaterID int) (int, error)
	ClaimNext(ctx context.Context, theaterID int, now time.Time) (*models.PrintJob, error)
	MarkDelivered(ctx context.Context, id int, at time.Time) error
	Requeue(ctx context.Context, id int, lastError string, nextAttempt time.Time) error
	MarkFailed(ctx context.Context, id int, lastError string) error
	ResetStuck(ctx context.Context) (int, error)
	Retry(ctx context.Context, theaterID, id int, now time.Time) error
	QueueStatus(ctx context.Context, theaterID int) (*models.PrintQueueStatus, error)
	TheatersWithQueued(ctx context.Context, now time.Time) ([]int, error)
	ListRecent(ctx context.Context, theaterID, limit int) ([]*models.PrintJob, error)
}

type agentChannel interface {
	Send(ctx context.Context, frame *models.PrintFrame, ackTimeout time.Duration) (*models.PrintAck, error)
	Healthy(theaterID int) bool
}

type theaterReader interface {
	Get(ctx context.Context, id int) (*models.Theater, error)
}

// PrintDispatcher owns the at-least-once receipt path: durable queue,
// per-theater FIFO drain over the agent channel, bounded retries with
// exponential backoff, terminal delivered/failed states.
type PrintDispatcher struct {
	cfg      *config.Config
	store    printStore
	channel  agentChannel
	theaters theaterReader

	mu       sync.Mutex
	draining map[int]bool

	wake   chan int
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPrintDispatcher(cfg *config.Config, store printStore, channel agentChannel, theaters theaterReader) *PrintDispatcher {
	return &PrintDispatcher{
		cfg:      cfg,
		store:    store,
		channel:  channel,
		theaters: theaters,
		draining: make(map[int]bool),
		wake:     make(chan int, 64),
	}
}

// Start recovers jobs stranded in delivering by a previous instance and
// begins the drain loop.
func (d *PrintDispatcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	recoverCtx, recoverCancel := context.WithTimeout(ctx, 10*time.Second)
	if n, err := d.store.ResetStuck(recoverCtx); err != nil {
		log.Printf("[Print] startup recovery failed: %v", err)
	} else if n > 0 {
		log.Printf("[Print] requeued %d jobs stranded by previous instance", n)
	}
	recoverCancel()

	d.wg.Add(1)
	go d.loop(ctx)
	log.Printf("[Print] dispatcher started (max attempts %d, ack timeout %s, depth cap %d)",
		d.cfg.Print.MaxAttempts, d.cfg.Print.AckTimeout, d.cfg.Print.MaxQueueDepth)
}

func (d *PrintDispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	log.Println("[Print] dispatcher stopped")
}

// EnqueueOrder renders the order's receipt and queues it durably. Fails
// with a retryable error when the theater's queue is over the depth cap.
func (d *PrintDispatcher) EnqueueOrder(ctx context.Context, order *models.Order, printerHint string) error {
	depth, err := d.store.Depth(ctx, order.TheaterID)
	if err != nil {
		return err
	}
	if depth >= d.cfg.Print.MaxQueueDepth {
		return models.NewUnavailableError(
			fmt.Sprintf("print queue full for theater %d (%d jobs)", order.TheaterID, depth), nil)
	}

	theaterName := fmt.Sprintf("Theater %d", order.TheaterID)
	if t, err := d.theaters.Get(ctx, order.TheaterID); err == nil {
		theaterName = t.Name
	}
	receipt, err := RenderReceipt(order, theaterName)
	if err != nil {
		return models.NewInternalError("receipt rendering failed", err)
	}

	job := &models.PrintJob{
		TheaterID:   order.TheaterID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		PrinterHint: printerHint,
		Receipt:     receipt,
	}
	if err := d.store.Enqueue(ctx, job); err != nil {
		return err
	}

	metrics.PrintJobsEnqueued.Inc()
	metrics.PrintQueueDepth.WithLabelValues(strconv.Itoa(order.TheaterID)).Set(float64(depth + 1))

	select {
	case d.wake <- order.TheaterID:
	default:
	}
	return nil
}

// loop periodically scans for due work; enqueues also wake it directly
func (d *PrintDispatcher) loop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case theaterID := <-d.wake:
			d.maybeDrain(ctx, theaterID)
		case <-ticker.C:
			scanCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			theaters, err := d.store.TheatersWithQueued(scanCtx, timeutil.Now())
			cancel()
			if err != nil {
				log.Printf("[Print] queue scan failed: %v", err)
				continue
			}
			for _, theaterID := range theaters {
				d.maybeDrain(ctx, theaterID)
			}
		}
	}
}

// maybeDrain starts a drain goroutine for the theater unless one is already
// running or its agent is offline. Per-theater drains are serialized so
// jobs stay FIFO.
func (d *PrintDispatcher) maybeDrain(ctx context.Context, theaterID int) {
	if !d.channel.Healthy(theaterID) {
		return
	}
	d.mu.Lock()
	if d.draining[theaterID] {
		d.mu.Unlock()
		return
	}
	d.draining[theaterID] = true
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			d.mu.Lock()
			delete(d.draining, theaterID)
			d.mu.Unlock()
		}()
		d.drainTheater(ctx, theaterID)
	}()
}

func (d *PrintDispatcher) drainTheater(ctx context.Context, theaterID int) {
	for {
		if ctx.Err() != nil {
			return
		}
		claimCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		job, err := d.store.ClaimNext(claimCtx, theaterID, timeutil.Now())
		cancel()
		if err != nil {
			log.Printf("[Print] claim failed (theater=%d): %v", theaterID, err)
			return
		}
		if job == nil {
			d.updateDepthGauge(ctx, theaterID)
			return
		}
		d.deliver(ctx, job)
	}
}

// deliver pushes one claimed job and settles its outcome
func (d *PrintDispatcher) deliver(ctx context.Context, job *models.PrintJob) {
	frame := &models.PrintFrame{
		JobID:       job.ID,
		OrderNumber: job.OrderNumber,
		TheaterID:   job.TheaterID,
		PrinterType: job.PrinterHint,
		Receipt:     job.Receipt,
	}

	ack, err := d.channel.Send(ctx, frame, d.cfg.Print.AckTimeout)

	settleCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err == nil && ack.OK {
		now := timeutil.Now()
		if err := d.store.MarkDelivered(settleCtx, job.ID, now); err != nil {
			log.Printf("[Print] job %d delivered but not recorded: %v", job.ID, err)
			return
		}
		metrics.PrintJobsDelivered.Inc()
		metrics.PrintLastSuccess.WithLabelValues(strconv.Itoa(job.TheaterID)).Set(float64(now.Unix()))
		return
	}

	reason := "nack from agent"
	if err != nil {
		reason = err.Error()
	} else if ack.Message != "" {
		reason = ack.Message
	}

	if job.Attempts >= d.cfg.Print.MaxAttempts {
		log.Printf("[Print] job %d failed permanently after %d attempts (theater=%d): %s",
			job.ID, job.Attempts, job.TheaterID, reason)
		if err := d.store.MarkFailed(settleCtx, job.ID, reason); err != nil {
			log.Printf("[Print] job %d could not be marked failed: %v", job.ID, err)
		}
		metrics.PrintJobsFailed.Inc()
		return
	}

	// 1s, 2s, 4s between attempts
	backoff := time.Second << (job.Attempts - 1)
	next := timeutil.Now().Add(backoff)
	if err := d.store.Requeue(settleCtx, job.ID, reason, next); err != nil {
		log.Printf("[Print] job %d could not be requeued: %v", job.ID, err)
		return
	}
	metrics.PrintJobsRetried.Inc()
	log.Printf("[Print] job %d attempt %d failed (theater=%d): %s, retrying in %s",
		job.ID, job.Attempts, job.TheaterID, reason, backoff)
}

func (d *PrintDispatcher) updateDepthGauge(ctx context.Context, theaterID int) {
	depthCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if depth, err := d.store.Depth(depthCtx, theaterID); err == nil {
		metrics.PrintQueueDepth.WithLabelValues(strconv.Itoa(theaterID)).Set(float64(depth))
	}
}

// QueueStatus reports the operator view for one theater
func (d *PrintDispatcher) QueueStatus(ctx context.Context, theaterID int) (*models.PrintQueueStatus, error) {
	st, err := d.store.QueueStatus(ctx, theaterID)
	if err != nil {
		return nil, err
	}
	st.AgentHealthy = d.channel.Healthy(theaterID)
	return st, nil
}

// ListRecentJobs exposes the newest jobs, including the failed queue
func (d *PrintDispatcher) ListRecentJobs(ctx context.Context, theaterID, limit int) ([]*models.PrintJob, error) {
	return d.store.ListRecent(ctx, theaterID, limit)
}

// RetryJob gives a terminally failed job a fresh round of attempts
func (d *PrintDispatcher) RetryJob(ctx context.Context, theaterID, jobID int) error {
	if err := d.store.Retry(ctx, theaterID, jobID, timeutil.Now()); err != nil {
		return err
	}
	select {
	case d.wake <- theaterID:
	default:
	}
	return nil
}
