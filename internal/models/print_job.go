package models

import "time"

// PrintJobStatus lifecycle: queued -> delivering -> {delivered, failed}.
// A job returns to queued between retry attempts.
type PrintJobStatus string

const (
	PrintQueued     PrintJobStatus = "queued"
	PrintDelivering PrintJobStatus = "delivering"
	PrintDelivered  PrintJobStatus = "delivered"
	PrintFailed     PrintJobStatus = "failed"
)

// PrintJob is one receipt to be pushed to a theater's agent. Jobs are durable
// (persisted before the order-submit response) and drained FIFO per theater.
type PrintJob struct {
	ID            int            `json:"id"`
	TheaterID     int            `json:"theater_id"`
	OrderID       int            `json:"order_id"`
	OrderNumber   int64          `json:"order_number"`
	PrinterHint   string         `json:"printer_hint"`
	Receipt       string         `json:"receipt"` // rendered HTML
	Status        PrintJobStatus `json:"status"`
	Attempts      int            `json:"attempts"`
	LastError     string         `json:"last_error,omitempty"`
	NextAttemptAt time.Time      `json:"next_attempt_at"`
	DeliveredAt   *time.Time     `json:"delivered_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// PrintFrame is the wire format pushed to the agent over the websocket
// channel. The agent forwards Receipt to the local silent-print service.
type PrintFrame struct {
	JobID       int    `json:"job_id"`
	OrderNumber int64  `json:"order_number"`
	TheaterID   int    `json:"theater_id"`
	PrinterType string `json:"printer_type"`
	Receipt     string `json:"receipt"`
}

// PrintAck is the agent's reply to a PrintFrame
type PrintAck struct {
	JobID   int    `json:"job_id"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// PrintQueueStatus is the operator-visible view of one theater's queue
type PrintQueueStatus struct {
	TheaterID     int        `json:"theater_id"`
	QueueDepth    int        `json:"queue_depth"`
	FailedJobs    int        `json:"failed_jobs"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	AgentHealthy  bool       `json:"agent_healthy"`
}
