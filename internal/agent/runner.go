package agent

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"canteen-backend/internal/models"
)

const (
	reconnectWait = 5 * time.Second
	heartbeatLog  = 30 * time.Second
)

// Runner is the agent subprocess: it dials the backend's agent channel,
// receives print frames, forwards each receipt to the local silent-print
// service, and acks. It logs a line every 30s so the supervisor sees a
// heartbeat even when no jobs flow.
type Runner struct {
	theaterID       int
	token           string
	backendURL      string
	printServiceURL string

	printer *PrinterClient
}

// NewRunnerFromEnv builds a runner from the environment the supervisor set
func NewRunnerFromEnv() (*Runner, error) {
	theaterID, err := strconv.Atoi(os.Getenv("AGENT_THEATER_ID"))
	if err != nil || theaterID <= 0 {
		return nil, models.NewValidationError("AGENT_THEATER_ID missing or invalid", nil)
	}
	token := os.Getenv("AGENT_TOKEN")
	if token == "" {
		return nil, models.NewValidationError("AGENT_TOKEN missing", nil)
	}
	backendURL := os.Getenv("AGENT_BACKEND_URL")
	if backendURL == "" {
		backendURL = "http://127.0.0.1:8080"
	}
	printURL := os.Getenv("AGENT_PRINT_SERVICE_URL")
	if printURL == "" {
		printURL = "http://127.0.0.1:5000"
	}
	return &Runner{
		theaterID:       theaterID,
		token:           token,
		backendURL:      backendURL,
		printServiceURL: printURL,
		printer:         NewPrinterClient(printURL),
	}, nil
}

// Run dials and serves until the context ends, reconnecting on drops
func (r *Runner) Run(ctx context.Context) error {
	go r.heartbeat(ctx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.serveOnce(ctx); err != nil {
			log.Printf("[Agent] channel lost: %v, reconnecting in %s", err, reconnectWait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectWait):
		}
	}
}

func (r *Runner) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(heartbeatLog)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Printf("[Agent] alive (theater=%d)", r.theaterID)
		}
	}
}

func (r *Runner) wsURL() (string, error) {
	u, err := url.Parse(r.backendURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/agent/ws"
	return u.String(), nil
}

func (r *Runner) serveOnce(ctx context.Context) error {
	wsURL, err := r.wsURL()
	if err != nil {
		return err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+r.token)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return err
	}
	defer ws.Close()
	log.Printf("[Agent] connected to backend (theater=%d)", r.theaterID)

	ws.SetPingHandler(func(appData string) error {
		return ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	go func() {
		<-ctx.Done()
		ws.Close()
	}()

	for {
		var frame models.PrintFrame
		if err := ws.ReadJSON(&frame); err != nil {
			return err
		}
		ack := r.handleFrame(ctx, &frame)
		if err := ws.WriteJSON(ack); err != nil {
			return err
		}
	}
}

// handleFrame forwards one receipt to the local print service
func (r *Runner) handleFrame(ctx context.Context, frame *models.PrintFrame) *models.PrintAck {
	log.Printf("[Agent] print job %d (order #%d, printer=%s)", frame.JobID, frame.OrderNumber, frame.PrinterType)

	err := r.printer.Print(ctx, frame)
	if err != nil {
		log.Printf("[Agent] print job %d failed: %v", frame.JobID, err)
		return &models.PrintAck{JobID: frame.JobID, OK: false, Message: err.Error()}
	}
	return &models.PrintAck{JobID: frame.JobID, OK: true}
}
