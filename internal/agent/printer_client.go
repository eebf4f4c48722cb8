package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"canteen-backend/internal/models"
)

// PrinterClient talks to the on-site silent-print HTTP service. The service
// accepts rendered HTML and spools it to the named printer without a dialog.
type PrinterClient struct {
	baseURL string
	client  *http.Client
}

func NewPrinterClient(baseURL string) *PrinterClient {
	return &PrinterClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 8 * time.Second},
	}
}

type printRequest struct {
	OrderNumber int64  `json:"order_number"`
	PrinterType string `json:"printer_type"`
	HTML        string `json:"html"`
}

type printResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Print submits one receipt and waits for the spool confirmation
func (p *PrinterClient) Print(ctx context.Context, frame *models.PrintFrame) error {
	body, err := json.Marshal(printRequest{
		OrderNumber: frame.OrderNumber,
		PrinterType: frame.PrinterType,
		HTML:        frame.Receipt,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/print", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("print service unreachable: %w", err)
	}
	defer resp.Body.Close()

	var out printResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("print service returned malformed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !out.Success {
		return fmt.Errorf("print rejected: %s", out.Message)
	}
	return nil
}
