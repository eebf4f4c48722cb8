package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf/v2"

	"canteen-backend/internal/models"
	"canteen-backend/internal/repositories"
	"canteen-backend/internal/timeutil"
)

// ReportService produces the daily sales exports operators download
type ReportService struct {
	orders   *repositories.OrderRepository
	theaters *repositories.TheaterRepository
}

func NewReportService(orders *repositories.OrderRepository, theaters *repositories.TheaterRepository) *ReportService {
	return &ReportService{orders: orders, theaters: theaters}
}

func (s *ReportService) dayOrders(ctx context.Context, theaterID int, day time.Time) ([]*models.Order, error) {
	since := timeutil.StartOfDay(day)
	until := since.AddDate(0, 0, 1)
	return s.orders.List(ctx, &models.OrderFilter{
		TheaterID: theaterID,
		Since:     &since,
		Until:     &until,
	})
}

// DailySalesPDF renders one theater's sales for a day as a printable PDF
func (s *ReportService) DailySalesPDF(ctx context.Context, theaterID int, day time.Time) ([]byte, error) {
	theater, err := s.theaters.Get(ctx, theaterID)
	if err != nil {
		return nil, err
	}
	orders, err := s.dayOrders(ctx, theaterID, day)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Daily Sales Report")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("%s (%s)", theater.Name, theater.Code))
	pdf.Ln(6)
	pdf.Cell(0, 7, timeutil.FormatIST(day, "02 Jan 2006"))
	pdf.Ln(10)

	header := []string{"Order #", "Time", "Channel", "Items", "Payment", "Status", "Total"}
	widths := []float64{22, 18, 20, 16, 28, 26, 26}

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range header {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	var grandTotal float64
	byChannel := make(map[models.OrderChannel]float64)
	cancelled := 0
	for _, o := range orders {
		if o.Status == models.OrderCancelled {
			cancelled++
			continue
		}
		itemCount := 0
		for _, item := range o.Items {
			itemCount += item.Quantity
		}
		row := []string{
			strconv.FormatInt(o.OrderNumber, 10),
			timeutil.FormatIST(o.CreatedAt, "15:04"),
			string(o.Channel),
			strconv.Itoa(itemCount),
			fmt.Sprintf("%s/%s", o.PaymentMethod, o.PaymentStatus),
			string(o.Status),
			fmt.Sprintf("%.2f", o.Total),
		}
		for i, v := range row {
			align := "L"
			if i == 6 {
				align = "R"
			}
			pdf.CellFormat(widths[i], 6, v, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
		grandTotal += o.Total
		byChannel[o.Channel] += o.Total
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 7, fmt.Sprintf("Total: %.2f  (pos %.2f / kiosk %.2f / online %.2f, %d cancelled)",
		grandTotal, byChannel[models.ChannelPOS], byChannel[models.ChannelKiosk],
		byChannel[models.ChannelOnline], cancelled))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, models.NewInternalError("pdf generation failed", err)
	}
	return buf.Bytes(), nil
}

// DailySalesCSV is the spreadsheet-friendly counterpart of the PDF
func (s *ReportService) DailySalesCSV(ctx context.Context, theaterID int, day time.Time) ([]byte, error) {
	orders, err := s.dayOrders(ctx, theaterID, day)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"order_number", "time", "channel", "customer", "payment_method",
		"payment_status", "status", "subtotal", "tax", "service_charge", "discount", "total"})
	for _, o := range orders {
		w.Write([]string{
			strconv.FormatInt(o.OrderNumber, 10),
			timeutil.FormatIST(o.CreatedAt, "15:04:05"),
			string(o.Channel),
			o.CustomerName,
			o.PaymentMethod,
			string(o.PaymentStatus),
			string(o.Status),
			fmt.Sprintf("%.2f", o.Subtotal),
			fmt.Sprintf("%.2f", o.Tax),
			fmt.Sprintf("%.2f", o.ServiceCharge),
			fmt.Sprintf("%.2f", o.Discount),
			fmt.Sprintf("%.2f", o.Total),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, models.NewInternalError("csv generation failed", err)
	}
	return buf.Bytes(), nil
}
