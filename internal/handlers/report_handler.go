package handlers

import (
	"fmt"
	"net/http"
	"time"

	"canteen-backend/internal/services"
	"canteen-backend/internal/timeutil"
	"canteen-backend/pkg/utils"
)

type ReportHandler struct {
	reports *services.ReportService
}

func NewReportHandler(reports *services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

func reportDay(r *http.Request) (time.Time, error) {
	if v := r.URL.Query().Get("date"); v != "" {
		return timeutil.ParseInIST("2006-01-02", v)
	}
	return timeutil.Now(), nil
}

// DailySalesPDF streams the printable daily sales report
// GET /api/theaters/{id}/reports/daily-sales.pdf?date=YYYY-MM-DD
func (h *ReportHandler) DailySalesPDF(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	day, err := reportDay(r)
	if err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	pdf, err := h.reports.DailySalesPDF(r.Context(), theaterID, day)
	if err != nil {
		utils.Error(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="sales-%s.pdf"`, day.Format("2006-01-02")))
	w.Write(pdf)
}

// DailySalesCSV streams the spreadsheet export
// GET /api/theaters/{id}/reports/daily-sales.csv?date=YYYY-MM-DD
func (h *ReportHandler) DailySalesCSV(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	day, err := reportDay(r)
	if err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	csvData, err := h.reports.DailySalesCSV(r.Context(), theaterID, day)
	if err != nil {
		utils.Error(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="sales-%s.csv"`, day.Format("2006-01-02")))
	w.Write(csvData)
}
