package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"canteen-backend/internal/handlers"
	"canteen-backend/internal/middleware"
)

// NewRouter wires every API route. Route groups, outermost first:
// public (health, login, payment callbacks), agent websocket, authenticated
// staff, and admin-only management.
func NewRouter(
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	theaterHandler *handlers.TheaterHandler,
	catalogHandler *handlers.CatalogHandler,
	orderHandler *handlers.OrderHandler,
	stockHandler *handlers.StockHandler,
	printHandler *handlers.PrintHandler,
	agentHandler *handlers.AgentHandler,
	paymentHandler *handlers.PaymentHandler,
	settingHandler *handlers.SettingHandler,
	reportHandler *handlers.ReportHandler,
	roleHandler *handlers.RoleHandler,
	healthHandler *handlers.HealthHandler,
	authMiddleware *middleware.AuthMiddleware,
	limiter *middleware.RateLimiter,
) *mux.Router {
	r := mux.NewRouter()
	r.Use(limiter.Tiered)

	// Health and metrics
	r.HandleFunc("/health", healthHandler.BasicHealth).Methods("GET")
	r.HandleFunc("/health/ready", healthHandler.ReadinessHealth).Methods("GET")
	r.HandleFunc("/health/detailed", healthHandler.DetailedHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Authentication; login carries its own per-IP attempt limit
	r.Handle("/api/auth/login", limiter.Login(http.HandlerFunc(authHandler.Login))).Methods("POST")
	r.Handle("/api/auth/me", authMiddleware.Authenticate(http.HandlerFunc(authHandler.Me))).Methods("GET")
	r.Handle("/api/auth/refresh", authMiddleware.Authenticate(http.HandlerFunc(authHandler.Refresh))).Methods("POST")
	r.Handle("/api/auth/logout", authMiddleware.Authenticate(http.HandlerFunc(authHandler.Logout))).Methods("POST")

	// Gateway callbacks are unauthenticated; signatures gate them instead
	r.HandleFunc("/api/payment/status", paymentHandler.Status).Methods("GET")
	r.HandleFunc("/api/payment/verify", paymentHandler.Verify).Methods("POST")
	r.HandleFunc("/api/payment/webhook", paymentHandler.Webhook).Methods("POST")

	// Agent delivery channel (agent token, not staff JWT)
	r.Handle("/api/agent/ws", authMiddleware.AuthenticateAgent(http.HandlerFunc(agentHandler.Websocket)))

	// Staff routes: any authenticated role
	staff := r.PathPrefix("/api").Subrouter()
	staff.Use(authMiddleware.Authenticate)

	staff.HandleFunc("/theaters", theaterHandler.List).Methods("GET")
	staff.HandleFunc("/theaters/{id:[0-9]+}", theaterHandler.Get).Methods("GET")

	staff.HandleFunc("/theaters/{id:[0-9]+}/products", catalogHandler.ListProducts).Methods("GET")
	staff.HandleFunc("/theaters/{id:[0-9]+}/products/{productId:[0-9]+}", catalogHandler.GetProduct).Methods("GET")
	staff.HandleFunc("/theaters/{id:[0-9]+}/categories", catalogHandler.ListCategories).Methods("GET")
	staff.HandleFunc("/theaters/{id:[0-9]+}/combos", catalogHandler.ListCombos).Methods("GET")
	staff.HandleFunc("/theaters/{id:[0-9]+}/kiosk-types", catalogHandler.ListKioskTypes).Methods("GET")

	// Order submission is open to every role and burst-limited per minute
	staff.Handle("/orders", limiter.PerMinute(http.HandlerFunc(orderHandler.Submit))).Methods("POST")
	staff.HandleFunc("/theaters/{id:[0-9]+}/orders", orderHandler.List).Methods("GET")
	staff.HandleFunc("/theaters/{id:[0-9]+}/orders/{orderId:[0-9]+}", orderHandler.Get).Methods("GET")
	staff.HandleFunc("/theaters/{id:[0-9]+}/orders/{orderId:[0-9]+}/status", orderHandler.Transition).Methods("PATCH")
	staff.HandleFunc("/theaters/{id:[0-9]+}/orders/{orderId:[0-9]+}/pay", orderHandler.MarkPaid).Methods("POST")
	staff.HandleFunc("/theaters/{id:[0-9]+}/orders/{orderId:[0-9]+}/print", printHandler.Reprint).Methods("POST")
	staff.HandleFunc("/theaters/{id:[0-9]+}/orders/{orderId:[0-9]+}/payment-events", paymentHandler.ListOrderEvents).Methods("GET")

	staff.HandleFunc("/theaters/{id:[0-9]+}/stock/{productId:[0-9]+}/{ledger}/current", stockHandler.Current).Methods("GET")
	staff.HandleFunc("/theaters/{id:[0-9]+}/stock/{productId:[0-9]+}/{ledger}/{year:[0-9]+}/{month:[0-9]+}", stockHandler.Snapshot).Methods("GET")

	staff.HandleFunc("/theaters/{id:[0-9]+}/print/status", printHandler.QueueStatus).Methods("GET")
	staff.HandleFunc("/theaters/{id:[0-9]+}/print/jobs", printHandler.ListJobs).Methods("GET")

	staff.HandleFunc("/settings", settingHandler.List).Methods("GET")
	staff.HandleFunc("/settings/{key}", settingHandler.Get).Methods("GET")

	staff.HandleFunc("/users/totp/setup", userHandler.BeginTOTP).Methods("POST")
	staff.HandleFunc("/users/totp/confirm", userHandler.ConfirmTOTP).Methods("POST")

	// Manager routes: stock corrections, print retries, reports
	manager := r.PathPrefix("/api").Subrouter()
	manager.Use(authMiddleware.RequireRole("admin", "manager"))

	manager.HandleFunc("/theaters/{id:[0-9]+}/stock/{productId:[0-9]+}/{ledger}/entries", stockHandler.AddEntry).Methods("POST")
	manager.HandleFunc("/theaters/{id:[0-9]+}/stock/{productId:[0-9]+}/{ledger}/{year:[0-9]+}/{month:[0-9]+}/entries/{index:[0-9]+}", stockHandler.UpdateEntry).Methods("PUT")
	manager.HandleFunc("/theaters/{id:[0-9]+}/stock/{productId:[0-9]+}/{ledger}/{year:[0-9]+}/{month:[0-9]+}/entries/{index:[0-9]+}", stockHandler.DeleteEntry).Methods("DELETE")

	manager.HandleFunc("/theaters/{id:[0-9]+}/print/jobs/{jobId:[0-9]+}/retry", printHandler.RetryJob).Methods("POST")

	manager.HandleFunc("/theaters/{id:[0-9]+}/reports/daily-sales.pdf", reportHandler.DailySalesPDF).Methods("GET")
	manager.HandleFunc("/theaters/{id:[0-9]+}/reports/daily-sales.csv", reportHandler.DailySalesCSV).Methods("GET")

	manager.HandleFunc("/theaters/{id:[0-9]+}/products", catalogHandler.CreateProduct).Methods("POST")
	manager.HandleFunc("/theaters/{id:[0-9]+}/products/{productId:[0-9]+}", catalogHandler.UpdateProduct).Methods("PUT")
	manager.HandleFunc("/theaters/{id:[0-9]+}/products/{productId:[0-9]+}/availability", catalogHandler.SetAvailability).Methods("PATCH")
	manager.HandleFunc("/theaters/{id:[0-9]+}/products/{productId:[0-9]+}", catalogHandler.DeactivateProduct).Methods("DELETE")
	manager.HandleFunc("/theaters/{id:[0-9]+}/categories", catalogHandler.CreateCategory).Methods("POST")
	manager.HandleFunc("/theaters/{id:[0-9]+}/categories/{categoryId:[0-9]+}", catalogHandler.UpdateCategory).Methods("PUT")
	manager.HandleFunc("/theaters/{id:[0-9]+}/categories/{categoryId:[0-9]+}", catalogHandler.DeleteCategory).Methods("DELETE")
	manager.HandleFunc("/theaters/{id:[0-9]+}/combos", catalogHandler.CreateCombo).Methods("POST")
	manager.HandleFunc("/theaters/{id:[0-9]+}/combos/{comboId:[0-9]+}", catalogHandler.UpdateCombo).Methods("PUT")
	manager.HandleFunc("/theaters/{id:[0-9]+}/combos/{comboId:[0-9]+}", catalogHandler.DeactivateCombo).Methods("DELETE")
	manager.HandleFunc("/theaters/{id:[0-9]+}/kiosk-types", catalogHandler.CreateKioskType).Methods("POST")

	// Admin routes: tenants, staff, agents, platform settings
	admin := r.PathPrefix("/api").Subrouter()
	admin.Use(authMiddleware.RequireAdmin)

	admin.HandleFunc("/theaters", theaterHandler.Create).Methods("POST")
	admin.HandleFunc("/theaters/{id:[0-9]+}", theaterHandler.Update).Methods("PUT")
	admin.HandleFunc("/theaters/{id:[0-9]+}/agent/credentials", theaterHandler.ProvisionAgent).Methods("PUT")
	admin.HandleFunc("/theaters/{id:[0-9]+}/agent/start", agentHandler.Start).Methods("POST")
	admin.HandleFunc("/theaters/{id:[0-9]+}/agent/stop", agentHandler.Stop).Methods("POST")
	admin.HandleFunc("/agents/status", agentHandler.Status).Methods("GET")

	admin.HandleFunc("/users", userHandler.Create).Methods("POST")
	admin.HandleFunc("/users", userHandler.List).Methods("GET")
	admin.HandleFunc("/users/login-logs", userHandler.LoginLogs).Methods("GET")
	admin.HandleFunc("/users/{id:[0-9]+}", userHandler.Get).Methods("GET")
	admin.HandleFunc("/users/{id:[0-9]+}", userHandler.Update).Methods("PUT")
	admin.HandleFunc("/users/{id:[0-9]+}", userHandler.Deactivate).Methods("DELETE")

	admin.HandleFunc("/roles", roleHandler.Create).Methods("POST")
	admin.HandleFunc("/roles", roleHandler.List).Methods("GET")
	admin.HandleFunc("/roles/{id:[0-9]+}", roleHandler.Get).Methods("GET")
	admin.HandleFunc("/roles/{id:[0-9]+}", roleHandler.Update).Methods("PUT")
	admin.HandleFunc("/roles/{id:[0-9]+}", roleHandler.Delete).Methods("DELETE")

	admin.HandleFunc("/settings/{key}", settingHandler.Update).Methods("PUT")

	return r
}
