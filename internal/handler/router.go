package handler

import (
	"net/http"

	"reseller-hub/internal/middleware"
)

// Routes groups the handlers served by the API. Groups is nil when the
// notifier is disabled.
type Routes struct {
	Health      *HealthHandler
	Config      *ConfigHandler
	Pix         *PixHandler
	Webhook     *WebhookHandler
	Fulfillment *FulfillmentHandler
	Shipments   *ShipmentHandler
	Sales       *SalesHandler
	Groups      *GroupsHandler
}

// Register mounts every route on mux. Everything except /health goes
// through the API key middleware.
func (rt Routes) Register(mux *http.ServeMux, auth *middleware.AuthMiddleware) {
	protect := auth.Authenticate

	// Public routes
	mux.HandleFunc("GET /health", rt.Health.CheckHealth)

	mux.HandleFunc("GET /api/v1/config", protect(rt.Config.GetConfig))
	mux.HandleFunc("PUT /api/v1/config", protect(rt.Config.UpdateConfig))
	mux.HandleFunc("POST /api/v1/config/reset", protect(rt.Config.ResetConfig))

	mux.HandleFunc("POST /api/v1/pix/charges", protect(rt.Pix.CreateCharge))
	mux.HandleFunc("GET /api/v1/pix/charges/{id}", protect(rt.Pix.GetCharge))
	mux.HandleFunc("GET /api/v1/pix/charges/{id}/qrcode", protect(rt.Pix.ChargeQRCode))
	mux.HandleFunc("POST /api/v1/pix/brcode", protect(rt.Pix.BuildBRCode))
	mux.HandleFunc("POST /api/v1/pix/connectivity", protect(rt.Pix.TestConnectivity))
	mux.HandleFunc("POST /api/v1/pix/webhook", protect(rt.Pix.RegisterWebhook))
	mux.HandleFunc("POST /api/v1/pix/setup", protect(rt.Pix.Setup))
	mux.HandleFunc("GET /api/v1/pix/logs", protect(rt.Pix.Logs))

	// Inbound provider notifications are authenticated by signature
	mux.HandleFunc("POST /api/v1/pix/notifications", rt.Webhook.ReceivePixNotification)

	mux.HandleFunc("POST /api/v1/fulfillment/connect", protect(rt.Fulfillment.Connect))
	mux.HandleFunc("POST /api/v1/fulfillment/disconnect", protect(rt.Fulfillment.Disconnect))
	mux.HandleFunc("GET /api/v1/fulfillment/status", protect(rt.Fulfillment.Status))
	mux.HandleFunc("DELETE /api/v1/fulfillment/simulation", protect(rt.Fulfillment.DisableSimulation))
	mux.HandleFunc("POST /api/v1/fulfillment/distribute", protect(rt.Fulfillment.Distribute))

	mux.HandleFunc("GET /api/v1/shipments", protect(rt.Shipments.List))
	mux.HandleFunc("POST /api/v1/shipments", protect(rt.Shipments.Create))
	mux.HandleFunc("GET /api/v1/shipments/stats", protect(rt.Shipments.Stats))
	mux.HandleFunc("POST /api/v1/shipments/import", protect(rt.Shipments.Import))
	mux.HandleFunc("GET /api/v1/shipments/{id}", protect(rt.Shipments.Get))
	mux.HandleFunc("PATCH /api/v1/shipments/{id}", protect(rt.Shipments.Update))
	mux.HandleFunc("POST /api/v1/shipments/{id}/process", protect(rt.Shipments.Process))

	mux.HandleFunc("GET /api/v1/sales", protect(rt.Sales.List))
	mux.HandleFunc("POST /api/v1/sales", protect(rt.Sales.Create))
	mux.HandleFunc("POST /api/v1/sales/{id}/paid", protect(rt.Sales.MarkPaid))

	if rt.Groups != nil {
		mux.HandleFunc("GET /api/v1/notifier/groups", protect(rt.Groups.ListGroups))
	}
}
