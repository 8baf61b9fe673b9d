package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reseller-hub/internal/config"
	"reseller-hub/internal/middleware"
	"reseller-hub/internal/model"
	"reseller-hub/internal/repository"
	"reseller-hub/internal/service"
	"reseller-hub/pkg/logger"
)

const testAPIKey = "test-key"

type blockedChecker struct{}

func (blockedChecker) Check(context.Context) service.ReachabilityResult {
	return service.ReachabilityResult{Blocked: true, Reason: "fetch_error"}
}

// seqSource yields 0 first, so the first simulated draw succeeds
type seqSource struct{ n uint64 }

func (s *seqSource) Uint64() uint64 {
	v := s.n
	s.n += 0x9E3779B97F4A7C15
	return v
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

type recordingPayments struct {
	settled []model.SettledPix
}

func (r *recordingPayments) NotifyPayments(_ context.Context, settled []model.SettledPix) error {
	r.settled = append(r.settled, settled...)
	return nil
}

type apiFixture struct {
	server   *httptest.Server
	settings *service.SettingsStore
	payments *recordingPayments
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()
	log := logger.Nop()
	store := repository.NewMemoryStore()
	cfg := &config.Config{Store: config.StoreConfig{Backend: config.StoreBackendMemory}}

	settings := service.NewSettingsStore(store, log)
	settings.Load(ctx)
	pix := service.NewPixClient(config.InterConfig{BaseURL: "http://127.0.0.1:1"}, config.FoursendConfig{}, settings.Get(), log)
	settings.OnChange(pix.UpdateSettings)

	fulfillment := service.NewFulfillmentClient(ctx, config.FulfillmentConfig{AccountName: "Revendacheck2", Balance: 50000}, store, log,
		service.WithReachabilityChecker(blockedChecker{}),
		service.WithRand(rand.New(&seqSource{})),
		service.WithSimulatedDelay(0, 0),
	)
	sales := service.NewSalesBook(store, nil, log)
	tracker := service.NewShipmentTracker(ctx, store, fulfillment, sales, log, service.WithConfirmationDelay(0))
	payments := &recordingPayments{}

	routes := Routes{
		Health:      NewHealthHandler(fulfillment, nil, cfg, log),
		Config:      NewConfigHandler(settings, log),
		Pix:         NewPixHandler(pix, log),
		Webhook:     NewWebhookHandler(pix, payments, log),
		Fulfillment: NewFulfillmentHandler(fulfillment, log),
		Shipments:   NewShipmentHandler(tracker, sales, log),
		Sales:       NewSalesHandler(sales, log),
	}
	mux := http.NewServeMux()
	routes.Register(mux, middleware.NewAuthMiddleware(testAPIKey, log))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &apiFixture{server: srv, settings: settings, payments: payments}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) (*http.Response, model.APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set(middleware.APIKeyHeader, testAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out model.APIResponse
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func decodeData(t *testing.T, data any, dst any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dst))
}

func TestHealthIsPublic(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Get(f.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "memory", body["store"])
}

func TestProtectedRouteRequiresKey(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Get(f.server.URL + "/api/v1/shipments")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConfigRoundTrip(t *testing.T) {
	f := newAPIFixture(t)

	resp, out := f.do(t, http.MethodPut, "/api/v1/config", map[string]any{
		"interTimeout":      45,
		"interClientSecret": "super-secret-value",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var saved model.ProviderConfig
	decodeData(t, out.Data, &saved)
	assert.Equal(t, 45, saved.InterTimeout)
	assert.Equal(t, "****alue", saved.InterClientSecret)
	assert.Equal(t, "super-secret-value", f.settings.Get().InterClientSecret)

	resp, out = f.do(t, http.MethodPut, "/api/v1/config", map[string]any{"interEnvironment": "staging"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "ERR_INVALID_CONFIG", out.Error.Code)

	resp, _ = f.do(t, http.MethodPost, "/api/v1/config/reset", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.DefaultProviderConfig(), f.settings.Get())
}

func TestCreateChargeValidation(t *testing.T) {
	f := newAPIFixture(t)

	resp, out := f.do(t, http.MethodPost, "/api/v1/pix/charges", map[string]any{"amount": 0, "description": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "ERR_INVALID_PARAMETER", out.Error.Code)

	resp, out = f.do(t, http.MethodPost, "/api/v1/pix/charges", "{not json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "ERR_INVALID_PARAMETER", out.Error.Code)
}

func TestCreateChargeMissingCredentials(t *testing.T) {
	f := newAPIFixture(t)

	resp, out := f.do(t, http.MethodPost, "/api/v1/pix/charges", map[string]any{"amount": 10.5, "description": "Diamantes"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "ERR_MISSING_CREDENTIALS", out.Error.Code)
}

func TestCreateChargeFoursend(t *testing.T) {
	f := newAPIFixture(t)

	resp, out := f.do(t, http.MethodPost, "/api/v1/pix/charges", map[string]any{
		"amount":      10.5,
		"description": "Diamantes",
		"provider":    "4send",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var charge model.PaymentCharge
	decodeData(t, out.Data, &charge)
	assert.Equal(t, model.ProviderFoursend, charge.Provider)
	assert.Equal(t, model.ChargePending, charge.Status)
}

func TestBuildBRCode(t *testing.T) {
	f := newAPIFixture(t)

	resp, out := f.do(t, http.MethodPost, "/api/v1/pix/brcode", map[string]any{
		"pixKey":       "123e4567-e12b-12d1-a456-426655440000",
		"merchantName": "Fulano de Tal",
		"merchantCity": "BRASILIA",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var data map[string]string
	decodeData(t, out.Data, &data)
	assert.Equal(t, "00020126580014br.gov.bcb.pix0136123e4567-e12b-12d1-a456-4266554400005204000053039865802BR5913Fulano de Tal6008BRASILIA62070503***63041D3D", data["brCode"])
}

func TestChargeQRCode(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/api/v1/pix/charges/tx1/qrcode?code=000201", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	resp, _ = f.do(t, http.MethodGet, "/api/v1/pix/charges/tx1/qrcode", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPixNotificationSignature(t *testing.T) {
	f := newAPIFixture(t)
	secret := "hook-secret"
	_, err := f.settings.Save(context.Background(), model.ProviderConfigPatch{InterWebhookSecret: &secret})
	require.NoError(t, err)

	payload := `{"pix":[{"txid":"tx1","endToEndId":"E1","valor":"25.00","horario":"2024-05-10T13:00:00Z"}]}`

	resp, out := f.do(t, http.MethodPost, "/api/v1/pix/notifications", payload)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "ERR_INVALID_SIGNATURE", out.Error.Code)
	assert.Empty(t, f.payments.settled)

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/v1/pix/notifications", bytes.NewBufferString(payload))
	require.NoError(t, err)
	req.Header.Set(service.SignatureHeader, "sha256="+sign(secret, payload))
	r, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusOK, r.StatusCode)
	require.Len(t, f.payments.settled, 1)
	assert.Equal(t, "tx1", f.payments.settled[0].TxID)
}

func TestDistributeRequiresConnection(t *testing.T) {
	f := newAPIFixture(t)

	resp, out := f.do(t, http.MethodPost, "/api/v1/fulfillment/distribute", map[string]any{
		"kwaiId":          "user123",
		"diamondQuantity": 100,
		"customerName":    "Ana",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "ERR_CONNECTION_REQUIRED", out.Error.Code)
}

func TestShipmentLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	resp, out := f.do(t, http.MethodPost, "/api/v1/fulfillment/connect", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var conn model.ConnectResult
	decodeData(t, out.Data, &conn)
	assert.True(t, conn.SimulationMode)

	resp, out = f.do(t, http.MethodPost, "/api/v1/shipments", map[string]any{
		"kwaiId":          "user123",
		"diamondQuantity": 500,
		"customerName":    "Ana",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created model.ShipmentRecord
	decodeData(t, out.Data, &created)
	assert.Equal(t, model.ShipmentPending, created.Status)

	resp, out = f.do(t, http.MethodPost, "/api/v1/shipments/"+created.ID+"/process", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var outcome model.ProcessOutcome
	decodeData(t, out.Data, &outcome)
	assert.Equal(t, model.ShipmentDelivered, outcome.Shipment.Status)
	assert.Equal(t, model.ProvenanceSimulated, outcome.Distribution.Provenance)

	resp, out = f.do(t, http.MethodPatch, "/api/v1/shipments/"+created.ID, map[string]any{"status": "pending"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "ERR_INVALID_TRANSITION", out.Error.Code)

	resp, out = f.do(t, http.MethodPatch, "/api/v1/shipments/"+created.ID, map[string]any{
		"status":   "delivered",
		"notes":    "confirmado",
		"attempts": 0,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var patched model.ShipmentRecord
	decodeData(t, out.Data, &patched)
	assert.Equal(t, "confirmado", patched.Notes)
	assert.Equal(t, 1, patched.Attempts)

	resp, out = f.do(t, http.MethodGet, "/api/v1/shipments/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats model.ShipmentStats
	decodeData(t, out.Data, &stats)
	assert.Equal(t, 1, stats.Delivered)
	assert.Equal(t, int64(500), stats.TotalQuantity)
}

func TestShipmentNotFound(t *testing.T) {
	f := newAPIFixture(t)

	resp, out := f.do(t, http.MethodGet, "/api/v1/shipments/envio_missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "ERR_NOT_FOUND", out.Error.Code)

	resp, _ = f.do(t, http.MethodPatch, "/api/v1/shipments/envio_missing", map[string]any{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSalesImportAndPay(t *testing.T) {
	f := newAPIFixture(t)

	resp, out := f.do(t, http.MethodPost, "/api/v1/sales", map[string]any{
		"kwaiId":          "user123",
		"diamondQuantity": 1000,
		"revendedorName":  "Loja",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var sale model.Sale
	decodeData(t, out.Data, &sale)

	resp, out = f.do(t, http.MethodPost, "/api/v1/shipments/import", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var imported map[string]int
	decodeData(t, out.Data, &imported)
	assert.Equal(t, 1, imported["imported"])

	resp, _ = f.do(t, http.MethodPost, "/api/v1/sales/"+sale.ID+"/paid", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, out = f.do(t, http.MethodPost, "/api/v1/sales/unknown/paid", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "ERR_NOT_FOUND", out.Error.Code)
}
