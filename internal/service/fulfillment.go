package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"reseller-hub/internal/config"
	"reseller-hub/internal/model"
	"reseller-hub/internal/repository"
	"reseller-hub/pkg/logger"
)

const (
	mobileUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 15_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Mobile/15E148 Safari/604.1 KwaiApp/10.2.20.2078"

	actionDistribute = "distributeDiamonds"
	actionSimulate   = "simulateDistribution"

	baseSuccessRate     = 0.85
	riskyIDSuccessRate  = 0.6
	bulkSuccessRate     = 0.7
	bulkQuantityLimit   = 10000
	shortRecipientID    = 5
	testRecipientMarker = "test"

	simulationErrorCode = "SIMULATION_ERROR"
	connectionErrorCode = "CONNECTION_REQUIRED"
)

var simulatedFailureReasons = []string{
	"ID do usuário não encontrado",
	"Usuário não aceita diamantes no momento",
	"Limite temporário excedido",
	"Erro de conexão temporário",
	"Conta destinatário temporariamente suspensa",
}

// ReachabilityResult is the outcome of a platform probe
type ReachabilityResult struct {
	Blocked bool
	Reason  string
}

// ReachabilityChecker probes whether the fulfillment platform can be reached
type ReachabilityChecker interface {
	Check(ctx context.Context) ReachabilityResult
}

// HTTPReachabilityChecker sends a HEAD request to the distribution endpoint.
// Any HTTP response counts as reachable.
type HTTPReachabilityChecker struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPReachabilityChecker creates a checker bounded by timeout
func NewHTTPReachabilityChecker(url string, timeout time.Duration) *HTTPReachabilityChecker {
	return &HTTPReachabilityChecker{url: url, timeout: timeout, client: &http.Client{}}
}

// Check implements ReachabilityChecker
func (h *HTTPReachabilityChecker) Check(ctx context.Context) ReachabilityResult {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, h.url, nil)
	if err != nil {
		return ReachabilityResult{Blocked: true, Reason: "request_error"}
	}
	req.Header.Set("User-Agent", mobileUserAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ReachabilityResult{Blocked: true, Reason: "timeout"}
		}
		return ReachabilityResult{Blocked: true, Reason: "fetch_error"}
	}
	resp.Body.Close()
	return ReachabilityResult{}
}

// RealDistributor performs a real distribution on the platform
type RealDistributor interface {
	Distribute(ctx context.Context, req model.DistributionRequest) (model.DistributionResult, error)
}

// FulfillmentOption configures a FulfillmentClient
type FulfillmentOption func(*FulfillmentClient)

// WithFulfillmentClock sets the time source for delays and timestamps
func WithFulfillmentClock(c Clock) FulfillmentOption {
	return func(f *FulfillmentClient) { f.clock = c }
}

// WithRand sets the random source used by the simulator
func WithRand(r *rand.Rand) FulfillmentOption {
	return func(f *FulfillmentClient) { f.rng = r }
}

// WithReachabilityChecker replaces the HTTP probe
func WithReachabilityChecker(c ReachabilityChecker) FulfillmentOption {
	return func(f *FulfillmentClient) { f.checker = c }
}

// WithRealDistributor wires a real distribution path
func WithRealDistributor(d RealDistributor) FulfillmentOption {
	return func(f *FulfillmentClient) { f.real = d }
}

// WithSimulatedDelay sets the simulated latency to base plus a uniform draw in [0, spread)
func WithSimulatedDelay(base, spread time.Duration) FulfillmentOption {
	return func(f *FulfillmentClient) {
		f.minDelay = base
		f.delaySpread = spread
	}
}

// FulfillmentClient distributes units to recipients on the external
// platform, falling back to a simulator when the platform is unavailable.
type FulfillmentClient struct {
	cfg         config.FulfillmentConfig
	store       repository.Store
	checker     ReachabilityChecker
	real        RealDistributor
	clock       Clock
	logger      *logger.Logger
	logs        *LogBuffer
	minDelay    time.Duration
	delaySpread time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand

	mu      sync.RWMutex
	session *model.FulfillmentSession
}

// NewFulfillmentClient creates the client and restores a persisted session
func NewFulfillmentClient(ctx context.Context, cfg config.FulfillmentConfig, store repository.Store, log *logger.Logger, opts ...FulfillmentOption) *FulfillmentClient {
	f := &FulfillmentClient{
		cfg:         cfg,
		store:       store,
		logger:      log.WithComponent("fulfillment"),
		minDelay:    2 * time.Second,
		delaySpread: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.clock = orDefaultClock(f.clock)
	if f.checker == nil {
		f.checker = NewHTTPReachabilityChecker(cfg.DistributeURL, cfg.ProbeTimeout)
	}
	if f.rng == nil {
		f.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	f.logs = NewLogBuffer(FulfillmentLogCapacity, f.clock)

	var session model.FulfillmentSession
	err := repository.GetJSON(ctx, store, repository.KeyFulfillmentSession, &session)
	switch {
	case err == nil:
		f.session = &session
	case !errors.Is(err, repository.ErrNotFound):
		f.logger.WithError(err).Warn("Failed to load fulfillment session")
	}
	return f
}

// Connect probes the platform, records whether simulation mode is needed
// and opens a session. Connecting succeeds whatever the probe outcome.
func (f *FulfillmentClient) Connect(ctx context.Context) (model.ConnectResult, error) {
	probe := f.checker.Check(ctx)
	if probe.Blocked {
		f.logger.Warn("Fulfillment platform blocked, enabling simulation mode", "reason", probe.Reason)
		if err := f.store.Set(ctx, repository.KeySimulationMode, []byte("true")); err != nil {
			return f.connectFailed(&PersistenceError{Key: repository.KeySimulationMode, Err: err})
		}
	} else {
		if err := f.store.Delete(ctx, repository.KeySimulationMode); err != nil {
			return f.connectFailed(&PersistenceError{Key: repository.KeySimulationMode, Err: err})
		}
	}

	if err := sleep(ctx, f.clock, f.cfg.ConnectDelay); err != nil {
		return f.connectFailed(err)
	}

	now := f.clock.Now()
	balance := f.cfg.Balance
	session := model.FulfillmentSession{
		IsConnected:  true,
		AccountName:  f.cfg.AccountName,
		Balance:      &balance,
		LastActivity: &now,
	}
	if err := repository.SetJSON(ctx, f.store, repository.KeyFulfillmentSession, session); err != nil {
		return f.connectFailed(&PersistenceError{Key: repository.KeyFulfillmentSession, Err: err})
	}

	f.mu.Lock()
	f.session = &session
	f.mu.Unlock()

	simulation := probe.Blocked
	f.record("connect", map[string]any{
		"accountName":    f.cfg.AccountName,
		"simulationMode": simulation,
		"probeReason":    probe.Reason,
	}, true, "")

	mode := "real"
	if simulation {
		mode = "simulation (platform blocked)"
	}
	f.logger.Info("Connected to fulfillment platform", "account", f.cfg.AccountName, "mode", mode)
	return model.ConnectResult{
		Success:        true,
		Message:        fmt.Sprintf("Connected as %s in %s mode", f.cfg.AccountName, mode),
		SimulationMode: simulation,
	}, nil
}

func (f *FulfillmentClient) connectFailed(err error) (model.ConnectResult, error) {
	f.record("connect", map[string]any{"error": err.Error()}, false, err.Error())
	return model.ConnectResult{Success: false, Message: "Failed to connect to the fulfillment platform"}, err
}

// Disconnect drops the session
func (f *FulfillmentClient) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	f.session = nil
	f.mu.Unlock()

	if err := f.store.Delete(ctx, repository.KeyFulfillmentSession); err != nil {
		return &PersistenceError{Key: repository.KeyFulfillmentSession, Err: err}
	}
	f.record("disconnect", nil, true, "")
	return nil
}

// ConnectionStatus returns the current session, or a disconnected placeholder
func (f *FulfillmentClient) ConnectionStatus() model.FulfillmentSession {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.session == nil {
		return model.FulfillmentSession{}
	}
	return *f.session
}

func (f *FulfillmentClient) connected() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.session != nil && f.session.IsConnected
}

// IsSimulationMode reports whether the persisted simulation flag is set
func (f *FulfillmentClient) IsSimulationMode(ctx context.Context) bool {
	v, err := f.store.Get(ctx, repository.KeySimulationMode)
	return err == nil && string(v) == "true"
}

// DisableSimulationMode clears the simulation flag
func (f *FulfillmentClient) DisableSimulationMode(ctx context.Context) error {
	if err := f.store.Delete(ctx, repository.KeySimulationMode); err != nil {
		return &PersistenceError{Key: repository.KeySimulationMode, Err: err}
	}
	f.logger.Info("Simulation mode disabled")
	return nil
}

// Distribute delivers units to a recipient. In simulation mode, or when the
// real path fails, the simulator answers and the result says so through its
// Provenance and FallbackReason.
func (f *FulfillmentClient) Distribute(ctx context.Context, req model.DistributionRequest) (model.DistributionResult, error) {
	if !f.connected() {
		return model.DistributionResult{
			Success: false,
			Message: "Not connected to the fulfillment platform",
			Error:   connectionErrorCode,
		}, ErrConnectionRequired
	}

	if f.IsSimulationMode(ctx) {
		return f.simulate(ctx, req, "")
	}

	start := f.clock.Now()
	res, err := f.distributeReal(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return model.DistributionResult{}, ctx.Err()
		}
		f.logger.WithRecipient(req.RecipientID).WithError(err).Warn("Real distribution unavailable, using simulation")
		return f.simulate(ctx, req, err.Error())
	}

	res.Provenance = model.ProvenanceReal
	res.DurationMS = f.clock.Now().Sub(start).Milliseconds()
	f.record(actionDistribute, map[string]any{
		"kwaiId":          req.RecipientID,
		"diamondQuantity": req.Quantity,
		"customerName":    req.RecipientName,
		"transactionId":   res.TransactionID,
		"simulationMode":  false,
	}, res.Success, res.Error)
	return res, nil
}

func (f *FulfillmentClient) distributeReal(ctx context.Context, req model.DistributionRequest) (model.DistributionResult, error) {
	if f.real == nil {
		return model.DistributionResult{}, ErrRealPathUnavailable
	}
	return f.real.Distribute(ctx, req)
}

func (f *FulfillmentClient) simulate(ctx context.Context, req model.DistributionRequest, fallbackReason string) (model.DistributionResult, error) {
	start := f.clock.Now()
	delay := f.minDelay
	if f.delaySpread > 0 {
		delay += time.Duration(f.randFloat() * float64(f.delaySpread))
	}
	if err := sleep(ctx, f.clock, delay); err != nil {
		return model.DistributionResult{}, err
	}

	res := model.DistributionResult{
		Provenance:     model.ProvenanceSimulated,
		FallbackReason: fallbackReason,
	}
	data := map[string]any{
		"kwaiId":          req.RecipientID,
		"diamondQuantity": req.Quantity,
		"customerName":    req.RecipientName,
		"simulationMode":  true,
	}
	if fallbackReason != "" {
		data["fallbackReason"] = fallbackReason
	}

	if f.randFloat() < simulationSuccessRate(req) {
		res.Success = true
		res.TransactionID = fmt.Sprintf("%s%d_%s", model.SimulatedTxPrefix, f.clock.Now().UnixMilli(), f.randomSuffix(9))
		res.Message = fmt.Sprintf("[SIMULADO] %d diamantes enviados para %s", req.Quantity, req.RecipientID)
		data["transactionId"] = res.TransactionID
	} else {
		reason := simulatedFailureReasons[f.randIntN(len(simulatedFailureReasons))]
		res.Message = "[SIMULADO] Falha: " + reason
		res.Error = simulationErrorCode
		data["error"] = reason
	}
	res.DurationMS = f.clock.Now().Sub(start).Milliseconds()

	f.record(actionSimulate, data, res.Success, res.Error)
	return res, nil
}

// simulationSuccessRate applies at most one penalty: a short or test
// recipient id is checked before a bulk quantity.
func simulationSuccessRate(req model.DistributionRequest) float64 {
	switch {
	case len(req.RecipientID) < shortRecipientID || strings.Contains(req.RecipientID, testRecipientMarker):
		return riskyIDSuccessRate
	case req.Quantity > bulkQuantityLimit:
		return bulkSuccessRate
	default:
		return baseSuccessRate
	}
}

func (f *FulfillmentClient) randFloat() float64 {
	f.rngMu.Lock()
	defer f.rngMu.Unlock()
	return f.rng.Float64()
}

func (f *FulfillmentClient) randIntN(n int) int {
	f.rngMu.Lock()
	defer f.rngMu.Unlock()
	return f.rng.IntN(n)
}

func (f *FulfillmentClient) randomSuffix(n int) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	f.rngMu.Lock()
	defer f.rngMu.Unlock()
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[f.rng.IntN(len(alphabet))]
	}
	return string(b)
}

// Statistics aggregates the distribution attempts in the log buffer
func (f *FulfillmentClient) Statistics(ctx context.Context) model.FulfillmentStats {
	stats := model.FulfillmentStats{SimulationMode: f.IsSimulationMode(ctx)}
	for _, e := range f.logs.All() {
		if e.Action != actionDistribute && e.Action != actionSimulate {
			continue
		}
		stats.TotalDistributions++
		if e.Success {
			stats.SuccessfulDistributions++
		}
	}
	stats.FailedDistributions = stats.TotalDistributions - stats.SuccessfulDistributions
	if stats.TotalDistributions > 0 {
		stats.SuccessRate = float64(stats.SuccessfulDistributions) / float64(stats.TotalDistributions) * 100
	}
	return stats
}

// Logs returns the buffered entries, oldest first
func (f *FulfillmentClient) Logs() []model.LogEntry {
	return f.logs.All()
}

// ClearLogs empties the log buffer
func (f *FulfillmentClient) ClearLogs() {
	f.logs.Clear()
}

func (f *FulfillmentClient) record(action string, data map[string]any, success bool, errMsg string) {
	f.logs.Add(model.LogEntry{
		Action:  action,
		Data:    data,
		Success: success,
		Error:   errMsg,
	})
}
