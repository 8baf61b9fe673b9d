package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"reseller-hub/internal/config"
	"reseller-hub/internal/model"
	"reseller-hub/pkg/logger"
)

const (
	interTokenPath   = "/oauth/v2/token"
	interChargePath  = "/pix/v2/cob"
	interWebhookPath = "/pix/api/v2/webhook/"

	tokenExpiryMargin      = 60 * time.Second
	defaultChargeExpiry    = 3600
	defaultRequestTimeout  = 30 * time.Second
	defaultRetryBackoff    = time.Second
	maxProviderBodyBytes   = 1 << 20
	placeholderPayerCPF    = "00000000000"
	placeholderPayerName   = "Cliente Check"
	interStatusConcluded   = "CONCLUIDA"
	interStatusActive      = "ATIVA"
	interStatusRemovedUser = "REMOVIDA_PELO_USUARIO_RECEBEDOR"
	interStatusRemovedPSP  = "REMOVIDA_PELO_PSP"
)

// PixOption configures a PixClient
type PixOption func(*PixClient)

// WithPixHTTPClient replaces the HTTP client used for provider calls
func WithPixHTTPClient(c *http.Client) PixOption {
	return func(p *PixClient) {
		p.httpClient = c
		p.customHTTP = true
	}
}

// WithPixClock sets the time source for token expiry and retry waits
func WithPixClock(c Clock) PixOption {
	return func(p *PixClient) { p.clock = c }
}

// WithRetryBackoff sets the base delay of the exponential retry backoff
func WithRetryBackoff(d time.Duration) PixOption {
	return func(p *PixClient) { p.retryBackoff = d }
}

// PixClient talks to the PIX payment providers. Banco Inter is fully
// integrated; 4send is a local stub.
type PixClient struct {
	inter        config.InterConfig
	foursend     config.FoursendConfig
	clock        Clock
	retryBackoff time.Duration
	logger       *logger.Logger
	logs         *LogBuffer

	mu         sync.RWMutex
	settings   model.ProviderConfig
	httpClient *http.Client
	customHTTP bool

	tokenMu sync.Mutex
	token   *model.AccessToken
}

// NewPixClient creates a PIX client from the fixed endpoints and the current
// provider configuration
func NewPixClient(inter config.InterConfig, foursend config.FoursendConfig, settings model.ProviderConfig, log *logger.Logger, opts ...PixOption) *PixClient {
	c := &PixClient{
		inter:        inter,
		foursend:     foursend,
		clock:        defaultClock,
		retryBackoff: defaultRetryBackoff,
		logger:       log.WithComponent("pix"),
		settings:     settings,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.clock = orDefaultClock(c.clock)
	if c.httpClient == nil {
		c.httpClient = newProviderHTTPClient(settings.InterEnableSSLValidation)
	}
	c.logs = NewLogBuffer(PixLogCapacity, c.clock)
	return c
}

func newProviderHTTPClient(verifyTLS bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !verifyTLS, //nolint:gosec // operator controlled
	}
	return &http.Client{Transport: transport}
}

// Settings returns the configuration snapshot the client is using
func (c *PixClient) Settings() model.ProviderConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// UpdateSettings swaps the configuration snapshot. The cached token is
// dropped when credentials or the environment change.
func (c *PixClient) UpdateSettings(cfg model.ProviderConfig) {
	c.mu.Lock()
	prev := c.settings
	c.settings = cfg
	if !c.customHTTP && prev.InterEnableSSLValidation != cfg.InterEnableSSLValidation {
		c.httpClient = newProviderHTTPClient(cfg.InterEnableSSLValidation)
	}
	c.mu.Unlock()

	if prev.InterClientID != cfg.InterClientID ||
		prev.InterClientSecret != cfg.InterClientSecret ||
		prev.InterEnvironment != cfg.InterEnvironment {
		c.tokenMu.Lock()
		c.token = nil
		c.tokenMu.Unlock()
	}
}

func (c *PixClient) client() *http.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.httpClient
}

func (c *PixClient) baseURL(cfg model.ProviderConfig) string {
	if cfg.InterEnvironment == model.EnvironmentSandbox && c.inter.SandboxURL != "" {
		return strings.TrimRight(c.inter.SandboxURL, "/")
	}
	return strings.TrimRight(c.inter.BaseURL, "/")
}

func (c *PixClient) pixKey(cfg model.ProviderConfig) string {
	if cfg.InterPixKey != "" {
		return cfg.InterPixKey
	}
	return c.inter.DefaultPixKey
}

func requestTimeout(cfg model.ProviderConfig) time.Duration {
	switch {
	case cfg.InterTimeout > 0:
		return time.Duration(cfg.InterTimeout) * time.Second
	case cfg.GlobalTimeout > 0:
		return time.Duration(cfg.GlobalTimeout) * time.Second
	default:
		return defaultRequestTimeout
	}
}

// GetToken returns a valid bearer token, exchanging client credentials when
// the cached one is missing or within its expiry margin
func (c *PixClient) GetToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != nil && c.clock.Now().Before(c.token.ExpiresAt) {
		return c.token.Value, nil
	}

	cfg := c.Settings()
	start := time.Now()
	if cfg.InterClientID == "" || cfg.InterClientSecret == "" {
		err := &AuthError{Err: ErrMissingCredentials}
		c.record(model.ProviderInter, "getAccessToken", nil, err, time.Since(start))
		return "", err
	}

	form := url.Values{
		"grant_type": {"client_credentials"},
		"scope":      {c.inter.Scope},
	}.Encode()
	credentials := base64.StdEncoding.EncodeToString([]byte(cfg.InterClientID + ":" + cfg.InterClientSecret))
	endpoint := c.baseURL(cfg) + interTokenPath

	status, body, err := c.send(ctx, cfg, retryAll, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Authorization", "Basic "+credentials)
		return req, nil
	})
	elapsed := time.Since(start)
	if err != nil {
		authErr := &AuthError{Err: err}
		c.record(model.ProviderInter, "getAccessToken", nil, authErr, elapsed)
		return "", authErr
	}
	if !isSuccess(status) {
		authErr := &AuthError{StatusCode: status, Body: string(body)}
		c.record(model.ProviderInter, "getAccessToken", map[string]any{"status": status}, authErr, elapsed)
		return "", authErr
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
		Scope       string `json:"scope"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil || tokenResp.AccessToken == "" {
		if err == nil {
			err = errors.New("empty access_token")
		}
		authErr := &AuthError{StatusCode: status, Body: string(body), Err: err}
		c.record(model.ProviderInter, "getAccessToken", nil, authErr, elapsed)
		return "", authErr
	}

	expiresIn := time.Duration(tokenResp.ExpiresIn) * time.Second
	c.token = &model.AccessToken{
		Value:     tokenResp.AccessToken,
		ExpiresAt: c.clock.Now().Add(expiresIn - tokenExpiryMargin),
	}
	c.record(model.ProviderInter, "getAccessToken", map[string]any{
		"tokenType": tokenResp.TokenType,
		"expiresIn": tokenResp.ExpiresIn,
		"scope":     tokenResp.Scope,
	}, nil, elapsed)
	return c.token.Value, nil
}

type interDebtor struct {
	CPF  string `json:"cpf,omitempty"`
	CNPJ string `json:"cnpj,omitempty"`
	Nome string `json:"nome"`
}

type interChargeRequest struct {
	Calendario struct {
		Expiracao int `json:"expiracao"`
	} `json:"calendario"`
	Devedor interDebtor `json:"devedor"`
	Valor   struct {
		Original string `json:"original"`
	} `json:"valor"`
	Chave              string `json:"chave"`
	SolicitacaoPagador string `json:"solicitacaoPagador"`
}

type interCharge struct {
	TxID       string `json:"txid"`
	Status     string `json:"status"`
	Calendario struct {
		Criacao   string `json:"criacao"`
		Expiracao int    `json:"expiracao"`
	} `json:"calendario"`
	Valor struct {
		Original string `json:"original"`
	} `json:"valor"`
	Chave              string `json:"chave"`
	SolicitacaoPagador string `json:"solicitacaoPagador"`
	PixCopiaECola      string `json:"pixCopiaECola"`
	QRCode             string `json:"qrcode"`
	Location           string `json:"location"`
	LinkVisualizacao   string `json:"linkVisualizacao"`
	Pix                []struct {
		EndToEndID string `json:"endToEndId"`
		Valor      string `json:"valor"`
		Horario    string `json:"horario"`
	} `json:"pix"`
}

func newDebtor(req model.PaymentRequest) interDebtor {
	d := interDebtor{CPF: placeholderPayerCPF, Nome: placeholderPayerName}
	if req.CustomerName != "" {
		d.Nome = req.CustomerName
	}
	switch len(req.CustomerDocument) {
	case 11:
		d.CPF = req.CustomerDocument
	case 14:
		d.CPF = ""
		d.CNPJ = req.CustomerDocument
	}
	return d
}

// CreatePayment creates an immediate charge at the given provider. An empty
// provider means Inter.
func (c *PixClient) CreatePayment(ctx context.Context, req model.PaymentRequest, provider model.Provider) (*model.PaymentCharge, error) {
	if provider == model.ProviderFoursend {
		return c.createFoursendPayment(req), nil
	}

	token, err := c.GetToken(ctx)
	if err != nil {
		return nil, err
	}

	cfg := c.Settings()
	expiry := req.ExpiresIn
	if expiry <= 0 {
		expiry = defaultChargeExpiry
	}
	payload := interChargeRequest{
		Devedor:            newDebtor(req),
		Chave:              c.pixKey(cfg),
		SolicitacaoPagador: req.Description,
	}
	payload.Calendario.Expiracao = expiry
	payload.Valor.Original = decimal.NewFromFloat(req.Amount).StringFixed(2)

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, &ChargeCreationError{Err: fmt.Errorf("failed to marshal charge: %w", err)}
	}
	endpoint := c.baseURL(cfg) + interChargePath

	start := time.Now()
	status, body, err := c.send(ctx, cfg, retryServerErrors, func(ctx context.Context) (*http.Request, error) {
		return newJSONRequest(ctx, http.MethodPost, endpoint, reqBody, token)
	})
	elapsed := time.Since(start)
	logData := map[string]any{"amount": payload.Valor.Original, "description": req.Description}
	if err != nil {
		chargeErr := &ChargeCreationError{Err: err}
		c.record(model.ProviderInter, "createPayment", logData, chargeErr, elapsed)
		return nil, chargeErr
	}
	if !isSuccess(status) {
		chargeErr := &ChargeCreationError{StatusCode: status, Body: string(body)}
		c.record(model.ProviderInter, "createPayment", logData, chargeErr, elapsed)
		return nil, chargeErr
	}

	var cob interCharge
	if err := json.Unmarshal(body, &cob); err != nil {
		chargeErr := &ChargeCreationError{StatusCode: status, Body: string(body), Err: err}
		c.record(model.ProviderInter, "createPayment", logData, chargeErr, elapsed)
		return nil, chargeErr
	}

	expiresAt := c.clock.Now().Add(time.Duration(expiry) * time.Second)
	charge := &model.PaymentCharge{
		ID:          cob.TxID,
		Amount:      req.Amount,
		Description: req.Description,
		Status:      model.ChargePending,
		PixKey:      firstNonEmpty(cob.Chave, payload.Chave),
		QRCode:      firstNonEmpty(cob.PixCopiaECola, cob.QRCode),
		PaymentLink: firstNonEmpty(cob.Location, cob.LinkVisualizacao),
		ExpiresAt:   &expiresAt,
		Provider:    model.ProviderInter,
	}
	logData["txid"] = charge.ID
	c.record(model.ProviderInter, "createPayment", logData, nil, elapsed)
	c.logger.WithTxID(charge.ID).Info("PIX charge created", "amount", payload.Valor.Original)
	return charge, nil
}

func (c *PixClient) createFoursendPayment(req model.PaymentRequest) *model.PaymentCharge {
	charge := &model.PaymentCharge{
		ID:          fmt.Sprintf("4send_%d", c.clock.Now().UnixMilli()),
		Amount:      req.Amount,
		Description: req.Description,
		Status:      model.ChargePending,
		Provider:    model.ProviderFoursend,
	}
	c.record(model.ProviderFoursend, "createPayment", map[string]any{
		"amount": decimal.NewFromFloat(req.Amount).StringFixed(2),
		"txid":   charge.ID,
	}, nil, 0)
	return charge
}

// CheckPaymentStatus queries a charge. Paid charges carry the settlement
// time reported by the provider.
func (c *PixClient) CheckPaymentStatus(ctx context.Context, id string, provider model.Provider) (*model.PaymentCharge, error) {
	if provider == model.ProviderFoursend {
		c.record(model.ProviderFoursend, "checkPaymentStatus", map[string]any{"txid": id}, nil, 0)
		return &model.PaymentCharge{ID: id, Status: model.ChargePending, Provider: model.ProviderFoursend}, nil
	}

	token, err := c.GetToken(ctx)
	if err != nil {
		return nil, err
	}

	cfg := c.Settings()
	endpoint := c.baseURL(cfg) + interChargePath + "/" + url.PathEscape(id)

	start := time.Now()
	status, body, err := c.send(ctx, cfg, retryAll, func(ctx context.Context) (*http.Request, error) {
		return newJSONRequest(ctx, http.MethodGet, endpoint, nil, token)
	})
	elapsed := time.Since(start)
	logData := map[string]any{"txid": id}
	if err != nil {
		statusErr := &StatusCheckError{Err: err}
		c.record(model.ProviderInter, "checkPaymentStatus", logData, statusErr, elapsed)
		return nil, statusErr
	}
	if !isSuccess(status) {
		statusErr := &StatusCheckError{StatusCode: status, Body: string(body)}
		c.record(model.ProviderInter, "checkPaymentStatus", logData, statusErr, elapsed)
		return nil, statusErr
	}

	var cob interCharge
	if err := json.Unmarshal(body, &cob); err != nil {
		statusErr := &StatusCheckError{StatusCode: status, Body: string(body), Err: err}
		c.record(model.ProviderInter, "checkPaymentStatus", logData, statusErr, elapsed)
		return nil, statusErr
	}

	charge := c.chargeFromCob(id, cob)
	logData["status"] = string(charge.Status)
	c.record(model.ProviderInter, "checkPaymentStatus", logData, nil, elapsed)
	return charge, nil
}

func (c *PixClient) chargeFromCob(id string, cob interCharge) *model.PaymentCharge {
	amount, _ := decimal.NewFromString(cob.Valor.Original)
	charge := &model.PaymentCharge{
		ID:          firstNonEmpty(cob.TxID, id),
		Amount:      amount.InexactFloat64(),
		Description: cob.SolicitacaoPagador,
		Status:      model.ChargePending,
		PixKey:      cob.Chave,
		QRCode:      firstNonEmpty(cob.PixCopiaECola, cob.QRCode),
		PaymentLink: firstNonEmpty(cob.Location, cob.LinkVisualizacao),
		Provider:    model.ProviderInter,
	}

	if created, err := time.Parse(time.RFC3339, cob.Calendario.Criacao); err == nil && cob.Calendario.Expiracao > 0 {
		expiresAt := created.Add(time.Duration(cob.Calendario.Expiracao) * time.Second)
		charge.ExpiresAt = &expiresAt
	}

	switch cob.Status {
	case interStatusConcluded:
		charge.Status = model.ChargePaid
		paidAt := c.clock.Now()
		if len(cob.Pix) > 0 {
			if t, err := time.Parse(time.RFC3339, cob.Pix[0].Horario); err == nil {
				paidAt = t
			}
		}
		charge.PaidAt = &paidAt
	case interStatusRemovedUser, interStatusRemovedPSP:
		charge.Status = model.ChargeCancelled
	case interStatusActive:
		if charge.ExpiresAt != nil && !c.clock.Now().Before(*charge.ExpiresAt) {
			charge.Status = model.ChargeExpired
		}
	}
	return charge
}

// TestConnectivity obtains a token and probes the charge listing endpoint.
// 200 and 404 both count as reachable. Failures are reported in the result.
func (c *PixClient) TestConnectivity(ctx context.Context) model.ConnectivityResult {
	start := time.Now()
	token, err := c.GetToken(ctx)
	if err != nil {
		return model.ConnectivityResult{
			Success:        false,
			Message:        "Token generation failed: " + err.Error(),
			ResponseTimeMS: time.Since(start).Milliseconds(),
		}
	}

	cfg := c.Settings()
	now := c.clock.Now().UTC()
	query := url.Values{
		"inicio": {now.Add(-24 * time.Hour).Format(time.RFC3339)},
		"fim":    {now.Format(time.RFC3339)},
	}
	endpoint := c.baseURL(cfg) + interChargePath + "?" + query.Encode()

	status, _, err := c.send(ctx, cfg, retryAll, func(ctx context.Context) (*http.Request, error) {
		return newJSONRequest(ctx, http.MethodGet, endpoint, nil, token)
	})
	elapsed := time.Since(start)

	result := model.ConnectivityResult{
		TokenGenerated: true,
		ResponseTimeMS: elapsed.Milliseconds(),
	}
	switch {
	case err != nil:
		result.Message = "Inter API unreachable: " + err.Error()
	case status == http.StatusOK || status == http.StatusNotFound:
		result.Success = true
		result.APIReachable = true
		result.Message = "Connected to Banco Inter"
	default:
		result.Message = fmt.Sprintf("Inter API responded with status %d", status)
	}

	var recErr error
	if !result.Success {
		recErr = errors.New(result.Message)
	}
	c.record(model.ProviderInter, "testConnectivity", map[string]any{"status": status}, recErr, elapsed)
	return result
}

// RegisterWebhook points the provider's settlement notifications for pixKey
// at webhookURL
func (c *PixClient) RegisterWebhook(ctx context.Context, webhookURL, pixKey string) model.WebhookResult {
	start := time.Now()
	token, err := c.GetToken(ctx)
	if err != nil {
		return model.WebhookResult{
			Message:        "Token generation failed: " + err.Error(),
			ResponseTimeMS: time.Since(start).Milliseconds(),
		}
	}

	cfg := c.Settings()
	reqBody, err := json.Marshal(map[string]string{"webhookUrl": webhookURL})
	if err != nil {
		return model.WebhookResult{Message: err.Error()}
	}
	endpoint := c.baseURL(cfg) + interWebhookPath + url.PathEscape(pixKey)

	status, body, err := c.send(ctx, cfg, retryAll, func(ctx context.Context) (*http.Request, error) {
		return newJSONRequest(ctx, http.MethodPut, endpoint, reqBody, token)
	})
	elapsed := time.Since(start)

	result := model.WebhookResult{ResponseTimeMS: elapsed.Milliseconds()}
	switch {
	case err != nil:
		result.Message = "Webhook registration failed: " + err.Error()
	case isSuccess(status):
		result.Success = true
		result.Message = "Webhook registered"
	default:
		result.Message = fmt.Sprintf("Webhook registration failed: %d - %s", status, string(body))
	}

	var recErr error
	if !result.Success {
		recErr = errors.New(result.Message)
	}
	c.record(model.ProviderInter, "registerWebhook", map[string]any{
		"webhookUrl": webhookURL,
		"status":     status,
	}, recErr, elapsed)
	return result
}

// ValidateCertificate only checks that a certificate path is configured
func (c *PixClient) ValidateCertificate() model.CertificateResult {
	cfg := c.Settings()
	path := firstNonEmpty(cfg.InterCertificatePath, c.inter.CertificatePath)
	if path == "" {
		return model.CertificateResult{Valid: false, Message: "No certificate configured"}
	}
	return model.CertificateResult{Valid: true, Message: "Certificate configured: " + path}
}

// SetupPixEnvironment runs the certificate check plus the optional
// connectivity test and webhook registration. It succeeds only when every
// step that ran succeeded.
func (c *PixClient) SetupPixEnvironment(ctx context.Context, opts model.SetupOptions) model.SetupResult {
	var results model.SetupResults

	cert := c.ValidateCertificate()
	results.Certificate = &cert
	success := cert.Valid

	if opts.TestConnectivity {
		conn := c.TestConnectivity(ctx)
		results.Connectivity = &conn
		success = success && conn.Success
	}

	if opts.RegisterWebhook {
		cfg := c.Settings()
		webhookURL := firstNonEmpty(opts.WebhookURL, cfg.InterWebhookURL)
		pixKey := firstNonEmpty(opts.PixKey, c.pixKey(cfg))
		var hook model.WebhookResult
		if webhookURL == "" || pixKey == "" {
			hook = model.WebhookResult{Message: "Webhook URL and PIX key are required"}
		} else {
			hook = c.RegisterWebhook(ctx, webhookURL, pixKey)
		}
		results.Webhook = &hook
		success = success && hook.Success
	}

	message := "PIX environment configured"
	if !success {
		message = "PIX environment configured with pending issues"
	}
	return model.SetupResult{Success: success, Message: message, Results: results}
}

// VerifyWebhookSignature checks the HMAC-SHA256 signature of an inbound
// notification. Verification is skipped when disabled in the configuration.
func (c *PixClient) VerifyWebhookSignature(payload []byte, signature string) error {
	cfg := c.Settings()
	if !cfg.EnableWebhookSignatureValidation || !cfg.InterEnableWebhookValidation {
		return nil
	}
	secret := firstNonEmpty(cfg.InterWebhookSecret, cfg.WebhookValidationSecret)
	if secret == "" || !validSignature(secret, payload, signature) {
		return ErrInvalidSignature
	}
	return nil
}

// HandleWebhookNotification parses an Inter settlement notification
func (c *PixClient) HandleWebhookNotification(ctx context.Context, payload []byte) ([]model.SettledPix, error) {
	var notification struct {
		Pix []model.SettledPix `json:"pix"`
	}
	if err := json.Unmarshal(payload, &notification); err != nil {
		c.record(model.ProviderInter, "webhookNotification", nil, err, 0)
		return nil, fmt.Errorf("invalid notification payload: %w", err)
	}

	for _, pix := range notification.Pix {
		c.record(model.ProviderInter, "webhookNotification", map[string]any{
			"txid":       pix.TxID,
			"endToEndId": pix.EndToEndID,
			"valor":      pix.Amount,
		}, nil, 0)
		c.logger.WithTxID(pix.TxID).Info("PIX settled", "end_to_end_id", pix.EndToEndID, "amount", pix.Amount)
	}
	return notification.Pix, nil
}

// Logs returns up to limit buffered entries for provider, newest first.
// limit <= 0 means 100.
func (c *PixClient) Logs(provider model.Provider, limit int) []model.LogEntry {
	if limit <= 0 {
		limit = 100
	}
	return c.logs.Recent(provider, limit)
}

// PruneLogs drops entries older than the configured retention
func (c *PixClient) PruneLogs() int {
	days := c.Settings().LogRetentionDays
	if days <= 0 {
		return 0
	}
	cutoff := c.clock.Now().Add(-time.Duration(days) * 24 * time.Hour)
	return c.logs.Prune(cutoff)
}

// StartRetention prunes the log buffer once a day until ctx is done
func (c *PixClient) StartRetention(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.clock.After(24 * time.Hour):
				if n := c.PruneLogs(); n > 0 {
					c.logger.Info("Pruned PIX log entries", "count", n)
				}
			}
		}
	}()
}

// record appends an entry to the log buffer following the logging flags
func (c *PixClient) record(provider model.Provider, action string, data map[string]any, err error, elapsed time.Duration) {
	cfg := c.Settings()
	if !cfg.EnableDetailedLogs && !cfg.EnableTransactionLogs {
		return
	}
	if !cfg.EnableDetailedLogs {
		data = map[string]any{"sanitized": true}
	}

	entry := model.LogEntry{
		Provider: provider,
		Action:   action,
		Data:     data,
		Success:  err == nil,
	}
	if err != nil {
		entry.Error = err.Error()
		c.logger.WithProvider(string(provider)).WithError(err).Warn("PIX operation failed", "action", action)
	}
	if elapsed > 0 {
		entry.DurationMS = durationMS(elapsed)
	}
	c.logs.Add(entry)
}

// retryMode selects which failures send may repeat
type retryMode int

const (
	// retryAll repeats transport failures, timeouts and 5xx responses
	retryAll retryMode = iota
	// retryServerErrors repeats only 5xx responses. Used for calls that are
	// not idempotent, where a timed out request may already have been applied.
	retryServerErrors
)

// send performs one provider call bounded by the configured timeout.
// Failures allowed by mode are retried with exponential backoff when auto
// retry is enabled; 4xx never is.
func (c *PixClient) send(ctx context.Context, cfg model.ProviderConfig, mode retryMode, newReq func(context.Context) (*http.Request, error)) (int, []byte, error) {
	timeout := requestTimeout(cfg)
	retries := 0
	if cfg.EnableAutoRetry {
		retries = cfg.InterMaxRetries
	}

	var (
		status int
		body   []byte
		err    error
	)
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			backoff := c.backoff(cfg, attempt)
			c.logger.Warn("Retrying Inter request",
				"attempt", attempt+1,
				"backoff_seconds", backoff.Seconds(),
			)
			if werr := sleep(ctx, c.clock, backoff); werr != nil {
				return status, body, werr
			}
		}

		status, body, err = c.attempt(ctx, timeout, newReq)
		if err == nil && status < http.StatusInternalServerError {
			return status, body, nil
		}
		if ctx.Err() != nil {
			break
		}
		if err != nil && mode == retryServerErrors {
			break
		}
	}
	return status, body, err
}

func (c *PixClient) attempt(ctx context.Context, timeout time.Duration, newReq func(context.Context) (*http.Request, error)) (int, []byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := newReq(attemptCtx)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client().Do(req)
	if err != nil {
		return 0, nil, classifyTimeout(ctx, attemptCtx, timeout, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, classifyTimeout(ctx, attemptCtx, timeout, err)
	}
	return resp.StatusCode, body, nil
}

func (c *PixClient) backoff(cfg model.ProviderConfig, attempt int) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt-1))) * c.retryBackoff
	if cfg.MaxRetryDelay > 0 {
		if limit := time.Duration(cfg.MaxRetryDelay) * time.Second; d > limit {
			d = limit
		}
	}
	return d
}

// classifyTimeout wraps ErrTimeout when the per-call deadline, not the
// caller's context, ended the request
func classifyTimeout(parent, attemptCtx context.Context, timeout time.Duration, err error) error {
	if parent.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
	return err
}

func newJSONRequest(ctx context.Context, method, endpoint string, body []byte, token string) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
