package model

import "time"

// ChargeStatus is the lifecycle state of a PIX charge
type ChargeStatus string

const (
	ChargePending   ChargeStatus = "pending"
	ChargePaid      ChargeStatus = "paid"
	ChargeExpired   ChargeStatus = "expired"
	ChargeCancelled ChargeStatus = "cancelled"
)

// PaymentRequest is the input for creating a PIX charge
type PaymentRequest struct {
	Amount           float64 `json:"amount" validate:"gt=0"`
	Description      string  `json:"description" validate:"required,max=140"`
	CustomerName     string  `json:"customerName,omitempty"`
	CustomerDocument string  `json:"customerDocument,omitempty" validate:"omitempty,numeric,min=11,max=14"`
	CustomerEmail    string  `json:"customerEmail,omitempty" validate:"omitempty,email"`
	CustomerPhone    string  `json:"customerPhone,omitempty"`
	ExternalID       string  `json:"externalId,omitempty"`
	ExpiresIn        int     `json:"expiresIn,omitempty" validate:"min=0"`
}

// PaymentCharge is a charge as created at, or queried from, a provider
type PaymentCharge struct {
	ID          string       `json:"id"`
	Amount      float64      `json:"amount"`
	Description string       `json:"description"`
	Status      ChargeStatus `json:"status"`
	PixKey      string       `json:"pixKey,omitempty"`
	QRCode      string       `json:"qrCode,omitempty"`
	PaymentLink string       `json:"paymentLink,omitempty"`
	ExpiresAt   *time.Time   `json:"expiresAt,omitempty"`
	PaidAt      *time.Time   `json:"paidAt,omitempty"`
	Provider    Provider     `json:"provider"`
}

// AccessToken is a cached OAuth bearer token
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// ConnectivityResult reports the composite connectivity check
type ConnectivityResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	ResponseTimeMS int64  `json:"responseTime"`
	TokenGenerated bool   `json:"tokenGenerated"`
	APIReachable   bool   `json:"apiReachable"`
}

// WebhookResult reports a webhook registration attempt
type WebhookResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	ResponseTimeMS int64  `json:"responseTime"`
}

// CertificateResult reports the certificate presence check
type CertificateResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// SetupOptions drives SetupPixEnvironment
type SetupOptions struct {
	WebhookURL       string `json:"webhookUrl" validate:"omitempty,url"`
	PixKey           string `json:"pixKey"`
	TestConnectivity bool   `json:"testConnectivity"`
	RegisterWebhook  bool   `json:"registerWebhook"`
}

// SetupResults holds the sub-results that were actually run
type SetupResults struct {
	Certificate  *CertificateResult  `json:"certificate,omitempty"`
	Connectivity *ConnectivityResult `json:"connectivity,omitempty"`
	Webhook      *WebhookResult      `json:"webhook,omitempty"`
}

// SetupResult aggregates the environment setup
type SetupResult struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Results SetupResults `json:"results"`
}

// SettledPix is one settled payment from an inbound provider notification
type SettledPix struct {
	TxID       string    `json:"txid"`
	EndToEndID string    `json:"endToEndId"`
	Amount     string    `json:"valor"`
	PaidAt     time.Time `json:"horario"`
}
