package model

import "strings"

// Provider identifies a PIX payment provider
type Provider string

const (
	ProviderInter    Provider = "inter"
	ProviderFoursend Provider = "4send"
)

// Environment values accepted by providers
const (
	EnvironmentSandbox    = "sandbox"
	EnvironmentProduction = "production"
)

// ProviderConfig is the runtime-editable payment provider configuration.
// It is persisted as one JSON blob; the JSON names are the stored shape.
type ProviderConfig struct {
	InterClientID                string `json:"interClientId"`
	InterClientSecret            string `json:"interClientSecret"`
	InterCertificatePath         string `json:"interCertificatePath"`
	InterPixKey                  string `json:"interPixKey"`
	InterEnvironment             string `json:"interEnvironment" validate:"oneof=sandbox production"`
	InterWebhookURL              string `json:"interWebhookUrl" validate:"omitempty,url"`
	InterWebhookSecret           string `json:"interWebhookSecret"`
	InterTimeout                 int    `json:"interTimeout" validate:"min=1,max=300"`
	InterMaxRetries              int    `json:"interMaxRetries" validate:"min=0,max=10"`
	InterEnableSSLValidation     bool   `json:"interEnableSSLValidation"`
	InterEnableWebhookValidation bool   `json:"interEnableWebhookValidation"`

	FoursendAPIToken            string `json:"foursendApiToken"`
	FoursendBaseURL             string `json:"foursendBaseUrl" validate:"omitempty,url"`
	FoursendEnvironment         string `json:"foursendEnvironment" validate:"oneof=sandbox production"`
	FoursendCallbackURL         string `json:"foursendCallbackUrl" validate:"omitempty,url"`
	FoursendTimeout             int    `json:"foursendTimeout" validate:"min=1,max=300"`
	FoursendMaxRetries          int    `json:"foursendMaxRetries" validate:"min=0,max=10"`
	FoursendEnableNotifications bool   `json:"foursendEnableNotifications"`
	FoursendEnableCustomHeaders bool   `json:"foursendEnableCustomHeaders"`

	GlobalCallbackURL                string `json:"globalCallbackUrl" validate:"omitempty,url"`
	GlobalTimeout                    int    `json:"globalTimeout" validate:"min=1,max=300"`
	MaxRetryDelay                    int    `json:"maxRetryDelay" validate:"min=0,max=3600"`
	WebhookValidationSecret          string `json:"webhookValidationSecret"`
	LogRetentionDays                 int    `json:"logRetentionDays" validate:"min=0"`
	EnableAutoRetry                  bool   `json:"enableAutoRetry"`
	EnableSecurityValidation         bool   `json:"enableSecurityValidation"`
	EnableDetailedLogs               bool   `json:"enableDetailedLogs"`
	EnableAPIMonitoring              bool   `json:"enableApiMonitoring"`
	EnableWebhookSignatureValidation bool   `json:"enableWebhookSignatureValidation"`
	EnableTransactionLogs            bool   `json:"enableTransactionLogs"`
}

// DefaultProviderConfig returns the fixed default table. Every call returns a
// fresh value so callers cannot mutate the defaults.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		InterEnvironment:             EnvironmentProduction,
		InterTimeout:                 30,
		InterMaxRetries:              3,
		InterEnableSSLValidation:     true,
		InterEnableWebhookValidation: true,

		FoursendEnvironment:         EnvironmentProduction,
		FoursendTimeout:             30,
		FoursendMaxRetries:          3,
		FoursendEnableNotifications: true,
		FoursendEnableCustomHeaders: false,

		GlobalTimeout:                    30,
		MaxRetryDelay:                    60,
		LogRetentionDays:                 30,
		EnableAutoRetry:                  true,
		EnableSecurityValidation:         true,
		EnableDetailedLogs:               false,
		EnableAPIMonitoring:              true,
		EnableWebhookSignatureValidation: true,
		EnableTransactionLogs:            true,
	}
}

// ProviderConfigPatch is a partial update. Nil fields are left untouched.
type ProviderConfigPatch struct {
	InterClientID                *string `json:"interClientId,omitempty"`
	InterClientSecret            *string `json:"interClientSecret,omitempty"`
	InterCertificatePath         *string `json:"interCertificatePath,omitempty"`
	InterPixKey                  *string `json:"interPixKey,omitempty"`
	InterEnvironment             *string `json:"interEnvironment,omitempty"`
	InterWebhookURL              *string `json:"interWebhookUrl,omitempty"`
	InterWebhookSecret           *string `json:"interWebhookSecret,omitempty"`
	InterTimeout                 *int    `json:"interTimeout,omitempty"`
	InterMaxRetries              *int    `json:"interMaxRetries,omitempty"`
	InterEnableSSLValidation     *bool   `json:"interEnableSSLValidation,omitempty"`
	InterEnableWebhookValidation *bool   `json:"interEnableWebhookValidation,omitempty"`

	FoursendAPIToken            *string `json:"foursendApiToken,omitempty"`
	FoursendBaseURL             *string `json:"foursendBaseUrl,omitempty"`
	FoursendEnvironment         *string `json:"foursendEnvironment,omitempty"`
	FoursendCallbackURL         *string `json:"foursendCallbackUrl,omitempty"`
	FoursendTimeout             *int    `json:"foursendTimeout,omitempty"`
	FoursendMaxRetries          *int    `json:"foursendMaxRetries,omitempty"`
	FoursendEnableNotifications *bool   `json:"foursendEnableNotifications,omitempty"`
	FoursendEnableCustomHeaders *bool   `json:"foursendEnableCustomHeaders,omitempty"`

	GlobalCallbackURL                *string `json:"globalCallbackUrl,omitempty"`
	GlobalTimeout                    *int    `json:"globalTimeout,omitempty"`
	MaxRetryDelay                    *int    `json:"maxRetryDelay,omitempty"`
	WebhookValidationSecret          *string `json:"webhookValidationSecret,omitempty"`
	LogRetentionDays                 *int    `json:"logRetentionDays,omitempty"`
	EnableAutoRetry                  *bool   `json:"enableAutoRetry,omitempty"`
	EnableSecurityValidation         *bool   `json:"enableSecurityValidation,omitempty"`
	EnableDetailedLogs               *bool   `json:"enableDetailedLogs,omitempty"`
	EnableAPIMonitoring              *bool   `json:"enableApiMonitoring,omitempty"`
	EnableWebhookSignatureValidation *bool   `json:"enableWebhookSignatureValidation,omitempty"`
	EnableTransactionLogs            *bool   `json:"enableTransactionLogs,omitempty"`
}

// Apply returns cfg with every non-nil patch field copied over it. Secrets
// still carrying the mask from Masked are left unchanged, so a config read
// from the API can be sent back as is.
func (p ProviderConfigPatch) Apply(cfg ProviderConfig) ProviderConfig {
	setString(&cfg.InterClientID, p.InterClientID)
	setSecret(&cfg.InterClientSecret, p.InterClientSecret)
	setString(&cfg.InterCertificatePath, p.InterCertificatePath)
	setString(&cfg.InterPixKey, p.InterPixKey)
	setString(&cfg.InterEnvironment, p.InterEnvironment)
	setString(&cfg.InterWebhookURL, p.InterWebhookURL)
	setSecret(&cfg.InterWebhookSecret, p.InterWebhookSecret)
	setInt(&cfg.InterTimeout, p.InterTimeout)
	setInt(&cfg.InterMaxRetries, p.InterMaxRetries)
	setBool(&cfg.InterEnableSSLValidation, p.InterEnableSSLValidation)
	setBool(&cfg.InterEnableWebhookValidation, p.InterEnableWebhookValidation)

	setSecret(&cfg.FoursendAPIToken, p.FoursendAPIToken)
	setString(&cfg.FoursendBaseURL, p.FoursendBaseURL)
	setString(&cfg.FoursendEnvironment, p.FoursendEnvironment)
	setString(&cfg.FoursendCallbackURL, p.FoursendCallbackURL)
	setInt(&cfg.FoursendTimeout, p.FoursendTimeout)
	setInt(&cfg.FoursendMaxRetries, p.FoursendMaxRetries)
	setBool(&cfg.FoursendEnableNotifications, p.FoursendEnableNotifications)
	setBool(&cfg.FoursendEnableCustomHeaders, p.FoursendEnableCustomHeaders)

	setString(&cfg.GlobalCallbackURL, p.GlobalCallbackURL)
	setInt(&cfg.GlobalTimeout, p.GlobalTimeout)
	setInt(&cfg.MaxRetryDelay, p.MaxRetryDelay)
	setSecret(&cfg.WebhookValidationSecret, p.WebhookValidationSecret)
	setInt(&cfg.LogRetentionDays, p.LogRetentionDays)
	setBool(&cfg.EnableAutoRetry, p.EnableAutoRetry)
	setBool(&cfg.EnableSecurityValidation, p.EnableSecurityValidation)
	setBool(&cfg.EnableDetailedLogs, p.EnableDetailedLogs)
	setBool(&cfg.EnableAPIMonitoring, p.EnableAPIMonitoring)
	setBool(&cfg.EnableWebhookSignatureValidation, p.EnableWebhookSignatureValidation)
	setBool(&cfg.EnableTransactionLogs, p.EnableTransactionLogs)
	return cfg
}

// Masked returns a copy with credentials replaced, for API responses.
func (c ProviderConfig) Masked() ProviderConfig {
	c.InterClientSecret = mask(c.InterClientSecret)
	c.InterWebhookSecret = mask(c.InterWebhookSecret)
	c.FoursendAPIToken = mask(c.FoursendAPIToken)
	c.WebhookValidationSecret = mask(c.WebhookValidationSecret)
	return c
}

const maskPrefix = "****"

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return maskPrefix
	}
	return maskPrefix + s[len(s)-4:]
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setSecret(dst *string, v *string) {
	if v != nil && !strings.HasPrefix(*v, maskPrefix) {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
