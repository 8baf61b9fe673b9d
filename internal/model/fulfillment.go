package model

import "time"

// Provenance tells whether a distribution really happened or was simulated
type Provenance string

const (
	ProvenanceReal      Provenance = "real"
	ProvenanceSimulated Provenance = "simulated"
)

// SimulatedTxPrefix marks transaction ids produced by the simulator
const SimulatedTxPrefix = "SIM_"

// DistributionRequest asks the platform to deliver units to a recipient
type DistributionRequest struct {
	RecipientID   string `json:"kwaiId" validate:"required"`
	Quantity      int    `json:"diamondQuantity" validate:"gt=0"`
	Message       string `json:"message,omitempty"`
	RecipientName string `json:"customerName" validate:"required"`
}

// DistributionResult is the outcome of a distribution attempt
type DistributionResult struct {
	Success        bool       `json:"success"`
	Message        string     `json:"message"`
	TransactionID  string     `json:"transactionId,omitempty"`
	Error          string     `json:"error,omitempty"`
	Provenance     Provenance `json:"provenance"`
	FallbackReason string     `json:"fallbackReason,omitempty"`
	DurationMS     int64      `json:"durationMs"`
}

// FulfillmentSession is the persisted platform session
type FulfillmentSession struct {
	IsConnected  bool       `json:"isConnected"`
	AccountName  string     `json:"accountName"`
	Balance      *int64     `json:"balance,omitempty"`
	LastActivity *time.Time `json:"lastActivity,omitempty"`
}

// ConnectResult reports a connect attempt
type ConnectResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	SimulationMode bool   `json:"simulationMode"`
}

// FulfillmentStats aggregates distribution attempts from the log buffer
type FulfillmentStats struct {
	TotalDistributions      int     `json:"totalDistributions"`
	SuccessfulDistributions int     `json:"successfulDistributions"`
	FailedDistributions     int     `json:"failedDistributions"`
	SuccessRate             float64 `json:"successRate"`
	SimulationMode          bool    `json:"simulationMode"`
}
