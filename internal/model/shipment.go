package model

import "time"

// ShipmentStatus is the state of a shipment record
type ShipmentStatus string

const (
	ShipmentPending    ShipmentStatus = "pending"
	ShipmentProcessing ShipmentStatus = "processing"
	ShipmentSent       ShipmentStatus = "sent"
	ShipmentDelivered  ShipmentStatus = "delivered"
	ShipmentFailed     ShipmentStatus = "failed"
)

// Valid reports whether s is a known status
func (s ShipmentStatus) Valid() bool {
	switch s {
	case ShipmentPending, ShipmentProcessing, ShipmentSent, ShipmentDelivered, ShipmentFailed:
		return true
	}
	return false
}

// ShipmentRecord tracks one delivery of units to a recipient on the external platform
type ShipmentRecord struct {
	ID            string         `json:"id"`
	RecipientID   string         `json:"kwaiId"`
	Quantity      int            `json:"diamondQuantity"`
	RecipientName string         `json:"customerName"`
	Status        ShipmentStatus `json:"status"`
	CreatedAt     time.Time      `json:"createdAt"`
	SentAt        *time.Time     `json:"sentAt,omitempty"`
	DeliveredAt   *time.Time     `json:"deliveredAt,omitempty"`
	Notes         string         `json:"notes,omitempty"`
	Attempts      int            `json:"attempts"`
}

// NewShipment holds the caller-supplied fields of a shipment
type NewShipment struct {
	RecipientID   string `json:"kwaiId" validate:"required"`
	Quantity      int    `json:"diamondQuantity" validate:"gt=0"`
	RecipientName string `json:"customerName" validate:"required"`
	Notes         string `json:"notes,omitempty"`
}

// ShipmentPatch carries optional field changes applied with a status update.
// Attempts is owned by the tracker and cannot be patched.
type ShipmentPatch struct {
	Notes *string `json:"notes,omitempty"`
}

// ShipmentStats summarizes the shipment list
type ShipmentStats struct {
	Total         int   `json:"total"`
	Pending       int   `json:"pending"`
	Processing    int   `json:"processing"`
	Sent          int   `json:"sent"`
	Delivered     int   `json:"delivered"`
	Failed        int   `json:"failed"`
	TotalQuantity int64 `json:"totalDiamonds"`
}

// Shipment event names
const (
	EventShipmentSent      = "shipment.sent"
	EventShipmentDelivered = "shipment.delivered"
	EventShipmentFailed    = "shipment.failed"
)

// ShipmentEvent is emitted to observers after a shipment changes state
type ShipmentEvent struct {
	Event      string         `json:"event"`
	Shipment   ShipmentRecord `json:"shipment"`
	Message    string         `json:"message,omitempty"`
	Provenance Provenance     `json:"provenance,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// ProcessOutcome is the result of processing one shipment
type ProcessOutcome struct {
	Shipment     ShipmentRecord     `json:"shipment"`
	Distribution DistributionResult `json:"distribution"`
}
