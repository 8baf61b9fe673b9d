package model

import "time"

// Delivery and payment statuses used by the sales book
const (
	DeliveryPending   = "pendente"
	DeliveryDelivered = "entregue"

	PaymentPending = "pendente"
	PaymentPaid    = "pago"
)

// Sale is a reseller sale of units to a recipient
type Sale struct {
	ID             string     `json:"id"`
	RecipientID    string     `json:"kwaiId"`
	Quantity       int        `json:"diamondQuantity"`
	RecipientName  string     `json:"revendedorName"`
	Date           time.Time  `json:"date"`
	DeliveryStatus string     `json:"deliveryStatus"`
	PaymentStatus  string     `json:"paymentStatus"`
	DeliveredBy    string     `json:"deliveredBy,omitempty"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
}

// NewSale holds the caller-supplied fields of a sale
type NewSale struct {
	RecipientID   string `json:"kwaiId" validate:"required"`
	Quantity      int    `json:"diamondQuantity" validate:"gt=0"`
	RecipientName string `json:"revendedorName" validate:"required"`
}
