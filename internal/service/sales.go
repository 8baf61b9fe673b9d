package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"reseller-hub/internal/model"
	"reseller-hub/internal/repository"
	"reseller-hub/pkg/logger"
)

// SalesCollaborator is told when a recipient's units have been delivered
type SalesCollaborator interface {
	MarkDeliveryStatus(ctx context.Context, recipientID, status, actor string) error
}

// SalesBook keeps the reseller's sales in the blob store
type SalesBook struct {
	store    repository.Store
	clock    Clock
	validate *validator.Validate
	logger   *logger.Logger

	mu sync.Mutex
}

// NewSalesBook creates a sales book over store
func NewSalesBook(store repository.Store, clock Clock, log *logger.Logger) *SalesBook {
	return &SalesBook{
		store:    store,
		clock:    orDefaultClock(clock),
		validate: validator.New(),
		logger:   log.WithComponent("sales"),
	}
}

// List returns every sale, newest first
func (b *SalesBook) List(ctx context.Context) ([]model.Sale, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load(ctx)
}

// Add records a new sale with pending delivery and payment
func (b *SalesBook) Add(ctx context.Context, in model.NewSale) (model.Sale, error) {
	if err := b.validate.Struct(in); err != nil {
		return model.Sale{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sales, err := b.load(ctx)
	if err != nil {
		return model.Sale{}, err
	}
	sale := model.Sale{
		ID:             uuid.NewString(),
		RecipientID:    in.RecipientID,
		Quantity:       in.Quantity,
		RecipientName:  in.RecipientName,
		Date:           b.clock.Now(),
		DeliveryStatus: model.DeliveryPending,
		PaymentStatus:  model.PaymentPending,
	}
	if err := b.save(ctx, append([]model.Sale{sale}, sales...)); err != nil {
		return model.Sale{}, err
	}
	return sale, nil
}

// MarkDeliveryStatus updates every sale of recipientID still pending delivery
func (b *SalesBook) MarkDeliveryStatus(ctx context.Context, recipientID, status, actor string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sales, err := b.load(ctx)
	if err != nil {
		return err
	}
	now := b.clock.Now()
	updated := 0
	for i := range sales {
		if sales[i].RecipientID != recipientID || sales[i].DeliveryStatus != model.DeliveryPending {
			continue
		}
		sales[i].DeliveryStatus = status
		sales[i].DeliveredBy = actor
		sales[i].UpdatedAt = &now
		updated++
	}
	if updated == 0 {
		b.logger.WithRecipient(recipientID).Debug("No pending sale to update")
		return nil
	}
	if err := b.save(ctx, sales); err != nil {
		return err
	}
	b.logger.WithRecipient(recipientID).Info("Sales delivery status updated", "status", status, "count", updated)
	return nil
}

// MarkPaid sets a sale's payment status to paid
func (b *SalesBook) MarkPaid(ctx context.Context, id string) (model.Sale, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sales, err := b.load(ctx)
	if err != nil {
		return model.Sale{}, err
	}
	for i := range sales {
		if sales[i].ID != id {
			continue
		}
		now := b.clock.Now()
		sales[i].PaymentStatus = model.PaymentPaid
		sales[i].UpdatedAt = &now
		if err := b.save(ctx, sales); err != nil {
			return model.Sale{}, err
		}
		return sales[i], nil
	}
	return model.Sale{}, ErrSaleNotFound
}

func (b *SalesBook) load(ctx context.Context) ([]model.Sale, error) {
	var sales []model.Sale
	err := repository.GetJSON(ctx, b.store, repository.KeySales, &sales)
	if errors.Is(err, repository.ErrNotFound) {
		return []model.Sale{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sales: %w", err)
	}
	return sales, nil
}

func (b *SalesBook) save(ctx context.Context, sales []model.Sale) error {
	if err := repository.SetJSON(ctx, b.store, repository.KeySales, sales); err != nil {
		return &PersistenceError{Key: repository.KeySales, Err: err}
	}
	return nil
}
