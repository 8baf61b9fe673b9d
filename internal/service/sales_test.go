package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reseller-hub/internal/model"
	"reseller-hub/internal/repository"
	"reseller-hub/pkg/logger"
)

func TestSalesBookAddAndList(t *testing.T) {
	ctx := context.Background()
	clock := newStepClock()
	book := NewSalesBook(repository.NewMemoryStore(), clock, logger.Nop())

	first, err := book.Add(ctx, model.NewSale{RecipientID: "r1", Quantity: 100, RecipientName: "Bia"})
	require.NoError(t, err)
	second, err := book.Add(ctx, model.NewSale{RecipientID: "r2", Quantity: 200, RecipientName: "Caio"})
	require.NoError(t, err)

	assert.Equal(t, model.DeliveryPending, first.DeliveryStatus)
	assert.Equal(t, model.PaymentPending, first.PaymentStatus)
	assert.Equal(t, clock.Now(), first.Date)

	sales, err := book.List(ctx)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, second.ID, sales[0].ID)

	_, err = book.Add(ctx, model.NewSale{RecipientID: "", Quantity: 1, RecipientName: "x"})
	assert.Error(t, err)
}

func TestSalesBookMarkDeliveryStatus(t *testing.T) {
	ctx := context.Background()
	book := NewSalesBook(repository.NewMemoryStore(), newStepClock(), logger.Nop())
	a, _ := book.Add(ctx, model.NewSale{RecipientID: "r1", Quantity: 1, RecipientName: "Bia"})
	b, _ := book.Add(ctx, model.NewSale{RecipientID: "r1", Quantity: 2, RecipientName: "Bia"})
	c, _ := book.Add(ctx, model.NewSale{RecipientID: "r2", Quantity: 3, RecipientName: "Caio"})

	require.NoError(t, book.MarkDeliveryStatus(ctx, "r1", model.DeliveryDelivered, "system"))
	require.NoError(t, book.MarkDeliveryStatus(ctx, "nobody", model.DeliveryDelivered, "system"))

	sales, err := book.List(ctx)
	require.NoError(t, err)
	byID := map[string]model.Sale{}
	for _, s := range sales {
		byID[s.ID] = s
	}
	assert.Equal(t, model.DeliveryDelivered, byID[a.ID].DeliveryStatus)
	assert.Equal(t, "system", byID[b.ID].DeliveredBy)
	assert.NotNil(t, byID[b.ID].UpdatedAt)
	assert.Equal(t, model.DeliveryPending, byID[c.ID].DeliveryStatus)
}

func TestSalesBookMarkPaid(t *testing.T) {
	ctx := context.Background()
	book := NewSalesBook(repository.NewMemoryStore(), newStepClock(), logger.Nop())
	sale, _ := book.Add(ctx, model.NewSale{RecipientID: "r1", Quantity: 1, RecipientName: "Bia"})

	paid, err := book.MarkPaid(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, paid.PaymentStatus)

	_, err = book.MarkPaid(ctx, "missing")
	assert.ErrorIs(t, err, ErrSaleNotFound)
}

func TestShipmentDeliveryUpdatesSalesBook(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	clock := newStepClock()
	book := NewSalesBook(store, clock, logger.Nop())
	_, err := book.Add(ctx, model.NewSale{RecipientID: "u123", Quantity: 500, RecipientName: "Ana"})
	require.NoError(t, err)

	tracker := NewShipmentTracker(ctx, store, &stubDistributor{result: model.DistributionResult{Success: true, TransactionID: "T"}}, book, logger.Nop(), WithTrackerClock(clock))
	sales, err := book.List(ctx)
	require.NoError(t, err)
	n, err := tracker.ImportFromSales(ctx, sales)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = tracker.Process(ctx, tracker.List()[0].ID)
	require.NoError(t, err)

	sales, err = book.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryDelivered, sales[0].DeliveryStatus)
	assert.Equal(t, "system", sales[0].DeliveredBy)
}
