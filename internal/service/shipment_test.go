package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reseller-hub/internal/model"
	"reseller-hub/internal/repository"
	"reseller-hub/pkg/logger"
)

type deliveryCall struct {
	recipientID, status, actor string
}

type recordingSales struct {
	mu    sync.Mutex
	calls []deliveryCall
}

func (r *recordingSales) MarkDeliveryStatus(_ context.Context, recipientID, status, actor string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, deliveryCall{recipientID, status, actor})
	return nil
}

type recordingObserver struct {
	mu     sync.Mutex
	events []model.ShipmentEvent
	err    error
}

func (r *recordingObserver) OnShipmentEvent(_ context.Context, ev model.ShipmentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingObserver) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Event
	}
	return out
}

// seqSource yields 0 first, so the first simulated draw always succeeds
type seqSource struct{ n uint64 }

func (s *seqSource) Uint64() uint64 {
	v := s.n
	s.n += 0x9E3779B97F4A7C15
	return v
}

type trackerFixture struct {
	tracker  *ShipmentTracker
	store    repository.Store
	clock    *stepClock
	sales    *recordingSales
	observer *recordingObserver
}

func newTrackerFixture(t *testing.T, dist Distributor) *trackerFixture {
	t.Helper()
	f := &trackerFixture{
		store:    repository.NewMemoryStore(),
		clock:    newStepClock(),
		sales:    &recordingSales{},
		observer: &recordingObserver{},
	}
	f.tracker = NewShipmentTracker(context.Background(), f.store, dist, f.sales, logger.Nop(),
		WithTrackerClock(f.clock),
		WithConfirmationDelay(2*time.Second),
		WithObservers(f.observer),
	)
	return f
}

func newShipment(id string) model.NewShipment {
	return model.NewShipment{RecipientID: id, Quantity: 500, RecipientName: "Ana"}
}

func TestCreateShipment(t *testing.T) {
	ctx := context.Background()
	f := newTrackerFixture(t, &stubDistributor{})

	first, err := f.tracker.Create(ctx, newShipment("u1"))
	require.NoError(t, err)
	second, err := f.tracker.Create(ctx, newShipment("u2"))
	require.NoError(t, err)

	assert.Equal(t, model.ShipmentPending, first.Status)
	assert.Zero(t, first.Attempts)
	assert.Contains(t, first.ID, "envio_")
	assert.NotEqual(t, first.ID, second.ID)

	list := f.tracker.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	reloaded := NewShipmentTracker(ctx, f.store, &stubDistributor{}, nil, logger.Nop())
	assert.Equal(t, list, reloaded.List())
}

func TestCreateShipmentValidation(t *testing.T) {
	f := newTrackerFixture(t, &stubDistributor{})
	_, err := f.tracker.Create(context.Background(), model.NewShipment{RecipientID: "u1", Quantity: 0, RecipientName: "Ana"})
	assert.Error(t, err)
	assert.Empty(t, f.tracker.List())
}

func TestSentAtSetOnce(t *testing.T) {
	ctx := context.Background()
	f := newTrackerFixture(t, &stubDistributor{})
	rec, err := f.tracker.Create(ctx, newShipment("u1"))
	require.NoError(t, err)

	_, err = f.tracker.UpdateStatus(ctx, rec.ID, model.ShipmentProcessing, model.ShipmentPatch{})
	require.NoError(t, err)
	sent, err := f.tracker.UpdateStatus(ctx, rec.ID, model.ShipmentSent, model.ShipmentPatch{})
	require.NoError(t, err)
	require.NotNil(t, sent.SentAt)
	firstSentAt := *sent.SentAt

	f.clock.Advance(time.Minute)
	notes := "re-sent"
	again, err := f.tracker.UpdateStatus(ctx, rec.ID, model.ShipmentSent, model.ShipmentPatch{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, firstSentAt, *again.SentAt)
	assert.Equal(t, "re-sent", again.Notes)
	assert.Equal(t, []string{model.EventShipmentSent}, f.observer.names())
}

func TestDeliveredAtSetOnceAndSaleMarkedOnce(t *testing.T) {
	ctx := context.Background()
	f := newTrackerFixture(t, &stubDistributor{})
	rec, err := f.tracker.Create(ctx, newShipment("u1"))
	require.NoError(t, err)

	for _, s := range []model.ShipmentStatus{model.ShipmentProcessing, model.ShipmentSent, model.ShipmentDelivered} {
		_, err = f.tracker.UpdateStatus(ctx, rec.ID, s, model.ShipmentPatch{})
		require.NoError(t, err)
	}
	got, err := f.tracker.Get(rec.ID)
	require.NoError(t, err)
	deliveredAt := *got.DeliveredAt

	f.clock.Advance(time.Hour)
	again, err := f.tracker.UpdateStatus(ctx, rec.ID, model.ShipmentDelivered, model.ShipmentPatch{})
	require.NoError(t, err)
	assert.Equal(t, deliveredAt, *again.DeliveredAt)
	assert.Equal(t, []deliveryCall{{"u1", "entregue", "system"}}, f.sales.calls)
}

func TestInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	f := newTrackerFixture(t, &stubDistributor{})
	rec, err := f.tracker.Create(ctx, newShipment("u1"))
	require.NoError(t, err)

	_, err = f.tracker.UpdateStatus(ctx, rec.ID, model.ShipmentSent, model.ShipmentPatch{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.tracker.UpdateStatus(ctx, rec.ID, "lost", model.ShipmentPatch{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.tracker.UpdateStatus(ctx, "missing", model.ShipmentProcessing, model.ShipmentPatch{})
	assert.ErrorIs(t, err, ErrShipmentNotFound)

	got, _ := f.tracker.Get(rec.ID)
	assert.Equal(t, model.ShipmentPending, got.Status)
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	f := newTrackerFixture(t, &stubDistributor{})
	rec, err := f.tracker.Create(ctx, newShipment("u1"))
	require.NoError(t, err)

	submitted, err := f.tracker.Submit(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ShipmentProcessing, submitted.Status)
	assert.Equal(t, 1, submitted.Attempts)

	_, err = f.tracker.Submit(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrShipmentBusy)
	_, err = f.tracker.Process(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrShipmentBusy)
}

func TestProcessFailureAppendsReason(t *testing.T) {
	ctx := context.Background()
	dist := &stubDistributor{result: model.DistributionResult{
		Success:    false,
		Message:    "[SIMULADO] Falha: Limite temporário excedido",
		Error:      "SIMULATION_ERROR",
		Provenance: model.ProvenanceSimulated,
	}}
	f := newTrackerFixture(t, dist)
	rec, err := f.tracker.Create(ctx, model.NewShipment{RecipientID: "u1", Quantity: 5, RecipientName: "Ana", Notes: "first"})
	require.NoError(t, err)

	out, err := f.tracker.Process(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ShipmentFailed, out.Shipment.Status)
	assert.Equal(t, "first\nErro: [SIMULADO] Falha: Limite temporário excedido", out.Shipment.Notes)
	assert.Nil(t, out.Shipment.SentAt)
	assert.Empty(t, f.sales.calls)
	assert.Equal(t, []string{model.EventShipmentFailed}, f.observer.names())

	dist.result = model.DistributionResult{Success: true, TransactionID: "T1", Provenance: model.ProvenanceReal}
	out, err = f.tracker.Process(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ShipmentDelivered, out.Shipment.Status)
	assert.Equal(t, 2, out.Shipment.Attempts)
}

func TestProcessWithoutConnection(t *testing.T) {
	ctx := context.Background()
	fc, _ := newTestFulfillment(t, repository.NewMemoryStore(), true)
	f := newTrackerFixture(t, fc)
	rec, err := f.tracker.Create(ctx, newShipment("u1"))
	require.NoError(t, err)

	out, err := f.tracker.Process(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrConnectionRequired)
	assert.Equal(t, model.ShipmentFailed, out.Shipment.Status)
	assert.Contains(t, out.Shipment.Notes, "Erro: "+ErrConnectionRequired.Error())
}

func TestProcessEndToEnd(t *testing.T) {
	ctx := context.Background()
	fc, _ := newTestFulfillment(t, repository.NewMemoryStore(), true, WithRand(rand.New(&seqSource{})))
	_, err := fc.Connect(ctx)
	require.NoError(t, err)
	require.True(t, fc.IsSimulationMode(ctx))

	f := newTrackerFixture(t, fc)
	rec, err := f.tracker.Create(ctx, model.NewShipment{RecipientID: "u123", Quantity: 500, RecipientName: "Ana"})
	require.NoError(t, err)
	assert.Zero(t, rec.Attempts)

	out, err := f.tracker.Process(ctx, rec.ID)
	require.NoError(t, err)

	assert.True(t, out.Distribution.Success)
	assert.Equal(t, model.ProvenanceSimulated, out.Distribution.Provenance)
	got := out.Shipment
	assert.Equal(t, model.ShipmentDelivered, got.Status)
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.SentAt)
	require.NotNil(t, got.DeliveredAt)
	assert.Equal(t, 2*time.Second, got.DeliveredAt.Sub(*got.SentAt))
	assert.Contains(t, got.Notes, "\nTXN: SIM_")

	assert.Equal(t, []deliveryCall{{"u123", "entregue", "system"}}, f.sales.calls)
	assert.Equal(t, []string{model.EventShipmentSent, model.EventShipmentDelivered}, f.observer.names())
}

// cancelingDistributor cancels the caller's context while the request is in
// flight. With succeed unset it reports the cancellation as its error.
type cancelingDistributor struct {
	cancel  context.CancelFunc
	succeed bool
}

func (d *cancelingDistributor) Distribute(ctx context.Context, _ model.DistributionRequest) (model.DistributionResult, error) {
	d.cancel()
	if d.succeed {
		return model.DistributionResult{Success: true, TransactionID: "T9", Provenance: model.ProvenanceReal}, nil
	}
	return model.DistributionResult{}, ctx.Err()
}

func TestProcessCancelledMidDistributionRecordsFailure(t *testing.T) {
	store := ctxStore{repository.NewMemoryStore()}
	dist := &cancelingDistributor{}
	tracker := NewShipmentTracker(context.Background(), store, dist, &recordingSales{}, logger.Nop(),
		WithTrackerClock(newStepClock()))
	rec, err := tracker.Create(context.Background(), newShipment("u1"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	dist.cancel = cancel
	out, err := tracker.Process(ctx, rec.ID)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.ShipmentFailed, out.Shipment.Status)

	reloaded := NewShipmentTracker(context.Background(), store, &stubDistributor{}, nil, logger.Nop())
	got, err := reloaded.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ShipmentFailed, got.Status)

	// a retry is accepted instead of reporting the shipment busy
	dist.cancel = func() {}
	dist.succeed = true
	out, err = tracker.Process(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ShipmentDelivered, out.Shipment.Status)
	assert.Equal(t, 2, out.Shipment.Attempts)
}

func TestProcessCancelledAfterSendStillConfirms(t *testing.T) {
	store := ctxStore{repository.NewMemoryStore()}
	sales := &recordingSales{}
	ctx, cancel := context.WithCancel(context.Background())
	tracker := NewShipmentTracker(context.Background(), store, &cancelingDistributor{cancel: cancel, succeed: true}, sales, logger.Nop(),
		WithTrackerClock(newStepClock()),
		WithConfirmationDelay(2*time.Second),
	)
	rec, err := tracker.Create(context.Background(), newShipment("u1"))
	require.NoError(t, err)

	out, err := tracker.Process(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ShipmentDelivered, out.Shipment.Status)
	assert.Contains(t, out.Shipment.Notes, "TXN: T9")
	assert.Equal(t, []deliveryCall{{"u1", "entregue", "system"}}, sales.calls)

	got, err := tracker.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ShipmentDelivered, got.Status)
}

func TestAttemptsCountEveryEntryIntoProcessing(t *testing.T) {
	ctx := context.Background()
	f := newTrackerFixture(t, &stubDistributor{})
	rec, err := f.tracker.Create(ctx, newShipment("u1"))
	require.NoError(t, err)

	got, err := f.tracker.UpdateStatus(ctx, rec.ID, model.ShipmentProcessing, model.ShipmentPatch{})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)

	notes := "still working"
	got, err = f.tracker.UpdateStatus(ctx, rec.ID, model.ShipmentProcessing, model.ShipmentPatch{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)

	_, err = f.tracker.UpdateStatus(ctx, rec.ID, model.ShipmentFailed, model.ShipmentPatch{})
	require.NoError(t, err)
	got, err = f.tracker.UpdateStatus(ctx, rec.ID, model.ShipmentProcessing, model.ShipmentPatch{})
	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempts)

	_, err = f.tracker.UpdateStatus(ctx, rec.ID, model.ShipmentFailed, model.ShipmentPatch{})
	require.NoError(t, err)
	got, err = f.tracker.Submit(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Attempts)
}

func TestObserverFailureDoesNotFailTransition(t *testing.T) {
	ctx := context.Background()
	f := newTrackerFixture(t, &stubDistributor{result: model.DistributionResult{Success: true, TransactionID: "T1"}})
	f.observer.err = errors.New("callback down")
	rec, err := f.tracker.Create(ctx, newShipment("u1"))
	require.NoError(t, err)

	out, err := f.tracker.Process(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ShipmentDelivered, out.Shipment.Status)
}

func TestImportFromSales(t *testing.T) {
	ctx := context.Background()
	f := newTrackerFixture(t, &stubDistributor{})
	_, err := f.tracker.Create(ctx, newShipment("existing"))
	require.NoError(t, err)

	date := time.Date(2024, 3, 7, 15, 0, 0, 0, time.UTC)
	sales := []model.Sale{
		{ID: "s1", RecipientID: "r1", Quantity: 100, RecipientName: "Bia", Date: date, DeliveryStatus: model.DeliveryPending},
		{ID: "s2", RecipientID: "r2", Quantity: 200, RecipientName: "Caio", Date: date, DeliveryStatus: model.DeliveryPending},
		{ID: "s3", RecipientID: "existing", Quantity: 50, RecipientName: "Dani", Date: date, DeliveryStatus: model.DeliveryPending},
		{ID: "s4", RecipientID: "r4", Quantity: 10, RecipientName: "Edu", Date: date, DeliveryStatus: model.DeliveryDelivered},
		{ID: "s5", RecipientID: "", Quantity: 10, RecipientName: "Fabi", Date: date, DeliveryStatus: model.DeliveryPending},
	}

	n, err := f.tracker.ImportFromSales(ctx, sales)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list := f.tracker.List()
	require.Len(t, list, 3)
	assert.Equal(t, "r2", list[0].RecipientID)
	assert.Equal(t, "r1", list[1].RecipientID)
	assert.Equal(t, "Venda #s1 - 07/03/2024", list[1].Notes)
	assert.Equal(t, "Bia", list[1].RecipientName)

	n, err = f.tracker.ImportFromSales(ctx, sales)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.tracker.List(), 3)
}

func TestShipmentStats(t *testing.T) {
	ctx := context.Background()
	f := newTrackerFixture(t, &stubDistributor{result: model.DistributionResult{Success: true, TransactionID: "T"}})
	a, _ := f.tracker.Create(ctx, model.NewShipment{RecipientID: "a", Quantity: 100, RecipientName: "A"})
	_, _ = f.tracker.Create(ctx, model.NewShipment{RecipientID: "b", Quantity: 250, RecipientName: "B"})
	_, err := f.tracker.Process(ctx, a.ID)
	require.NoError(t, err)

	stats := f.tracker.Stats()
	assert.Equal(t, model.ShipmentStats{Total: 2, Pending: 1, Delivered: 1, TotalQuantity: 350}, stats)
}

func TestShipmentPersistenceFailure(t *testing.T) {
	store := &failingStore{Store: repository.NewMemoryStore(), failKey: repository.KeyShipments}
	tracker := NewShipmentTracker(context.Background(), store, &stubDistributor{}, nil, logger.Nop())

	_, err := tracker.Create(context.Background(), newShipment("u1"))
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, repository.KeyShipments, perr.Key)
	assert.Empty(t, tracker.List())
}
