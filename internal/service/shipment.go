package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"reseller-hub/internal/model"
	"reseller-hub/internal/repository"
	"reseller-hub/pkg/logger"
)

const deliveryActorSystem = "system"

// Distributor delivers units for a shipment. FulfillmentClient implements it.
type Distributor interface {
	Distribute(ctx context.Context, req model.DistributionRequest) (model.DistributionResult, error)
}

// ShipmentObserver receives shipment state changes
type ShipmentObserver interface {
	OnShipmentEvent(ctx context.Context, event model.ShipmentEvent) error
}

// allowedTransitions lists the status changes UpdateStatus accepts besides
// same-status patches
var allowedTransitions = map[model.ShipmentStatus][]model.ShipmentStatus{
	model.ShipmentPending:    {model.ShipmentProcessing},
	model.ShipmentProcessing: {model.ShipmentSent, model.ShipmentFailed},
	model.ShipmentSent:       {model.ShipmentDelivered},
	model.ShipmentFailed:     {model.ShipmentProcessing},
}

func canTransition(from, to model.ShipmentStatus) bool {
	if from == to {
		return true
	}
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TrackerOption configures a ShipmentTracker
type TrackerOption func(*ShipmentTracker)

// WithTrackerClock sets the time source for timestamps and the confirmation delay
func WithTrackerClock(c Clock) TrackerOption {
	return func(t *ShipmentTracker) { t.clock = c }
}

// WithConfirmationDelay sets the wait between sent and delivered
func WithConfirmationDelay(d time.Duration) TrackerOption {
	return func(t *ShipmentTracker) { t.confirmationDelay = d }
}

// WithObservers registers shipment observers
func WithObservers(obs ...ShipmentObserver) TrackerOption {
	return func(t *ShipmentTracker) { t.observers = append(t.observers, obs...) }
}

// ShipmentTracker owns the shipment list and drives each record through
// pending, processing, sent, delivered or failed.
type ShipmentTracker struct {
	store             repository.Store
	distributor       Distributor
	sales             SalesCollaborator
	observers         []ShipmentObserver
	clock             Clock
	confirmationDelay time.Duration
	validate          *validator.Validate
	logger            *logger.Logger

	mu        sync.Mutex
	shipments []model.ShipmentRecord
}

// NewShipmentTracker creates a tracker and loads the persisted list
func NewShipmentTracker(ctx context.Context, store repository.Store, distributor Distributor, sales SalesCollaborator, log *logger.Logger, opts ...TrackerOption) *ShipmentTracker {
	t := &ShipmentTracker{
		store:             store,
		distributor:       distributor,
		sales:             sales,
		confirmationDelay: 2 * time.Second,
		validate:          validator.New(),
		logger:            log.WithComponent("shipments"),
		shipments:         []model.ShipmentRecord{},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.clock = orDefaultClock(t.clock)

	var stored []model.ShipmentRecord
	err := repository.GetJSON(ctx, store, repository.KeyShipments, &stored)
	switch {
	case err == nil:
		t.shipments = stored
	case !errors.Is(err, repository.ErrNotFound):
		t.logger.WithError(err).Warn("Failed to load shipments, starting empty")
	}
	return t
}

// Create adds a pending shipment at the head of the list
func (t *ShipmentTracker) Create(ctx context.Context, in model.NewShipment) (model.ShipmentRecord, error) {
	if err := t.validate.Struct(in); err != nil {
		return model.ShipmentRecord{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	record := t.newRecord(in)
	if err := t.persist(ctx, append([]model.ShipmentRecord{record}, t.shipments...)); err != nil {
		return model.ShipmentRecord{}, err
	}
	t.logger.WithShipmentID(record.ID).Info("Shipment created",
		"recipient", record.RecipientID,
		"quantity", record.Quantity,
	)
	return record, nil
}

func (t *ShipmentTracker) newRecord(in model.NewShipment) model.ShipmentRecord {
	return model.ShipmentRecord{
		ID:            "envio_" + uuid.NewString(),
		RecipientID:   in.RecipientID,
		Quantity:      in.Quantity,
		RecipientName: in.RecipientName,
		Status:        model.ShipmentPending,
		CreatedAt:     t.clock.Now(),
		Notes:         in.Notes,
	}
}

// List returns every shipment, newest first
func (t *ShipmentTracker) List() []model.ShipmentRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.ShipmentRecord, len(t.shipments))
	copy(out, t.shipments)
	return out
}

// Get returns one shipment
func (t *ShipmentTracker) Get(id string) (model.ShipmentRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexOf(id)
	if i < 0 {
		return model.ShipmentRecord{}, ErrShipmentNotFound
	}
	return t.shipments[i], nil
}

// Stats counts shipments per status and sums their quantities
func (t *ShipmentTracker) Stats() model.ShipmentStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := model.ShipmentStats{Total: len(t.shipments)}
	for _, s := range t.shipments {
		switch s.Status {
		case model.ShipmentPending:
			stats.Pending++
		case model.ShipmentProcessing:
			stats.Processing++
		case model.ShipmentSent:
			stats.Sent++
		case model.ShipmentDelivered:
			stats.Delivered++
		case model.ShipmentFailed:
			stats.Failed++
		}
		stats.TotalQuantity += int64(s.Quantity)
	}
	return stats
}

// UpdateStatus moves a shipment to status and applies patch. sentAt and
// deliveredAt are set the first time the record reaches those states and
// never overwritten.
func (t *ShipmentTracker) UpdateStatus(ctx context.Context, id string, status model.ShipmentStatus, patch model.ShipmentPatch) (model.ShipmentRecord, error) {
	return t.transition(ctx, id, status, patch, "", "")
}

// Submit moves a pending or failed shipment to processing and counts the attempt
func (t *ShipmentTracker) Submit(ctx context.Context, id string) (model.ShipmentRecord, error) {
	t.mu.Lock()
	i := t.indexOf(id)
	if i < 0 {
		t.mu.Unlock()
		return model.ShipmentRecord{}, ErrShipmentNotFound
	}
	current := t.shipments[i]
	t.mu.Unlock()

	switch current.Status {
	case model.ShipmentPending, model.ShipmentFailed:
	case model.ShipmentProcessing:
		return model.ShipmentRecord{}, ErrShipmentBusy
	default:
		return model.ShipmentRecord{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, model.ShipmentProcessing)
	}

	return t.transitionFrom(ctx, id, current.Status, model.ShipmentProcessing, model.ShipmentPatch{}, "", "")
}

// Process submits a shipment, asks the distributor to deliver it and
// records the outcome. A successful delivery is confirmed after the
// confirmation delay. Once the distributor has answered, the outcome is
// recorded even if ctx is cancelled.
func (t *ShipmentTracker) Process(ctx context.Context, id string) (model.ProcessOutcome, error) {
	record, err := t.Submit(ctx, id)
	if err != nil {
		return model.ProcessOutcome{}, err
	}
	log := t.logger.WithShipmentID(id).WithRecipient(record.RecipientID)

	res, distErr := t.distributor.Distribute(ctx, model.DistributionRequest{
		RecipientID:   record.RecipientID,
		Quantity:      record.Quantity,
		Message:       record.Notes,
		RecipientName: record.RecipientName,
	})
	finishCtx := context.WithoutCancel(ctx)
	if distErr != nil || !res.Success {
		reason := res.Message
		if distErr != nil {
			reason = distErr.Error()
		}
		notes := record.Notes + "\nErro: " + reason
		failed, err := t.transition(finishCtx, id, model.ShipmentFailed, model.ShipmentPatch{Notes: &notes}, reason, res.Provenance)
		if err != nil {
			return model.ProcessOutcome{Distribution: res}, err
		}
		log.Warn("Shipment failed", "reason", reason, "provenance", res.Provenance)
		return model.ProcessOutcome{Shipment: failed, Distribution: res}, distErr
	}

	notes := record.Notes + "\nTXN: " + res.TransactionID
	sent, err := t.transition(finishCtx, id, model.ShipmentSent, model.ShipmentPatch{Notes: &notes}, res.Message, res.Provenance)
	if err != nil {
		return model.ProcessOutcome{Distribution: res}, err
	}
	log.Info("Shipment sent", "transaction_id", res.TransactionID, "provenance", res.Provenance)

	if err := sleep(finishCtx, t.clock, t.confirmationDelay); err != nil {
		return model.ProcessOutcome{Shipment: sent, Distribution: res}, err
	}

	delivered, err := t.transition(finishCtx, id, model.ShipmentDelivered, model.ShipmentPatch{}, res.Message, res.Provenance)
	if err != nil {
		return model.ProcessOutcome{Shipment: sent, Distribution: res}, err
	}
	log.Info("Shipment delivered")
	return model.ProcessOutcome{Shipment: delivered, Distribution: res}, nil
}

// ImportFromSales creates a shipment for every sale pending delivery whose
// recipient has no shipment yet. It returns the number created.
func (t *ShipmentTracker) ImportFromSales(ctx context.Context, sales []model.Sale) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	known := make(map[string]bool, len(t.shipments))
	for _, s := range t.shipments {
		known[s.RecipientID] = true
	}

	var created []model.ShipmentRecord
	for _, sale := range sales {
		if sale.DeliveryStatus != model.DeliveryPending || sale.RecipientID == "" || known[sale.RecipientID] {
			continue
		}
		created = append(created, t.newRecord(model.NewShipment{
			RecipientID:   sale.RecipientID,
			Quantity:      sale.Quantity,
			RecipientName: sale.RecipientName,
			Notes:         fmt.Sprintf("Venda #%s - %s", sale.ID, sale.Date.Format("02/01/2006")),
		}))
	}
	if len(created) == 0 {
		return 0, nil
	}

	// newest first, matching Create
	next := make([]model.ShipmentRecord, 0, len(created)+len(t.shipments))
	for i := len(created) - 1; i >= 0; i-- {
		next = append(next, created[i])
	}
	next = append(next, t.shipments...)
	if err := t.persist(ctx, next); err != nil {
		return 0, err
	}
	t.logger.Info("Imported sales for shipment", "count", len(created))
	return len(created), nil
}

func (t *ShipmentTracker) transition(ctx context.Context, id string, to model.ShipmentStatus, patch model.ShipmentPatch, message string, provenance model.Provenance) (model.ShipmentRecord, error) {
	return t.transitionFrom(ctx, id, "", to, patch, message, provenance)
}

// transitionFrom applies a status change under the lock. A non-empty from
// requires the record to still be in that status.
func (t *ShipmentTracker) transitionFrom(ctx context.Context, id string, from, to model.ShipmentStatus, patch model.ShipmentPatch, message string, provenance model.Provenance) (model.ShipmentRecord, error) {
	if !to.Valid() {
		return model.ShipmentRecord{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}

	t.mu.Lock()
	i := t.indexOf(id)
	if i < 0 {
		t.mu.Unlock()
		return model.ShipmentRecord{}, ErrShipmentNotFound
	}
	before := t.shipments[i]
	if from != "" && before.Status != from {
		t.mu.Unlock()
		if before.Status == model.ShipmentProcessing {
			return model.ShipmentRecord{}, ErrShipmentBusy
		}
		return model.ShipmentRecord{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, before.Status, to)
	}
	if !canTransition(before.Status, to) {
		t.mu.Unlock()
		return model.ShipmentRecord{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, before.Status, to)
	}

	after := before
	after.Status = to
	if patch.Notes != nil {
		after.Notes = *patch.Notes
	}
	if to == model.ShipmentProcessing && before.Status != model.ShipmentProcessing {
		after.Attempts++
	}
	now := t.clock.Now()
	if to == model.ShipmentSent && after.SentAt == nil {
		after.SentAt = &now
	}
	if to == model.ShipmentDelivered && after.DeliveredAt == nil {
		after.DeliveredAt = &now
	}

	next := make([]model.ShipmentRecord, len(t.shipments))
	copy(next, t.shipments)
	next[i] = after
	if err := t.persist(ctx, next); err != nil {
		t.mu.Unlock()
		return model.ShipmentRecord{}, err
	}
	t.mu.Unlock()

	if before.Status != to {
		t.afterTransition(ctx, after, message, provenance)
	}
	return after, nil
}

// afterTransition runs the side effects of entering a new status. Their
// failures are logged and never undo the transition.
func (t *ShipmentTracker) afterTransition(ctx context.Context, record model.ShipmentRecord, message string, provenance model.Provenance) {
	var event string
	switch record.Status {
	case model.ShipmentSent:
		event = model.EventShipmentSent
	case model.ShipmentFailed:
		event = model.EventShipmentFailed
	case model.ShipmentDelivered:
		event = model.EventShipmentDelivered
		if t.sales != nil {
			if err := t.sales.MarkDeliveryStatus(ctx, record.RecipientID, model.DeliveryDelivered, deliveryActorSystem); err != nil {
				t.logger.WithShipmentID(record.ID).WithError(err).Error("Failed to update sale delivery status")
			}
		}
	default:
		return
	}

	ev := model.ShipmentEvent{
		Event:      event,
		Shipment:   record,
		Message:    message,
		Provenance: provenance,
		Timestamp:  t.clock.Now(),
	}
	for _, obs := range t.observers {
		if err := obs.OnShipmentEvent(ctx, ev); err != nil {
			t.logger.WithShipmentID(record.ID).WithError(err).Warn("Shipment observer failed", "event", event)
		}
	}
}

func (t *ShipmentTracker) indexOf(id string) int {
	for i := range t.shipments {
		if t.shipments[i].ID == id {
			return i
		}
	}
	return -1
}

// persist writes next and adopts it as the current list. Callers hold t.mu.
func (t *ShipmentTracker) persist(ctx context.Context, next []model.ShipmentRecord) error {
	if err := repository.SetJSON(ctx, t.store, repository.KeyShipments, next); err != nil {
		t.logger.WithError(err).Error("Failed to persist shipments")
		return &PersistenceError{Key: repository.KeyShipments, Err: err}
	}
	t.shipments = next
	return nil
}
