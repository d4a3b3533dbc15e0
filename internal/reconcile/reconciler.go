package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dabbawala/ordersync/internal/model"
)

// Reconciler merges server events into local order view-state.
type Reconciler struct {
	cfg       Config
	api       OrderAPI
	alerter   Alerter
	collector PaymentCollector
	emit      emitter
	logger    *slog.Logger

	mu             sync.Mutex
	identity       string // delivery agent user id, empty until login
	active         []model.Order
	pendingPayment []model.Order

	// Scheduled grace-delay removals, keyed by order document id.
	activeTimers  map[string]*time.Timer
	pendingTimers map[string]*time.Timer

	offs []func()
}

// NewReconciler creates a new Order State Reconciler.
func NewReconciler(cfg Config, api OrderAPI, alerter Alerter, collector PaymentCollector, em emitter, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		cfg:           cfg,
		api:           api,
		alerter:       alerter,
		collector:     collector,
		emit:          em,
		logger:        logger.With("component", "reconcile"),
		activeTimers:  make(map[string]*time.Timer),
		pendingTimers: make(map[string]*time.Timer),
	}
}

// Register subscribes the reconciler's event handlers on the bus.
func (r *Reconciler) Register(b subscriber) {
	r.offs = append(r.offs,
		b.On(EventNewOrderAssigned, r.handleAssigned),
		b.On(EventAssignedOrderUpdate, r.handleUpdate),
		b.On(EventOrderUnassigned, r.handleUnassigned),
		b.On(EventNewPendingPayment, r.handleNewPendingPayment),
		b.On(EventPaymentCompleted, r.handlePaymentCompleted),
	)
}

// SetIdentity binds the delivery identity assignment events are filtered on.
func (r *Reconciler) SetIdentity(userID string) {
	r.mu.Lock()
	r.identity = userID
	r.mu.Unlock()
}

// Clear drops all view-state and the bound identity. Called on logout.
func (r *Reconciler) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.identity = ""
	r.active = nil
	r.pendingPayment = nil
	r.cancelTimersLocked()
}

// Close unsubscribes from the bus and cancels pending removals.
func (r *Reconciler) Close() {
	for _, off := range r.offs {
		off()
	}
	r.offs = nil

	r.mu.Lock()
	r.cancelTimersLocked()
	r.mu.Unlock()
}

// Resync replaces both lists with the authoritative REST state. Run after
// every reconnect-and-rejoin cycle to correct events missed while offline.
func (r *Reconciler) Resync(ctx context.Context) error {
	r.mu.Lock()
	identity := r.identity
	r.mu.Unlock()

	var active []model.Order
	if identity != "" {
		var err error
		active, err = r.api.GetAssignedOrders(ctx, identity)
		if err != nil {
			return fmt.Errorf("resync assigned orders: %w", err)
		}
	}

	pending, err := r.api.GetPendingPaymentOrders(ctx)
	if err != nil {
		return fmt.Errorf("resync pending payment orders: %w", err)
	}

	r.mu.Lock()
	r.active = active
	r.pendingPayment = pending
	r.cancelTimersLocked()
	r.mu.Unlock()

	r.logger.Info("resynced order lists",
		"active", len(active),
		"pending_payment", len(pending),
	)
	return nil
}

// ActiveOrders returns a read-only snapshot of the assigned-order list.
func (r *Reconciler) ActiveOrders() []model.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneOrders(r.active)
}

// PendingPaymentOrders returns a read-only snapshot of the pending-payment list.
func (r *Reconciler) PendingPaymentOrders() []model.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneOrders(r.pendingPayment)
}

func cloneOrders(orders []model.Order) []model.Order {
	out := make([]model.Order, len(orders))
	for i, o := range orders {
		out[i] = o.Clone()
	}
	return out
}

// findLocked returns the index of the order matching id in list, or -1.
func findLocked(list []model.Order, id string) int {
	for i := range list {
		if list[i].Matches(id) {
			return i
		}
	}
	return -1
}

// scheduleActiveRemovalLocked arranges delayed removal from the active list.
// Already-scheduled removals are left alone so duplicate terminal events
// do not reset the grace window.
func (r *Reconciler) scheduleActiveRemovalLocked(id string) {
	if _, ok := r.activeTimers[id]; ok {
		return
	}
	r.activeTimers[id] = time.AfterFunc(r.cfg.RemovalDelay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.activeTimers, id)
		if i := findLocked(r.active, id); i >= 0 {
			r.active = append(r.active[:i], r.active[i+1:]...)
		}
	})
}

// schedulePendingRemovalLocked arranges delayed removal from the
// pending-payment list.
func (r *Reconciler) schedulePendingRemovalLocked(id string) {
	if _, ok := r.pendingTimers[id]; ok {
		return
	}
	r.pendingTimers[id] = time.AfterFunc(r.cfg.RemovalDelay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.pendingTimers, id)
		if i := findLocked(r.pendingPayment, id); i >= 0 {
			r.pendingPayment = append(r.pendingPayment[:i], r.pendingPayment[i+1:]...)
		}
	})
}

// cancelTimersLocked stops every scheduled removal.
func (r *Reconciler) cancelTimersLocked() {
	for id, t := range r.activeTimers {
		t.Stop()
		delete(r.activeTimers, id)
	}
	for id, t := range r.pendingTimers {
		t.Stop()
		delete(r.pendingTimers, id)
	}
}
