package reconcile

import (
	"encoding/json"
	"time"

	"github.com/dabbawala/ordersync/internal/model"
)

// handleAssigned appends a new order when the assignment targets this
// identity. Duplicate delivery of the same assignment is a no-op, including
// the alert: one record, one alert.
func (r *Reconciler) handleAssigned(payload json.RawMessage) {
	var w assignedWire
	if err := json.Unmarshal(payload, &w); err != nil {
		r.logger.Warn("malformed assignment payload", "error", err)
		return
	}
	if w.ID == "" {
		r.logger.Warn("assignment payload missing order id")
		return
	}

	r.mu.Lock()
	if r.identity == "" || w.DeliveryAgent != r.identity {
		// Assignment meant for somebody else.
		r.mu.Unlock()
		return
	}
	if findLocked(r.active, w.ID) >= 0 || (w.OrderNumber != "" && findLocked(r.active, w.OrderNumber) >= 0) {
		r.mu.Unlock()
		return
	}
	r.active = append(r.active, orderFromAssignment(w))
	r.mu.Unlock()

	r.logger.Info("order assigned", "order_id", w.ID, "order_number", w.OrderNumber)

	// Fire-and-forget: a broken alert service must not hold up the list.
	go r.alerter.AlertAssignment(Assignment{
		OrderID:      w.ID,
		OrderNumber:  w.OrderNumber,
		CustomerName: customerNameOrPlaceholder(w.CustomerName),
		AmountRupees: w.Amount,
	})
}

// handleUpdate merges only the fields present in the payload into the
// matching record. An update for an order no longer in any list (e.g. it
// raced an unassignment) is dropped: arrival order wins.
func (r *Reconciler) handleUpdate(payload json.RawMessage) {
	var w updateWire
	if err := json.Unmarshal(payload, &w); err != nil {
		r.logger.Warn("malformed update payload", "error", err)
		return
	}
	id := w.id()
	if id == "" {
		r.logger.Warn("update payload missing order id")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	matched := false

	if i := findLocked(r.active, id); i >= 0 {
		matched = true
		mergeUpdate(&r.active[i], w)
		if r.active[i].Status.IsTerminal() {
			r.scheduleActiveRemovalLocked(r.active[i].ID)
		}
	}

	if i := findLocked(r.pendingPayment, id); i >= 0 {
		matched = true
		mergeUpdate(&r.pendingPayment[i], w)
		// A cancelled order needs no payment; a delivered one stays until
		// payment_completed arrives.
		if r.pendingPayment[i].Status == model.StatusCancelled {
			r.schedulePendingRemovalLocked(r.pendingPayment[i].ID)
		}
	}

	if !matched {
		r.logger.Debug("update for unknown order dropped", "order_id", id)
	}
}

// handleUnassigned removes the order immediately, with no grace delay.
func (r *Reconciler) handleUnassigned(payload json.RawMessage) {
	var w unassignedWire
	if err := json.Unmarshal(payload, &w); err != nil {
		r.logger.Warn("malformed unassignment payload", "error", err)
		return
	}
	if w.ID == "" {
		return
	}

	r.mu.Lock()
	i := findLocked(r.active, w.ID)
	if i < 0 {
		r.mu.Unlock()
		return
	}
	removed := r.active[i]
	r.active = append(r.active[:i], r.active[i+1:]...)
	if t, ok := r.activeTimers[removed.ID]; ok {
		t.Stop()
		delete(r.activeTimers, removed.ID)
	}
	r.mu.Unlock()

	r.logger.Info("order unassigned", "order_id", removed.ID, "order_number", removed.OrderNumber)

	go r.alerter.NotifyUnassigned(removed.ID, removed.OrderNumber)
}

// handleNewPendingPayment appends to the pending-payment list.
func (r *Reconciler) handleNewPendingPayment(payload json.RawMessage) {
	var w assignedWire
	if err := json.Unmarshal(payload, &w); err != nil {
		r.logger.Warn("malformed pending payment payload", "error", err)
		return
	}
	if w.ID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if findLocked(r.pendingPayment, w.ID) >= 0 {
		return
	}
	r.pendingPayment = append(r.pendingPayment, orderFromAssignment(w))
}

// handlePaymentCompleted marks the order paid wherever it appears and
// retires it from the pending-payment list after the grace delay.
func (r *Reconciler) handlePaymentCompleted(payload json.RawMessage) {
	var w updateWire
	if err := json.Unmarshal(payload, &w); err != nil {
		r.logger.Warn("malformed payment payload", "error", err)
		return
	}
	id := w.id()
	if id == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if i := findLocked(r.active, id); i >= 0 {
		r.active[i].PaymentStatus = model.PaymentCompleted
	}
	if i := findLocked(r.pendingPayment, id); i >= 0 {
		r.pendingPayment[i].PaymentStatus = model.PaymentCompleted
		r.schedulePendingRemovalLocked(r.pendingPayment[i].ID)
	}
}

// orderFromAssignment builds a view record from an assignment payload,
// defaulting everything the event did not carry.
func orderFromAssignment(w assignedWire) model.Order {
	o := model.Order{
		ID:            w.ID,
		OrderNumber:   w.OrderNumber,
		Status:        model.OrderStatus(w.Status),
		PaymentStatus: model.PaymentStatus(w.PaymentStatus),
		PaymentMethod: model.PaymentMethod(w.PaymentMethod),
		DeliveryAgent: w.DeliveryAgent,
		Customer:      model.Customer{Name: customerNameOrPlaceholder(w.CustomerName)},
		Financials:    model.Financials{TotalRupees: w.Amount},
	}
	if o.Status == "" {
		o.Status = model.StatusPending
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = model.PaymentPending
	}
	return o
}

func customerNameOrPlaceholder(name string) string {
	if name == "" {
		return model.PlaceholderCustomerName
	}
	return name
}

// mergeUpdate applies only the fields the payload carried.
func mergeUpdate(o *model.Order, w updateWire) {
	if w.Status != "" {
		o.Status = model.OrderStatus(w.Status)
	}
	if w.PaymentStatus != "" {
		o.PaymentStatus = model.PaymentStatus(w.PaymentStatus)
	}
	if w.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, w.Timestamp); err == nil {
			o.UpdatedAt = ts
		}
	}
}
