package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dabbawala/ordersync/internal/model"
)

// AdvanceStatus originates the next legal status transition for an assigned
// order. The local record is NOT mutated: the server event that results from
// the REST update is the source of truth, so a failed call leaves state
// consistent with no rollback needed.
//
// A Delivered transition on an unpaid cash-on-delivery order is refused and
// redirected into the payment-collection flow; this is a hard precondition
// of the state machine, not a warning.
func (r *Reconciler) AdvanceStatus(ctx context.Context, orderID string) (model.OrderStatus, error) {
	r.mu.Lock()
	i := findLocked(r.active, orderID)
	if i < 0 {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	order := r.active[i].Clone()
	identity := r.identity
	r.mu.Unlock()

	next, ok := order.Status.NextManualStatus()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoManualTransition, order.Status)
	}

	if next == model.StatusDelivered &&
		order.PaymentMethod.RequiresCollection() &&
		order.PaymentStatus != model.PaymentCompleted {
		r.logger.Info("delivery blocked on payment collection",
			"order_id", order.ID,
			"payment_method", order.PaymentMethod,
		)
		r.collector.Collect(ctx, order)
		return "", ErrPaymentRequired
	}

	if err := r.api.UpdateOrderStatus(ctx, order.ID, next); err != nil {
		return "", fmt.Errorf("confirm transition: %w", err)
	}

	// Optimistic peer broadcast; the REST-confirmed server event remains
	// authoritative for our own state.
	r.emit.Emit(EventOrderStatusUpdate, StatusBroadcast{
		EventID:       uuid.NewString(),
		OrderID:       order.ID,
		Status:        next,
		UpdatedBy:     identity,
		DeliveryAgent: order.DeliveryAgent,
		Timestamp:     time.Now().UTC(),
	})

	return next, nil
}
