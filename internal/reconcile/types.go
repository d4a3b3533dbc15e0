package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dabbawala/ordersync/internal/model"
)

// Inbound event names.
const (
	EventNewOrderAssigned    = "new_order_assigned"
	EventAssignedOrderUpdate = "assigned_order_update"
	EventOrderUnassigned     = "order_unassigned"
	EventNewPendingPayment   = "new_pending_payment"
	EventPaymentCompleted    = "payment_completed"
)

// EventOrderStatusUpdate is the outbound client-originated status broadcast,
// sent optimistically alongside the REST call for low-latency fan-out to
// other roles.
const EventOrderStatusUpdate = "order_status_update"

// Errors
var (
	ErrUnknownOrder       = errors.New("unknown order")
	ErrNoManualTransition = errors.New("no manual transition from current status")
	ErrPaymentRequired    = errors.New("payment must be collected before delivery")
)

// Config holds reconciler settings.
type Config struct {
	// RemovalDelay is how long a terminal order stays visible in a list
	// before removal, so the UI can show the final status.
	RemovalDelay time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{RemovalDelay: 2 * time.Second}
}

// Assignment describes a new order assignment for the alert service.
type Assignment struct {
	OrderID      string
	OrderNumber  string
	CustomerName string
	AmountRupees int64
}

// Alerter produces attention-getting local notifications. Implementations
// are fire-and-forget; failures must never block list updates.
type Alerter interface {
	// AlertAssignment fires the high-priority new-assignment alert.
	AlertAssignment(a Assignment)

	// NotifyUnassigned surfaces a non-blocking unassignment notice.
	NotifyUnassigned(orderID, orderNumber string)
}

// PaymentCollector is the external payment-collection flow invoked when a
// Delivered transition is blocked on unpaid cash-on-delivery. It performs
// its own REST update; the resulting socket event flows back normally.
type PaymentCollector interface {
	Collect(ctx context.Context, order model.Order)
}

// OrderAPI is the REST boundary used for full resync and for originating
// transitions.
type OrderAPI interface {
	GetAssignedOrders(ctx context.Context, agentID string) ([]model.Order, error)
	GetPendingPaymentOrders(ctx context.Context) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) error
}

// emitter is the outbound slice of the event bus.
type emitter interface {
	Emit(event string, payload any)
}

// subscriber is the inbound slice of the event bus.
type subscriber interface {
	On(event string, h func(payload json.RawMessage)) (off func())
}

// StatusBroadcast is the outbound status change payload.
type StatusBroadcast struct {
	EventID       string            `json:"eventId"`
	OrderID       string            `json:"orderId"`
	Status        model.OrderStatus `json:"status"`
	UpdatedBy     string            `json:"updatedBy"`
	DeliveryAgent string            `json:"deliveryAgent"`
	Timestamp     time.Time         `json:"timestamp"`
}

// Wire types for inbound event payloads. Every field is optional: payloads
// are untrusted and may be partial, so application code defaults anything
// missing instead of failing.

// assignedWire is the payload of new_order_assigned and new_pending_payment.
type assignedWire struct {
	ID            string `json:"_id"`
	OrderNumber   string `json:"orderNumber"`
	CustomerName  string `json:"customerName"`
	Amount        int64  `json:"amount"`
	DeliveryAgent string `json:"deliveryAgent"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
	PaymentMethod string `json:"paymentMethod"`
}

// updateWire is the payload of assigned_order_update and payment_completed.
// Depending on the event source the order id arrives as _id or orderId.
type updateWire struct {
	ID            string `json:"_id"`
	OrderID       string `json:"orderId"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
	Timestamp     string `json:"timestamp"`
}

// id returns whichever identifier the payload carried.
func (w updateWire) id() string {
	if w.ID != "" {
		return w.ID
	}
	return w.OrderID
}

// unassignedWire is the payload of order_unassigned.
type unassignedWire struct {
	ID          string `json:"_id"`
	OrderNumber string `json:"orderNumber"`
}
