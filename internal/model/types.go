package model

import "time"

// Role identifies which broadcast groups a session belongs to.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleDelivery Role = "delivery"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleDelivery, RoleAdmin:
		return true
	}
	return false
}

// Credentials is a read-only snapshot from the credential store.
type Credentials struct {
	Token  string
	UserID string
	Role   Role
}

// OrderStatus is the server-authoritative order lifecycle status.
type OrderStatus string

const (
	StatusPending        OrderStatus = "Pending"
	StatusPreparing      OrderStatus = "Preparing"
	StatusOutForDelivery OrderStatus = "Out for delivery"
	StatusDelivered      OrderStatus = "Delivered"
	StatusCancelled      OrderStatus = "Cancelled"
)

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// NextManualStatus returns the only status an operator may advance to from s.
// Statuses outside the table offer no manual transition.
func (s OrderStatus) NextManualStatus() (OrderStatus, bool) {
	switch s {
	case StatusPreparing:
		return StatusOutForDelivery, true
	case StatusOutForDelivery:
		return StatusDelivered, true
	}
	return "", false
}

// PaymentStatus tracks whether an order has been paid for.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentCompleted PaymentStatus = "Completed"
)

// PaymentMethod is how the customer chose to pay.
type PaymentMethod string

const (
	PaymentCOD  PaymentMethod = "Cash on Delivery"
	PaymentUPI  PaymentMethod = "UPI"
	PaymentCard PaymentMethod = "Card"
)

// RequiresCollection reports whether the method needs an in-person
// collection step before the order can be marked Delivered.
func (m PaymentMethod) RequiresCollection() bool {
	return m == PaymentCOD
}

// PlaceholderCustomerName is substituted when an event payload arrives
// without customer details.
const PlaceholderCustomerName = "Customer"

// Customer is the order's recipient as known to this client.
type Customer struct {
	Name    string
	Phone   string
	Address string
}

// Item is a single line item on an order.
type Item struct {
	Name        string
	Quantity    int
	PriceRupees int64
}

// Financials is the priced breakdown of an order.
type Financials struct {
	SubtotalRupees    int64
	GSTRupees         int64
	DeliveryFeeRupees int64
	TotalRupees       int64
}

// Order is the local projection of a server-side order. It is owned by the
// reconciler; everything handed to other components is a copy.
type Order struct {
	ID            string // server document id
	OrderNumber   string // human-facing number
	Status        OrderStatus
	PaymentStatus PaymentStatus
	PaymentMethod PaymentMethod
	Customer      Customer
	Items         []Item
	Financials    Financials
	DeliveryAgent string // user id of the assigned agent, empty if unassigned
	UpdatedAt     time.Time
}

// Matches reports whether id refers to this order by either identifier.
func (o *Order) Matches(id string) bool {
	if id == "" {
		return false
	}
	return o.ID == id || o.OrderNumber == id
}

// Clone returns a deep copy safe to hand outside the reconciler.
func (o Order) Clone() Order {
	out := o
	if o.Items != nil {
		out.Items = make([]Item, len(o.Items))
		copy(out.Items, o.Items)
	}
	return out
}
