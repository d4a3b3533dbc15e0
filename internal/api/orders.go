package api

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/dabbawala/ordersync/internal/model"
)

// orderWire is the JSON shape the order API returns.
type orderWire struct {
	ID            string `json:"_id"`
	OrderNumber   string `json:"orderNumber"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
	PaymentMethod string `json:"paymentMethod"`
	Customer      *struct {
		Name    string `json:"name"`
		Phone   string `json:"phone"`
		Address string `json:"address"`
	} `json:"customer"`
	Items []struct {
		Name     string `json:"name"`
		Quantity int    `json:"quantity"`
		Price    int64  `json:"price"`
	} `json:"items"`
	Subtotal      int64  `json:"subtotal"`
	GST           int64  `json:"gst"`
	DeliveryFee   int64  `json:"deliveryFee"`
	Total         int64  `json:"total"`
	DeliveryAgent string `json:"deliveryAgent"`
	UpdatedAt     string `json:"updatedAt"`
}

type ordersResponse struct {
	Orders []orderWire `json:"orders"`
}

// ToModel converts a wire order into the local projection, defaulting every
// field the server may omit.
func (w orderWire) ToModel() model.Order {
	o := model.Order{
		ID:            w.ID,
		OrderNumber:   w.OrderNumber,
		Status:        model.OrderStatus(w.Status),
		PaymentStatus: model.PaymentStatus(w.PaymentStatus),
		PaymentMethod: model.PaymentMethod(w.PaymentMethod),
		DeliveryAgent: w.DeliveryAgent,
		Financials: model.Financials{
			SubtotalRupees:    w.Subtotal,
			GSTRupees:         w.GST,
			DeliveryFeeRupees: w.DeliveryFee,
			TotalRupees:       w.Total,
		},
	}

	if o.Status == "" {
		o.Status = model.StatusPending
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = model.PaymentPending
	}

	if w.Customer != nil {
		o.Customer = model.Customer{
			Name:    w.Customer.Name,
			Phone:   w.Customer.Phone,
			Address: w.Customer.Address,
		}
	}
	if o.Customer.Name == "" {
		o.Customer.Name = model.PlaceholderCustomerName
	}

	for _, it := range w.Items {
		o.Items = append(o.Items, model.Item{
			Name:        it.Name,
			Quantity:    it.Quantity,
			PriceRupees: it.Price,
		})
	}

	if ts, err := time.Parse(time.RFC3339, w.UpdatedAt); err == nil {
		o.UpdatedAt = ts
	}

	return o
}

// GetAssignedOrders fetches the active orders assigned to a delivery agent.
func (c *Client) GetAssignedOrders(ctx context.Context, agentID string) ([]model.Order, error) {
	query := url.Values{}
	query.Set("agent", agentID)

	var resp ordersResponse
	if err := c.get(ctx, "/orders/assigned", query, &resp); err != nil {
		return nil, fmt.Errorf("get assigned orders: %w", err)
	}

	orders := make([]model.Order, 0, len(resp.Orders))
	for _, w := range resp.Orders {
		orders = append(orders, w.ToModel())
	}
	return orders, nil
}

// GetPendingPaymentOrders fetches orders awaiting payment.
func (c *Client) GetPendingPaymentOrders(ctx context.Context) ([]model.Order, error) {
	var resp ordersResponse
	if err := c.get(ctx, "/orders/pending-payment", nil, &resp); err != nil {
		return nil, fmt.Errorf("get pending payment orders: %w", err)
	}

	orders := make([]model.Order, 0, len(resp.Orders))
	for _, w := range resp.Orders {
		orders = append(orders, w.ToModel())
	}
	return orders, nil
}

// UpdateOrderStatus originates a status transition. The server event that
// results is what callers should treat as confirmation.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) error {
	body := map[string]string{"status": string(status)}
	if err := c.put(ctx, "/orders/"+url.PathEscape(orderID)+"/status", body); err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}

// UpdatePaymentStatus marks an order's payment state.
func (c *Client) UpdatePaymentStatus(ctx context.Context, orderID string, status model.PaymentStatus) error {
	body := map[string]string{"paymentStatus": string(status)}
	if err := c.put(ctx, "/orders/"+url.PathEscape(orderID)+"/payment", body); err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	return nil
}
