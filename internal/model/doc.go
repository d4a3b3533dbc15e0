// Package model defines shared data types for the order sync layer.
//
// Conventions:
//   - Money: integer rupees (GST and delivery fee broken out in Financials)
//   - Timestamps: time.Time in UTC, zero value when the server omits them
//   - IDs: Order.ID is the server-side document id, Order.OrderNumber is the
//     human-facing number printed on receipts; events may carry either
package model
