// internal/service/order/domain/event.go
package domain

import "time"

// OrderConfirmationItem 是确认邮件中的一行
type OrderConfirmationItem struct {
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

// OrderConfirmation 是订单创建成功后发布的事件，由通知 worker 消费并发送邮件
type OrderConfirmation struct {
	EventID        string                  `json:"eventId"`
	TraceID        string                  `json:"traceId,omitempty"`
	OrderID        string                  `json:"orderId"`
	UserID         string                  `json:"userId,omitempty"`
	CustomerName   string                  `json:"customerName"`
	Email          string                  `json:"email"`
	TotalAmount    string                  `json:"totalAmount"`
	DiscountAmount string                  `json:"discountAmount,omitempty"`
	CouponCode     string                  `json:"couponCode,omitempty"`
	TransactionID  string                  `json:"transactionId,omitempty"`
	Items          []OrderConfirmationItem `json:"items"`
	PlacedAt       time.Time               `json:"placedAt"`
}

// NewOrderConfirmation 从已落库的订单构造通知事件
func NewOrderConfirmation(eventID, traceID string, o *Order) *OrderConfirmation {
	evt := &OrderConfirmation{
		EventID:       eventID,
		TraceID:       traceID,
		OrderID:       o.ID,
		UserID:        o.UserID,
		CustomerName:  o.Shipping.Name,
		Email:         o.Shipping.Email,
		TotalAmount:   o.TotalAmount.StringFixed(2),
		CouponCode:    o.CouponCode,
		TransactionID: o.TransactionID,
		PlacedAt:      o.CreatedAt,
		Items:         make([]OrderConfirmationItem, 0, len(o.Items)),
	}
	if o.DiscountAmount != nil {
		evt.DiscountAmount = o.DiscountAmount.StringFixed(2)
	}
	for _, it := range o.Items {
		evt.Items = append(evt.Items, OrderConfirmationItem{
			Title:    it.Title,
			Quantity: it.Quantity,
			Price:    it.Price.StringFixed(2),
		})
	}
	return evt
}
