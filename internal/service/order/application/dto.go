// internal/service/order/application/dto.go
package application

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/domain/port"
)

// CheckoutItemDTO 是客户端提交的购物车行
type CheckoutItemDTO struct {
	ProductID string  `json:"productId"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

type ShippingInfoDTO struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// CheckoutRequest 是 POST /checkout 的请求体
type CheckoutRequest struct {
	PaymentMethodNonce string            `json:"paymentMethodNonce"`
	Amount             float64           `json:"amount"`
	Items              []CheckoutItemDTO `json:"items"`
	ShippingInfo       ShippingInfoDTO   `json:"shippingInfo"`
	CouponID           *uint64           `json:"couponId"`
	CouponCode         string            `json:"couponCode"`
	DiscountAmount     *float64          `json:"discountAmount"`
}

type TransactionDTO struct {
	ID     string  `json:"id"`
	Status string  `json:"status"`
	Amount float64 `json:"amount"`
}

type StockErrorDTO struct {
	ProductID string `json:"productId"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// CheckoutResponse 成功时带 orderId，失败时带 error 和可选的 stockErrors
type CheckoutResponse struct {
	Success     bool            `json:"success"`
	OrderID     string          `json:"orderId,omitempty"`
	Transaction *TransactionDTO `json:"transaction,omitempty"`
	Error       string          `json:"error,omitempty"`
	StockErrors []StockErrorDTO `json:"stockErrors,omitempty"`
}

type OrderItemDTO struct {
	ProductID string  `json:"productId,omitempty"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// OrderResponse 是订单的对外表示
type OrderResponse struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId,omitempty"`
	Status         string          `json:"status"`
	TotalAmount    float64         `json:"totalAmount"`
	CouponID       *uint64         `json:"couponId,omitempty"`
	CouponCode     string          `json:"couponCode,omitempty"`
	DiscountAmount *float64        `json:"discountAmount,omitempty"`
	TransactionID  string          `json:"transactionId,omitempty"`
	ShippingInfo   ShippingInfoDTO `json:"shippingInfo"`
	Items          []OrderItemDTO  `json:"items"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// UpdateStatusRequest 是 PATCH /admin/orders/{id}/status 的请求体
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

func (r *CheckoutRequest) cart() []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, domain.OrderItem{
			ProductID: strings.TrimSpace(it.ProductID),
			Title:     strings.TrimSpace(it.Title),
			Price:     decimal.NewFromFloat(it.Price).Round(2),
			Quantity:  it.Quantity,
		})
	}
	return items
}

func (r *CheckoutRequest) shipping() domain.ShippingInfo {
	s := r.ShippingInfo
	return domain.ShippingInfo{
		Name:       strings.TrimSpace(s.Name),
		Email:      strings.TrimSpace(s.Email),
		Phone:      strings.TrimSpace(s.Phone),
		Address:    strings.TrimSpace(s.Address),
		City:       strings.TrimSpace(s.City),
		PostalCode: strings.TrimSpace(s.PostalCode),
		Country:    strings.TrimSpace(s.Country),
	}
}

func toTransactionDTO(tx *port.Transaction) *TransactionDTO {
	if tx == nil {
		return nil
	}
	return &TransactionDTO{ID: tx.ID, Status: tx.Status, Amount: tx.Amount.InexactFloat64()}
}

// ToStockErrorDTOs 供 HTTP 层把 StockError 展开
func ToStockErrorDTOs(err *domain.StockError) []StockErrorDTO {
	out := make([]StockErrorDTO, 0, len(err.Issues))
	for _, is := range err.Issues {
		out = append(out, StockErrorDTO{
			ProductID: is.ProductID,
			Title:     is.Title,
			Message:   is.Message,
			Requested: is.Requested,
			Available: is.Available,
		})
	}
	return out
}

func toOrderResponse(o *domain.Order) *OrderResponse {
	resp := &OrderResponse{
		ID:            o.ID,
		UserID:        o.UserID,
		Status:        string(o.Status),
		TotalAmount:   o.TotalAmount.InexactFloat64(),
		CouponID:      o.CouponID,
		CouponCode:    o.CouponCode,
		TransactionID: o.TransactionID,
		ShippingInfo: ShippingInfoDTO{
			Name:       o.Shipping.Name,
			Email:      o.Shipping.Email,
			Phone:      o.Shipping.Phone,
			Address:    o.Shipping.Address,
			City:       o.Shipping.City,
			PostalCode: o.Shipping.PostalCode,
			Country:    o.Shipping.Country,
		},
		Items:     make([]OrderItemDTO, 0, len(o.Items)),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
	if o.DiscountAmount != nil {
		d := o.DiscountAmount.InexactFloat64()
		resp.DiscountAmount = &d
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, OrderItemDTO{
			ProductID: it.ProductID,
			Title:     it.Title,
			Price:     it.Price.InexactFloat64(),
			Quantity:  it.Quantity,
		})
	}
	return resp
}
