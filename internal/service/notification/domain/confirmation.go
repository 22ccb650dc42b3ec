// internal/service/notification/domain/confirmation.go
package domain

import (
	"bytes"
	"strings"
	"text/template"
	"time"

	"github.com/pkg/errors"
)

// ErrMalformedMessage 表示消息无法解析或缺少必要字段，这类消息直接跳过
var ErrMalformedMessage = errors.New("malformed order confirmation")

// ConfirmationItem 是确认邮件中的一行
type ConfirmationItem struct {
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

// OrderConfirmation 是 order 服务发布的订单确认事件
type OrderConfirmation struct {
	EventID        string             `json:"eventId"`
	TraceID        string             `json:"traceId,omitempty"`
	OrderID        string             `json:"orderId"`
	UserID         string             `json:"userId,omitempty"`
	CustomerName   string             `json:"customerName"`
	Email          string             `json:"email"`
	TotalAmount    string             `json:"totalAmount"`
	DiscountAmount string             `json:"discountAmount,omitempty"`
	CouponCode     string             `json:"couponCode,omitempty"`
	TransactionID  string             `json:"transactionId,omitempty"`
	Items          []ConfirmationItem `json:"items"`
	PlacedAt       time.Time          `json:"placedAt"`
}

func (c *OrderConfirmation) Validate() error {
	if c.OrderID == "" {
		return errors.Wrap(ErrMalformedMessage, "orderId is required")
	}
	if !strings.Contains(c.Email, "@") {
		return errors.Wrapf(ErrMalformedMessage, "order %s has no valid email", c.OrderID)
	}
	return nil
}

// Email 是一封待发送的邮件
type Email struct {
	To      string
	Subject string
	Body    string
}

var confirmationTmpl = template.Must(template.New("confirmation").Parse(
	`Hi {{.CustomerName}},

Thank you for your order {{.OrderID}}.

{{range .Items}}  {{.Quantity}} x {{.Title}} @ {{.Price}}
{{end}}{{if .DiscountAmount}}
Discount{{if .CouponCode}} ({{.CouponCode}}){{end}}: -{{.DiscountAmount}}{{end}}
Total: {{.TotalAmount}}
{{if .TransactionID}}Payment reference: {{.TransactionID}}
{{end}}
We will let you know when your order ships.
`))

// RenderConfirmation 生成纯文本确认邮件
func RenderConfirmation(c *OrderConfirmation) (*Email, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := confirmationTmpl.Execute(&buf, c); err != nil {
		return nil, errors.Wrap(err, "render confirmation email")
	}
	return &Email{
		To:      c.Email,
		Subject: "Order confirmation #" + c.OrderID,
		Body:    buf.String(),
	}, nil
}
