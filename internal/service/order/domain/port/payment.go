package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// Transaction 是支付网关返回的交易
type Transaction struct {
	ID     string
	Status string
	Amount decimal.Decimal
}

// PaymentGateway 是支付网关的出站端口。
// 失败时返回 *domain.PaymentError。
type PaymentGateway interface {
	// Sale 发起一笔立即结算的扣款
	Sale(ctx context.Context, orderID string, amount decimal.Decimal, nonce string) (*Transaction, error)

	// Void 是 Sale 的补偿操作
	Void(ctx context.Context, transactionID string) error
}
