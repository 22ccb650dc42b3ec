package adapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"storefront/internal/pkg/config"
	"storefront/internal/pkg/httpclient"
	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/domain/port"
)

// PaymentHTTPAdapter 实现了 port.PaymentGateway，调用网关的 REST 接口
type PaymentHTTPAdapter struct {
	client     *httpclient.Client
	endpoint   string
	merchantID string
	authHeader string
	timeout    time.Duration
}

func NewPaymentHTTPAdapter(client *httpclient.Client, cfg config.PaymentConfig) *PaymentHTTPAdapter {
	a := &PaymentHTTPAdapter{
		client:     client,
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		merchantID: cfg.MerchantID,
		timeout:    cfg.Timeout,
	}
	if a.timeout <= 0 {
		a.timeout = 15 * time.Second
	}
	if cfg.PublicKey != "" && cfg.PrivateKey != "" {
		a.authHeader = "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.PublicKey+":"+cfg.PrivateKey))
	}
	return a
}

type saleRequest struct {
	Transaction saleTransaction `json:"transaction"`
}

type saleTransaction struct {
	Type               string      `json:"type"`
	Amount             string      `json:"amount"`
	PaymentMethodNonce string      `json:"paymentMethodNonce"`
	OrderID            string      `json:"orderId"`
	Options            saleOptions `json:"options"`
}

type saleOptions struct {
	SubmitForSettlement bool `json:"submitForSettlement"`
}

type gatewayResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Transaction *struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Amount string `json:"amount"`
	} `json:"transaction"`
}

func (a *PaymentHTTPAdapter) configured() bool {
	return a.endpoint != "" && a.merchantID != "" && a.authHeader != ""
}

func (a *PaymentHTTPAdapter) headers() http.Header {
	h := http.Header{}
	h.Set("Authorization", a.authHeader)
	h.Set("Accept", "application/json")
	return h
}

// Sale 发起立即结算的扣款。网关明确拒绝时返回 Declined 的 PaymentError，其它失败视为网关不可用。
func (a *PaymentHTTPAdapter) Sale(ctx context.Context, orderID string, amount decimal.Decimal, nonce string) (*port.Transaction, error) {
	if !a.configured() {
		return nil, &domain.PaymentError{Message: "Payment gateway is not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req := saleRequest{Transaction: saleTransaction{
		Type:               "sale",
		Amount:             amount.StringFixed(2),
		PaymentMethodNonce: nonce,
		OrderID:            orderID,
		Options:            saleOptions{SubmitForSettlement: true},
	}}
	url := fmt.Sprintf("%s/merchants/%s/transactions", a.endpoint, a.merchantID)

	var resp gatewayResponse
	if err := a.client.PostJSON(ctx, url, a.headers(), req, &resp); err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnprocessableEntity {
			// 422 表示网关校验或拒绝，响应体里带有原因
			var declined gatewayResponse
			if json.Unmarshal(statusErr.Body, &declined) == nil && declined.Message != "" {
				return nil, &domain.PaymentError{Message: declined.Message, Declined: true, Err: err}
			}
			return nil, &domain.PaymentError{Message: "Payment was declined", Declined: true, Err: err}
		}
		return nil, &domain.PaymentError{Message: "Payment gateway unavailable", Err: err}
	}
	if !resp.Success || resp.Transaction == nil {
		msg := resp.Message
		if msg == "" {
			msg = "Payment was declined"
		}
		return nil, &domain.PaymentError{Message: msg, Declined: true}
	}

	tx := &port.Transaction{ID: resp.Transaction.ID, Status: resp.Transaction.Status, Amount: amount}
	if parsed, err := decimal.NewFromString(resp.Transaction.Amount); err == nil {
		tx.Amount = parsed
	}
	return tx, nil
}

// Void 撤销一笔尚未结算完成的交易
func (a *PaymentHTTPAdapter) Void(ctx context.Context, transactionID string) error {
	if !a.configured() {
		return errors.New("payment gateway is not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/merchants/%s/transactions/%s/void", a.endpoint, a.merchantID, transactionID)
	var resp gatewayResponse
	if err := a.client.PostJSON(ctx, url, a.headers(), struct{}{}, &resp); err != nil {
		return errors.Wrapf(err, "void transaction %s", transactionID)
	}
	if !resp.Success {
		return errors.Errorf("void transaction %s rejected: %s", transactionID, resp.Message)
	}
	return nil
}
