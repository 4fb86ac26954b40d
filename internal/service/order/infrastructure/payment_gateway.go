// internal/service/order/infrastructure/payment_gateway.go
package infrastructure

import (
	"context"
	"fmt"

	"tally/internal/pkg/httpclient"
	"tally/internal/service/order/domain/port"
)

// HTTPPaymentGateway 是外部支付网关的 HTTP 适配器。
// 同步应答只表示请求被受理, 真实结果经异步回调或轮询到达。
type HTTPPaymentGateway struct {
	client  *httpclient.Client
	baseURL string
}

func NewHTTPPaymentGateway(client *httpclient.Client, baseURL string) *HTTPPaymentGateway {
	return &HTTPPaymentGateway{client: client, baseURL: baseURL}
}

type paymentRequestBody struct {
	OrderID    string `json:"order_id"`
	UserID     int64  `json:"user_id"`
	Amount     int64  `json:"amount"`
	Instrument string `json:"instrument"`
}

type paymentRequestResponse struct {
	Accepted       bool   `json:"accepted"`
	TransactionRef string `json:"transaction_ref"`
	Reason         string `json:"reason"`
}

func (g *HTTPPaymentGateway) RequestPayment(ctx context.Context, req port.PaymentRequest) (*port.PaymentAck, error) {
	var resp paymentRequestResponse
	err := g.client.PostJSON(ctx, g.baseURL+"/payments", &paymentRequestBody{
		OrderID:    req.OrderID,
		UserID:     req.UserID,
		Amount:     req.Amount,
		Instrument: req.Instrument,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("payment gateway request: %w", err)
	}
	return &port.PaymentAck{
		Accepted:       resp.Accepted,
		TransactionRef: resp.TransactionRef,
		Reason:         resp.Reason,
	}, nil
}

type paymentStatusResponse struct {
	Status string `json:"status"`
}

func (g *HTTPPaymentGateway) QueryStatus(ctx context.Context, transactionRef string) (string, error) {
	var resp paymentStatusResponse
	err := g.client.GetJSON(ctx, g.baseURL+"/payments/"+transactionRef, &resp)
	if err != nil {
		return "", fmt.Errorf("payment gateway status query: %w", err)
	}
	return resp.Status, nil
}
