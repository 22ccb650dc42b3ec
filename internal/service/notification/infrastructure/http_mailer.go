package infrastructure

import (
	"context"
	"net/http"

	"storefront/internal/pkg/httpclient"
	"storefront/internal/service/notification/domain"
)

// HTTPMailer 通过邮件服务商的 JSON API 发送邮件
type HTTPMailer struct {
	client   *httpclient.Client
	endpoint string
	apiKey   string
	from     string
}

func NewHTTPMailer(client *httpclient.Client, endpoint, apiKey, from string) *HTTPMailer {
	return &HTTPMailer{client: client, endpoint: endpoint, apiKey: apiKey, from: from}
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

func (m *HTTPMailer) Send(ctx context.Context, email *domain.Email) error {
	headers := http.Header{}
	if m.apiKey != "" {
		headers.Set("Authorization", "Bearer "+m.apiKey)
	}
	return m.client.PostJSON(ctx, m.endpoint, headers, sendRequest{
		From:    m.from,
		To:      email.To,
		Subject: email.Subject,
		Text:    email.Body,
	}, nil)
}
