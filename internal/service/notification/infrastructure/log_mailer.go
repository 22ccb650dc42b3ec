package infrastructure

import (
	"context"

	"storefront/internal/pkg/logger"
	"storefront/internal/service/notification/domain"
)

// LogMailer 只把邮件写到日志，没有配置邮件服务时使用
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, email *domain.Email) error {
	logger.Ctx(ctx).Info().
		Str("to", email.To).
		Str("subject", email.Subject).
		Str("body", email.Body).
		Msg("email (log mailer)")
	return nil
}
