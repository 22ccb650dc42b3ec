package domain

import "context"

// Mailer 是发送邮件的出站端口
type Mailer interface {
	Send(ctx context.Context, email *Email) error
}
