package mailer

import "context"

// Mailer abstracts the external mail transport. Mocking this interface in
// tests gives full control over transport behaviour without real sends.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}
