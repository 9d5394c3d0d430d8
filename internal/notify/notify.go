// Package notify delivers outbound email and SMS. The core services depend on
// the two single-method interfaces here; delivery failures are expected to be
// caught and logged by callers, never propagated out of a batch.
package notify

// EmailSender delivers a plain-text email.
type EmailSender interface {
	SendEmail(to, subject, body string) error
}

// SMSSender delivers a short text message.
type SMSSender interface {
	SendSMS(to, body string) error
}

// Dispatcher bundles both channels for components that can use either, like
// the rule engine choosing per-rule between email and SMS.
type Dispatcher interface {
	EmailSender
	SMSSender
}

// multi is the standard Dispatcher: SMTP for email, an HTTP gateway for SMS.
type multi struct {
	*SMTPMailer
	*SMSGateway
}

// NewDispatcher combines a mailer and an SMS gateway into one Dispatcher.
func NewDispatcher(mailer *SMTPMailer, sms *SMSGateway) Dispatcher {
	return &multi{SMTPMailer: mailer, SMSGateway: sms}
}
