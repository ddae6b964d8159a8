package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/saravananbs/genchargephase2/internal/logger"
)

// Sink delivers one event over a user-facing channel.
type Sink interface {
	Deliver(ctx context.Context, e Event) error
}

// LogSink is the default delivery channel when no SMTP relay is
// configured. Events land in the structured log and nowhere else.
type LogSink struct{}

func (LogSink) Deliver(_ context.Context, e Event) error {
	logger.Info("notification delivered",
		"type", e.Type,
		"user_id", e.UserID,
		"service_type", e.ServiceType,
		"amount_paise", e.AmountPaise,
		"detail", e.Detail,
	)
	return nil
}

// EmailSink mails transaction receipts through a plain SMTP relay.
type EmailSink struct {
	From     string
	FromName string
	Host     string
	Port     string
	User     string
	Pass     string
}

func (s EmailSink) Deliver(_ context.Context, e Event) error {
	if e.Email == "" {
		return nil
	}

	subject, body := composeMail(e)

	message := fmt.Sprintf("From: %s <%s>\r\n", s.FromName, s.From)
	message += fmt.Sprintf("To: %s\r\n", e.Email)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += "\r\n" + body

	var auth smtp.Auth
	if s.User != "" && s.Pass != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}

	addr := s.Host + ":" + s.Port
	return smtp.SendMail(addr, auth, s.From, []string{e.Email}, []byte(message))
}

func composeMail(e Event) (subject, body string) {
	rupees := float64(e.AmountPaise) / 100

	switch e.Type {
	case EventTransactionSuccess:
		subject = "Payment Successful"
		body = fmt.Sprintf(`Hi %s,

Your %s of Rs %.2f was successful.

%s

- GenCharge Team`, e.Name, e.ServiceType, rupees, e.Detail)
	case EventTransactionFailed:
		subject = "Payment Failed"
		body = fmt.Sprintf(`Hi %s,

Your %s of Rs %.2f could not be completed.

Reason: %s

- GenCharge Team`, e.Name, e.ServiceType, rupees, e.Detail)
	case EventAutopayCharged:
		subject = "Autopay Successful"
		body = fmt.Sprintf(`Hi %s,

Your autopay recharge of Rs %.2f for %s went through.

- GenCharge Team`, e.Name, rupees, e.PhoneNumber)
	case EventAutopayFailed:
		subject = "Autopay Failed"
		body = fmt.Sprintf(`Hi %s,

Your autopay recharge of Rs %.2f for %s failed.

Reason: %s

Please recharge manually to stay connected.

- GenCharge Team`, e.Name, rupees, e.PhoneNumber, e.Detail)
	case EventReferralReward:
		subject = "Referral Reward Credited"
		body = fmt.Sprintf(`Hi %s,

Rs %.2f was credited to your wallet as a referral reward.

- GenCharge Team`, e.Name, rupees)
	default:
		subject = "GenCharge Update"
		body = fmt.Sprintf("Hi %s,\n\n%s\n\n- GenCharge Team", e.Name, e.Detail)
	}

	return subject, body
}
