package notifier

import (
	"fmt"

	"github.com/ibeckermayer/boardjanitor/internal/config"
	"github.com/ibeckermayer/boardjanitor/internal/notifier/providers"
	"github.com/ibeckermayer/boardjanitor/internal/report"
)

// Notifier mails run reports to moderators
type Notifier struct {
	sender Sender
	to     []string
}

// Sender defines the interface for email sending
type Sender interface {
	Send(to []string, subject, body string) error
}

// New creates a new notifier with the given sender
func New(sender Sender, to []string) *Notifier {
	return &Notifier{sender: sender, to: to}
}

// NewFromConfig creates a notifier based on configuration
func NewFromConfig(cfg config.NotifyConfig) (*Notifier, error) {
	var sender Sender

	switch cfg.Provider {
	case "smtp":
		sender = providers.NewSMTPSender(
			cfg.SMTPHost,
			cfg.SMTPPort,
			cfg.SMTPUser,
			cfg.SMTPPass,
			cfg.FromAddr,
		)
	default:
		return nil, fmt.Errorf("unknown email provider: %s", cfg.Provider)
	}

	return New(sender, cfg.ToAddrs), nil
}

// SendReport mails a rendered report
func (n *Notifier) SendReport(r *report.Report) error {
	return n.sender.Send(n.to, "[boardjanitor] "+r.Title, r.Body)
}
