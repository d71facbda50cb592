// Package sender delivers rendered reports by SMTP.
package sender

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"golang.org/x/time/rate"

	"qdbreport/internal/config"
	"qdbreport/pkg/contracts/domain"
)

// mailClient is the part of *mail.Client the sender uses.
type mailClient interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTP sends one message per report through a relay, throttled to the
// configured rate.
type SMTP struct {
	from    string
	closer  string
	client  mailClient
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a sender for cfg. The dev environment relays through a
// provider that needs STARTTLS and authentication; test and prod use the
// campus relay, which is IP restricted and takes neither.
func New(cfg config.MailConfig, environment string, logger *slog.Logger) (*SMTP, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("mail host is not configured")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("mail from address is not configured")
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
	}
	if cfg.HELO != "" {
		opts = append(opts, mail.WithHELO(cfg.HELO))
	}

	if environment == config.EnvDev {
		username := cfg.Username
		if username == "" {
			username = cfg.From
		}
		opts = append(opts,
			mail.WithTLSPolicy(mail.TLSMandatory),
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(username),
			mail.WithPassword(cfg.Password),
		)
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create mail client: %w", err)
	}

	return newSMTP(cfg, client, logger), nil
}

func newSMTP(cfg config.MailConfig, client mailClient, logger *slog.Logger) *SMTP {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if cfg.RatePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RatePerMinute))
	}
	return &SMTP{
		from:    cfg.From,
		closer:  cfg.Closer,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With(slog.String("component", "sender")),
	}
}

// Subject returns the subject line for a report.
func Subject(s domain.ReportSummary) string {
	return fmt.Sprintf("%s %d Financial Report: %s", s.MonthName, s.Year, s.Unit)
}

// Body returns the plain-text message body: the accounts covered, one per
// line, followed by closer.
func Body(s domain.ReportSummary, closer string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Please find attached the general ledger summary report for %s %d for %s, which covers the following accounts:",
		s.MonthName, s.Year, s.Unit)
	for _, acct := range s.Accounts {
		b.WriteString("\n")
		b.WriteString(acct)
	}
	b.WriteString(closer)
	return b.String()
}

// buildMessage assembles the message with filePath attached.
func (s *SMTP) buildMessage(summary domain.ReportSummary, filePath string, recipients []string) (*mail.Msg, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("report attachment: %w", err)
	}

	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", s.from, err)
	}
	if err := m.To(recipients...); err != nil {
		return nil, fmt.Errorf("invalid recipient list: %w", err)
	}
	m.Subject(Subject(summary))
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, Body(summary, s.closer))
	m.AttachFile(filePath, mail.WithFileName(filepath.Base(filePath)))
	return m, nil
}

// SendReport mails the report at filePath to recipients.
func (s *SMTP) SendReport(ctx context.Context, summary domain.ReportSummary, filePath string, recipients []string) error {
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients")
	}

	m, err := s.buildMessage(summary, filePath, recipients)
	if err != nil {
		return err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for send slot: %w", err)
	}

	start := time.Now()
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send report mail: %w", err)
	}

	s.logger.InfoContext(ctx, "Report mailed",
		slog.String("unit", summary.Unit),
		slog.String("file", filepath.Base(filePath)),
		slog.Int("recipients", len(recipients)),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}
