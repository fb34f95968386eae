package services

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"text/template"

	"localclaw/internal/models"

	"go.uber.org/zap"
)

// Notifier delivers payment receipts to tenants
type Notifier interface {
	SendInvoice(ctx context.Context, invoice models.Invoice) error
}

// SMTPOptions configures the mail relay
type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type smtpNotifier struct {
	opts     SMTPOptions
	sendMail sendMailFunc
	logger   *zap.Logger
}

type logNotifier struct {
	logger *zap.Logger
}

var invoiceTemplate = template.Must(template.New("invoice").Parse(
	"From: LocalClaw Billing <{{.From}}>\r\n" +
		"To: {{.Invoice.Email}}\r\n" +
		"Subject: Invoice: {{.Invoice.PlanName}} Activated\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Hello {{.Invoice.Name}},\r\n" +
		"\r\n" +
		"Your plan has been upgraded. Deployment limits are removed.\r\n" +
		"\r\n" +
		"Plan:           {{.Invoice.PlanName}}\r\n" +
		"Amount paid:    {{.Invoice.Currency}} {{printf \"%.2f\" .Invoice.Amount}}\r\n" +
		"Transaction ID: {{.Invoice.TransactionID}}\r\n" +
		"Date:           {{.Invoice.IssuedAt.Format \"2 January 2006\"}}\r\n",
))

// NewNotifier returns an SMTP notifier when a relay host is configured and a
// logging notifier otherwise.
func NewNotifier(opts SMTPOptions, logger *zap.Logger) Notifier {
	if opts.Host == "" {
		return &logNotifier{logger: logger}
	}
	return &smtpNotifier{opts: opts, sendMail: smtp.SendMail, logger: logger}
}

// RenderInvoice renders the plain-text receipt message including headers
func RenderInvoice(from string, invoice models.Invoice) ([]byte, error) {
	var buf bytes.Buffer
	err := invoiceTemplate.Execute(&buf, struct {
		From    string
		Invoice models.Invoice
	}{From: from, Invoice: invoice})
	if err != nil {
		return nil, fmt.Errorf("failed to render invoice: %w", err)
	}
	return buf.Bytes(), nil
}

func (n *smtpNotifier) SendInvoice(ctx context.Context, invoice models.Invoice) error {
	if invoice.Email == "" {
		return invalid("email", "is required")
	}
	msg, err := RenderInvoice(n.opts.From, invoice)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if n.opts.Username != "" {
		auth = smtp.PlainAuth("", n.opts.Username, n.opts.Password, n.opts.Host)
	}
	addr := net.JoinHostPort(n.opts.Host, strconv.Itoa(n.opts.Port))

	// smtp.SendMail takes no context; the caller's deadline bounds the wait
	done := make(chan error, 1)
	go func() {
		done <- n.sendMail(addr, auth, n.opts.From, []string{invoice.Email}, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send invoice: %w", err)
		}
		n.logger.Info("Invoice sent",
			zap.String("tenant_id", invoice.TenantID),
			zap.String("transaction_id", invoice.TransactionID),
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *logNotifier) SendInvoice(ctx context.Context, invoice models.Invoice) error {
	n.logger.Info("Invoice issued (mail relay not configured)",
		zap.String("tenant_id", invoice.TenantID),
		zap.String("email", invoice.Email),
		zap.String("plan", invoice.PlanName),
		zap.Float64("amount", invoice.Amount),
		zap.String("currency", invoice.Currency),
		zap.String("transaction_id", invoice.TransactionID),
	)
	return nil
}
