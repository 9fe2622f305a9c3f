package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/consigdesk/consig-ai-platform/internal/leads"
	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

// Config holds operator notification settings.
type Config struct {
	Enabled    bool
	Recipients []string
	InboxURL   string // base URL of the operator inbox, linked in emails
}

// Service emails operators when a conversation needs human attention.
type Service struct {
	email  EmailSender
	cfg    Config
	logger *logging.Logger
}

// NewService creates a notification service.
func NewService(email EmailSender, cfg Config, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:  email,
		cfg:    cfg,
		logger: logger,
	}
}

// NotifyHandoff alerts operators that a lead left auto-pilot and is
// waiting for a human. Failures are reported but never block the
// handoff itself.
func (s *Service) NotifyHandoff(ctx context.Context, lead *leads.Lead, reason string) error {
	if !s.cfg.Enabled || s.email == nil || len(s.cfg.Recipients) == 0 {
		s.logger.Debug("notify: handoff notifications disabled, skipping")
		return nil
	}
	if lead == nil {
		return fmt.Errorf("notify: nil lead")
	}

	name := lead.Name
	if name == "" {
		name = "Cliente sem nome"
	}
	if reason == "" {
		reason = "Transferência para atendimento humano"
	}

	subject := fmt.Sprintf("🚨 Atendimento humano necessário - %s", name)
	when := time.Now().Format("02/01/2006 15:04")

	inboxInfo := ""
	if s.cfg.InboxURL != "" {
		inboxInfo = fmt.Sprintf("\nAbrir conversa: %s/inbox/%s", strings.TrimRight(s.cfg.InboxURL, "/"), lead.ID)
	}

	body := fmt.Sprintf(`A assistente transferiu uma conversa para a equipe.

Cliente: %s
Telefone: %s
CPF: %s
Motivo: %s
Horário: %s%s

Assuma a conversa o quanto antes para não perder o atendimento.

— ConsigDesk AI`, name, lead.Phone, maskCPF(lead.CPF), reason, when, inboxInfo)

	html := fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2 style="color: #dc2626;">🚨 Atendimento humano necessário</h2>
<p>A assistente transferiu a conversa de <strong>%s</strong> para a equipe.</p>
<table style="border-collapse: collapse; margin: 20px 0;">
  <tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>Cliente:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>
  <tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>Telefone:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><a href="tel:%s">%s</a></td></tr>
  <tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>Motivo:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>
  <tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>Horário:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>
</table>
%s
<p style="color: #6b7280; font-size: 12px; margin-top: 20px;">— ConsigDesk AI</p>
</div>`, name, name, lead.Phone, lead.Phone, reason, when, s.inboxLinkHTML(lead.ID))

	var errs []error
	for _, recipient := range s.cfg.Recipients {
		msg := EmailMessage{
			To:      recipient,
			Subject: subject,
			Body:    body,
			HTML:    html,
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("notify: failed to send handoff email", "error", err, "to", recipient, "lead_id", lead.ID)
			errs = append(errs, err)
		} else {
			s.logger.Info("notify: handoff email sent", "to", recipient, "lead_id", lead.ID)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d notification(s) failed", len(errs))
	}
	return nil
}

// NotifySignature alerts operators when a lead's contract gets signed.
func (s *Service) NotifySignature(ctx context.Context, lead *leads.Lead) error {
	if !s.cfg.Enabled || s.email == nil || len(s.cfg.Recipients) == 0 {
		return nil
	}
	if lead == nil {
		return fmt.Errorf("notify: nil lead")
	}

	name := lead.Name
	if name == "" {
		name = "Cliente sem nome"
	}

	subject := fmt.Sprintf("✅ Contrato autorizado - %s", name)
	body := fmt.Sprintf(`O cliente autorizou a formalização do contrato.

Cliente: %s
Telefone: %s
CPF: %s

Confira a proposta no painel e conclua a venda.

— ConsigDesk AI`, name, lead.Phone, maskCPF(lead.CPF))

	var errs []error
	for _, recipient := range s.cfg.Recipients {
		if err := s.email.Send(ctx, EmailMessage{To: recipient, Subject: subject, Body: body}); err != nil {
			s.logger.Error("notify: failed to send signature email", "error", err, "to", recipient, "lead_id", lead.ID)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d notification(s) failed", len(errs))
	}
	return nil
}

func (s *Service) inboxLinkHTML(leadID string) string {
	if s.cfg.InboxURL == "" {
		return ""
	}
	url := strings.TrimRight(s.cfg.InboxURL, "/") + "/inbox/" + leadID
	return fmt.Sprintf(`<p><a href="%s" style="background: #2563eb; color: white; padding: 10px 16px; border-radius: 6px; text-decoration: none;">Abrir conversa</a></p>`, url)
}

// maskCPF hides the middle digits so notification emails don't carry a
// full document number.
func maskCPF(cpf string) string {
	digits := make([]rune, 0, len(cpf))
	for _, r := range cpf {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) != 11 {
		return "não informado"
	}
	return fmt.Sprintf("%s.***.***-%s", string(digits[:3]), string(digits[9:]))
}
