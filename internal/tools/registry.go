// Package tools implements the closed set of agent tools: C6 loan
// simulation, formalization link generation, proposal status lookup and
// transfer to a human operator.
package tools

import (
	"context"
	"fmt"

	"github.com/consigdesk/consig-ai-platform/internal/c6"
	"github.com/consigdesk/consig-ai-platform/internal/conversation"
	"github.com/consigdesk/consig-ai-platform/internal/leads"
	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

// Tool names as declared to the model. The set is fixed: adding a tool
// means adding a schema, a handler and a dispatch arm together.
const (
	ToolSimulateLoan    = "simular_consignado_c6"
	ToolFormalizeLink   = "gerar_link_formalizacao"
	ToolProposalStatus  = "consultar_status_proposta"
	ToolTransferToHuman = "transferir_para_humano"
)

// BankClient is the subset of the C6 client the tools need.
type BankClient interface {
	SimulateConsignado(ctx context.Context, req c6.SimulationRequest) (*c6.SimulationResult, error)
	FormalizationURL(ctx context.Context, proposalNumber string) (string, error)
	GetProposalStatus(ctx context.Context, proposalNumber string) (*c6.ProposalStatus, error)
}

// LeadState is the conversation-store surface the tools mutate.
type LeadState interface {
	GetLead(ctx context.Context, leadID string) (*leads.Lead, error)
	SetAuthStatus(ctx context.Context, leadID string, status leads.AuthStatus, link string) error
	AppendMessage(ctx context.Context, leadID string, msg leads.Message) (*leads.Message, error)
}

// OperatorNotifier alerts operators about an agent-initiated transfer.
type OperatorNotifier interface {
	NotifyHandoff(ctx context.Context, lead *leads.Lead, reason string) error
}

// Registry dispatches tool calls by name. Execute never panics: handler
// panics are recovered into a structured error result so a single bad
// tool run cannot take the agent run down with it.
type Registry struct {
	bank     BankClient
	store    LeadState
	notifier OperatorNotifier
	logger   *logging.Logger
}

var _ conversation.ToolExecutor = (*Registry)(nil)

// NewRegistry creates the tool registry. notifier may be nil.
func NewRegistry(bank BankClient, store LeadState, notifier OperatorNotifier, logger *logging.Logger) *Registry {
	if bank == nil {
		panic("tools: bank client required")
	}
	if store == nil {
		panic("tools: lead state required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Registry{
		bank:     bank,
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// Schemas lists the tool declarations advertised to the model.
func (r *Registry) Schemas() []conversation.ToolSchema {
	return []conversation.ToolSchema{
		{
			Name:        ToolSimulateLoan,
			Description: "Realiza uma simulação de crédito consignado na API do C6 Bank. Use para calcular parcelas e valores disponíveis.",
			Params: map[string]conversation.ToolParam{
				"cpf":             {Type: conversation.ParamString, Description: "CPF do cliente (apenas números ou formatado).", Required: true},
				"valorSolicitado": {Type: conversation.ParamNumber, Description: "Valor líquido que o cliente deseja receber (em Reais).", Required: true},
				"parcelas":        {Type: conversation.ParamInteger, Description: "Número de parcelas desejadas (ex: 84, 72). Padrão é 84 se não informado."},
			},
		},
		{
			Name:        ToolFormalizeLink,
			Description: "Gera o link de formalização digital (biometria facial) para o cliente assinar a proposta.",
			Params: map[string]conversation.ToolParam{
				"proposalNumber": {Type: conversation.ParamString, Description: "Número da proposta gerada anteriormente.", Required: true},
			},
		},
		{
			Name:        ToolProposalStatus,
			Description: "Verifica o status atual de uma proposta no C6 (ex: Aguardando Assinatura, Integrada, Paga).",
			Params: map[string]conversation.ToolParam{
				"proposalNumber": {Type: conversation.ParamString, Description: "Número da proposta.", Required: true},
			},
		},
		{
			Name:        ToolTransferToHuman,
			Description: "Transfere o atendimento para um agente humano especializado. Use quando o cliente solicitar falar com uma pessoa, estiver irritado, ou quando o assunto fugir do escopo de crédito consignado.",
			Params: map[string]conversation.ToolParam{
				"motivo":      {Type: conversation.ParamString, Description: "O motivo da transferência (ex: 'Cliente solicitou humano', 'Dúvida complexa', 'Cliente irritado').", Required: true},
				"resumo_caso": {Type: conversation.ParamString, Description: "Um breve resumo do que foi tratado até agora para o humano saber."},
			},
		},
	}
}

// Known reports whether the registry dispatches the named tool.
func (r *Registry) Known(name string) bool {
	switch name {
	case ToolSimulateLoan, ToolFormalizeLink, ToolProposalStatus, ToolTransferToHuman:
		return true
	}
	return false
}

// Handoff reports whether the named tool moves the lead to a human.
func (r *Registry) Handoff(name string) bool {
	return name == ToolTransferToHuman
}

// Execute runs the named tool against the lead's conversation.
func (r *Registry) Execute(ctx context.Context, leadID string, call conversation.ToolCall) (result conversation.ToolResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool handler panicked", "tool", call.Name, "lead_id", leadID, "panic", rec)
			result = failure(call.Name, "internal", fmt.Sprintf("tool panicked: %v", rec))
		}
	}()

	switch call.Name {
	case ToolSimulateLoan:
		return r.simulateLoan(ctx, leadID, call)
	case ToolFormalizeLink:
		return r.formalizationLink(ctx, leadID, call)
	case ToolProposalStatus:
		return r.proposalStatus(ctx, call)
	case ToolTransferToHuman:
		return r.transferToHuman(ctx, leadID, call)
	default:
		return failure(call.Name, "unknown_tool", fmt.Sprintf("tool %q is not registered", call.Name))
	}
}

func failure(name, kind, msg string) conversation.ToolResult {
	return conversation.ToolResult{
		Name: name,
		Err:  &conversation.ToolError{Kind: kind, Message: msg},
	}
}
