package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/consigdesk/consig-ai-platform/internal/leads"
	"github.com/consigdesk/consig-ai-platform/internal/observability/metrics"
	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

// ToolExecutor is the orchestrator's view of the tool registry.
type ToolExecutor interface {
	// Schemas lists the tool declarations advertised to the model.
	Schemas() []ToolSchema
	// Known reports whether the registry can dispatch the named tool.
	Known(name string) bool
	// Handoff reports whether the named tool transfers the lead to a
	// human operator.
	Handoff(name string) bool
	// Execute runs the tool. It never panics; failures come back as a
	// structured error inside the result.
	Execute(ctx context.Context, leadID string, call ToolCall) ToolResult
}

// OutboundChannel delivers agent replies to the lead's messaging
// channel.
type OutboundChannel interface {
	SendText(ctx context.Context, phone, text string) error
}

// RunRecorder persists a record of each completed agent run.
type RunRecorder interface {
	Record(ctx context.Context, rec RunRecord) error
}

// RunRecord captures the outcome of a single agent run.
type RunRecord struct {
	LeadID     string     `json:"lead_id"`
	Model      string     `json:"model"`
	Outcome    string     `json:"outcome"`
	ToolName   string     `json:"tool_name,omitempty"`
	Usage      TokenUsage `json:"usage"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Error      string     `json:"error,omitempty"`
}

// Run outcomes.
const (
	OutcomeReplied           = "replied"
	OutcomeToolReplied       = "tool_replied"
	OutcomeHandoff           = "handoff"
	OutcomeError             = "error"
	OutcomeProtocolViolation = "protocol_violation"
)

// OrchestratorConfig carries the model parameters and per-phase
// timeouts for agent runs.
type OrchestratorConfig struct {
	Model            string
	SystemPrompt     string
	Temperature      float32
	MaxTokens        int32
	ModelCallTimeout time.Duration
	ToolCallTimeout  time.Duration
	SendTimeout      time.Duration
}

// Orchestrator executes agent runs: it builds the transcript, calls the
// model, executes at most one tool call, and delivers the final reply.
// It owns the handoff transition so the state change is recorded before
// the second model call is attempted.
type Orchestrator struct {
	store    *Store
	llm      LLMClient
	tools    ToolExecutor
	outbound OutboundChannel
	runlog   RunRecorder
	metrics  *metrics.AgentMetrics
	logger   *logging.Logger
	cfg      OrchestratorConfig
}

// NewOrchestrator creates an orchestrator. runlog and metrics may be nil.
func NewOrchestrator(store *Store, llm LLMClient, tools ToolExecutor, outbound OutboundChannel, runlog RunRecorder, m *metrics.AgentMetrics, cfg OrchestratorConfig, logger *logging.Logger) *Orchestrator {
	if store == nil {
		panic("conversation: store required")
	}
	if llm == nil {
		panic("conversation: llm client required")
	}
	if tools == nil {
		panic("conversation: tool executor required")
	}
	if outbound == nil {
		panic("conversation: outbound channel required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.ModelCallTimeout <= 0 {
		cfg.ModelCallTimeout = 30 * time.Second
	}
	if cfg.ToolCallTimeout <= 0 {
		cfg.ToolCallTimeout = 15 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &Orchestrator{
		store:    store,
		llm:      llm,
		tools:    tools,
		outbound: outbound,
		runlog:   runlog,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
	}
}

// Run executes one agent run for the lead. It never returns an error:
// every failure is absorbed into an internal error note so the
// conversation survives and an operator can see what went wrong.
func (o *Orchestrator) Run(ctx context.Context, leadID string) {
	started := time.Now()
	log := o.logger.WithLead(leadID)

	rec := RunRecord{LeadID: leadID, Model: o.cfg.Model, StartedAt: started}
	defer func() {
		if r := recover(); r != nil {
			log.Error("agent run panicked", "panic", r)
			rec.Outcome = OutcomeError
			rec.Error = fmt.Sprintf("panic: %v", r)
			o.noteError(leadID, "Falha inesperada do agente.")
		}
		rec.FinishedAt = time.Now()
		o.metrics.ObserveRunCompleted(rec.Outcome)
		if o.runlog != nil {
			if err := o.runlog.Record(context.WithoutCancel(ctx), rec); err != nil {
				log.Error("failed to record agent run", "error", err)
			}
		}
	}()

	lead, err := o.store.GetLead(ctx, leadID)
	if err != nil {
		log.Error("agent run could not load lead", "error", err)
		rec.Outcome, rec.Error = OutcomeError, err.Error()
		return
	}

	turns := BuildTranscript(lead.Messages)
	if len(turns) == 0 {
		log.Warn("agent run skipped, empty transcript")
		rec.Outcome = OutcomeError
		rec.Error = "empty transcript"
		return
	}

	req := LLMRequest{
		Model:       o.cfg.Model,
		System:      []string{o.cfg.SystemPrompt, leadFacts(lead)},
		Turns:       turns,
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
		Tools:       o.tools.Schemas(),
	}

	resp, err := o.complete(ctx, req)
	rec.Usage = addUsage(rec.Usage, resp.Usage)
	if err != nil {
		log.Error("model call failed", "error", err)
		rec.Outcome, rec.Error = o.classify(err)
		o.noteError(leadID, "Falha ao consultar o modelo: "+err.Error())
		return
	}

	if resp.ToolCall == nil {
		if o.deliver(ctx, lead, resp.Text, log) {
			rec.Outcome = OutcomeReplied
		} else {
			rec.Outcome, rec.Error = OutcomeError, "reply delivery failed"
		}
		return
	}

	call := *resp.ToolCall
	rec.ToolName = call.Name
	log.Info("model requested tool", "tool", call.Name)

	if !o.tools.Known(call.Name) {
		log.Error("model requested unknown tool", "tool", call.Name)
		rec.Outcome = OutcomeProtocolViolation
		rec.Error = "unknown tool " + call.Name
		o.noteError(leadID, "O agente solicitou uma ferramenta desconhecida: "+call.Name)
		return
	}

	toolCtx, cancel := context.WithTimeout(ctx, o.cfg.ToolCallTimeout)
	result := o.tools.Execute(toolCtx, leadID, call)
	cancel()
	o.metrics.ObserveToolCall(call.Name, toolOutcome(result))

	handoff := o.tools.Handoff(call.Name)
	if handoff {
		// The transition is recorded before the second model call so a
		// model failure from here on cannot leave the lead stranded
		// with the agent still in charge.
		if err := o.store.SetStatus(ctx, leadID, leads.StatusHumanIntervention); err != nil {
			log.Error("handoff transition failed", "error", err)
		} else {
			o.metrics.ObserveHandoff()
		}
	}

	req.Turns = append(req.Turns,
		ChatTurn{Role: ChatRoleAssistant, ToolCall: &call},
		ChatTurn{Role: ChatRoleUser, ToolResult: &result},
	)

	resp, err = o.complete(ctx, req)
	rec.Usage = addUsage(rec.Usage, resp.Usage)
	if err != nil {
		log.Error("second model call failed", "error", err, "tool", call.Name)
		rec.Outcome, rec.Error = o.classify(err)
		o.noteError(leadID, "Falha ao concluir a resposta após a ferramenta "+call.Name+".")
		return
	}
	if resp.ToolCall != nil {
		log.Error("model chained a second tool call", "tool", resp.ToolCall.Name)
		rec.Outcome = OutcomeProtocolViolation
		rec.Error = "chained tool call " + resp.ToolCall.Name
		o.noteError(leadID, "O agente tentou encadear uma segunda ferramenta.")
		return
	}

	if o.deliver(ctx, lead, resp.Text, log) {
		if handoff {
			rec.Outcome = OutcomeHandoff
		} else {
			rec.Outcome = OutcomeToolReplied
		}
	} else {
		rec.Outcome, rec.Error = OutcomeError, "reply delivery failed"
	}
}

func (o *Orchestrator) complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.ModelCallTimeout)
	defer cancel()
	started := time.Now()
	resp, err := o.llm.Complete(callCtx, req)
	o.metrics.ObserveModelLatency(req.Model, time.Since(started).Seconds())
	return resp, err
}

func (o *Orchestrator) classify(err error) (string, string) {
	if err == ErrMultipleToolCalls {
		return OutcomeProtocolViolation, err.Error()
	}
	return OutcomeError, err.Error()
}

// deliver persists the agent reply and sends it over the outbound
// channel. Persisting comes first: a send failure leaves the reply in
// the inbox where an operator can resend it.
func (o *Orchestrator) deliver(ctx context.Context, lead *leads.Lead, text string, log *logging.Logger) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		log.Error("model returned empty reply")
		o.noteError(lead.ID, "O modelo retornou uma resposta vazia.")
		return false
	}

	if _, err := o.store.AppendMessage(ctx, lead.ID, leads.Message{
		Role:    leads.RoleAIAgent,
		Content: text,
	}); err != nil {
		log.Error("failed to persist agent reply", "error", err)
		return false
	}

	sendCtx, cancel := context.WithTimeout(ctx, o.cfg.SendTimeout)
	defer cancel()
	if err := o.outbound.SendText(sendCtx, lead.Phone, text); err != nil {
		log.Error("failed to send agent reply", "error", err)
		o.metrics.ObserveOutbound("error")
		return true
	}
	o.metrics.ObserveOutbound("ok")
	return true
}

// noteError appends an internal error note visible only to operators.
func (o *Orchestrator) noteError(leadID, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := o.store.AppendMessage(ctx, leadID, leads.Message{
		Role:     leads.RoleAIAgent,
		Content:  text,
		Internal: true,
		Kind:     leads.KindErrorNote,
	}); err != nil {
		o.logger.Error("failed to append error note", "error", err, "lead_id", leadID)
	}
}

// leadFacts renders the lead's registration data as an extra system
// block so the model can personalize without asking again.
func leadFacts(lead *leads.Lead) string {
	var b strings.Builder
	b.WriteString("Dados do cliente:\n")
	fmt.Fprintf(&b, "- Nome: %s\n", lead.Name)
	if lead.CPF != "" {
		fmt.Fprintf(&b, "- CPF: %s\n", lead.CPF)
	}
	if lead.BirthDate != "" {
		fmt.Fprintf(&b, "- Data de nascimento: %s\n", lead.BirthDate)
	}
	fmt.Fprintf(&b, "- Telefone: %s\n", lead.Phone)
	fmt.Fprintf(&b, "- Status da autorização: %s\n", lead.AuthStatus)
	if lead.ProposalReady {
		b.WriteString("- Proposta formalizada disponível\n")
	}
	return b.String()
}

func toolOutcome(result ToolResult) string {
	switch {
	case result.Err != nil:
		return "error"
	case result.Degraded:
		return "degraded"
	default:
		return "ok"
	}
}

func addUsage(a, b TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:  a.InputTokens + b.InputTokens,
		OutputTokens: a.OutputTokens + b.OutputTokens,
		TotalTokens:  a.TotalTokens + b.TotalTokens,
	}
}
