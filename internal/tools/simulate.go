package tools

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/consigdesk/consig-ai-platform/internal/c6"
	"github.com/consigdesk/consig-ai-platform/internal/conversation"
)

// Degraded-mode pricing when the bank API is unreachable: the INSS
// margem-livre price table at 1.8% a.m., standard amortization.
const fallbackMonthlyRate = 0.018

func (r *Registry) simulateLoan(ctx context.Context, leadID string, call conversation.ToolCall) conversation.ToolResult {
	cpf := stringArg(call.Args, "cpf")
	if cpf == "" {
		// The model sometimes omits the CPF it already knows from the
		// system block. Fall back to the registered one.
		if lead, err := r.store.GetLead(ctx, leadID); err == nil {
			cpf = lead.CPF
		}
	}
	if cpf == "" {
		return failure(call.Name, "invalid_args", "missing required argument \"cpf\"")
	}

	amount, ok := floatArg(call.Args, "valorSolicitado")
	if !ok || amount <= 0 {
		return failure(call.Name, "invalid_args", "missing or invalid argument \"valorSolicitado\"")
	}

	installments, ok := intArg(call.Args, "parcelas")
	if !ok || installments <= 0 {
		installments = 84
	}

	simReq := c6.SimulationRequest{
		CPF:             cpf,
		RequestedAmount: amount,
		Installments:    installments,
	}
	if lead, err := r.store.GetLead(ctx, leadID); err == nil && lead.BirthDate != "" {
		simReq.BirthDate = lead.BirthDate
	}

	result, err := r.bank.SimulateConsignado(ctx, simReq)
	if err != nil {
		if errors.Is(err, c6.ErrUnavailable) || errors.Is(err, c6.ErrUnauthorized) {
			r.logger.Warn("bank simulation unavailable, using price-table fallback", "error", err, "lead_id", leadID)
			return degradedSimulation(call.Name, amount, installments)
		}
		return failure(call.Name, "upstream", err.Error())
	}

	payload := map[string]any{
		"requested_amount": result.RequestedAmount,
		"net_amount":       result.NetAmount,
		"total_amount":     result.TotalAmount,
	}
	if result.ProposalNumber != "" {
		payload["proposal_number"] = result.ProposalNumber
	}
	if len(result.Installments) > 0 {
		first := result.Installments[0]
		payload["installment_quantity"] = first.Number
		payload["installment_amount"] = first.Amount
		payload["first_due_date"] = first.DueDate
	}

	return conversation.ToolResult{Name: call.Name, Payload: payload}
}

// degradedSimulation computes an approximate quote locally so the lead
// still gets an answer while the marketplace is down. Results carry the
// degraded marker so the model can caveat the numbers.
func degradedSimulation(name string, amount float64, installments int) conversation.ToolResult {
	rate := fallbackMonthlyRate
	factor := math.Pow(1+rate, float64(installments))
	installment := amount * (rate * factor) / (factor - 1)
	installment = math.Round(installment*100) / 100

	return conversation.ToolResult{
		Name:     name,
		Degraded: true,
		Payload: map[string]any{
			"requested_amount":     amount,
			"net_amount":           math.Round(amount*0.98*100) / 100,
			"total_amount":         math.Round(installment*float64(installments)*100) / 100,
			"installment_quantity": installments,
			"installment_amount":   installment,
			"first_due_date":       time.Now().AddDate(0, 1, 0).Format("2006-01-02"),
		},
	}
}
