// Package sales tracks closed loan operations for the back office.
package sales

import (
	"errors"
	"time"
)

// SaleStatus tracks where a closed operation sits in the payment cycle.
type SaleStatus string

const (
	StatusPending    SaleStatus = "pending"
	StatusProcessing SaleStatus = "processing"
	StatusPaid       SaleStatus = "paid"
	StatusCancelled  SaleStatus = "cancelled"
)

// PaymentMethodPayroll is the only settlement method for consignado:
// installments come straight out of the payroll.
const PaymentMethodPayroll = "desconto_folha"

// ErrSaleNotFound is returned when a sale id doesn't exist.
var ErrSaleNotFound = errors.New("sales: sale not found")

// Sale is one closed loan operation.
type Sale struct {
	ID             string     `json:"id"`
	LeadID         string     `json:"leadId,omitempty"`
	ClientName     string     `json:"clientName"`
	CPF            string     `json:"cpf,omitempty"`
	Product        string     `json:"product"`
	Value          float64    `json:"value"`
	ProposalNumber string     `json:"proposalNumber,omitempty"`
	Status         SaleStatus `json:"status"`
	PaymentMethod  string     `json:"paymentMethod"`
	Notes          string     `json:"notes,omitempty"`
	SaleDate       time.Time  `json:"date"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// ValidStatus reports whether s is one of the known sale statuses.
func ValidStatus(s SaleStatus) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// Summary aggregates sales for the dashboard cards.
type Summary struct {
	TotalCount     int     `json:"totalCount"`
	TotalValue     float64 `json:"totalValue"`
	PaidCount      int     `json:"paidCount"`
	PaidValue      float64 `json:"paidValue"`
	PendingCount   int     `json:"pendingCount"`
	PendingValue   float64 `json:"pendingValue"`
	CancelledCount int     `json:"cancelledCount"`
}
