package sales

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

func saleRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "lead_id", "client_name", "cpf", "product", "value", "proposal_number",
		"status", "payment_method", "notes", "sale_date", "created_at", "updated_at",
	}).AddRow("sale-1", "lead-1", "Maria Souza", "12345678900", "Consignado INSS", 5000.0,
		"P-1", "pending", PaymentMethodPayroll, "", now, now, now)
}

func TestList(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`SELECT .+ FROM sales ORDER BY sale_date DESC`).WillReturnRows(saleRows())

	out, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 1 || out[0].ClientName != "Maria Souza" || out[0].Status != StatusPending {
		t.Errorf("unexpected sales: %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`SELECT .+ FROM sales WHERE id`).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, ErrSaleNotFound) {
		t.Fatalf("expected ErrSaleNotFound, got %v", err)
	}
}

func TestCreate_AppliesDefaults(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(`INSERT INTO sales`).WillReturnResult(sqlmock.NewResult(0, 1))

	sale := &Sale{ClientName: "Maria Souza", Product: "Consignado INSS", Value: 5000}
	if err := repo.Create(context.Background(), sale); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sale.ID == "" {
		t.Error("expected generated id")
	}
	if sale.Status != StatusPending {
		t.Errorf("expected pending default, got %s", sale.Status)
	}
	if sale.PaymentMethod != PaymentMethodPayroll {
		t.Errorf("expected payroll default, got %s", sale.PaymentMethod)
	}
	if sale.SaleDate.IsZero() {
		t.Error("expected sale date default")
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(`UPDATE sales SET status`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", StatusPaid)
	if !errors.Is(err, ErrSaleNotFound) {
		t.Fatalf("expected ErrSaleNotFound, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`SELECT status, COUNT`).WillReturnRows(
		sqlmock.NewRows([]string{"status", "count", "sum"}).
			AddRow("paid", 2, 11000.0).
			AddRow("pending", 1, 4000.0).
			AddRow("processing", 1, 2500.0).
			AddRow("cancelled", 1, 0.0))

	sum, err := repo.Summarize(context.Background())
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.TotalCount != 5 {
		t.Errorf("total count: %d", sum.TotalCount)
	}
	if sum.PaidValue != 11000 {
		t.Errorf("paid value: %v", sum.PaidValue)
	}
	if sum.PendingCount != 2 || sum.PendingValue != 6500 {
		t.Errorf("pending: %d / %v", sum.PendingCount, sum.PendingValue)
	}
	if sum.CancelledCount != 1 {
		t.Errorf("cancelled: %d", sum.CancelledCount)
	}
}

func TestValidStatus(t *testing.T) {
	if !ValidStatus(StatusPaid) || ValidStatus("unknown") {
		t.Error("status validation broken")
	}
}
