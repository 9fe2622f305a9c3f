package sales

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const saleColumns = `id, lead_id, client_name, cpf, product, value, proposal_number,
       status, payment_method, notes, sale_date, created_at, updated_at`

func (r *Repository) List(ctx context.Context) ([]Sale, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales ORDER BY sale_date DESC, created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if out == nil {
		out = []Sale{}
	}
	return out, rows.Err()
}

func (r *Repository) Get(ctx context.Context, id string) (*Sale, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales WHERE id = $1`, id)
	s, err := scanSale(row)
	if err == sql.ErrNoRows {
		return nil, ErrSaleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) Create(ctx context.Context, s *Sale) error {
	now := time.Now()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = StatusPending
	}
	if s.PaymentMethod == "" {
		s.PaymentMethod = PaymentMethodPayroll
	}
	if s.SaleDate.IsZero() {
		s.SaleDate = now
	}
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sales (id, lead_id, client_name, cpf, product, value, proposal_number,
		    status, payment_method, notes, sale_date, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)`,
		s.ID, nullable(s.LeadID), s.ClientName, nullable(s.CPF), s.Product, s.Value,
		nullable(s.ProposalNumber), string(s.Status), s.PaymentMethod, s.Notes, s.SaleDate, now)
	return err
}

func (r *Repository) Update(ctx context.Context, s *Sale) error {
	s.UpdatedAt = time.Now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE sales SET client_name=$2, cpf=$3, product=$4, value=$5, proposal_number=$6,
		    status=$7, payment_method=$8, notes=$9, sale_date=$10, updated_at=$11
		WHERE id = $1`,
		s.ID, s.ClientName, nullable(s.CPF), s.Product, s.Value, nullable(s.ProposalNumber),
		string(s.Status), s.PaymentMethod, s.Notes, s.SaleDate, s.UpdatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSaleNotFound
	}
	return nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id string, status SaleStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sales SET status=$2, updated_at=$3 WHERE id = $1`,
		id, string(status), time.Now())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSaleNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSaleNotFound
	}
	return nil
}

// Summarize builds the dashboard totals in a single pass over the table.
func (r *Repository) Summarize(ctx context.Context) (*Summary, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*), COALESCE(SUM(value), 0) FROM sales GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sum Summary
	for rows.Next() {
		var status string
		var count int
		var value float64
		if err := rows.Scan(&status, &count, &value); err != nil {
			return nil, err
		}
		sum.TotalCount += count
		sum.TotalValue += value
		switch SaleStatus(status) {
		case StatusPaid:
			sum.PaidCount = count
			sum.PaidValue = value
		case StatusPending, StatusProcessing:
			sum.PendingCount += count
			sum.PendingValue += value
		case StatusCancelled:
			sum.CancelledCount = count
		}
	}
	return &sum, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (Sale, error) {
	var s Sale
	var leadID, cpf, proposal sql.NullString
	err := row.Scan(&s.ID, &leadID, &s.ClientName, &cpf, &s.Product, &s.Value, &proposal,
		&s.Status, &s.PaymentMethod, &s.Notes, &s.SaleDate, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return Sale{}, err
	}
	s.LeadID = leadID.String
	s.CPF = cpf.String
	s.ProposalNumber = proposal.String
	return s, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
