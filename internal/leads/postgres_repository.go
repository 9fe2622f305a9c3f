package leads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores leads and their message threads in the
// relational database.
type PostgresRepository struct {
	pool PgxPool
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

// Create inserts a new row.
func (r *PostgresRepository) Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New()
	now := time.Now().UTC()
	query := `
		INSERT INTO leads (id, name, cpf, phone, birth_date, avatar_url, status, auth_status, proposal_ready, auto_pilot, last_active_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	if _, err := r.pool.Exec(ctx, query,
		id,
		req.Name,
		req.CPF,
		NormalizePhone(req.Phone),
		req.BirthDate,
		req.AvatarURL,
		string(StatusNew),
		string(AuthPending),
		false,
		true,
		now,
		now,
	); err != nil {
		return nil, fmt.Errorf("leads: insert failed: %w", err)
	}

	return &Lead{
		ID:           id.String(),
		Name:         req.Name,
		CPF:          req.CPF,
		Phone:        NormalizePhone(req.Phone),
		BirthDate:    req.BirthDate,
		AvatarURL:    req.AvatarURL,
		Status:       StatusNew,
		AuthStatus:   AuthPending,
		AutoPilot:    true,
		LastActiveAt: now,
		CreatedAt:    now,
	}, nil
}

// Get fetches a lead and its full ordered message thread.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Lead, error) {
	return r.getWhere(ctx, "id = $1", id)
}

// GetByPhone fetches a lead by its normalized WhatsApp number.
func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*Lead, error) {
	return r.getWhere(ctx, "phone = $1", NormalizePhone(phone))
}

func (r *PostgresRepository) getWhere(ctx context.Context, where string, arg any) (*Lead, error) {
	query := `
		SELECT id, name, cpf, phone, birth_date, avatar_url, status, auth_status, auth_link, proposal_ready, auto_pilot, last_active_at, created_at
		FROM leads
		WHERE ` + where

	lead, err := scanLead(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}

	messages, err := r.listMessages(ctx, lead.ID)
	if err != nil {
		return nil, err
	}
	lead.Messages = messages
	return lead, nil
}

// List returns all leads ordered by most recent activity, without threads.
func (r *PostgresRepository) List(ctx context.Context) ([]*Lead, error) {
	query := `
		SELECT id, name, cpf, phone, birth_date, avatar_url, status, auth_status, auth_link, proposal_ready, auto_pilot, last_active_at, created_at
		FROM leads
		ORDER BY last_active_at DESC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("leads: list failed: %w", err)
	}
	defer rows.Close()

	var out []*Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, lead)
	}
	return out, rows.Err()
}

// AppendMessage adds a message to the end of a lead's thread.
func (r *PostgresRepository) AppendMessage(ctx context.Context, leadID string, msg Message) (*Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Kind == "" {
		msg.Kind = KindChat
	}

	var attKind, attURL, attFileName, attMimeType string
	if msg.Attachment != nil {
		attKind = string(msg.Attachment.Kind)
		attURL = msg.Attachment.URL
		attFileName = msg.Attachment.FileName
		attMimeType = msg.Attachment.MimeType
	}

	query := `
		INSERT INTO lead_messages (id, lead_id, role, content, attachment_kind, attachment_url, attachment_file_name, attachment_mime_type, internal, kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if _, err := r.pool.Exec(ctx, query,
		msg.ID, leadID, string(msg.Role), msg.Content,
		attKind, attURL, attFileName, attMimeType,
		msg.Internal, string(msg.Kind), msg.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("leads: insert message failed: %w", err)
	}

	if _, err := r.pool.Exec(ctx,
		`UPDATE leads SET last_active_at = $1 WHERE id = $2`,
		msg.CreatedAt, leadID,
	); err != nil {
		return nil, fmt.Errorf("leads: touch lead failed: %w", err)
	}

	copied := msg
	return &copied, nil
}

// UpdateStatus applies a validated status transition with the flag in sync.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, leadID string, status Status, autoPilot bool) error {
	var current string
	if err := r.pool.QueryRow(ctx, `SELECT status FROM leads WHERE id = $1`, leadID).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLeadNotFound
		}
		return fmt.Errorf("leads: read status failed: %w", err)
	}
	if err := ValidateTransition(Status(current), status); err != nil {
		return err
	}

	if _, err := r.pool.Exec(ctx,
		`UPDATE leads SET status = $1, auto_pilot = $2 WHERE id = $3`,
		string(status), autoPilot, leadID,
	); err != nil {
		return fmt.Errorf("leads: update status failed: %w", err)
	}
	return nil
}

// UpdateAuthStatus records the bank-side authorization state.
func (r *PostgresRepository) UpdateAuthStatus(ctx context.Context, leadID string, status AuthStatus, link string) error {
	query := `UPDATE leads SET auth_status = $1, auth_link = COALESCE(NULLIF($2, ''), auth_link) WHERE id = $3`
	tag, err := r.pool.Exec(ctx, query, string(status), link, leadID)
	if err != nil {
		return fmt.Errorf("leads: update auth status failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// SetProposalReady flips the operator-visible proposal flag.
func (r *PostgresRepository) SetProposalReady(ctx context.Context, leadID string, ready bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE leads SET proposal_ready = $1 WHERE id = $2`, ready, leadID)
	if err != nil {
		return fmt.Errorf("leads: update proposal flag failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

func (r *PostgresRepository) listMessages(ctx context.Context, leadID string) ([]Message, error) {
	query := `
		SELECT id, role, content, attachment_kind, attachment_url, attachment_file_name, attachment_mime_type, internal, kind, created_at
		FROM lead_messages
		WHERE lead_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, leadID)
	if err != nil {
		return nil, fmt.Errorf("leads: list messages failed: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		var role, kind string
		var attKind, attURL, attFileName, attMime string
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &attKind, &attURL, &attFileName, &attMime, &msg.Internal, &kind, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("leads: scan message failed: %w", err)
		}
		msg.Role = Role(role)
		msg.Kind = MessageKind(kind)
		if attKind != "" {
			msg.Attachment = &Attachment{
				Kind:     AttachmentKind(attKind),
				URL:      attURL,
				FileName: attFileName,
				MimeType: attMime,
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*Lead, error) {
	var (
		lead               Lead
		status, authStatus string
	)
	err := row.Scan(
		&lead.ID,
		&lead.Name,
		&lead.CPF,
		&lead.Phone,
		&lead.BirthDate,
		&lead.AvatarURL,
		&status,
		&authStatus,
		&lead.AuthLink,
		&lead.ProposalReady,
		&lead.AutoPilot,
		&lead.LastActiveAt,
		&lead.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	lead.Status = Status(status)
	lead.AuthStatus = AuthStatus(authStatus)
	return &lead, nil
}
