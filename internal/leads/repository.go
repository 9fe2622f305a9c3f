package leads

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for lead storage. Mutations are funneled
// through named methods so the per-lead atomicity and terminal-state rules
// can be enforced in one place regardless of backend.
type Repository interface {
	Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error)
	Get(ctx context.Context, id string) (*Lead, error)
	GetByPhone(ctx context.Context, phone string) (*Lead, error)
	List(ctx context.Context) ([]*Lead, error)
	AppendMessage(ctx context.Context, leadID string, msg Message) (*Message, error)
	UpdateStatus(ctx context.Context, leadID string, status Status, autoPilot bool) error
	UpdateAuthStatus(ctx context.Context, leadID string, status AuthStatus, link string) error
	SetProposalReady(ctx context.Context, leadID string, ready bool) error
}

// InMemoryRepository keeps leads in process memory. Reads return deep copies
// so an orchestration run keeps working against the snapshot it took at run
// start even while new messages land.
type InMemoryRepository struct {
	mu    sync.RWMutex
	leads map[string]*Lead
}

var _ Repository = (*InMemoryRepository)(nil)

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		leads: make(map[string]*Lead),
	}
}

// Create creates a new lead in memory
func (r *InMemoryRepository) Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	lead := &Lead{
		ID:           uuid.NewString(),
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
	}

	r.mu.Lock()
	r.leads[lead.ID] = lead
	r.mu.Unlock()

	return cloneLead(lead), nil
}

// Get retrieves a lead by ID
func (r *InMemoryRepository) Get(ctx context.Context, id string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	return cloneLead(lead), nil
}

// GetByPhone retrieves a lead by its normalized WhatsApp number.
func (r *InMemoryRepository) GetByPhone(ctx context.Context, phone string) (*Lead, error) {
	digits := NormalizePhone(phone)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, lead := range r.leads {
		if lead.Phone == digits {
			return cloneLead(lead), nil
		}
	}
	return nil, ErrLeadNotFound
}

// List returns all leads ordered by most recent activity.
func (r *InMemoryRepository) List(ctx context.Context) ([]*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Lead, 0, len(r.leads))
	for _, lead := range r.leads {
		out = append(out, cloneLead(lead))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActiveAt.After(out[j].LastActiveAt)
	})
	return out, nil
}

// AppendMessage adds a message to the end of a lead's thread.
func (r *InMemoryRepository) AppendMessage(ctx context.Context, leadID string, msg Message) (*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lead, ok := r.leads[leadID]
	if !ok {
		return nil, ErrLeadNotFound
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Kind == "" {
		msg.Kind = KindChat
	}

	lead.Messages = append(lead.Messages, msg)
	lead.LastActiveAt = msg.CreatedAt

	copied := msg
	return &copied, nil
}

// UpdateStatus applies a status transition together with the automated-agent
// flag. The two always change through this single method.
func (r *InMemoryRepository) UpdateStatus(ctx context.Context, leadID string, status Status, autoPilot bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lead, ok := r.leads[leadID]
	if !ok {
		return ErrLeadNotFound
	}
	if err := ValidateTransition(lead.Status, status); err != nil {
		return err
	}

	lead.Status = status
	lead.AutoPilot = autoPilot
	return nil
}

// UpdateAuthStatus records the bank-side authorization state and, when
// present, the generated formalization link.
func (r *InMemoryRepository) UpdateAuthStatus(ctx context.Context, leadID string, status AuthStatus, link string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lead, ok := r.leads[leadID]
	if !ok {
		return ErrLeadNotFound
	}

	lead.AuthStatus = status
	if link != "" {
		lead.AuthLink = link
	}
	return nil
}

// SetProposalReady flips the operator-visible proposal flag.
func (r *InMemoryRepository) SetProposalReady(ctx context.Context, leadID string, ready bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lead, ok := r.leads[leadID]
	if !ok {
		return ErrLeadNotFound
	}
	lead.ProposalReady = ready
	return nil
}

func cloneLead(lead *Lead) *Lead {
	copied := *lead
	if len(lead.Messages) > 0 {
		copied.Messages = make([]Message, len(lead.Messages))
		copy(copied.Messages, lead.Messages)
		for i := range copied.Messages {
			if copied.Messages[i].Attachment != nil {
				att := *copied.Messages[i].Attachment
				copied.Messages[i].Attachment = &att
			}
		}
	}
	return &copied
}
