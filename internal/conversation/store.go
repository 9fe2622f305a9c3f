package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/consigdesk/consig-ai-platform/internal/leads"
	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

// Observer receives notifications about conversation mutations. The
// websocket hub and the transcript cache both register as observers so
// every append and status change fans out from a single place.
type Observer interface {
	MessageAppended(ctx context.Context, lead *leads.Lead, msg leads.Message)
	StatusChanged(ctx context.Context, lead *leads.Lead)
}

// Store is the single mutation path for conversation state. It wraps
// the lead repository with a per-lead mutex so read-modify-write
// sequences from concurrent callers (webhook worker, orchestrator,
// operator endpoints) serialize per lead, and keeps the paired
// status/auto-pilot fields consistent.
type Store struct {
	repo   leads.Repository
	logger *logging.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	obsMu     sync.RWMutex
	observers []Observer
}

// NewStore creates a conversation store over the given repository.
func NewStore(repo leads.Repository, logger *logging.Logger) *Store {
	if repo == nil {
		panic("conversation: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		repo:   repo,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// AddObserver registers an observer for subsequent mutations.
func (s *Store) AddObserver(o Observer) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, o)
}

func (s *Store) leadLock(leadID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[leadID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[leadID] = lock
	}
	return lock
}

// GetLead returns a snapshot of the lead.
func (s *Store) GetLead(ctx context.Context, leadID string) (*leads.Lead, error) {
	return s.repo.Get(ctx, leadID)
}

// ListLeads returns snapshots of all leads.
func (s *Store) ListLeads(ctx context.Context) ([]*leads.Lead, error) {
	return s.repo.List(ctx)
}

// GetOrCreateByPhone resolves an inbound sender to a lead, creating a
// fresh one when the phone is unknown.
func (s *Store) GetOrCreateByPhone(ctx context.Context, phone, name string) (*leads.Lead, error) {
	normalized := leads.NormalizePhone(phone)
	if lead, err := s.repo.GetByPhone(ctx, normalized); err == nil {
		return lead, nil
	} else if !errors.Is(err, leads.ErrLeadNotFound) {
		return nil, err
	}
	if name == "" {
		name = normalized
	}
	lead, err := s.repo.Create(ctx, &leads.CreateLeadRequest{Name: name, Phone: normalized})
	if err != nil {
		// Another goroutine may have created the lead between our read
		// and write. Resolve once more before giving up.
		if existing, gerr := s.repo.GetByPhone(ctx, normalized); gerr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("conversation: create lead for %s: %w", normalized, err)
	}
	return lead, nil
}

// AppendMessage appends a message to a lead's conversation and notifies
// observers. Closed leads reject appends.
func (s *Store) AppendMessage(ctx context.Context, leadID string, msg leads.Message) (*leads.Message, error) {
	lock := s.leadLock(leadID)
	lock.Lock()
	defer lock.Unlock()

	lead, err := s.repo.Get(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead.Status == leads.StatusClosed {
		return nil, leads.ErrLeadClosed
	}

	stored, err := s.repo.AppendMessage(ctx, leadID, msg)
	if err != nil {
		return nil, err
	}

	lead, err = s.repo.Get(ctx, leadID)
	if err == nil {
		s.notifyMessage(ctx, lead, *stored)
	}
	return stored, nil
}

// SetStatus transitions the lead's status. The auto-pilot flag is
// derived from the target status so the pair never diverges.
func (s *Store) SetStatus(ctx context.Context, leadID string, status leads.Status) error {
	lock := s.leadLock(leadID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.repo.UpdateStatus(ctx, leadID, status, leads.AutoPilotForStatus(status)); err != nil {
		return err
	}
	s.notifyStatus(ctx, leadID)
	return nil
}

// SetAutoPilot flips the agent on or off for a lead, moving the status
// between ai_talking and human_intervention accordingly.
func (s *Store) SetAutoPilot(ctx context.Context, leadID string, enabled bool) error {
	return s.SetStatus(ctx, leadID, leads.StatusForAutoPilot(enabled))
}

// SetAuthStatus records an authorization-status change coming from the
// bank side. Reaching authorized also parks the conversation in
// waiting_signature when the current status allows it.
func (s *Store) SetAuthStatus(ctx context.Context, leadID string, status leads.AuthStatus, link string) error {
	lock := s.leadLock(leadID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.repo.UpdateAuthStatus(ctx, leadID, status, link); err != nil {
		return err
	}

	if status == leads.AuthAuthorized {
		if err := s.repo.UpdateStatus(ctx, leadID, leads.StatusWaitingSignature, false); err != nil {
			if !errors.Is(err, leads.ErrInvalidTransition) && !errors.Is(err, leads.ErrLeadClosed) {
				return err
			}
			s.logger.Debug("skipping waiting_signature hop", "lead_id", leadID, "reason", err)
		}
	}
	s.notifyStatus(ctx, leadID)
	return nil
}

// SetProposalReady marks whether the bank reported a formalized
// proposal for the lead.
func (s *Store) SetProposalReady(ctx context.Context, leadID string, ready bool) error {
	lock := s.leadLock(leadID)
	lock.Lock()
	defer lock.Unlock()
	return s.repo.SetProposalReady(ctx, leadID, ready)
}

// Close moves the lead to the terminal closed status.
func (s *Store) Close(ctx context.Context, leadID string) error {
	return s.SetStatus(ctx, leadID, leads.StatusClosed)
}

// ResetContext appends an internal context-reset marker. Transcript
// building ignores everything before the newest marker, so the next
// agent run starts from a clean slate without losing operator history.
func (s *Store) ResetContext(ctx context.Context, leadID string) (*leads.Message, error) {
	return s.AppendMessage(ctx, leadID, leads.Message{
		Role:     leads.RoleAIAgent,
		Content:  "Contexto da conversa reiniciado.",
		Internal: true,
		Kind:     leads.KindContextReset,
	})
}

func (s *Store) notifyMessage(ctx context.Context, lead *leads.Lead, msg leads.Message) {
	s.obsMu.RLock()
	defer s.obsMu.RUnlock()
	for _, o := range s.observers {
		o.MessageAppended(ctx, lead, msg)
	}
}

func (s *Store) notifyStatus(ctx context.Context, leadID string) {
	lead, err := s.repo.Get(ctx, leadID)
	if err != nil {
		return
	}
	s.obsMu.RLock()
	defer s.obsMu.RUnlock()
	for _, o := range s.observers {
		o.StatusChanged(ctx, lead)
	}
}
