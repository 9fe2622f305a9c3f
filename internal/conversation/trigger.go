package conversation

import (
	"context"
	"sync"

	"github.com/consigdesk/consig-ai-platform/internal/leads"
	"github.com/consigdesk/consig-ai-platform/internal/observability/metrics"
	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

// RunLockTable tracks which leads currently have an agent run in
// flight. At most one run per lead exists at any time; concurrent
// triggers lose the TryAcquire race and walk away.
type RunLockTable struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewRunLockTable creates an empty lock table.
func NewRunLockTable() *RunLockTable {
	return &RunLockTable{held: make(map[string]struct{})}
}

// TryAcquire claims the run slot for a lead. It returns false when a
// run is already in flight.
func (t *RunLockTable) TryAcquire(leadID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.held[leadID]; ok {
		return false
	}
	t.held[leadID] = struct{}{}
	return true
}

// Release frees the run slot for a lead.
func (t *RunLockTable) Release(leadID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.held, leadID)
}

// Held reports whether a run is in flight for the lead.
func (t *RunLockTable) Held(leadID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.held[leadID]
	return ok
}

// Runner executes one agent run for a lead.
type Runner interface {
	Run(ctx context.Context, leadID string)
}

// AutoReplyTrigger decides, after every append to a conversation,
// whether to start an agent run. A run starts only when auto-pilot is
// on, the newest message came from the lead, and no run is already in
// flight for that lead. Runs that lose to an in-flight run are not
// queued; when the in-flight run finishes the trigger re-evaluates
// against the latest state, so a message that arrived mid-run still
// gets answered.
type AutoReplyTrigger struct {
	store   *Store
	runner  Runner
	locks   *RunLockTable
	metrics *metrics.AgentMetrics
	logger  *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAutoReplyTrigger wires the trigger to a store and a runner.
// Metrics may be nil.
func NewAutoReplyTrigger(store *Store, runner Runner, m *metrics.AgentMetrics, logger *logging.Logger) *AutoReplyTrigger {
	if store == nil {
		panic("conversation: store required")
	}
	if runner == nil {
		panic("conversation: runner required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AutoReplyTrigger{
		store:   store,
		runner:  runner,
		locks:   NewRunLockTable(),
		metrics: m,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// MessageAppended evaluates the trigger conditions for a lead and, when
// they all hold, starts an agent run in the background.
func (t *AutoReplyTrigger) MessageAppended(ctx context.Context, lead *leads.Lead, msg leads.Message) {
	t.evaluate(ctx, lead.ID)
}

// StatusChanged is part of the Observer interface. Status changes alone
// never start a run.
func (t *AutoReplyTrigger) StatusChanged(ctx context.Context, lead *leads.Lead) {}

func (t *AutoReplyTrigger) evaluate(ctx context.Context, leadID string) {
	lead, err := t.store.GetLead(ctx, leadID)
	if err != nil {
		t.logger.Error("trigger evaluation failed", "error", err, "lead_id", leadID)
		return
	}
	if !lead.AutoPilot || lead.Status == leads.StatusClosed {
		return
	}
	last := lead.LastMessage()
	if last == nil || last.Role != leads.RoleLead {
		return
	}
	if !t.locks.TryAcquire(leadID) {
		t.logger.Debug("run already in flight, skipping trigger", "lead_id", leadID)
		return
	}

	t.metrics.ObserveRunStarted()
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			t.locks.Release(leadID)
			// Re-evaluate against the latest message. A message that
			// arrived while this run was in flight fires a fresh run;
			// a normal agent reply leaves the newest role non-lead and
			// the chain stops.
			t.evaluate(t.ctx, leadID)
		}()
		t.runner.Run(t.ctx, leadID)
	}()
}

// Wait blocks until all in-flight runs (and any chained re-runs) have
// finished. Used by tests and graceful shutdown.
func (t *AutoReplyTrigger) Wait() {
	t.wg.Wait()
}

// Shutdown cancels in-flight runs and waits for them to drain.
func (t *AutoReplyTrigger) Shutdown(ctx context.Context) error {
	t.cancel()
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
