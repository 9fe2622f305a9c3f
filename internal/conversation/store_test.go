package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/consigdesk/consig-ai-platform/internal/leads"
	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

type recordingObserver struct {
	mu       sync.Mutex
	messages []leads.Message
	statuses []leads.Status
}

func (r *recordingObserver) MessageAppended(ctx context.Context, lead *leads.Lead, msg leads.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recordingObserver) StatusChanged(ctx context.Context, lead *leads.Lead) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, lead.Status)
}

func newStoreFixture(t *testing.T) (*Store, *leads.Lead) {
	t.Helper()
	store := NewStore(leads.NewInMemoryRepository(), logging.Default())
	lead, err := store.GetOrCreateByPhone(context.Background(), "+55 (11) 99999-8888", "Carlos")
	if err != nil {
		t.Fatalf("create lead: %v", err)
	}
	return store, lead
}

func TestStore_GetOrCreateByPhone(t *testing.T) {
	store, lead := newStoreFixture(t)

	if lead.Phone != "5511999998888" {
		t.Errorf("expected normalized phone, got %s", lead.Phone)
	}

	again, err := store.GetOrCreateByPhone(context.Background(), "5511999998888", "ignored")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if again.ID != lead.ID {
		t.Error("same phone must resolve to the same lead")
	}
	if again.Name != "Carlos" {
		t.Errorf("existing lead name must be kept, got %s", again.Name)
	}
}

func TestStore_ObserversNotified(t *testing.T) {
	store, lead := newStoreFixture(t)
	obs := &recordingObserver{}
	store.AddObserver(obs)

	if _, err := store.AppendMessage(context.Background(), lead.ID, leads.Message{
		Role:    leads.RoleLead,
		Content: "oi",
	}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.SetAutoPilot(context.Background(), lead.ID, false); err != nil {
		t.Fatalf("set auto pilot: %v", err)
	}

	if len(obs.messages) != 1 || obs.messages[0].Content != "oi" {
		t.Errorf("expected message notification, got %v", obs.messages)
	}
	if len(obs.statuses) != 1 || obs.statuses[0] != leads.StatusHumanIntervention {
		t.Errorf("expected status notification, got %v", obs.statuses)
	}
}

func TestStore_AutoPilotStatusPairing(t *testing.T) {
	store, lead := newStoreFixture(t)

	if err := store.SetAutoPilot(context.Background(), lead.ID, false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	got, _ := store.GetLead(context.Background(), lead.ID)
	if got.Status != leads.StatusHumanIntervention || got.AutoPilot {
		t.Errorf("expected human_intervention with flag off, got %s/%v", got.Status, got.AutoPilot)
	}

	if err := store.SetAutoPilot(context.Background(), lead.ID, true); err != nil {
		t.Fatalf("enable: %v", err)
	}
	got, _ = store.GetLead(context.Background(), lead.ID)
	if got.Status != leads.StatusAITalking || !got.AutoPilot {
		t.Errorf("expected ai_talking with flag on, got %s/%v", got.Status, got.AutoPilot)
	}
}

func TestStore_ClosedRejectsAppends(t *testing.T) {
	store, lead := newStoreFixture(t)

	if err := store.SetStatus(context.Background(), lead.ID, leads.StatusHumanIntervention); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := store.Close(context.Background(), lead.ID); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := store.AppendMessage(context.Background(), lead.ID, leads.Message{
		Role:    leads.RoleLead,
		Content: "tem alguém aí?",
	}); !errors.Is(err, leads.ErrLeadClosed) {
		t.Fatalf("expected ErrLeadClosed, got %v", err)
	}

	if err := store.SetAutoPilot(context.Background(), lead.ID, true); !errors.Is(err, leads.ErrLeadClosed) {
		t.Fatalf("closed is terminal, got %v", err)
	}
}

func TestStore_AuthorizedParksInWaitingSignature(t *testing.T) {
	store, lead := newStoreFixture(t)

	if err := store.SetStatus(context.Background(), lead.ID, leads.StatusAITalking); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := store.SetAuthStatus(context.Background(), lead.ID, leads.AuthLinkGenerated, "https://bank.example/f/1"); err != nil {
		t.Fatalf("link generated: %v", err)
	}
	if err := store.SetAuthStatus(context.Background(), lead.ID, leads.AuthAuthorized, ""); err != nil {
		t.Fatalf("authorized: %v", err)
	}

	got, _ := store.GetLead(context.Background(), lead.ID)
	if got.AuthStatus != leads.AuthAuthorized {
		t.Errorf("expected authorized, got %s", got.AuthStatus)
	}
	if got.Status != leads.StatusWaitingSignature {
		t.Errorf("expected waiting_signature, got %s", got.Status)
	}
	if got.AuthLink != "https://bank.example/f/1" {
		t.Errorf("auth link must survive the authorized update, got %q", got.AuthLink)
	}
}

func TestStore_ResetContextMarker(t *testing.T) {
	store, lead := newStoreFixture(t)

	if _, err := store.AppendMessage(context.Background(), lead.ID, leads.Message{
		Role:    leads.RoleLead,
		Content: "histórico antigo",
	}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.ResetContext(context.Background(), lead.ID); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := store.AppendMessage(context.Background(), lead.ID, leads.Message{
		Role:    leads.RoleLead,
		Content: "novo começo",
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, _ := store.GetLead(context.Background(), lead.ID)
	turns := BuildTranscript(got.Messages)
	if len(turns) != 1 || turns[0].Content != "novo começo" {
		t.Errorf("transcript must start after the reset marker, got %v", turns)
	}
}
