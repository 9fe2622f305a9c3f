package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/consigdesk/consig-ai-platform/internal/conversation"
	"github.com/consigdesk/consig-ai-platform/internal/leads"
	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

type fakeOutbound struct {
	sent      []string
	audioSent []string
	err       error
}

func (f *fakeOutbound) SendText(ctx context.Context, phone, text string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeOutbound) SendAudio(ctx context.Context, phone, base64Audio string) error {
	if f.err != nil {
		return f.err
	}
	f.audioSent = append(f.audioSent, base64Audio)
	return nil
}

type fakeHandoffNotifier struct {
	reasons []string
}

func (f *fakeHandoffNotifier) NotifyHandoff(ctx context.Context, lead *leads.Lead, reason string) error {
	f.reasons = append(f.reasons, reason)
	return nil
}

type inboxFixture struct {
	store    *conversation.Store
	outbound *fakeOutbound
	notifier *fakeHandoffNotifier
	router   http.Handler
	lead     *leads.Lead
}

func newInboxFixture(t *testing.T) *inboxFixture {
	t.Helper()
	repo := leads.NewInMemoryRepository()
	store := conversation.NewStore(repo, logging.Default())

	lead, err := repo.Create(context.Background(), &leads.CreateLeadRequest{
		Name:  "Maria Souza",
		Phone: "5511988887777",
		CPF:   "123.456.789-00",
	})
	if err != nil {
		t.Fatalf("create lead: %v", err)
	}

	outbound := &fakeOutbound{}
	notifier := &fakeHandoffNotifier{}
	handler := NewAdminInboxHandler(AdminInboxConfig{
		Store:    store,
		Outbound: outbound,
		Notifier: notifier,
		Logger:   logging.Default(),
	})

	r := chi.NewRouter()
	r.Get("/admin/inbox", handler.ListInbox)
	r.Get("/admin/inbox/{leadID}", handler.GetConversation)
	r.Post("/admin/inbox/{leadID}/messages", handler.SendMessage)
	r.Post("/admin/inbox/{leadID}/autopilot", handler.SetAutoPilot)
	r.Post("/admin/inbox/{leadID}/transfer", handler.Transfer)
	r.Post("/admin/inbox/{leadID}/close", handler.CloseConversation)
	r.Post("/admin/inbox/{leadID}/reset", handler.ResetContext)
	r.Post("/admin/inbox/{leadID}/auth-status", handler.SetAuthStatus)
	r.Get("/admin/inbox/{leadID}/runs", handler.ListRuns)

	return &inboxFixture{store: store, outbound: outbound, notifier: notifier, router: r, lead: lead}
}

func (f *inboxFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestListInbox(t *testing.T) {
	f := newInboxFixture(t)

	rec := f.do(t, http.MethodGet, "/admin/inbox", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Conversations []InboxEntry `json:"conversations"`
		Total         int          `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || resp.Conversations[0].Name != "Maria Souza" {
		t.Errorf("unexpected listing: %+v", resp)
	}
}

func TestSendMessage_TextKeepsAutoPilot(t *testing.T) {
	f := newInboxFixture(t)
	// Lead talking to the agent.
	if err := f.store.SetStatus(context.Background(), f.lead.ID, leads.StatusAITalking); err != nil {
		t.Fatalf("seed status: %v", err)
	}

	rec := f.do(t, http.MethodPost, "/admin/inbox/"+f.lead.ID+"/messages", `{"text":"Olá, sou o atendente"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	lead, err := f.store.GetLead(context.Background(), f.lead.ID)
	if err != nil {
		t.Fatalf("reload lead: %v", err)
	}
	if lead.Status != leads.StatusAITalking || !lead.AutoPilot {
		t.Errorf("text send must not touch auto-pilot, got %s autopilot=%v", lead.Status, lead.AutoPilot)
	}
	last := lead.LastMessage()
	if last == nil || last.Role != leads.RoleHumanAgent || last.Content != "Olá, sou o atendente" {
		t.Errorf("operator message not recorded: %+v", last)
	}
	if len(f.outbound.sent) != 1 {
		t.Errorf("expected WhatsApp delivery, got %v", f.outbound.sent)
	}
}

func TestSendMessage_AudioVoiceNote(t *testing.T) {
	f := newInboxFixture(t)
	if err := f.store.SetStatus(context.Background(), f.lead.ID, leads.StatusAITalking); err != nil {
		t.Fatalf("seed status: %v", err)
	}

	rec := f.do(t, http.MethodPost, "/admin/inbox/"+f.lead.ID+"/messages", `{"audio":"UklGRg=="}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	lead, _ := f.store.GetLead(context.Background(), f.lead.ID)
	if lead.Status != leads.StatusHumanIntervention {
		t.Errorf("audio send must force human intervention, got %s", lead.Status)
	}
	last := lead.LastMessage()
	if last == nil || last.Attachment == nil || last.Attachment.Kind != leads.AttachmentAudio {
		t.Errorf("expected audio attachment message, got %+v", last)
	}
	if len(f.outbound.audioSent) != 1 {
		t.Errorf("expected audio delivery, got %v", f.outbound.audioSent)
	}
	if len(f.outbound.sent) != 0 {
		t.Errorf("no text delivery expected, got %v", f.outbound.sent)
	}
}

func TestSendMessage_PersistsEvenWhenDeliveryFails(t *testing.T) {
	f := newInboxFixture(t)
	f.outbound.err = context.DeadlineExceeded

	rec := f.do(t, http.MethodPost, "/admin/inbox/"+f.lead.ID+"/messages", `{"text":"oi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Delivered bool `json:"delivered"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Delivered {
		t.Error("delivery flag must be false")
	}

	lead, _ := f.store.GetLead(context.Background(), f.lead.ID)
	if lead.LastMessage() == nil {
		t.Error("message must be persisted despite delivery failure")
	}
}

func TestSetAutoPilot(t *testing.T) {
	f := newInboxFixture(t)

	rec := f.do(t, http.MethodPost, "/admin/inbox/"+f.lead.ID+"/autopilot", `{"enabled":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	lead, _ := f.store.GetLead(context.Background(), f.lead.ID)
	if !lead.AutoPilot || lead.Status != leads.StatusAITalking {
		t.Errorf("expected ai_talking with autopilot, got %s %v", lead.Status, lead.AutoPilot)
	}
}

func TestTransfer_NotifiesOperators(t *testing.T) {
	f := newInboxFixture(t)

	rec := f.do(t, http.MethodPost, "/admin/inbox/"+f.lead.ID+"/transfer", `{"reason":"Cliente irritado"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(f.notifier.reasons) != 1 || f.notifier.reasons[0] != "Cliente irritado" {
		t.Errorf("expected notification, got %v", f.notifier.reasons)
	}
	lead, _ := f.store.GetLead(context.Background(), f.lead.ID)
	if lead.Status != leads.StatusHumanIntervention {
		t.Errorf("expected human_intervention, got %s", lead.Status)
	}
}

func TestCloseConversation_ThenSendConflicts(t *testing.T) {
	f := newInboxFixture(t)

	rec := f.do(t, http.MethodPost, "/admin/inbox/"+f.lead.ID+"/close", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/admin/inbox/"+f.lead.ID+"/messages", `{"text":"oi"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for closed lead, got %d", rec.Code)
	}
}

func TestResetContext(t *testing.T) {
	f := newInboxFixture(t)

	rec := f.do(t, http.MethodPost, "/admin/inbox/"+f.lead.ID+"/reset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	lead, _ := f.store.GetLead(context.Background(), f.lead.ID)
	last := lead.LastMessage()
	if last == nil || last.Kind != leads.KindContextReset || !last.Internal {
		t.Errorf("expected internal reset marker, got %+v", last)
	}
}

func TestSetAuthStatus_Validation(t *testing.T) {
	f := newInboxFixture(t)

	rec := f.do(t, http.MethodPost, "/admin/inbox/"+f.lead.ID+"/auth-status", `{"status":"banana"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/admin/inbox/"+f.lead.ID+"/auth-status", `{"status":"link_generated","link":"https://c6/form"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	lead, _ := f.store.GetLead(context.Background(), f.lead.ID)
	if lead.AuthStatus != leads.AuthLinkGenerated || lead.AuthLink != "https://c6/form" {
		t.Errorf("auth status not applied: %s %s", lead.AuthStatus, lead.AuthLink)
	}
}

func TestGetConversation_NotFound(t *testing.T) {
	f := newInboxFixture(t)

	rec := f.do(t, http.MethodGet, "/admin/inbox/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListRuns_EmptyWithoutRunLog(t *testing.T) {
	f := newInboxFixture(t)

	rec := f.do(t, http.MethodGet, "/admin/inbox/"+f.lead.ID+"/runs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"runs":[]`) {
		t.Errorf("expected empty runs, got %s", rec.Body)
	}
}
