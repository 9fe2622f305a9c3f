package inboxstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/consigdesk/consig-ai-platform/internal/leads"
	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	waitFor(t, func() bool { return hub.ClientCount() == 1 })
	return conn
}

func TestHub_BroadcastsMessages(t *testing.T) {
	hub := NewHub(logging.Default())
	conn := dialHub(t, hub)

	lead := &leads.Lead{ID: "lead-1", Name: "Maria", Phone: "5511988887777", Status: leads.StatusAITalking, AutoPilot: true}
	hub.MessageAppended(context.Background(), lead, leads.Message{
		Role:      leads.RoleLead,
		Content:   "quero simular",
		Kind:      leads.KindChat,
		CreatedAt: time.Now(),
	})

	var event Event
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Type != "message" || event.LeadID != "lead-1" || event.Content != "quero simular" {
		t.Errorf("unexpected event: %+v", event)
	}
	if !event.AutoPilot {
		t.Error("auto-pilot flag missing from event")
	}
}

func TestHub_BroadcastsStatusChanges(t *testing.T) {
	hub := NewHub(logging.Default())
	conn := dialHub(t, hub)

	hub.StatusChanged(context.Background(), &leads.Lead{
		ID:     "lead-2",
		Status: leads.StatusHumanIntervention,
	})

	var event Event
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Type != "status" || event.Status != string(leads.StatusHumanIntervention) {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestHub_DropsDisconnectedClients(t *testing.T) {
	hub := NewHub(logging.Default())
	conn := dialHub(t, hub)

	conn.Close()
	// A broadcast after close must prune the dead client.
	waitFor(t, func() bool {
		hub.StatusChanged(context.Background(), &leads.Lead{ID: "x"})
		return hub.ClientCount() == 0
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
