package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/choregate/internal/auth"
	"github.com/dukerupert/choregate/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, userID int64) *Client {
	return &Client{
		hub:    hub,
		userID: userID,
		send:   make(chan []byte, sendBufferSize),
	}
}

func receive(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case data := <-c.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return got, true
	case <-time.After(50 * time.Millisecond):
		return Message{}, false
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(testLogger())

	c1 := mockClient(hub, 1)
	c2 := mockClient(hub, 2)
	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)
	hub.Unregister(c1) // second unregister must not panic

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}
	hub.Unregister(c2)
}

func TestPublishToAll(t *testing.T) {
	hub := NewHub(testLogger())
	c1 := mockClient(hub, 1)
	c2 := mockClient(hub, 2)
	hub.Register(c1)
	hub.Register(c2)

	hub.Publish(Event{Entity: "chore", Action: "completed", ID: 42})

	for _, c := range []*Client{c1, c2} {
		got, ok := receive(t, c)
		if !ok {
			t.Fatalf("client %d: timeout waiting for message", c.userID)
		}
		if got.Type != "chore_completed" {
			t.Errorf("type = %q, want chore_completed", got.Type)
		}
		if got.ID != 42 {
			t.Errorf("id = %d, want 42", got.ID)
		}
	}
}

func TestPublishToRecipients(t *testing.T) {
	hub := NewHub(testLogger())
	kid := mockClient(hub, 2)
	sibling := mockClient(hub, 3)
	hub.Register(kid)
	hub.Register(sibling)

	hub.Publish(Event{Entity: "notification", Action: "created", ID: 9, Recipients: []int64{2}})

	if _, ok := receive(t, kid); !ok {
		t.Error("recipient did not receive event")
	}
	if got, ok := receive(t, sibling); ok {
		t.Errorf("non-recipient received %+v", got)
	}
}

func TestPublishFullBuffer(t *testing.T) {
	hub := NewHub(testLogger())
	c := mockClient(hub, 1)
	hub.Register(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.Publish(Event{Entity: "chore", Action: "updated", ID: int64(i)})
	}
	// Must drop, not block.
	hub.Publish(Event{Entity: "chore", Action: "dropped", ID: 999})

	if got := len(c.send); got != sendBufferSize {
		t.Errorf("buffered = %d, want %d", got, sendBufferSize)
	}
	hub.Unregister(c)
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(testLogger())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			c := mockClient(hub, id)
			hub.Register(c)
			hub.Publish(Event{Entity: "chore", Action: "created", Recipients: []int64{id}})
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}(int64(i))
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}

func TestOnline(t *testing.T) {
	hub := NewHub(testLogger())
	phone := mockClient(hub, 5)
	laptop := mockClient(hub, 5)
	hub.Register(phone)
	hub.Register(laptop)

	hub.Unregister(phone)
	if !hub.Online(5) {
		t.Error("user with a remaining connection should be online")
	}
	hub.Unregister(laptop)
	if hub.Online(5) {
		t.Error("user without connections should be offline")
	}
}

func TestHandleWebSocket(t *testing.T) {
	hub := NewHub(testLogger())
	h := HandleWebSocket(hub, testLogger())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithActor(r.Context(), auth.Actor{UserID: 7, Role: model.RoleChild})
		h(w, r.WithContext(ctx))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := ws.Dial(ctx, srv.URL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	read := func() Message {
		t.Helper()
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return m
	}

	if got := read(); got.Type != "connected" || got.ID != 7 {
		t.Fatalf("first message = %+v", got)
	}
	hub.Publish(Event{Entity: "chore", Action: "created", ID: 1, Recipients: []int64{8}})
	hub.Publish(Event{Entity: "notification", Action: "created", ID: 3, Recipients: []int64{7}})
	if got := read(); got.Type != "notification_created" || got.ID != 3 {
		t.Errorf("message = %+v, want notification_created 3", got)
	}

	conn.Close(ws.StatusNormalClosure, "")
}

func TestHandleWebSocketRequiresActor(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleWebSocket(NewHub(testLogger()), testLogger())(rec, httptest.NewRequest("GET", "/ws", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
