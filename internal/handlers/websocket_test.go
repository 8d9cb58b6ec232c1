package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"capteur/internal/models"
	"capteur/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type envelope struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func dialStream(t *testing.T, hub *service.Hub, query string) *websocket.Conn {
	t.Helper()
	s := &service.Service{Stream: hub}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(s, nil)
	r.GET("/ws", h.wsConnect)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	u.Scheme = "ws"
	u.Path = "/ws"
	u.RawQuery = query

	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if env.Type != "hello" {
		t.Fatalf("expected hello, got %+v", env)
	}
	return conn
}

// waitSubscribed blocks until the handler has registered with the hub.
func waitSubscribed(t *testing.T, hub *service.Hub) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for hub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocket_StreamsAcceptedMeasures(t *testing.T) {
	hub := service.NewHub(nil)
	conn := dialStream(t, hub, "")
	waitSubscribed(t, hub)

	hub.Publish(models.MeasureRecord{ID: "a", CapteurID: "c1", Temperature: 21.5})

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read measure: %v", err)
	}
	if env.Type != "measure" {
		t.Fatalf("expected type=measure, got %+v", env)
	}
	var rec models.MeasureRecord
	if err := json.Unmarshal(env.Data, &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.ID != "a" || rec.Temperature != 21.5 {
		t.Fatalf("unexpected measure: %+v", rec)
	}
}

func TestWebSocket_CapteurFilter(t *testing.T) {
	hub := service.NewHub(nil)
	conn := dialStream(t, hub, "capteur=c2")
	waitSubscribed(t, hub)

	hub.Publish(models.MeasureRecord{ID: "skip", CapteurID: "c1"})
	hub.Publish(models.MeasureRecord{ID: "keep", CapteurID: "c2"})

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	var rec models.MeasureRecord
	_ = json.Unmarshal(env.Data, &rec)
	if rec.ID != "keep" {
		t.Fatalf("filter let %q through", rec.ID)
	}
}

func TestWebSocket_DisconnectUnsubscribes(t *testing.T) {
	hub := service.NewHub(nil)
	conn := dialStream(t, hub, "")
	waitSubscribed(t, hub)

	_ = conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber leaked after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
