package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"drill-review-service/internal/app"
	"github.com/gorilla/websocket"
)

func TestWebSocketLeaderboardStream(t *testing.T) {
	srv := newTestServer(t)
	sessionID := srv.liveSession(t)

	server := httptest.NewServer(srv.router)
	defer server.Close()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/leaderboard?sessionId=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Initial snapshot comes first.
	_, payload := readNext(conn, t, "leaderboard")
	if entries := payload["entries"].([]any); len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	waitForSubscriber(t, srv.services.Hub, sessionID)
	if _, err := srv.services.Answers.Submit(context.Background(), app.SubmitInput{
		LeaderID: "l2", SessionID: sessionID, QuestionID: "q1", Text: "contain",
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, payload = readNext(conn, t, "leaderboard")
	answered := map[string]float64{}
	for _, e := range payload["entries"].([]any) {
		entry := e.(map[string]any)
		answered[entry["leaderId"].(string)] = entry["answered"].(float64)
	}
	if answered["l2"] != 1 || answered["l1"] != 0 {
		t.Fatalf("expected l2 with one answer, got %v", answered)
	}

	if err := conn.WriteJSON(map[string]any{"type": "refresh"}); err != nil {
		t.Fatalf("write refresh: %v", err)
	}
	readNext(conn, t, "leaderboard")

	if err := conn.WriteJSON(map[string]any{"type": "answer"}); err != nil {
		t.Fatalf("write unsupported: %v", err)
	}
	readNext(conn, t, "error")
}

func TestWebSocketRequiresSession(t *testing.T) {
	srv := newTestServer(t)
	server := httptest.NewServer(srv.router)
	defer server.Close()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/leaderboard"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail without sessionId")
	}
	if resp == nil || resp.StatusCode != 400 {
		t.Fatalf("expected 400 response, got %v", resp)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

func waitForSubscriber(t *testing.T, hub *app.LeaderboardHub, sessionID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers(sessionID) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("no subscriber registered for %s", sessionID)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEnqueueStopsAfterWriterExits(t *testing.T) {
	send := make(chan outboundMessage[any], 1)
	writerDone := make(chan struct{})

	if !enqueue(send, writerDone, outboundMessage[any]{Type: "leaderboard"}) {
		t.Fatalf("expected first message to be buffered")
	}
	close(writerDone)

	done := make(chan bool, 1)
	go func() {
		done <- enqueue(send, writerDone, outboundMessage[any]{Type: "leaderboard"})
	}()
	select {
	case ok := <-done:
		if ok {
			t.Fatalf("enqueue reported success with no writer")
		}
	case <-time.After(time.Second):
		t.Fatalf("enqueue blocked on a full buffer after the writer stopped")
	}
}

func TestWebSocketReleasesSubscriptionOnDisconnect(t *testing.T) {
	srv := newTestServer(t)
	sessionID := srv.liveSession(t)

	server := httptest.NewServer(srv.router)
	defer server.Close()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/leaderboard?sessionId=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	readNext(conn, t, "leaderboard")
	waitForSubscriber(t, srv.services.Hub, sessionID)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.services.Hub.Subscribers(sessionID) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscription for %s still registered after disconnect", sessionID)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
