package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingNotifier struct {
	mu     sync.Mutex
	notes  []string
	alerts []string
	err    error
}

func (r *recordingNotifier) SendNotification(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, text)
	return r.err
}

func (r *recordingNotifier) SendAlert(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, text)
	return r.err
}

func TestMulti_TriesEveryNotifier(t *testing.T) {
	boom := errors.New("down")
	a := &recordingNotifier{err: boom}
	b := &recordingNotifier{}
	m := Multi{a, b, NewLogNotifier(zap.NewNop())}

	err := m.SendAlert(context.Background(), "cycle aborted")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"cycle aborted"}, b.alerts, "a failing notifier does not stop the rest")

	assert.NoError(t, Multi{b}.SendNotification(context.Background(), "ok"))
	assert.Equal(t, []string{"ok"}, b.notes)
}

func TestTelegramNotifier_RequiresSecrets(t *testing.T) {
	_, err := NewTelegramNotifier(TelegramOptions{Token: "t"}, zap.NewNop())
	assert.Error(t, err)
}

func TestTelegramNotifier_Send(t *testing.T) {
	var mu sync.Mutex
	var got struct {
		path string
		body map[string]string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got.path = r.URL.Path
		got.body = nil
		_ = json.NewDecoder(r.Body).Decode(&got.body)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg, err := NewTelegramNotifier(TelegramOptions{BaseURL: srv.URL, Token: "123:abc", ChatID: "42"}, zap.NewNop())
	require.NoError(t, err)

	last := func() (string, map[string]string) {
		mu.Lock()
		defer mu.Unlock()
		return got.path, got.body
	}

	require.NoError(t, tg.SendNotification(context.Background(), "Agent Execution #1"))
	path, body := last()
	assert.Equal(t, "/bot123:abc/sendMessage", path)
	assert.Equal(t, "42", body["chat_id"])
	assert.Equal(t, "Agent Execution #1", body["text"])

	require.NoError(t, tg.SendAlert(context.Background(), "health check failed"))
	_, body = last()
	assert.True(t, strings.HasSuffix(body["text"], "health check failed"))
}

func TestTelegramNotifier_APIErrorAndBreaker(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	tg, err := NewTelegramNotifier(TelegramOptions{BaseURL: srv.URL, Token: "t", ChatID: "c"}, zap.NewNop())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		err := tg.SendNotification(context.Background(), "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "chat not found")
	}
	err = tg.SendNotification(context.Background(), "x")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "open breaker does not hit the API")
}

func TestTelegramNotifier_RateLimitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg, err := NewTelegramNotifier(TelegramOptions{BaseURL: srv.URL, Token: "t", ChatID: "c", RatePerMinute: 1}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, tg.SendNotification(context.Background(), "first"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, tg.SendNotification(ctx, "second"), "bucket is empty for a minute")
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish("cycle", map[string]int{"execution": 3}))
	require.NoError(t, hub.SendAlert(context.Background(), "boom"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first, second Message
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, "cycle", first.Type)
	assert.Equal(t, map[string]interface{}{"execution": 3.0}, first.Payload)
	assert.Equal(t, "alert", second.Type)
	assert.Equal(t, "boom", second.Payload)
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, hub.Publish("cycle", nil), "publishing with no clients is fine")
	hub.Close()
}
