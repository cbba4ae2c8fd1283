package websocket_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clinicore/monitoring-engine/internal/api/websocket"
	"github.com/clinicore/monitoring-engine/internal/service/alerting"
)

func dial(t *testing.T, srv *httptest.Server) *gorilla.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_BroadcastsEvents(t *testing.T) {
	hub := websocket.NewHub(zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleEvents))
	defer srv.Close()
	defer hub.Stop(context.Background())

	first := dial(t, srv)
	second := dial(t, srv)

	// Registration races the publish without a brief wait.
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	hub.Publish(alerting.Event{
		Type:    alerting.EventAlertCreated,
		Payload: map[string]string{"title": "LCP critical degradation"},
	})

	for _, conn := range []*gorilla.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var evt struct {
			Type    string                 `json:"type"`
			Payload map[string]interface{} `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(raw, &evt))
		assert.Equal(t, string(alerting.EventAlertCreated), evt.Type)
		assert.Equal(t, "LCP critical degradation", evt.Payload["title"])
	}
}

func TestHub_StopDisconnectsClients(t *testing.T) {
	hub := websocket.NewHub(zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleEvents))
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Stop(context.Background())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
