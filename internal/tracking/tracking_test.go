package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/auth"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mockClient(hub *Hub, orderID int64) *Client {
	return &Client{hub: hub, orderID: orderID, send: make(chan []byte, 4), logger: discardLogger()}
}

func runHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func TestHubBroadcastsToOrderRoomOnly(t *testing.T) {
	hub := runHub(t)
	watching := mockClient(hub, 1)
	other := mockClient(hub, 2)
	hub.register <- watching
	hub.register <- other

	hub.Broadcast(Event{OrderID: 1, Status: "preparando"})

	select {
	case msg := <-watching.send:
		var got Event
		require.NoError(t, json.Unmarshal(msg, &got))
		assert.Equal(t, "preparando", got.Status)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	select {
	case <-other.send:
		t.Fatal("event leaked to another order")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubUnregisterCleansRoom(t *testing.T) {
	hub := runHub(t)
	client := mockClient(hub, 3)
	hub.register <- client
	require.Eventually(t, func() bool { return hub.Subscribers(3) == 1 }, time.Second, 5*time.Millisecond)

	hub.unregister <- client
	require.Eventually(t, func() bool { return hub.Subscribers(3) == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-client.send
	assert.False(t, open)
}

func TestRelayForwardsRedisMessages(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hub := runHub(t)
	client := mockClient(hub, 42)
	hub.register <- client

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- Relay(ctx, rdb, hub, discardLogger()) }()
	require.Eventually(t, func() bool {
		return rdb.PubSubNumPat(context.Background()).Val() == 1
	}, 2*time.Second, 10*time.Millisecond)

	pub := NewPublisher(rdb)
	require.NoError(t, pub.Publish(context.Background(), Event{OrderID: 42, Status: "en camino"}))

	select {
	case msg := <-client.send:
		assert.Contains(t, string(msg), `"status":"en camino"`)
		assert.Contains(t, string(msg), `"order_id":42`)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not deliver")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestDecodeMessageTakesOrderFromChannel(t *testing.T) {
	event, err := decodeMessage(&redis.Message{Channel: Channel(9), Payload: `{"status":"entregado"}`})
	require.NoError(t, err)
	assert.Equal(t, int64(9), event.OrderID)

	_, err = decodeMessage(&redis.Message{Channel: "orders:status:x", Payload: `{}`})
	assert.Error(t, err)
}

type fakeAuthorizer struct {
	owner int64
}

func (f fakeAuthorizer) Authorize(_ context.Context, _ int64, viewerID int64, staff bool) error {
	if staff || viewerID == f.owner {
		return nil
	}
	return errors.New("forbidden")
}

func TestServeWSStreamsEvents(t *testing.T) {
	hub := runHub(t)
	issuer := auth.NewIssuer("ws-secret", time.Hour)
	mw := auth.Middleware{Issuer: issuer, Logger: discardLogger()}
	h := NewHandler(hub, fakeAuthorizer{owner: 7}, discardLogger(), nil)

	r := chi.NewRouter()
	r.Route("/orders", func(r chi.Router) {
		r.Use(mw.Authenticate)
		h.MountRoutes(r)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	stranger, err := issuer.Issue(8, auth.RoleUsuario)
	require.NoError(t, err)
	_, resp, err := websocket.DefaultDialer.Dial(base+"/orders/5/ws?token="+stranger, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)

	owner, err := issuer.Issue(7, auth.RoleUsuario)
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(base+"/orders/5/ws?token="+owner, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers(5) == 1 }, time.Second, 5*time.Millisecond)
	hub.Broadcast(Event{OrderID: 5, Status: "entregado"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var got Event
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, "entregado", got.Status)
}
