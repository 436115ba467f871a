package finnhub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrades(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	got := parseTrades([]byte(`{"type":"trade","data":[{"s":"BINANCE:BTCUSDT","p":42000.5,"v":0.1,"t":1699999999000}]}`), now)
	require.Len(t, got, 1)
	assert.Equal(t, "BTCUSDT", got[0].Token)
	assert.Equal(t, 42000.5, got[0].Price)
	assert.Equal(t, time.UnixMilli(1699999999000).UTC(), got[0].Timestamp)

	assert.Empty(t, parseTrades([]byte(`{"type":"ping"}`), now))
	assert.Empty(t, parseTrades([]byte(`not json`), now))
}

func TestClientStreamsObservations(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var sub map[string]string
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subscribed <- sub["symbol"]
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"trade","data":[{"s":"ETHUSDT","p":2000,"v":1,"t":1700000000000}]}`))
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := New("key", wsURL, []string{"ETHUSDT"}, 10*time.Millisecond, time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, c.Connect(ctx))
	require.True(t, c.IsConnected())
	require.NoError(t, c.Subscribe(ctx))
	assert.Equal(t, "ETHUSDT", <-subscribed)

	obs, _ := c.Read(ctx)
	select {
	case o := <-obs:
		assert.Equal(t, "ETHUSDT", o.Token)
		assert.Equal(t, 2000.0, o.Price)
	case <-ctx.Done():
		t.Fatal("no observation received")
	}
	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected())
}
