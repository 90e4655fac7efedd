package channel

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"

	"github.com/weedbox/pokerclient"
)

// testServer 測試用的 websocket echo server，記錄收到的訊息並能主動推事件
type testServer struct {
	mu       sync.Mutex
	server   *httptest.Server
	upgrader websocket.Upgrader
	conns    []*websocket.Conn
	received []pokerclient.Message
}

func newTestServer(t *testing.T) *testServer {
	ts := &testServer{}
	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := ts.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade failed: %v", err)
			return
		}
		ts.mu.Lock()
		ts.conns = append(ts.conns, conn)
		ts.mu.Unlock()

		go func() {
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				var msg pokerclient.Message
				if err := json.Unmarshal(data, &msg); err != nil {
					continue
				}
				ts.mu.Lock()
				ts.received = append(ts.received, msg)
				ts.mu.Unlock()
			}
		}()
	}))
	return ts
}

func (ts *testServer) url() string {
	return "ws" + strings.TrimPrefix(ts.server.URL, "http")
}

func (ts *testServer) push(t *testing.T, event pokerclient.Event) {
	data, err := json.Marshal(event)
	assert.Nil(t, err)

	ts.mu.Lock()
	defer ts.mu.Unlock()
	conn := ts.conns[len(ts.conns)-1]
	assert.Nil(t, conn.WriteMessage(websocket.TextMessage, data))
}

func (ts *testServer) dropClients() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for _, conn := range ts.conns {
		conn.Close()
	}
	ts.conns = nil
}

func (ts *testServer) receivedTypes() []pokerclient.MessageType {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	types := make([]pokerclient.MessageType, 0, len(ts.received))
	for _, msg := range ts.received {
		types = append(types, msg.Type)
	}
	return types
}

func (ts *testServer) close() {
	ts.dropClients()
	ts.server.Close()
}

func Test_WebSocketChannel_ConnectAndReceive(t *testing.T) {
	ts := newTestServer(t)
	defer ts.close()

	ch := NewWebSocketChannel(DefaultConfig(ts.url()))
	defer ch.Close()

	connectedCh := make(chan struct{}, 1)
	eventCh := make(chan pokerclient.Event, 1)
	ch.OnConnected(func() {
		connectedCh <- struct{}{}
	})
	ch.OnEvent(func(event pokerclient.Event) {
		eventCh <- event
	})

	assert.Nil(t, ch.Connect())

	select {
	case <-connectedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("expected connected callback")
	}

	ts.push(t, pokerclient.Event{
		Type:    pokerclient.EventType_ThemeChanged,
		Payload: json.RawMessage(`{"theme":"midnight"}`),
	})

	select {
	case event := <-eventCh:
		assert.Equal(t, pokerclient.EventType_ThemeChanged, event.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("expected event callback")
	}
}

func Test_WebSocketChannel_Send(t *testing.T) {
	ts := newTestServer(t)
	defer ts.close()

	ch := NewWebSocketChannel(DefaultConfig(ts.url()))
	defer ch.Close()

	assert.Nil(t, ch.Connect())

	msg, err := pokerclient.NewMessage(pokerclient.MessageType_JoinRoom, pokerclient.JoinRoomParam{RoomCode: "R123"})
	assert.Nil(t, err)
	assert.Nil(t, ch.Send(msg))

	assert.Eventually(t, func() bool {
		types := ts.receivedTypes()
		return len(types) == 1 && types[0] == pokerclient.MessageType_JoinRoom
	}, 2*time.Second, 10*time.Millisecond)
}

func Test_WebSocketChannel_SendBeforeConnect(t *testing.T) {
	ch := NewWebSocketChannel(DefaultConfig("ws://localhost:1"))

	msg, err := pokerclient.NewMessage(pokerclient.MessageType_ToggleReady, pokerclient.ToggleReadyParam{RoomCode: "R123"})
	assert.Nil(t, err)
	assert.Equal(t, ErrNotConnected, ch.Send(msg))
}

func Test_WebSocketChannel_ReconnectAfterDrop(t *testing.T) {
	ts := newTestServer(t)
	defer ts.close()

	config := DefaultConfig(ts.url())
	config.ReconnectWait = 50 * time.Millisecond
	ch := NewWebSocketChannel(config)
	defer ch.Close()

	connectedCh := make(chan struct{}, 4)
	disconnectedCh := make(chan error, 4)
	ch.OnConnected(func() {
		connectedCh <- struct{}{}
	})
	ch.OnDisconnected(func(err error) {
		disconnectedCh <- err
	})

	assert.Nil(t, ch.Connect())
	<-connectedCh

	ts.dropClients()

	select {
	case <-disconnectedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("expected disconnected callback")
	}

	select {
	case <-connectedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("expected reconnect")
	}
}

func Test_WebSocketChannel_CloseStopsReconnect(t *testing.T) {
	ts := newTestServer(t)

	config := DefaultConfig(ts.url())
	config.ReconnectWait = 50 * time.Millisecond
	ch := NewWebSocketChannel(config)

	assert.Nil(t, ch.Connect())
	assert.Nil(t, ch.Close())

	assert.Equal(t, ErrClosed, ch.Connect())
	ts.close()
}
