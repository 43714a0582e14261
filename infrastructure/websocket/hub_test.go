package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/lobby/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, hub *Hub, serve func(cl *Client)) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := hub.Upgrade(w, r)
		if err != nil {
			return
		}
		cl := NewClient(conn, "c1", "alice", "r1", logger.NewNop())
		hub.AddClient(cl)
		defer hub.RemoveClient(cl)

		go cl.WritePump(hub.MessageSent)
		serve(cl)
		cl.ReadPump()
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestHub_FinishFlushesThenCloses(t *testing.T) {
	hub := NewHub("*", nil)
	url := newTestServer(t, hub, func(cl *Client) {
		assert.True(t, cl.Enqueue(NewMembershipView("r1", map[string]int{"members": 1})))
		assert.True(t, cl.Enqueue(NewRoomDeleted("r1")))
		cl.Finish()
		assert.False(t, cl.Enqueue(NewRoomDeleted("r1")))
	})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var first, second WSMessage
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, MembershipView, first.Type)
	assert.Equal(t, RoomDeleted, second.Type)
	assert.Equal(t, "r1", second.RoomID)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	require.Eventually(t, func() bool { return hub.ClientCount("r1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_CheckOrigin(t *testing.T) {
	hub := NewHub("http://allowed.test, http://also.test", nil)
	url := newTestServer(t, hub, func(cl *Client) { cl.Finish() })

	header := http.Header{}
	header.Set("Origin", "http://evil.test")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "http://also.test")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = conn.Close()
}

func TestHub_DisconnectAll(t *testing.T) {
	hub := NewHub("*", nil)
	connected := make(chan struct{})
	url := newTestServer(t, hub, func(*Client) { close(connected) })

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	<-connected
	assert.Equal(t, 1, hub.ClientCount("r1"))
	clients, rooms := hub.Totals()
	assert.Equal(t, 1, clients)
	assert.Equal(t, 1, rooms)

	hub.DisconnectAll()
	assert.Equal(t, 0, hub.ClientCount("r1"))
	clients, rooms = hub.Totals()
	assert.Zero(t, clients)
	assert.Zero(t, rooms)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}
