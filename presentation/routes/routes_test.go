package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	gorilla "github.com/gorilla/websocket"
	"github.com/hilthontt/lobby/application/membership"
	joinRequestUseCase "github.com/hilthontt/lobby/application/usecases/joinrequest"
	roomUseCase "github.com/hilthontt/lobby/application/usecases/room"
	"github.com/hilthontt/lobby/application/usecases/session"
	"github.com/hilthontt/lobby/infrastructure/feed"
	"github.com/hilthontt/lobby/infrastructure/logger"
	"github.com/hilthontt/lobby/infrastructure/persistence/memory"
	"github.com/hilthontt/lobby/infrastructure/websocket"
	"github.com/hilthontt/lobby/presentation/controllers/joinrequest"
	"github.com/hilthontt/lobby/presentation/controllers/room"
	wsCtrl "github.com/hilthontt/lobby/presentation/controllers/websocket"
	"github.com/hilthontt/lobby/presentation/httperr"
	"github.com/hilthontt/lobby/presentation/middlewares"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	binding.Validator = new(middlewares.DefaultValidator)
}

type api struct {
	router *gin.Engine
	hub    *websocket.Hub
}

func newAPI(t *testing.T) *api {
	t.Helper()
	log := logger.NewNop()
	f := feed.NewMemoryFeed(16)
	store := memory.NewStore(f)

	rooms := roomUseCase.NewRoomUseCase(store.Rooms(), store.JoinRequests(), nil, log)
	ledger := joinRequestUseCase.NewJoinRequestUseCase(store.Rooms(), store.JoinRequests(), nil, log)
	subscriber := membership.NewSubscriber(f, store.Rooms(), store.JoinRequests(), nil, log, membership.Options{
		RetryInitialInterval: 5 * time.Millisecond,
		RetryMaxInterval:     20 * time.Millisecond,
	})
	t.Cleanup(subscriber.Close)
	sessions := session.NewSessionUseCase(rooms, ledger, subscriber, nil, log)
	hub := websocket.NewHub("*", nil)
	t.Cleanup(hub.DisconnectAll)

	router := gin.New()
	v1 := router.Group("/api/v1")
	v1.Use(middlewares.IdentityMiddleware(nil, true, log))
	RoomRoutes(v1, room.NewRoomController(sessions), func(c *gin.Context) { c.Next() })
	JoinRequestRoutes(v1, joinrequest.NewJoinRequestController(sessions))
	WebsocketRoutes(v1, wsCtrl.NewWebSocketController(sessions, hub, log))

	return &api{router: router, hub: hub}
}

func (a *api) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(middlewares.UserIDHeader, userID)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (a *api) createRoom(t *testing.T, hostID, name string) room.RoomResponse {
	t.Helper()
	w := a.do(t, http.MethodPost, "/rooms", hostID, map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[room.RoomResponse](t, w)
}

func (a *api) requestJoin(t *testing.T, userID, code string) room.JoinRequestResponse {
	t.Helper()
	w := a.do(t, http.MethodPost, "/rooms/join", userID, map[string]string{"code": code})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	return decode[room.JoinRequestResponse](t, w)
}

func TestCreateRoom(t *testing.T) {
	a := newAPI(t)

	created := a.createRoom(t, "host", "  Movie Night ")
	assert.Equal(t, "Movie Night", created.Name)
	assert.Equal(t, "host", created.HostID)
	assert.True(t, created.IsHost)
	assert.Len(t, created.Code, 6)

	w := a.do(t, http.MethodPost, "/rooms", "host", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "name is required", decode[httperr.ErrorResponse](t, w).Message)

	w = a.do(t, http.MethodPost, "/rooms", "host", map[string]string{"name": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodPost, "/rooms", "", map[string]string{"name": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListAndGetRooms(t *testing.T) {
	a := newAPI(t)

	first := a.createRoom(t, "host", "First")
	second := a.createRoom(t, "host", "Second")
	a.createRoom(t, "other", "Elsewhere")

	w := a.do(t, http.MethodGet, "/rooms", "host", nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode[[]room.RoomResponse](t, w)
	require.Len(t, listed, 2)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, []string{listed[0].ID, listed[1].ID})

	w = a.do(t, http.MethodGet, "/rooms", "nobody", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))

	w = a.do(t, http.MethodGet, "/rooms/"+first.ID, "host", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodGet, "/rooms/"+first.ID, "stranger", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(t, http.MethodGet, "/rooms/missing", "host", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJoinFlow(t *testing.T) {
	a := newAPI(t)
	created := a.createRoom(t, "host", "Movie Night")

	request := a.requestJoin(t, "userB", strings.ToLower(created.Code))
	assert.Equal(t, created.ID, request.RoomID)
	assert.Equal(t, "pending", request.Status)

	w := a.do(t, http.MethodPost, "/rooms/join", "userB", map[string]string{"code": created.Code})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.do(t, http.MethodPost, "/rooms/join", "userC", map[string]string{"code": "AB"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodGet, "/rooms/"+created.ID+"/membership", "userB", nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[room.MembershipViewResponse](t, w)
	require.Len(t, view.PendingRequests, 1)
	assert.Empty(t, view.Members)

	w = a.do(t, http.MethodPost, "/join-requests/"+request.ID+"/approve", "userB", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(t, http.MethodPost, "/join-requests/"+request.ID+"/approve", "host", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "approved", decode[room.JoinRequestResponse](t, w).Status)

	w = a.do(t, http.MethodGet, "/rooms/"+created.ID+"/membership", "host", nil)
	require.Equal(t, http.StatusOK, w.Code)
	view = decode[room.MembershipViewResponse](t, w)
	require.Len(t, view.Members, 1)
	assert.Equal(t, "userB", view.Members[0].UserID)
	assert.Empty(t, view.PendingRequests)

	w = a.do(t, http.MethodPost, "/rooms/"+created.ID+"/leave", "userB", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodGet, "/rooms/"+created.ID+"/membership", "userB", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRejectRequest(t *testing.T) {
	a := newAPI(t)
	created := a.createRoom(t, "host", "Movie Night")
	request := a.requestJoin(t, "userB", created.Code)

	w := a.do(t, http.MethodDelete, "/join-requests/"+request.ID, "userB", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(t, http.MethodDelete, "/join-requests/"+request.ID, "host", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodDelete, "/join-requests/"+request.ID, "host", nil)
	assert.Equal(t, http.StatusOK, w.Code, "rejecting a missing request is a no-op")

	// the requester may ask again once rejected
	a.requestJoin(t, "userB", created.Code)
}

func TestDeleteRoom(t *testing.T) {
	a := newAPI(t)
	created := a.createRoom(t, "host", "Movie Night")
	a.requestJoin(t, "userB", created.Code)

	w := a.do(t, http.MethodDelete, "/rooms/"+created.ID, "userB", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(t, http.MethodDelete, "/rooms/"+created.ID, "host", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodGet, "/rooms/"+created.ID, "host", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodPost, "/rooms/join", "userC", map[string]string{"code": created.Code})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type wsFrame struct {
	Type   string                      `json:"type"`
	RoomID string                      `json:"roomId"`
	Data   room.MembershipViewResponse `json:"data"`
}

func dial(t *testing.T, server *httptest.Server, roomID, userID string) *gorilla.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/rooms/" + roomID + "/ws"
	header := http.Header{}
	header.Set(middlewares.UserIDHeader, userID)

	conn, resp, err := gorilla.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *gorilla.Conn) wsFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame wsFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestWebsocketStreamsViews(t *testing.T) {
	a := newAPI(t)
	server := httptest.NewServer(a.router)
	t.Cleanup(server.Close)

	created := a.createRoom(t, "host", "Movie Night")
	conn := dial(t, server, created.ID, "host")

	initial := readFrame(t, conn)
	assert.Equal(t, "membership.view", initial.Type)
	assert.Equal(t, created.ID, initial.RoomID)
	assert.Empty(t, initial.Data.PendingRequests)

	a.requestJoin(t, "userB", created.Code)

	var frame wsFrame
	for {
		frame = readFrame(t, conn)
		if len(frame.Data.PendingRequests) == 1 {
			break
		}
	}
	assert.Equal(t, "userB", frame.Data.PendingRequests[0].UserID)
	assert.Equal(t, 1, a.hub.ClientCount(created.ID))

	w := a.do(t, http.MethodDelete, "/rooms/"+created.ID, "host", nil)
	require.Equal(t, http.StatusOK, w.Code)

	for {
		frame = readFrame(t, conn)
		if frame.Type == "room.deleted" {
			break
		}
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, gorilla.IsCloseError(err, gorilla.CloseNormalClosure), "got %v", err)

	require.Eventually(t, func() bool { return a.hub.ClientCount(created.ID) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebsocketRefusesStrangers(t *testing.T) {
	a := newAPI(t)
	server := httptest.NewServer(a.router)
	t.Cleanup(server.Close)

	created := a.createRoom(t, "host", "Movie Night")

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/rooms/" + created.ID + "/ws"
	header := http.Header{}
	header.Set(middlewares.UserIDHeader, "stranger")

	_, resp, err := gorilla.DefaultDialer.DialContext(context.Background(), url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()
}
