package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Duo/internal/app"
	"github.com/dkeye/Duo/internal/app/orch"
	"github.com/dkeye/Duo/internal/config"
	"github.com/dkeye/Duo/internal/protocol"
)

func testConfig() *config.Config {
	return &config.Config{
		Mode:         "test",
		ReadLimit:    65536,
		PingPeriod:   time.Second,
		PongWait:     2 * time.Second,
		WriteWait:    time.Second,
		SendBuffer:   16,
		RateLimit:    100,
		RateInterval: time.Second,
	}
}

func newServer(t *testing.T, cfg *config.Config) (*httptest.Server, *orch.Orchestrator) {
	t.Helper()
	rooms := app.NewRoomManager()
	o := orch.New(rooms, app.NewRegistry(), app.SimplePolicy{})
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(SetupRouter(ctx, cfg, o, rooms))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv, o
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, raw string) {
	t.Helper()
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(raw)))
}

func readRaw(t *testing.T, ws *websocket.Conn) []byte {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	return data
}

func read(t *testing.T, ws *websocket.Conn) protocol.Message {
	t.Helper()
	msg, err := protocol.Decode(readRaw(t, ws))
	require.NoError(t, err)
	return msg
}

func join(t *testing.T, ws *websocket.Conn, room string) protocol.Joined {
	t.Helper()
	send(t, ws, `{"type":"join","roomId":"`+room+`"}`)
	joined, ok := read(t, ws).(protocol.Joined)
	require.True(t, ok)
	return joined
}

func TestHealthz(t *testing.T) {
	srv, _ := newServer(t, testConfig())
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestThirdJoinerRejected(t *testing.T) {
	srv, o := newServer(t, testConfig())
	x, y, z := dial(t, srv), dial(t, srv), dial(t, srv)

	jx := join(t, x, "abc")
	assert.Zero(t, jx.RoomSize)
	assert.NotEmpty(t, jx.ClientID)

	jy := join(t, y, "abc")
	assert.Equal(t, 1, jy.RoomSize)
	assert.NotEqual(t, jx.ClientID, jy.ClientID)
	assert.Equal(t, protocol.UserJoined{}, read(t, x))

	send(t, z, `{"type":"join","roomId":"abc"}`)
	assert.Equal(t, protocol.Error{Message: "Room full"}, read(t, z))
	require.NoError(t, z.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := z.ReadMessage()
	require.Error(t, err, "rejected joiner is disconnected")

	room, ok := o.Rooms.Get("abc")
	require.True(t, ok)
	ids := []string{}
	for _, m := range room.MembersSnapshot() {
		ids = append(ids, string(m.ID))
	}
	assert.Equal(t, []string{string(jx.ClientID), string(jy.ClientID)}, ids)
}

func TestRelayToOtherMemberOnly(t *testing.T) {
	srv, _ := newServer(t, testConfig())
	x, y := dial(t, srv), dial(t, srv)
	join(t, x, "abc")
	join(t, y, "abc")
	read(t, x) // user-joined

	offer := `{"type":"offer","sdp":{"type":"offer","sdp":"v=0\r\n"}}`
	send(t, y, offer)
	assert.JSONEq(t, offer, string(readRaw(t, x)))

	candidate := `{"type":"ice-candidate","candidate":{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host","sdpMid":"0","sdpMLineIndex":0}}`
	send(t, x, candidate)
	assert.JSONEq(t, candidate, string(readRaw(t, y)))

	// y never saw its own offer: the next frame it reads is x's hangup
	send(t, x, `{"type":"hangup"}`)
	assert.Equal(t, protocol.Hangup{}, read(t, y))
}

func TestRelayAcceptsBinaryFrames(t *testing.T) {
	srv, _ := newServer(t, testConfig())
	x, y := dial(t, srv), dial(t, srv)
	join(t, x, "abc")
	join(t, y, "abc")
	read(t, x)

	require.NoError(t, y.WriteMessage(websocket.BinaryMessage, []byte(`{"type":"hangup"}`)))
	require.NoError(t, x.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, data, err := x.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	assert.JSONEq(t, `{"type":"hangup"}`, string(data))
}

func TestMalformedKeepsConnection(t *testing.T) {
	srv, _ := newServer(t, testConfig())
	x := dial(t, srv)

	send(t, x, `hello`)
	assert.Equal(t, protocol.Error{Message: "Invalid JSON"}, read(t, x))

	send(t, x, `{"type":"join"}`)
	assert.Equal(t, protocol.Error{Message: "Missing roomId in join"}, read(t, x))

	send(t, x, `{"type":"join","roomId":"`+strings.Repeat("r", 200)+`"}`)
	assert.Equal(t, protocol.Error{Message: "Invalid roomId in join"}, read(t, x))

	send(t, x, `{"type":"joined","clientId":"me","roomSize":0}`)
	e, ok := read(t, x).(protocol.Error)
	require.True(t, ok)
	assert.Contains(t, e.Message, "joined")

	assert.Zero(t, join(t, x, "abc").RoomSize)

	send(t, x, `{"type":"join","roomId":"def"}`)
	assert.Equal(t, protocol.Error{Message: "Already joined"}, read(t, x))
}

func TestRateLimitReply(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 1
	cfg.RateInterval = time.Minute
	srv, _ := newServer(t, cfg)
	x := dial(t, srv)

	join(t, x, "abc")
	send(t, x, `{"type":"hangup"}`)
	assert.Equal(t, protocol.Error{Message: "Rate limit exceeded"}, read(t, x))
}

func TestEmptyRoomRemoved(t *testing.T) {
	srv, o := newServer(t, testConfig())
	x, y := dial(t, srv), dial(t, srv)
	join(t, x, "abc")
	join(t, y, "abc")

	_ = x.Close()
	_ = y.Close()
	require.Eventually(t, func() bool {
		_, ok := o.Rooms.Get("abc")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(srv.URL + "/api/rooms/abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// the identifier starts over
	assert.Zero(t, join(t, dial(t, srv), "abc").RoomSize)
}

func TestRoomsAPI(t *testing.T) {
	srv, _ := newServer(t, testConfig())

	resp, err := http.Post(srv.URL+"/api/rooms", "application/json", nil)
	require.NoError(t, err)
	var created RoomResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Len(t, string(created.ID), 6)

	x := dial(t, srv)
	join(t, x, string(created.ID))

	resp, err = http.Get(srv.URL + "/api/rooms")
	require.NoError(t, err)
	var list struct {
		Rooms []struct {
			ID          string `json:"id"`
			MemberCount int    `json:"member_count"`
		} `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, string(created.ID), list.Rooms[0].ID)
	assert.Equal(t, 1, list.Rooms[0].MemberCount)

	resp, err = http.Get(srv.URL + "/api/rooms/" + string(created.ID))
	require.NoError(t, err)
	var one RoomResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&one))
	resp.Body.Close()
	assert.Equal(t, 1, one.MemberCount)
	assert.Len(t, one.Members, 1)
}
