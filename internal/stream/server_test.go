package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truthengine/internal/config"
	"truthengine/internal/registry"
	"truthengine/internal/session"
	"truthengine/internal/sources"
)

const irsText = "URGENT: This is the IRS. Your refund is waiting. " +
	"Reply within 24 hours to irs.refunds@gmail.com or face arrest warrant."

func testServer(t *testing.T) (*Server, *session.Manager, string) {
	t.Helper()

	cfg := config.DefaultConfig()
	reg := registry.New()
	require.NoError(t, sources.RegisterDefaults(reg, cfg))
	reg.Seal()

	manager := session.NewManager(cfg, reg, nil)
	t.Cleanup(manager.Close)

	srv := NewServer(cfg, manager)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return srv, manager, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(10*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	tag, payload, err := DecodeFrame(data)
	require.NoError(t, err)
	return tag, payload
}

func sendMsg(t *testing.T, ws *websocket.Conn, msg Inbound) {
	t.Helper()
	frame, err := EncodeInbound(msg)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, frame))
}

func TestConnectionEstablished(t *testing.T) {
	_, _, url := testServer(t)
	ws := dial(t, url)

	tag, _ := readFrame(t, ws)
	assert.Equal(t, MsgConnectionEstablished, tag)
}

func TestPingPong(t *testing.T) {
	_, _, url := testServer(t)
	ws := dial(t, url)
	readFrame(t, ws) // connection_established

	sendMsg(t, ws, Ping{})
	tag, _ := readFrame(t, ws)
	assert.Equal(t, MsgPong, tag)
}

func TestProtocolErrorLeavesConnectionUsable(t *testing.T) {
	_, _, url := testServer(t)
	ws := dial(t, url)
	readFrame(t, ws)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"nonsense"}`)))
	tag, payload := readFrame(t, ws)
	assert.Equal(t, MsgProtocolError, tag)
	assert.Contains(t, string(payload), "unknown message type")

	// The same connection still serves valid traffic.
	sendMsg(t, ws, Ping{})
	tag, _ = readFrame(t, ws)
	assert.Equal(t, MsgPong, tag)
}

// undispatchedMessage is an inbound variant no dispatch arm handles.
type undispatchedMessage struct{}

func (undispatchedMessage) inbound() {}

func TestDispatchRejectsUnhandledVariant(t *testing.T) {
	srv, _, _ := testServer(t)

	c := &clientConn{
		out:          make(chan []byte, 1),
		done:         make(chan struct{}),
		writeTimeout: time.Second,
	}
	srv.dispatch(c, undispatchedMessage{})

	select {
	case frame := <-c.out:
		tag, payload, err := DecodeFrame(frame)
		require.NoError(t, err)
		assert.Equal(t, MsgProtocolError, tag)
		assert.Contains(t, string(payload), "unhandled message type")
	default:
		t.Fatal("unhandled variant was silently dropped")
	}
}

func TestTextVerificationStreamsToFinalResult(t *testing.T) {
	_, _, url := testServer(t)
	ws := dial(t, url)
	readFrame(t, ws)

	sendMsg(t, ws, StartTextVerification{Text: irsText})

	tag, payload := readFrame(t, ws)
	require.Equal(t, MsgSessionSnapshot, tag)
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(payload, &snap))
	assert.NotEmpty(t, snap.SessionID)

	if snap.Terminal {
		// The pipeline outran the subscription; the snapshot carries the
		// terminal result instead of live events.
		require.NotNil(t, snap.Verdict)
		assert.Equal(t, "definite-fraud", string(snap.Verdict.Tag))
		return
	}

	// Events arrive FIFO with monotonic progress until the final result.
	lastProgress := snap.Progress
	for {
		tag, payload = readFrame(t, ws)
		if tag == string(session.EventFinalResult) {
			var ev session.Event
			require.NoError(t, json.Unmarshal(payload, &ev))
			require.NotNil(t, ev.Verdict)
			assert.Equal(t, "definite-fraud", string(ev.Verdict.Tag))
			assert.Equal(t, 1.0, ev.Verdict.Confidence)
			return
		}

		var ev session.Event
		if err := json.Unmarshal(payload, &ev); err == nil && ev.SessionID == snap.SessionID {
			if ev.Progress < lastProgress {
				t.Fatalf("progress regressed from %d to %d at %s", lastProgress, ev.Progress, tag)
			}
			lastProgress = ev.Progress
		}
	}
}

func TestResumeAfterDisconnectDeliversTerminal(t *testing.T) {
	_, manager, url := testServer(t)

	// First connection starts the session and drops immediately.
	ws := dial(t, url)
	readFrame(t, ws)
	sendMsg(t, ws, StartTextVerification{Text: irsText})
	tag, payload := readFrame(t, ws)
	require.Equal(t, MsgSessionSnapshot, tag)
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(payload, &snap))
	ws.Close()

	// The disconnect does not cancel server-side work.
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if s, err := manager.Resume(snap.SessionID); err == nil && s.Stage().Terminal() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	// A fresh connection resumes by id and gets the terminal snapshot.
	ws2 := dial(t, url)
	readFrame(t, ws2)
	sendMsg(t, ws2, ResumeSession{SessionID: snap.SessionID})

	tag, payload = readFrame(t, ws2)
	require.Equal(t, MsgSessionSnapshot, tag)
	var resumed session.Snapshot
	require.NoError(t, json.Unmarshal(payload, &resumed))
	assert.True(t, resumed.Terminal)
	require.NotNil(t, resumed.Verdict)
	assert.Equal(t, "definite-fraud", string(resumed.Verdict.Tag))
	assert.GreaterOrEqual(t, resumed.Progress, snap.Progress)
}

func TestResumeUnknownSessionIsProtocolError(t *testing.T) {
	_, _, url := testServer(t)
	ws := dial(t, url)
	readFrame(t, ws)

	sendMsg(t, ws, ResumeSession{SessionID: "no-such-session"})
	tag, payload := readFrame(t, ws)
	assert.Equal(t, MsgProtocolError, tag)
	assert.Contains(t, string(payload), "session not found")
}
