package server

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inchinet/qrscanner/internal/testutil"
)

func dialScanSocket(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/scan"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readScanMessage(t *testing.T, conn *websocket.Conn) ScanMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(30*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg ScanMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestScanWebSocketDecodesFrame(t *testing.T) {
	srv := newTestServer(t)
	conn := dialScanSocket(t, srv)

	qr, err := testutil.GenerateQR(testutil.DefaultQRConfig("table-7"))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, qr))

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()))

	// A crisp code is caught by the robust pre-pass, so the first message may
	// already be terminal.
	for {
		msg := readScanMessage(t, conn)
		if msg.Status == "in_progress" {
			continue
		}
		require.Equal(t, "success", msg.Status)
		assert.Equal(t, "table-7", msg.Text)
		assert.Equal(t, 1, msg.Frame)
		return
	}
}

func TestScanWebSocketReportsProgressAndNotFound(t *testing.T) {
	srv := newTestServer(t)
	conn := dialScanSocket(t, srv)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testutil.GenerateNoise(64, 64, 11)))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()))

	var progress []ScanMessage
	for {
		msg := readScanMessage(t, conn)
		if msg.Status == "in_progress" {
			progress = append(progress, msg)
			continue
		}
		require.Equal(t, "not_found", msg.Status)
		assert.Equal(t, 13, msg.StrategiesTried)
		break
	}

	require.Len(t, progress, 13)
	assert.Equal(t, 1, progress[0].StrategyIndex)
	assert.Equal(t, 13, progress[0].StrategyCount)
	assert.Equal(t, "original", progress[0].Strategy)
	assert.Equal(t, "gray-contrast-2x", progress[12].Strategy)
}

func TestScanWebSocketRejectsUndecodableFrame(t *testing.T) {
	srv := newTestServer(t)
	conn := dialScanSocket(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("not an image")))

	msg := readScanMessage(t, conn)
	assert.Equal(t, "error", msg.Status)
	assert.Contains(t, msg.Error, "Failed to decode frame")
}

func TestScanWebSocketIgnoresTextMessages(t *testing.T) {
	srv := newTestServer(t)
	conn := dialScanSocket(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))

	// Text messages are ignored; a following binary frame is still frame 1.
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testutil.GenerateNoise(32, 32, 3)))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()))

	for {
		msg := readScanMessage(t, conn)
		if msg.Status == "in_progress" {
			continue
		}
		assert.Equal(t, "not_found", msg.Status)
		assert.Equal(t, 1, msg.Frame)
		return
	}
}
