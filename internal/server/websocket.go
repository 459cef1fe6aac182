package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/inchinet/qrscanner/internal/detect"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin in development
		// In production, you should check against allowed origins
		return true
	},
}

// ScanMessage is one server-to-client message on the scan socket. Each binary
// frame the client sends produces a sequence of in_progress messages followed
// by one terminal success or not_found message.
type ScanMessage struct {
	Status          string  `json:"status"` // "in_progress", "success", "not_found", "error"
	Frame           int     `json:"frame"`
	StrategyIndex   int     `json:"strategy_index,omitempty"`
	StrategyCount   int     `json:"strategy_count,omitempty"`
	Strategy        string  `json:"strategy,omitempty"`
	Text            string  `json:"text,omitempty"`
	PrepassScale    float64 `json:"prepass_scale,omitempty"`
	StrategiesTried int     `json:"strategies_tried,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// wsProgress forwards per-strategy progress to the websocket client.
type wsProgress struct {
	send  func(ScanMessage)
	frame int
}

func (p *wsProgress) OnStart(int) {}

func (p *wsProgress) OnStrategy(index, total int, name string) {
	p.send(ScanMessage{
		Status:        "in_progress",
		Frame:         p.frame,
		StrategyIndex: index,
		StrategyCount: total,
		Strategy:      name,
	})
}

func (p *wsProgress) OnComplete(detect.Outcome) {}

// scanWebSocketHandler streams detection over a websocket: the client sends
// camera frames as binary PNG/JPEG messages and receives progress and outcome
// messages per frame.
func (s *Server) scanWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("Scan WebSocket connection established", "remote_addr", r.RemoteAddr)

	s.handleScanConnection(r, conn)
}

func (s *Server) handleScanConnection(r *http.Request, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	done := make(chan struct{})
	defer close(done)

	// Ping to keep the connection alive between frames.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	// Concurrent writes on a gorilla connection are not allowed; progress
	// callbacks and terminal messages share one writer.
	var writeMu sync.Mutex
	send := func(msg ScanMessage) {
		data, err := json.Marshal(msg)
		if err != nil {
			slog.Error("Failed to marshal scan message", "error", err)
			return
		}
		writeMu.Lock()
		err = conn.WriteMessage(websocket.TextMessage, data)
		writeMu.Unlock()
		if err != nil {
			slog.Error("Failed to send scan message", "error", err)
			return
		}
		websocketMessagesTotal.WithLabelValues("sent").Inc()
	}

	frame := 0
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Error("Scan WebSocket error", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType != websocket.BinaryMessage {
			continue
		}
		frame++
		s.processScanFrame(r, send, frame, data)
	}
}

// processScanFrame decodes one binary frame and runs the full strategy
// orchestration over it, streaming per-strategy progress.
func (s *Server) processScanFrame(r *http.Request, send func(ScanMessage), frame int, data []byte) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		send(ScanMessage{
			Status: "error",
			Frame:  frame,
			Error:  fmt.Sprintf("Failed to decode frame: %v", err),
		})
		return
	}

	start := time.Now()
	outcome, err := s.runDetection(r.Context(), img, &wsProgress{send: send, frame: frame})
	duration := time.Since(start)

	if err != nil {
		detectRequestsTotal.WithLabelValues("error").Inc()
		send(ScanMessage{
			Status: "error",
			Frame:  frame,
			Error:  fmt.Sprintf("Detection failed: %v", err),
		})
		return
	}

	recordOutcomeMetrics(outcome, duration)

	msg := ScanMessage{
		Status:          "not_found",
		Frame:           frame,
		StrategiesTried: outcome.StrategiesTried,
	}
	if outcome.Found {
		msg.Status = "success"
		msg.Text = outcome.Text
		msg.Strategy = outcome.Strategy
		msg.StrategyIndex = outcome.StrategyIndex
		msg.PrepassScale = outcome.PrepassScale
	}
	send(msg)
}
