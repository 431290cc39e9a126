package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/iurisilvio/mipssim/timing/core"
	"github.com/iurisilvio/mipssim/timing/pipeline"
)

const writeWait = 10 * time.Second

// The default origin check rejects cross-origin browser upgrades.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// StreamDone is the last message of a stream.
type StreamDone struct {
	Outcome pipeline.Outcome    `json:"outcome"`
	Stats   pipeline.Statistics `json:"stats"`
	Error   string              `json:"error,omitempty"`
}

// handleStream reads one Request, then sends a snapshot per cycle and a
// closing StreamDone.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade", "err", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxBodyBytes)

	var req Request
	if err := conn.ReadJSON(&req); err != nil {
		s.logger.Debug("failed to read stream request", "err", err)
		return
	}

	program, err := loadProgram(req.Text)
	if err != nil {
		s.send(conn, ErrorResponse{Error: err.Error()})
		return
	}

	config := s.config
	config.Forwarding = bool(req.DataForwarding)

	var writeErr error
	c := core.NewCore("Core", sim.NewSerialEngine(), program,
		core.WithLogger(s.logger),
		core.WithMaxCycles(config.MaxCycles),
		core.WithPipelineOptions(config.PipelineOptions()...),
		core.WithObserver(func(snap pipeline.Snapshot) {
			if writeErr == nil {
				writeErr = s.send(conn, snap)
			}
		}),
	)

	outcome, err := c.Run()
	if writeErr != nil {
		s.logger.Debug("stream closed early", "err", writeErr)
		return
	}

	done := StreamDone{Outcome: outcome, Stats: c.Pipeline.Stats()}
	if err != nil {
		done.Error = err.Error()
	}
	if err := s.send(conn, done); err != nil {
		return
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

func (s *Server) send(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := conn.WriteJSON(v); err != nil {
		s.logger.Debug("failed to write stream message", "err", err)
		return err
	}
	return nil
}
