package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/recondor/recondor/internal/portscan"
)

const (
	wsWriteWait      = 10 * time.Second
	wsReadLimit      = 4096
	wsRequestTimeout = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is enforced by the CORS middleware config; the
	// websocket endpoint mirrors it.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// OutcomeMessage streams one per-port probe outcome to the client.
type OutcomeMessage struct {
	Type  string `json:"type"`
	Port  int    `json:"port"`
	State string `json:"state"`
	Cause string `json:"cause,omitempty"`
}

// ResultMessage carries the final scan result.
type ResultMessage struct {
	Type     string           `json:"type"`
	PortScan *portscan.Result `json:"port_scan"`
}

// ErrorMessage reports a failed scan to the client.
type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// liveScanHandler streams per-port outcomes as a scan runs. The client
// sends one ScanRequest as JSON and receives outcome messages followed
// by a result (or error) message.
func (s *Server) liveScanHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Websocket upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsRequestTimeout))

	var req ScanRequest
	if err := conn.ReadJSON(&req); err != nil {
		s.writeSocketError(conn, "invalid scan request: "+err.Error())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.writeSocketError(conn, "invalid scan request: "+err.Error())
		return
	}

	spec := req.Ports
	if spec == "" {
		spec = s.config.Scanning.DefaultPorts
	}
	ports, err := portscan.ParsePorts(spec)
	if err != nil {
		s.writeSocketError(conn, err.Error())
		return
	}

	cfg := portscan.Config{
		Timeout: s.config.Scanning.Timeout,
		Workers: s.config.Scanning.Workers,
		Ports:   ports,
		// Invoked serially from the scan collector, so writing to the
		// socket here is race-free.
		OnOutcome: func(o portscan.Outcome) {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			_ = conn.WriteJSON(OutcomeMessage{
				Type:  "outcome",
				Port:  o.Port,
				State: string(o.State),
				Cause: string(o.Cause),
			})
		},
	}
	if req.TimeoutMS > 0 {
		cfg.Timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}
	if req.Workers > 0 {
		cfg.Workers = req.Workers
	}

	result, err := s.runScan(r.Context(), req.Target, cfg)
	if err != nil {
		s.writeSocketError(conn, err.Error())
		return
	}

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(ResultMessage{Type: "result", PortScan: result}); err != nil {
		s.logger.Error("Failed to write scan result to websocket", "error", err.Error())
	}
}

func (s *Server) writeSocketError(conn *websocket.Conn, message string) {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	_ = conn.WriteJSON(ErrorMessage{Type: "error", Error: message})
}
