package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/callctl/internal/bridge"
	"github.com/tphakala/callctl/internal/capture"
	"github.com/tphakala/callctl/internal/hwevent"
)

const codeNoPendingGrant bridge.Code = "NO_PENDING_GRANT"

// Simulator is the injection surface of the simulated platform.
type Simulator interface {
	PlugWiredHeadset(plugged bool)
	ConnectBluetooth(connected bool)
	Emit(ev hwevent.Event)
	Resolve(token capture.Token, granted bool, reason string) error
	Commands() []string
	PendingGrants() []capture.Token
}

// HardwareRequest injects one platform hardware event.
type HardwareRequest struct {
	Event string `json:"event"` // scoStateChanged, headsetPlugged, bluetoothConnectionChanged
	State int    `json:"state"` // raw platform state
}

// GrantRequest answers a simulated permission dialog. Token 0 answers the
// most recent open dialog.
type GrantRequest struct {
	Token   uint64 `json:"token"`
	Granted bool   `json:"granted"`
	Reason  string `json:"reason"`
}

func (s *Server) handleSimHardware(c echo.Context) error {
	var req HardwareRequest
	if err := c.Bind(&req); err != nil {
		return s.reject(c, &bridge.Rejection{Code: bridge.CodeInvalidArgument, Message: "malformed hardware event"})
	}

	kind, err := hwevent.ParseKind(req.Event)
	if err != nil {
		return s.reject(c, &bridge.Rejection{Code: bridge.CodeInvalidArgument, Message: err.Error()})
	}

	switch kind {
	case hwevent.KindHeadsetPlugged:
		s.simulator.PlugWiredHeadset(hwevent.HeadsetPlugged(req.State).Connected)
	case hwevent.KindBluetoothConnectionChanged:
		s.simulator.ConnectBluetooth(hwevent.BluetoothConnectionChanged(req.State).Connected)
	default:
		s.simulator.Emit(hwevent.ScoStateChanged(req.State))
	}

	s.logger.Info("simulated hardware event injected", "event", req.Event, "state", req.State)
	return c.JSON(http.StatusAccepted, map[string]any{"accepted": true})
}

func (s *Server) handleSimGrant(c echo.Context) error {
	var req GrantRequest
	if err := c.Bind(&req); err != nil {
		return s.reject(c, &bridge.Rejection{Code: bridge.CodeInvalidArgument, Message: "malformed grant decision"})
	}

	if err := s.simulator.Resolve(capture.Token(req.Token), req.Granted, req.Reason); err != nil {
		return s.reject(c, &bridge.Rejection{Code: codeNoPendingGrant, Message: err.Error()})
	}

	s.logger.Info("simulated grant decision injected", "token", req.Token, "granted", req.Granted)
	return c.JSON(http.StatusAccepted, map[string]any{"accepted": true})
}

func (s *Server) handleSimCommands(c echo.Context) error {
	pending := s.simulator.PendingGrants()
	tokens := make([]uint64, len(pending))
	for i, t := range pending {
		tokens[i] = uint64(t)
	}
	commands := s.simulator.Commands()
	if commands == nil {
		commands = []string{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"commands":      commands,
		"pendingGrants": tokens,
	})
}
