package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/callctl/internal/bridge"
)

// CommandResponse wraps a successful bridge result.
type CommandResponse struct {
	Result any `json:"result"`
}

// ErrorResponse wraps a rejected command.
type ErrorResponse struct {
	Error *bridge.Rejection `json:"error"`
}

// StatusForCode maps a rejection code to its HTTP status.
func StatusForCode(code bridge.Code) int {
	switch code {
	case bridge.CodeInvalidRoute, bridge.CodeInvalidArgument:
		return http.StatusBadRequest
	case bridge.CodeUnknownMethod:
		return http.StatusNotFound
	case bridge.CodeNotAuthorized, codeNoPendingGrant:
		return http.StatusConflict
	case bridge.CodeUnsupported:
		return http.StatusNotImplemented
	case bridge.CodePlatformRejected:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleCommand invokes the bridge method named in the path with the
// request body as its parameters.
func (s *Server) handleCommand(c echo.Context) error {
	method := c.Param("method")

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return s.reject(c, &bridge.Rejection{Code: bridge.CodeInvalidArgument, Message: "unreadable request body"})
	}

	result, err := s.bridge.Invoke(c.Request().Context(), method, json.RawMessage(body))
	if err != nil {
		return s.reject(c, bridge.AsRejection(err))
	}
	return c.JSON(http.StatusOK, CommandResponse{Result: result})
}

func (s *Server) reject(c echo.Context, rej *bridge.Rejection) error {
	return c.JSON(StatusForCode(rej.Code), ErrorResponse{Error: rej})
}

// handleRecentEvents returns the latest notifications, oldest first.
func (s *Server) handleRecentEvents(c echo.Context) error {
	var query struct {
		Limit int `query:"limit"`
	}
	if err := c.Bind(&query); err != nil || query.Limit < 0 {
		return s.reject(c, &bridge.Rejection{Code: bridge.CodeInvalidArgument, Message: "limit must be a non-negative integer"})
	}
	return c.JSON(http.StatusOK, map[string]any{"events": s.hub.Recent(query.Limit)})
}
