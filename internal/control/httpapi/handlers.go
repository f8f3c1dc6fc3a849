package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/swordlegend/dava.engine/internal/logger"
)

// applyTimeout bounds how long a visibility change waits for the UI context
const applyTimeout = 2 * time.Second

// HostStatus describes the activity host.
type HostStatus struct {
	Alive     bool `json:"alive"`
	Visible   bool `json:"visible"`
	Listeners int  `json:"listeners"`
}

// AdapterStatus describes the lifecycle adapter.
type AdapterStatus struct {
	ID         string `json:"id"`
	State      string `json:"state"`
	DeviceOpen bool   `json:"device_open"`
	Registered bool   `json:"registered"`
	LastError  string `json:"last_error,omitempty"`
}

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	Host          HostStatus     `json:"host"`
	Adapter       *AdapterStatus `json:"adapter,omitempty"`
	Version       string         `json:"version,omitempty"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Timestamp     time.Time      `json:"timestamp"`
}

// VisibilityRequest is the body of PUT /api/v1/visibility.
type VisibilityRequest struct {
	Visible *bool `json:"visible"`
}

// VisibilityResponse reports the visibility after a request was applied.
type VisibilityResponse struct {
	Visible bool `json:"visible"`
}

// Health handles GET /healthz
func (s *Server) Health(c echo.Context) error {
	if !s.host.Alive() {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "host closed"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Status handles GET /api/v1/status
func (s *Server) Status(c echo.Context) error {
	resp := StatusResponse{
		Host: HostStatus{
			Alive:     s.host.Alive(),
			Visible:   s.host.IsVisible(),
			Listeners: s.host.Listeners(),
		},
		Version:       s.version,
		UptimeSeconds: time.Since(s.started).Seconds(),
		Timestamp:     time.Now(),
	}

	if s.adapter != nil {
		as := &AdapterStatus{
			ID:         s.adapter.ID(),
			State:      s.adapter.State().String(),
			DeviceOpen: s.adapter.HasDevice(),
			Registered: s.adapter.Registered(),
		}
		if err := s.adapter.LastError(); err != nil {
			as.LastError = err.Error()
		}
		resp.Adapter = as
	}

	return c.JSON(http.StatusOK, resp)
}

// GetVisibility handles GET /api/v1/visibility
func (s *Server) GetVisibility(c echo.Context) error {
	return c.JSON(http.StatusOK, VisibilityResponse{Visible: s.host.IsVisible()})
}

// SetVisibility handles PUT /api/v1/visibility. The response is written after
// the change has been applied on the UI context.
func (s *Server) SetVisibility(c echo.Context) error {
	var req VisibilityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Visible == nil {
		return echo.NewHTTPError(http.StatusBadRequest, `field "visible" is required`)
	}

	if err := s.host.SetVisible(*req.Visible); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "host is not accepting changes").SetInternal(err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), applyTimeout)
	defer cancel()
	if err := s.host.RunOnUISync(ctx, func() {}); err != nil {
		s.log.Warn("visibility change not confirmed", logger.Error(err))
		return c.JSON(http.StatusAccepted, VisibilityResponse{Visible: *req.Visible})
	}

	s.log.Info("visibility set via api", logger.Bool("visible", *req.Visible))
	return c.JSON(http.StatusOK, VisibilityResponse{Visible: s.host.IsVisible()})
}
