package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/wisdompenai/wisdompen/internal/version"
)

// BackendPinger reports assistant backend reachability and identity.
type BackendPinger interface {
	Ping(ctx context.Context) error
	AssistantID() string
	Models() (chat, vision string)
}

// HealthHandler exposes read-only process and backend status.
type HealthHandler struct {
	backend      BackendPinger
	transcribers []string
	cacheEnabled bool
	logger       *slog.Logger
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(log *slog.Logger, backend BackendPinger, transcribers []string, cacheEnabled bool) *HealthHandler {
	return &HealthHandler{
		backend:      backend,
		transcribers: transcribers,
		cacheEnabled: cacheEnabled,
		logger:       log.With(slog.String("handler", "health")),
	}
}

func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.GET("/health", h.Health)
}

func (h *HealthHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type healthResponse struct {
	Status  string         `json:"status"`
	Version string         `json:"version"`
	Backend backendStatus  `json:"backend"`
	Feature featureSummary `json:"features"`
}

type backendStatus struct {
	Reachable   bool   `json:"reachable"`
	AssistantID string `json:"assistant_id,omitempty"`
	ChatModel   string `json:"chat_model"`
	VisionModel string `json:"vision_model"`
}

type featureSummary struct {
	TranscriptionBackends []string `json:"transcription_backends"`
	CacheEnabled          bool     `json:"cache_enabled"`
}

// Health godoc
// @Summary Process and backend status
// @Description Read-only status: backend reachability, configured model identifiers, and enabled features.
// @Tags health
// @Produce json
// @Success 200 {object} healthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	reachable := true
	status := "ok"
	if err := h.backend.Ping(ctx); err != nil {
		h.logger.Warn("backend unreachable", slog.Any("error", err))
		reachable = false
		status = "degraded"
	}
	chatModel, visionModel := h.backend.Models()

	return c.JSON(http.StatusOK, healthResponse{
		Status:  status,
		Version: version.GetInfo(),
		Backend: backendStatus{
			Reachable:   reachable,
			AssistantID: h.backend.AssistantID(),
			ChatModel:   chatModel,
			VisionModel: visionModel,
		},
		Feature: featureSummary{
			TranscriptionBackends: h.transcribers,
			CacheEnabled:          h.cacheEnabled,
		},
	})
}
