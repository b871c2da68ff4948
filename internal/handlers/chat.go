package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wisdompenai/wisdompen/internal/relay"
	"github.com/wisdompenai/wisdompen/internal/stream"
)

// ChatHandler accepts one chat turn and streams the reply back as SSE.
type ChatHandler struct {
	orchestrator *relay.Orchestrator
	maxBytes     int64
	maxFiles     int
	logger       *slog.Logger
}

// NewChatHandler creates the chat handler with the upload caps.
func NewChatHandler(log *slog.Logger, orchestrator *relay.Orchestrator, maxBytes int64, maxFiles int) *ChatHandler {
	return &ChatHandler{
		orchestrator: orchestrator,
		maxBytes:     maxBytes,
		maxFiles:     maxFiles,
		logger:       log.With(slog.String("handler", "chat")),
	}
}

func (h *ChatHandler) Register(e *echo.Echo) {
	e.POST("/chat", h.Chat)
}

// Chat godoc
// @Summary Submit a chat turn
// @Description Accepts a message with optional attachments, a media URL, or a pre-computed transcript, and streams the assistant reply as server-sent events terminated by [END].
// @Tags chat
// @Accept multipart/form-data
// @Produce text/event-stream
// @Param message formData string false "User message"
// @Param url formData string false "Media URL to transcribe"
// @Param session_id formData string false "Session identifier"
// @Param files formData file false "Attachments"
// @Success 200 {string} string "SSE stream"
// @Failure 400 {object} map[string]string
// @Failure 413 {object} map[string]string
// @Router /chat [post]
func (h *ChatHandler) Chat(c echo.Context) error {
	turn, err := h.parseTurn(c)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	sink := stream.NewSSESink(c.Response(), c.Response())

	// The orchestrator terminates the stream on every path; its error is
	// already rendered as the user-facing chunk.
	if err := h.orchestrator.HandleTurn(c.Request().Context(), turn, sink); err != nil {
		h.logger.Warn("turn ended with error", slog.Any("error", err))
	}
	return nil
}

func (h *ChatHandler) parseTurn(c echo.Context) (relay.Turn, error) {
	turn := relay.Turn{
		SessionID:  c.FormValue("session_id"),
		Message:    c.FormValue("message"),
		MediaURL:   c.FormValue("url"),
		Transcript: c.FormValue("transcript"),
		Title:      c.FormValue("title"),
		Author:     c.FormValue("author"),
	}

	form, err := c.MultipartForm()
	if err != nil {
		// Plain form posts without attachments are fine.
		return turn, nil
	}
	files := form.File["files"]
	if len(files) > h.maxFiles {
		return relay.Turn{}, echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("too many attachments: max %d", h.maxFiles))
	}
	for _, header := range files {
		attachment, err := h.readAttachment(header)
		if err != nil {
			return relay.Turn{}, err
		}
		turn.Attachments = append(turn.Attachments, attachment)
	}
	return turn, nil
}

func (h *ChatHandler) readAttachment(header *multipart.FileHeader) (relay.Attachment, error) {
	if header.Size > h.maxBytes {
		return relay.Attachment{}, echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("attachment %s exceeds max size %d bytes", header.Filename, h.maxBytes))
	}
	file, err := header.Open()
	if err != nil {
		return relay.Attachment{}, echo.NewHTTPError(http.StatusBadRequest, "unreadable attachment")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		return relay.Attachment{}, echo.NewHTTPError(http.StatusBadRequest, "unreadable attachment")
	}
	if int64(len(data)) > h.maxBytes {
		return relay.Attachment{}, echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("attachment %s exceeds max size %d bytes", header.Filename, h.maxBytes))
	}
	return relay.Attachment{
		Name: header.Filename,
		Mime: header.Header.Get("Content-Type"),
		Data: data,
	}, nil
}
