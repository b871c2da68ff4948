package assistant

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// contextWithoutCancel detaches the thread-continuity appends from the
// request lifetime while still bounding them.
func contextWithoutCancel(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
}

// submitVision runs the synchronous vision path: one chat-completions call
// with the image inlined as a data URL. The user text and the resulting reply
// are appended to the thread afterwards for continuity, fire-and-forget with
// respect to the returned reply.
func (c *Client) submitVision(ctx context.Context, thread Thread, content Content) (Reply, error) {
	text := content.Text
	if strings.TrimSpace(text) == "" {
		text = "Describe this image."
	}

	mime := content.ImageMime
	if mime == "" {
		mime = "image/png"
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(content.Image)

	messages := []map[string]any{}
	if strings.TrimSpace(c.systemPrompt) != "" {
		messages = append(messages, map[string]any{
			"role":    "system",
			"content": c.systemPrompt,
		})
	}
	messages = append(messages, map[string]any{
		"role": "user",
		"content": []map[string]any{
			{"type": "text", "text": text},
			{"type": "image_url", "image_url": map[string]string{"url": dataURL}},
		},
	})

	payload := map[string]any{
		"model":    c.visionModel,
		"messages": messages,
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/chat/completions", payload, &parsed); err != nil {
		return Reply{}, fmt.Errorf("vision call: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Reply{}, ErrNoReply
	}
	reply := Reply{Text: parsed.Choices[0].Message.Content}

	// Keep the thread transcript coherent; the reply is already decided, so
	// append failures only get logged.
	go func() {
		appendCtx, cancel := contextWithoutCancel(ctx)
		defer cancel()
		if _, err := c.appendMessage(appendCtx, thread.ID, "user", text, ""); err != nil {
			c.logger.Warn("append vision question failed", slog.String("thread_id", thread.ID), slog.Any("error", err))
			return
		}
		if _, err := c.appendMessage(appendCtx, thread.ID, "assistant", reply.Text, ""); err != nil {
			c.logger.Warn("append vision reply failed", slog.String("thread_id", thread.ID), slog.Any("error", err))
		}
	}()

	c.logger.Info("vision call completed", slog.String("thread_id", thread.ID))
	return reply, nil
}
