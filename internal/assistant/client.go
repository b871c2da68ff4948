package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/wisdompenai/wisdompen/internal/config"
	"github.com/wisdompenai/wisdompen/internal/poll"
)

// Client talks to the assistant backend's thread/run API.
type Client struct {
	baseURL      string
	apiKey       string
	assistantID  string
	chatModel    string
	visionModel  string
	systemPrompt string
	pollInterval time.Duration
	runTimeout   time.Duration
	logger       *slog.Logger
	httpClient   *http.Client
}

// NewClient creates a backend client from the assistant configuration.
func NewClient(log *slog.Logger, cfg config.AssistantConfig) *Client {
	if log == nil {
		log = slog.Default()
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = config.DefaultAssistantURL
	}
	return &Client{
		baseURL:      baseURL,
		apiKey:       cfg.APIKey,
		assistantID:  cfg.AssistantID,
		chatModel:    cfg.ChatModel,
		visionModel:  cfg.VisionModel,
		systemPrompt: cfg.SystemPrompt,
		pollInterval: cfg.PollInterval(),
		runTimeout:   cfg.RunTimeout(),
		logger:       log.With(slog.String("service", "assistant")),
		httpClient:   &http.Client{Timeout: 90 * time.Second},
	}
}

// AssistantID returns the configured assistant identifier.
func (c *Client) AssistantID() string { return c.assistantID }

// Models returns the configured chat and vision model identifiers.
func (c *Client) Models() (chat, vision string) { return c.chatModel, c.visionModel }

// --- wire types ---

type wireThread struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"`
}

type wireRun struct {
	ID        string `json:"id"`
	ThreadID  string `json:"thread_id"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

type wireMessage struct {
	ID        string `json:"id"`
	ThreadID  string `json:"thread_id"`
	RunID     string `json:"run_id"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"created_at"`
	Content   []struct {
		Type string `json:"type"`
		Text struct {
			Value string `json:"value"`
		} `json:"text"`
	} `json:"content"`
}

func (m wireMessage) text() string {
	var sb strings.Builder
	for _, part := range m.Content {
		if part.Type != "text" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(part.Text.Value)
	}
	return sb.String()
}

type wireMessageList struct {
	Data []wireMessage `json:"data"`
}

type wireFile struct {
	ID string `json:"id"`
}

// --- thread lifecycle ---

// CreateThread creates a fresh remote conversation.
func (c *Client) CreateThread(ctx context.Context) (Thread, error) {
	var parsed wireThread
	if err := c.doJSON(ctx, http.MethodPost, "/threads", map[string]any{}, &parsed); err != nil {
		return Thread{}, err
	}
	return Thread{ID: parsed.ID, CreatedAt: time.Unix(parsed.CreatedAt, 0)}, nil
}

func (c *Client) appendMessage(ctx context.Context, threadID, role, text, fileID string) (Message, error) {
	payload := map[string]any{
		"role":    role,
		"content": text,
	}
	if fileID != "" {
		payload["attachments"] = []map[string]any{
			{"file_id": fileID, "tools": []map[string]string{{"type": "file_search"}}},
		}
	}
	var parsed wireMessage
	if err := c.doJSON(ctx, http.MethodPost, "/threads/"+threadID+"/messages", payload, &parsed); err != nil {
		return Message{}, err
	}
	return mapMessage(parsed), nil
}

func (c *Client) createRun(ctx context.Context, threadID string) (Run, error) {
	payload := map[string]any{"assistant_id": c.assistantID}
	if strings.TrimSpace(c.systemPrompt) != "" {
		payload["instructions"] = c.systemPrompt
	}
	var parsed wireRun
	if err := c.doJSON(ctx, http.MethodPost, "/threads/"+threadID+"/runs", payload, &parsed); err != nil {
		return Run{}, err
	}
	return mapRun(parsed), nil
}

func (c *Client) getRun(ctx context.Context, threadID, runID string) (Run, error) {
	var parsed wireRun
	if err := c.doJSON(ctx, http.MethodGet, "/threads/"+threadID+"/runs/"+runID, nil, &parsed); err != nil {
		return Run{}, err
	}
	return mapRun(parsed), nil
}

func (c *Client) listMessages(ctx context.Context, threadID string) ([]Message, error) {
	var parsed wireMessageList
	if err := c.doJSON(ctx, http.MethodGet, "/threads/"+threadID+"/messages", nil, &parsed); err != nil {
		return nil, err
	}
	messages := make([]Message, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		messages = append(messages, mapMessage(m))
	}
	return messages, nil
}

func (c *Client) uploadFile(ctx context.Context, name string, data []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("purpose", "assistants"); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.setAuth(req)

	var parsed wireFile
	if err := c.send(req, &parsed); err != nil {
		return "", err
	}
	return parsed.ID, nil
}

// --- submit ---

// Submit sends one turn against the thread and returns the completed reply.
// Content with an inline image takes the synchronous vision path; everything
// else appends to the thread and waits on an asynchronous run.
func (c *Client) Submit(ctx context.Context, thread Thread, content Content) (Reply, error) {
	if content.HasImage() {
		return c.submitVision(ctx, thread, content)
	}
	return c.submitRun(ctx, thread, content)
}

func (c *Client) submitRun(ctx context.Context, thread Thread, content Content) (Reply, error) {
	fileID := ""
	if len(content.File) > 0 {
		id, err := c.uploadFile(ctx, content.FileName, content.File)
		if err != nil {
			return Reply{}, fmt.Errorf("upload attachment: %w", err)
		}
		fileID = id
	}

	if _, err := c.appendMessage(ctx, thread.ID, "user", content.Text, fileID); err != nil {
		return Reply{}, fmt.Errorf("append message: %w", err)
	}

	run, err := c.createRun(ctx, thread.ID)
	if err != nil {
		return Reply{}, fmt.Errorf("create run: %w", err)
	}
	started := time.Now()

	var final Run
	err = poll.Until(ctx, c.pollInterval, c.runTimeout, func(ctx context.Context) (bool, error) {
		current, err := c.getRun(ctx, thread.ID, run.ID)
		if err != nil {
			return false, err
		}
		if !current.Status.Terminal() {
			return false, nil
		}
		final = current
		return true, nil
	})
	if err != nil {
		if errors.Is(err, poll.ErrCeilingExceeded) {
			c.logger.Warn("run timed out",
				slog.String("thread_id", thread.ID),
				slog.String("run_id", run.ID),
				slog.Duration("elapsed", time.Since(started)),
			)
			return Reply{}, ErrTimeout
		}
		return Reply{}, err
	}

	if final.Status != RunCompleted {
		c.logger.Warn("run ended abnormally",
			slog.String("thread_id", thread.ID),
			slog.String("run_id", run.ID),
			slog.String("status", string(final.Status)),
		)
		return Reply{}, &RunFailedError{RunID: run.ID, Status: final.Status}
	}

	reply, err := c.latestReply(ctx, thread.ID, run.ID)
	if err != nil {
		return Reply{}, err
	}
	c.logger.Info("run completed",
		slog.String("thread_id", thread.ID),
		slog.String("run_id", run.ID),
		slog.Duration("elapsed", time.Since(started)),
	)
	return reply, nil
}

// latestReply returns the newest assistant message produced by the given run.
func (c *Client) latestReply(ctx context.Context, threadID, runID string) (Reply, error) {
	messages, err := c.listMessages(ctx, threadID)
	if err != nil {
		return Reply{}, err
	}
	var newest *Message
	for i := range messages {
		m := &messages[i]
		if m.Role != "assistant" || m.RunID != runID {
			continue
		}
		if newest == nil || m.CreatedAt.After(newest.CreatedAt) {
			newest = m
		}
	}
	if newest == nil {
		return Reply{}, ErrNoReply
	}
	return Reply{Text: newest.Text, RunID: runID}, nil
}

// ComposeGrounded builds the message text for a turn carrying a transcript:
// title, optional author, optional source URL, transcript body, then the
// literal user query, each on its own line.
func ComposeGrounded(g Grounding, query string) string {
	var sb strings.Builder
	if strings.TrimSpace(g.Title) != "" {
		sb.WriteString("Title: " + strings.TrimSpace(g.Title) + "\n")
	}
	if strings.TrimSpace(g.Author) != "" {
		sb.WriteString("Author: " + strings.TrimSpace(g.Author) + "\n")
	}
	if strings.TrimSpace(g.SourceURL) != "" {
		sb.WriteString("Source: " + strings.TrimSpace(g.SourceURL) + "\n")
	}
	if strings.TrimSpace(g.Transcript) != "" {
		sb.WriteString("Transcript: " + strings.TrimSpace(g.Transcript) + "\n")
	}
	sb.WriteString(query)
	return sb.String()
}

// Ping checks backend reachability for the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	c.setAuth(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}
	return nil
}

// --- HTTP helpers ---

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuth(req)
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("backend error",
			slog.String("url", req.URL.String()),
			slog.Int("status", resp.StatusCode),
			slog.String("body_prefix", truncate(string(respBody), 300)),
		)
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
		}
		return fmt.Errorf("backend error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse backend response: %w", err)
	}
	return nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("OpenAI-Beta", "assistants=v2")
}

func mapRun(w wireRun) Run {
	return Run{
		ID:        w.ID,
		ThreadID:  w.ThreadID,
		Status:    RunStatus(w.Status),
		StartedAt: time.Unix(w.CreatedAt, 0),
	}
}

func mapMessage(w wireMessage) Message {
	return Message{
		ID:        w.ID,
		ThreadID:  w.ThreadID,
		RunID:     w.RunID,
		Role:      w.Role,
		Text:      w.text(),
		CreatedAt: time.Unix(w.CreatedAt, 0),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
