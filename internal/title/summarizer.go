package title

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrSummarizerUnavailable is returned when the summarizer cannot be reached
// or answers with an error status.
var ErrSummarizerUnavailable = errors.New("title summarizer unavailable")

// Summarizer turns a first message into a short title. An empty result means
// the caller should fall back.
type Summarizer interface {
	Summarize(ctx context.Context, message string) (string, error)
}

const (
	developerPrompt = "너는 채팅방 제목 생성기야. 한국어/영어, 18자 이내, 마침표/따옴표/이모지/개인정보 금지."
	userPromptFmt   = "다음 메시지를 한 줄 제목으로: \"%s\""
)

// HTTPConfig configures an OpenAI-compatible chat completions endpoint.
type HTTPConfig struct {
	BaseURL string
	Path    string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// HTTPSummarizer asks a chat completions endpoint for a title.
type HTTPSummarizer struct {
	client *http.Client
	url    string
	apiKey string
	model  string
	logger *slog.Logger
}

// NewHTTPSummarizer creates a summarizer for cfg.
func NewHTTPSummarizer(cfg HTTPConfig, logger *slog.Logger) *HTTPSummarizer {
	if logger == nil {
		logger = slog.Default()
	}
	path := cfg.Path
	if path == "" {
		path = "/v1/chat/completions"
	}
	return &HTTPSummarizer{
		client: &http.Client{
			Timeout:   cfg.Timeout + 500*time.Millisecond,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		url:    strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/"),
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		logger: logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Summarize requests a one-line title for message.
func (s *HTTPSummarizer) Summarize(ctx context.Context, message string) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "developer", Content: developerPrompt},
			{Role: "user", Content: fmt.Sprintf(userPromptFmt, message)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("[TITLE] Summarizer call failed", "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return "", fmt.Errorf("%w: %w", ErrSummarizerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrSummarizerUnavailable, resp.StatusCode, snippet)
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(out.Choices) == 0 {
		s.logger.Info("[TITLE] Summarizer returned empty choices")
		return "", nil
	}

	title := Sanitize(out.Choices[0].Message.Content)
	s.logger.Info("[TITLE] Summarizer OK", "duration_ms", time.Since(start).Milliseconds(), "title", title)
	return title, nil
}
