// Package llm provides a streaming client for the Gemini chat API.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"wattson/internal/config"
)

// MessageWriter receives streamed response chunks. Both a websocket.Conn
// and in-process collectors satisfy it.
type MessageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// Message is one role-tagged turn sent to the model. Roles follow the
// Gemini convention: "user" and "model"; the system prompt travels
// separately.
type Message struct {
	Role    string
	Content string
}

// GenerationParams overrides the configured generation settings for one
// call. Nil fields fall back to the configuration.
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Client streams chat completions.
type Client interface {
	// StreamChat sends the system instruction plus messages and writes the
	// streamed text chunks to writer as they arrive.
	StreamChat(ctx context.Context, system string, messages []Message, gen *GenerationParams, writer MessageWriter) error
	// Complete runs StreamChat into an in-memory buffer and returns the
	// full answer. Used for non-streaming callers (health checks).
	Complete(ctx context.Context, system string, messages []Message, gen *GenerationParams) (string, error)
}

type geminiClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient creates an LLM client from the configuration.
func NewClient(cfg config.LLMConfig) Client {
	return &geminiClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *geminiClient) StreamChat(ctx context.Context, system string, messages []Message, gen *GenerationParams, writer MessageWriter) error {
	reqBody := generateRequest{
		Contents:         make([]content, 0, len(messages)),
		GenerationConfig: c.generationConfig(gen),
	}
	if system != "" {
		reqBody.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}
	for _, m := range messages {
		reqBody.Contents = append(reqBody.Contents, content{Role: m.Role, Parts: []part{{Text: m.Content}}})
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal chat request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", c.cfg.BaseURL, c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call chat api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chat api returned %s: %s", resp.Status, string(bodyBytes))
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("read chat stream: %w", err)
		}

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if strings.TrimSpace(data) == "[DONE]" {
			break
		}

		var chunk generateResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Candidates) == 0 {
			continue
		}
		for _, p := range chunk.Candidates[0].Content.Parts {
			if p.Text == "" {
				continue
			}
			if err := writer.WriteMessage(websocket.TextMessage, []byte(p.Text)); err != nil {
				return fmt.Errorf("write chat chunk: %w", err)
			}
		}
	}
	return nil
}

func (c *geminiClient) Complete(ctx context.Context, system string, messages []Message, gen *GenerationParams) (string, error) {
	var buf bufferWriter
	if err := c.StreamChat(ctx, system, messages, gen, &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.sb.String()), nil
}

// generationConfig merges per-call overrides over the configured defaults.
func (c *geminiClient) generationConfig(gen *GenerationParams) *generationConfig {
	out := &generationConfig{}
	if c.cfg.Generation.Temperature != 0 {
		t := c.cfg.Generation.Temperature
		out.Temperature = &t
	}
	if c.cfg.Generation.TopP != 0 {
		p := c.cfg.Generation.TopP
		out.TopP = &p
	}
	if c.cfg.Generation.MaxTokens != 0 {
		m := c.cfg.Generation.MaxTokens
		out.MaxOutputTokens = &m
	}
	if gen != nil {
		if gen.Temperature != nil {
			out.Temperature = gen.Temperature
		}
		if gen.TopP != nil {
			out.TopP = gen.TopP
		}
		if gen.MaxTokens != nil {
			out.MaxOutputTokens = gen.MaxTokens
		}
	}
	return out
}

type bufferWriter struct {
	sb strings.Builder
}

func (w *bufferWriter) WriteMessage(_ int, data []byte) error {
	w.sb.Write(data)
	return nil
}
