// Package coverart is the HTTP client for the premium cover-image provider.
// Generation is fire-and-forget: the request only schedules the artwork, the
// finished URL surfaces on a later poll of the music provider's task record.
package coverart

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/spivanka/spivanka/internal/config"
	"go.uber.org/zap"
)

type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

func NewClient(cfg *config.Config, log *zap.Logger) *Client {
	return &Client{
		BaseURL: cfg.CoverArt.BaseURL,
		APIKey:  cfg.CoverArt.APIKey,
		HTTPClient: &http.Client{
			Timeout: cfg.CoverArt.CallTimeout,
		},
		Logger: log,
	}
}

// Enabled reports whether a cover-art provider is configured at all.
func (c *Client) Enabled() bool { return c.BaseURL != "" }

// GenerateRequest describes the artwork context for one task.
type GenerateRequest struct {
	TaskID    string `json:"taskId"`
	Recipient string `json:"recipient"`
	Occasion  string `json:"occasion"`
	Style     string `json:"style"`
	Mood      string `json:"mood"`
}

// Generate schedules artwork generation for a task.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) error {
	if !c.Enabled() {
		return nil
	}

	body, err := sonic.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/cover", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		c.Logger.Error("cover request failed",
			zap.Int("status_code", resp.StatusCode),
			zap.String("body", string(respBody)))
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
