// Package suno is the HTTP client for the music-generation provider. The
// provider is a black box with two calls: submit a generation request and
// query a task's raw status record.
package suno

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/bytedance/sonic"
	"github.com/spivanka/spivanka/internal/config"
	"github.com/spivanka/spivanka/internal/pkg/normalizer"
	"github.com/spivanka/spivanka/internal/pkg/poller"
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
		BaseURL: cfg.Suno.BaseURL,
		APIKey:  cfg.Suno.APIKey,
		HTTPClient: &http.Client{
			Timeout: cfg.Suno.CallTimeout,
		},
		Logger: log,
	}
}

// SubmitRequest carries the generation prompt for one song.
type SubmitRequest struct {
	Prompt       string `json:"prompt"`
	Style        string `json:"style"`
	Title        string `json:"title"`
	CustomMode   bool   `json:"customMode"`
	Instrumental bool   `json:"instrumental"`
	Model        string `json:"model,omitempty"`
	CallbackURL  string `json:"callBackUrl,omitempty"`
}

// envelope defers decoding of the data field until the outer code has been
// checked.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type submitData struct {
	TaskID string `json:"taskId"`
}

type queryData struct {
	normalizer.RawTask
}

// Submit asks the provider to generate a song and returns the provider-minted
// task id.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	env, err := c.call(ctx, http.MethodPost, "/api/v1/generate", req)
	if err != nil {
		return "", err
	}

	var data submitData
	if err := sonic.Unmarshal(env.Data, &data); err != nil {
		return "", fmt.Errorf("unmarshal submit response: %w", err)
	}
	if data.TaskID == "" {
		return "", fmt.Errorf("provider returned no task id: %s", env.Msg)
	}
	return data.TaskID, nil
}

// Query fetches the raw status record for a task. Rate-limit rejections map
// to poller.ErrRateLimited, unknown ids to poller.ErrTaskNotFound.
func (c *Client) Query(ctx context.Context, taskID string) (*normalizer.RawTask, error) {
	path := "/api/v1/generate/record-info?" + url.Values{"taskId": {taskID}}.Encode()
	env, err := c.call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var data queryData
	if err := sonic.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("unmarshal query response: %w", err)
	}
	if data.TaskID == "" {
		data.TaskID = taskID
	}
	return &data.RawTask, nil
}

func (c *Client) call(ctx context.Context, method, path string, payload interface{}) (*envelope, error) {
	var body io.Reader
	if payload != nil {
		b, err := sonic.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%s %s: %w", method, path, poller.ErrRateLimited)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s %s: %w", method, path, poller.ErrTaskNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		c.Logger.Error("provider request failed",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode),
			zap.String("body", string(respBody)))
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var env envelope
	if err := sonic.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("unmarshal response envelope: %w", err)
	}

	// the provider also signals rate limits inside a 200 envelope
	switch env.Code {
	case http.StatusOK:
		return &env, nil
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("%s %s: %w", method, path, poller.ErrRateLimited)
	default:
		return nil, fmt.Errorf("provider error %d: %s", env.Code, env.Msg)
	}
}
