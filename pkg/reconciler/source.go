package reconciler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
)

// Source abstracts the server status store: one point lookup plus one
// long-lived update channel per task id.
type Source interface {
	// Fetch returns the current server-side view, or ErrTaskNotFound when the
	// task id is unknown to the server.
	Fetch(ctx context.Context, taskID string) (*View, error)
	// Listen opens the live update channel. The returned channel is closed by
	// the implementation after a terminal event, on ctx cancellation, or when
	// the connection drops.
	Listen(ctx context.Context, taskID string) (<-chan Event, error)
}

// HTTPSource talks to the generation API over HTTP and SSE.
type HTTPSource struct {
	// BaseURL up to and including the version prefix, e.g. "http://localhost:8080/api/v1".
	BaseURL string
	Client  *http.Client
}

func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type apiEnvelope struct {
	Code  int             `json:"code"`
	Data  json.RawMessage `json:"data"`
	Msg   string          `json:"msg"`
	Error string          `json:"error"`
}

func (s *HTTPSource) Fetch(ctx context.Context, taskID string) (*View, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/generation/"+taskID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTaskNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status fetch: unexpected http %d", resp.StatusCode)
	}

	var env apiEnvelope
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("status fetch: decode envelope: %w", err)
	}
	var view View
	if err := sonic.Unmarshal(env.Data, &view); err != nil {
		return nil, fmt.Errorf("status fetch: decode view: %w", err)
	}
	return &view, nil
}

func (s *HTTPSource) Listen(ctx context.Context, taskID string) (<-chan Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/generation/"+taskID+"/stream", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// the SSE connection must outlive Client.Timeout
	client := &http.Client{Transport: s.transport()}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, ErrTaskNotFound
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream: unexpected http %d", resp.StatusCode)
	}

	ch := make(chan Event, 16)
	go func() {
		defer resp.Body.Close()
		defer close(ch)

		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			line := sc.Bytes()
			if !bytes.HasPrefix(line, []byte("data:")) {
				continue
			}
			payload := bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
			if len(payload) == 0 {
				continue
			}
			var ev Event
			if err := sonic.Unmarshal(payload, &ev); err != nil {
				continue
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
			if ev.Terminal() {
				return
			}
		}
	}()
	return ch, nil
}

func (s *HTTPSource) transport() http.RoundTripper {
	if s.Client != nil && s.Client.Transport != nil {
		return s.Client.Transport
	}
	return http.DefaultTransport
}
