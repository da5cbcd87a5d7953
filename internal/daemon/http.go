package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hearth-panel/hearth-ctl/internal/errors"
	"github.com/hearth-panel/hearth-ctl/internal/logging"
	"github.com/hearth-panel/hearth-ctl/internal/model"
)

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// HTTPClient talks to the daemon's REST API.
type HTTPClient struct {
	http *http.Client
}

// NewHTTPClient returns a client whose requests give up after timeout even
// when the caller's context has no deadline.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{http: &http.Client{Timeout: timeout}}
}

type createRequest struct {
	UUID              string `json:"uuid"`
	StartOnCompletion bool   `json:"start_on_completion"`
}

// Create implements Client with POST /api/servers.
func (c *HTTPClient) Create(ctx context.Context, server *model.Server, node *model.Node, startOnCompletion bool) error {
	body, err := json.Marshal(createRequest{UUID: server.UUID, StartOnCompletion: startOnCompletion})
	if err != nil {
		return fmt.Errorf("failed to encode create request: %w", err)
	}
	return c.do(ctx, node, http.MethodPost, "/api/servers", body, false)
}

// Delete implements Client with DELETE /api/servers/{uuid}.
func (c *HTTPClient) Delete(ctx context.Context, server *model.Server, node *model.Node) error {
	return c.do(ctx, node, http.MethodDelete, "/api/servers/"+server.UUID, nil, true)
}

func (c *HTTPClient) do(ctx context.Context, node *model.Node, method, path string, body []byte, notFoundOK bool) error {
	url := strings.TrimRight(node.DaemonURL(), "/") + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return &errors.DaemonConnectionError{Node: node.Name, Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if node.DaemonToken != "" {
		req.Header.Set("Authorization", "Bearer "+node.DaemonToken)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logging.Debug("daemon request failed", "node", node.Name, "method", method, "path", path, "error", err)
		return &errors.DaemonConnectionError{Node: node.Name, Cause: err}
	}
	defer resp.Body.Close()

	logging.Debug("daemon request", "node", node.Name, "method", method, "path", path,
		"status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode == http.StatusNotFound && notFoundOK {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var cause error
		if text := strings.TrimSpace(string(msg)); text != "" {
			cause = fmt.Errorf("%s", text)
		}
		return &errors.DaemonConnectionError{Node: node.Name, StatusCode: resp.StatusCode, Cause: cause}
	}
	return nil
}
