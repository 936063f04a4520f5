package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/modelguard/guardian/pkg/api"
	"github.com/modelguard/guardian/pkg/log"
)

type (
	// Options configures one adapter client
	Options struct {
		Service string
		BaseURL string
		Token   string
		Timeout time.Duration
	}

	// Set bundles the three adapter clients behind one dependency
	Set struct {
		Engine *EngineClient
		SDLC   *SDLCClient
		Depot  *DepotClient
	}

	httpClient struct {
		opts   Options
		client *http.Client
	}
)

const userAgent = "Guardian/1.0"

// ErrEmptyBaseURL is returned when an adapter is constructed without a
// service URL
var ErrEmptyBaseURL = errors.New("adapter base URL is empty")

func newHTTPClient(opts Options) *httpClient {
	return &httpClient{
		opts: opts,
		client: &http.Client{
			Timeout: opts.Timeout,
		},
	}
}

// do performs one JSON request against the external service, classifying
// failures as transient (network, timeout, 5xx) or permanent (4xx). The
// correlation ID is forwarded so failures are traceable across systems
func (c *httpClient) do(
	ctx context.Context, cid api.CorrelationID, method, path string,
	query url.Values, body, out any,
) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return c.permanent(method+" "+path, 0, err.Error())
		}
		reqBody = bytes.NewReader(data)
	}

	target := c.opts.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return c.permanent(method+" "+path, 0, err.Error())
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Correlation-Id", string(cid))
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	dur := time.Since(start)

	if err != nil {
		slog.Error("Adapter request failed",
			log.Service(c.opts.Service),
			slog.String("path", path),
			slog.Duration("duration", dur),
			log.CorrelationID(cid),
			log.Error(err))
		return c.transient(method+" "+path, 0, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.transient(method+" "+path, resp.StatusCode, err.Error())
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		slog.Error("Adapter HTTP error",
			log.Service(c.opts.Service),
			slog.String("path", path),
			slog.Int("status_code", resp.StatusCode),
			log.CorrelationID(cid))
		return c.transient(
			method+" "+path, resp.StatusCode, string(respBody),
		)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		slog.Error("Adapter rejected request",
			log.Service(c.opts.Service),
			slog.String("path", path),
			slog.Int("status_code", resp.StatusCode),
			log.CorrelationID(cid))
		return c.permanent(
			method+" "+path, resp.StatusCode, string(respBody),
		)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return c.permanent(
			method+" "+path, resp.StatusCode,
			fmt.Sprintf("malformed response: %v", err),
		)
	}
	return nil
}

func (c *httpClient) transient(op string, code int, msg string) error {
	return &api.AdapterError{
		Service:    c.opts.Service,
		Op:         op,
		StatusCode: code,
		Transient:  true,
		Message:    msg,
	}
}

func (c *httpClient) permanent(op string, code int, msg string) error {
	return &api.AdapterError{
		Service:    c.opts.Service,
		Op:         op,
		StatusCode: code,
		Transient:  false,
		Message:    msg,
	}
}
