// Package kp sends query graphs to knowledge providers.
package kp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agenthands/expand/internal/config"
	"github.com/agenthands/expand/internal/core/common"
	"github.com/agenthands/expand/internal/core/model"
	"github.com/agenthands/expand/internal/errs"
	"github.com/agenthands/expand/internal/metrics"
)

// Client sends one request to a KP. Every returned error is classified as
// errs.KPTransportFailure.
type Client interface {
	Query(ctx context.Context, req model.Request) (*model.Response, error)
}

// HTTPClient posts TRAPI messages to <endpoint>/query.
type HTTPClient struct {
	name     string
	endpoint string
	http     *http.Client
}

func NewHTTPClient(name, endpoint string, client *http.Client) *HTTPClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClient{
		name:     name,
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     client,
	}
}

func (c *HTTPClient) Query(ctx context.Context, req model.Request) (*model.Response, error) {
	op := "kp." + c.name + ".Query"
	start := time.Now()
	resp, err := c.query(ctx, req)
	metrics.KPRequestDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.KPRequests.WithLabelValues(c.name, metrics.OutcomeError).Inc()
		return nil, errs.Wrap(errs.KPTransportFailure, op, err)
	}
	metrics.KPRequests.WithLabelValues(c.name, metrics.OutcomeOK).Inc()
	return resp, nil
}

func (c *HTTPClient) query(ctx context.Context, req model.Request) (*model.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", c.name, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", c.name, err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, fmt.Errorf("%s returned %d: %s", c.name, httpResp.StatusCode, common.Snippet(data))
	}

	parsed, err := common.ParseJSON[model.Response](data)
	if err != nil {
		return nil, fmt.Errorf("unparseable response from %s: %w", c.name, err)
	}
	return &parsed, nil
}

// NewClients builds an HTTP client for every configured KP. Each client's
// own http.Client carries the KP timeout as a backstop for callers that
// pass a context without a deadline.
func NewClients(cfg *config.Config) map[string]Client {
	clients := make(map[string]Client, len(cfg.KPs))
	for name, kpCfg := range cfg.KPs {
		clients[name] = NewHTTPClient(name, kpCfg.Endpoint, &http.Client{Timeout: kpCfg.Timeout()})
	}
	return clients
}
