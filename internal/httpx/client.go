package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	boterr "github.com/ggonzalez94/bark-bot/internal/errors"
)

// Client is a timeout-bounded JSON HTTP client shared by the external-service
// adapters. Failed calls surface immediately; there is no retry loop.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

func New(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  "bark-bot/1.0",
	}
}

func (c *Client) DoJSON(ctx context.Context, req *http.Request, out any) (http.Header, error) {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req.Clone(ctx))
	if err != nil {
		if ctx.Err() != nil {
			return nil, boterr.Wrap(boterr.CodeUnavailable, "request cancelled", ctx.Err())
		}
		return nil, mapNetError(err)
	}

	buf, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp.Header, boterr.Wrap(boterr.CodeUnavailable, "read service response", readErr)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return resp.Header, boterr.New(boterr.CodeAuth, "service authentication failed")
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return resp.Header, boterr.New(boterr.CodeUnavailable, "service rate limited request")
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return resp.Header, boterr.New(boterr.CodeUnavailable, fmt.Sprintf("service unavailable (status %d)", resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.Header, boterr.New(boterr.CodeEngine, fmt.Sprintf("service returned unexpected status %d", resp.StatusCode))
	}

	if out == nil {
		return resp.Header, nil
	}
	if len(bytes.TrimSpace(buf)) == 0 {
		return resp.Header, boterr.New(boterr.CodeUnavailable, "service returned empty response")
	}
	if err := json.Unmarshal(buf, out); err != nil {
		return resp.Header, boterr.Wrap(boterr.CodeUnavailable, "decode service JSON", err)
	}
	return resp.Header, nil
}

func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, out any) (http.Header, error) {
	return c.bodyJSON(ctx, http.MethodGet, url, nil, headers, out)
}

func (c *Client) PostJSON(ctx context.Context, url string, body []byte, headers map[string]string, out any) (http.Header, error) {
	return c.bodyJSON(ctx, http.MethodPost, url, body, headers, out)
}

func (c *Client) bodyJSON(ctx context.Context, method, url string, body []byte, headers map[string]string, out any) (http.Header, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, boterr.Wrap(boterr.CodeInternal, "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.DoJSON(ctx, req, out)
}

func mapNetError(err error) error {
	if nerr, ok := err.(net.Error); ok {
		if nerr.Timeout() {
			return boterr.Wrap(boterr.CodeUnavailable, "service timeout", err)
		}
	}
	return boterr.Wrap(boterr.CodeUnavailable, "service request failed", err)
}
