// Package dune is the analytics query engine adapter. It executes named,
// parameterized queries against the Dune Analytics HTTP API and returns
// ordered tabular rows.
package dune

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	boterr "github.com/ggonzalez94/bark-bot/internal/errors"
	"github.com/ggonzalez94/bark-bot/internal/httpx"
	"github.com/ggonzalez94/bark-bot/internal/model"
)

const defaultBaseURL = "https://api.dune.com/api/v1"

type ParameterType string

const (
	TypeText   ParameterType = "text"
	TypeNumber ParameterType = "number"
	TypeDate   ParameterType = "date"
	TypeEnum   ParameterType = "enum"
)

// Parameter is one named, typed query parameter. Order is preserved.
type Parameter struct {
	Name  string
	Type  ParameterType
	Value string
}

// Query names a pre-defined engine query and its parameters. Constructed
// fresh per handler invocation; never persisted.
type Query struct {
	Name       string
	ID         int
	Parameters []Parameter
}

type Client struct {
	http         *httpx.Client
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	maxPolls     int
}

func New(httpClient *httpx.Client, apiKey string) *Client {
	return &Client{
		http:         httpClient,
		baseURL:      defaultBaseURL,
		apiKey:       strings.TrimSpace(apiKey),
		pollInterval: 2 * time.Second,
		// Bounds completion polling so a stuck execution cannot hold a
		// user's turn forever.
		maxPolls: 150,
	}
}

type resultsResponse struct {
	ExecutionID string `json:"execution_id"`
	State       string `json:"state"`
	Error       struct {
		Message string `json:"message"`
	} `json:"error"`
	Result struct {
		Rows []model.ResultRow `json:"rows"`
	} `json:"result"`
}

type executeResponse struct {
	ExecutionID string `json:"execution_id"`
	State       string `json:"state"`
}

// GetLatestResult fetches the rows of the most recent stored execution of a
// query, without triggering a new run.
func (c *Client) GetLatestResult(ctx context.Context, queryID int) (model.ResultSet, error) {
	endpoint := fmt.Sprintf("%s/query/%d/results", strings.TrimRight(c.baseURL, "/"), queryID)
	var resp resultsResponse
	if _, err := c.http.GetJSON(ctx, endpoint, c.headers(), &resp); err != nil {
		return nil, err
	}
	if failedState(resp.State) {
		return nil, c.stateError(resp)
	}
	return resp.Result.Rows, nil
}

// RunQuery triggers a fresh execution with the query's parameters and polls
// until the engine reports a terminal state. Polling waits for completion
// only; a failed HTTP call surfaces immediately.
func (c *Client) RunQuery(ctx context.Context, q Query) (model.ResultSet, error) {
	params := make(map[string]string, len(q.Parameters))
	for _, p := range q.Parameters {
		params[p.Name] = p.Value
	}
	body, err := json.Marshal(map[string]any{
		"query_parameters": params,
		"performance":      "medium",
	})
	if err != nil {
		return nil, boterr.Wrap(boterr.CodeInternal, "encode query parameters", err)
	}

	endpoint := fmt.Sprintf("%s/query/%d/execute", strings.TrimRight(c.baseURL, "/"), q.ID)
	var exec executeResponse
	if _, err := c.http.PostJSON(ctx, endpoint, body, c.headers(), &exec); err != nil {
		return nil, err
	}
	if strings.TrimSpace(exec.ExecutionID) == "" {
		return nil, boterr.New(boterr.CodeEngine, fmt.Sprintf("engine did not accept query %q", q.Name))
	}

	return c.awaitExecution(ctx, exec.ExecutionID)
}

func (c *Client) awaitExecution(ctx context.Context, executionID string) (model.ResultSet, error) {
	endpoint := fmt.Sprintf("%s/execution/%s/results", strings.TrimRight(c.baseURL, "/"), executionID)
	for attempt := 0; attempt < c.maxPolls; attempt++ {
		var resp resultsResponse
		if _, err := c.http.GetJSON(ctx, endpoint, c.headers(), &resp); err != nil {
			return nil, err
		}
		switch {
		case resp.State == "QUERY_STATE_COMPLETED":
			return resp.Result.Rows, nil
		case failedState(resp.State):
			return nil, c.stateError(resp)
		}

		select {
		case <-ctx.Done():
			return nil, boterr.Wrap(boterr.CodeEngine, "query execution cancelled", ctx.Err())
		case <-time.After(c.pollInterval):
		}
	}
	return nil, boterr.New(boterr.CodeEngine, fmt.Sprintf("query execution %s did not complete in time", executionID))
}

func (c *Client) headers() map[string]string {
	return map[string]string{"X-Dune-API-Key": c.apiKey}
}

func failedState(state string) bool {
	switch state {
	case "QUERY_STATE_FAILED", "QUERY_STATE_CANCELLED", "QUERY_STATE_EXPIRED":
		return true
	}
	return false
}

func (c *Client) stateError(resp resultsResponse) error {
	msg := strings.TrimSpace(resp.Error.Message)
	if msg == "" {
		msg = resp.State
	}
	return boterr.New(boterr.CodeEngine, fmt.Sprintf("query execution failed: %s", msg))
}
