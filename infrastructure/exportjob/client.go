// Package exportjob implements the HTTP client for the external report
// export backend.
package exportjob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"reportexport/application/ports"
)

// Config holds settings for the export backend client
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the export backend over its REST surface. Poll and
// FetchOutput are read-only on the backend and safe to call from any number
// of goroutines. All calls run through a circuit breaker so a struggling
// backend is not hammered by every client poll.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewClient creates an export backend client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "export-backend",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.8
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  logger,
	}
}

type submitRequest struct {
	NamePrefix string            `json:"namePrefix"`
	ReportType string            `json:"reportType,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

type submitResponse struct {
	OperationID string `json:"operationId"`
}

type statusResponse struct {
	State string `json:"state"`
}

type outputResponse struct {
	OutputLocation *string `json:"outputLocation"`
}

// Submit starts an async export and returns the backend's operation ID.
func (c *Client) Submit(ctx context.Context, params ports.ExportParams) (string, error) {
	body, err := json.Marshal(submitRequest{
		NamePrefix: params.NamePrefix,
		ReportType: params.ReportType,
		Parameters: params.Parameters,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal export request: %w", err)
	}

	var resp submitResponse
	if err := c.do(ctx, http.MethodPost, "/v1/exports", bytes.NewReader(body), &resp); err != nil {
		return "", fmt.Errorf("export submission failed: %w", err)
	}
	if resp.OperationID == "" {
		return "", fmt.Errorf("export submission returned no operation id")
	}
	return resp.OperationID, nil
}

// Poll returns the backend's view of a job. Only a definitive terminal state
// maps to JobSucceeded or JobFailed; everything else is JobRunning.
func (c *Client) Poll(ctx context.Context, jobID string) (ports.JobStatus, error) {
	var resp statusResponse
	if err := c.do(ctx, http.MethodGet, "/v1/operations/"+jobID, nil, &resp); err != nil {
		return "", fmt.Errorf("export status query failed: %w", err)
	}

	switch resp.State {
	case "Completed":
		return ports.JobSucceeded, nil
	case "Failed":
		return ports.JobFailed, nil
	default:
		return ports.JobRunning, nil
	}
}

// FetchOutput returns the output location of a succeeded job. The backend
// may legitimately report an empty location for a job that produced no
// artifact; a missing output record is ErrMissingOutput.
func (c *Client) FetchOutput(ctx context.Context, jobID string) (string, error) {
	var resp outputResponse
	err := c.do(ctx, http.MethodGet, "/v1/operations/"+jobID+"/output", nil, &resp)
	if err != nil {
		var httpErr *statusError
		if errors.As(err, &httpErr) {
			switch httpErr.code {
			case http.StatusNotFound:
				return "", ports.ErrMissingOutput
			case http.StatusConflict:
				return "", ports.ErrOutputNotReady
			}
		}
		return "", fmt.Errorf("export output query failed: %w", err)
	}
	if resp.OutputLocation == nil {
		return "", ports.ErrMissingOutput
	}
	return *resp.OutputLocation, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("export backend returned %d: %s", e.code, e.body)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, &statusError{code: resp.StatusCode, body: string(payload)}
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return nil, fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return nil, nil
	})
	return err
}
