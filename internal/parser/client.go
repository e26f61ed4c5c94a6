// Package parser implements the client for the external document parsing
// provider. The provider contract is submit -> poll -> fetch result; this
// client is the pipeline's sole source of truth for parse completion.
package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Status is the provider's reported state for a parse job
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
)

// JobStatus is the provider's answer to a status poll
type JobStatus struct {
	Status   Status
	Progress int
	Error    string
}

// Result is the provider's parse output. Text contains inline <<N>> page
// markers; PageImageURLs are present only when the provider rendered page
// images for the document.
type Result struct {
	Text          string
	PageCount     int
	PageImageURLs []string
}

// Config holds parsing provider connection settings
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the parsing provider over HTTP. All calls go through a
// circuit breaker so a degraded provider fails fast instead of tying up
// worker invocations.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewClient creates a new parsing provider client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ParsingProvider",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: breaker,
	}
}

type submitResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	Data    struct {
		JobID string `json:"job_id"`
	} `json:"data"`
}

type statusResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	Data    struct {
		JobID    string `json:"job_id"`
		State    string `json:"state"` // pending, running, done, failed
		Progress int    `json:"progress"`
		ErrorMsg string `json:"err_msg,omitempty"`
	} `json:"data"`
}

type resultResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	Data    struct {
		Markdown   string   `json:"markdown"`
		PageCount  int      `json:"page_count"`
		PageImages []string `json:"page_images,omitempty"`
	} `json:"data"`
}

// Submit uploads a raw document for parsing and returns the provider's job id
func (c *Client) Submit(ctx context.Context, content []byte, filename string) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/parse", body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result submitResponse
	if err := c.do(req, &result); err != nil {
		return "", err
	}
	if result.Code != 0 {
		return "", fmt.Errorf("parsing provider error: %s", result.Message)
	}
	if result.Data.JobID == "" {
		return "", fmt.Errorf("parsing provider returned no job id")
	}

	return result.Data.JobID, nil
}

// PollStatus queries the current state of a submitted parse job
func (c *Client) PollStatus(ctx context.Context, providerJobID string) (*JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/parse/%s", c.baseURL, providerJobID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	var result statusResponse
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	if result.Code != 0 {
		return nil, fmt.Errorf("parsing provider error: %s", result.Message)
	}

	status := &JobStatus{
		Status:   mapProviderState(result.Data.State),
		Progress: result.Data.Progress,
		Error:    result.Data.ErrorMsg,
	}
	return status, nil
}

// FetchResult downloads the parsed text for a successfully completed job
func (c *Client) FetchResult(ctx context.Context, providerJobID string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/parse/%s/result", c.baseURL, providerJobID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	var result resultResponse
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	if result.Code != 0 {
		return nil, fmt.Errorf("parsing provider error: %s", result.Message)
	}

	return &Result{
		Text:          result.Data.Markdown,
		PageCount:     result.Data.PageCount,
		PageImageURLs: result.Data.PageImages,
	}, nil
}

// DownloadArtifact fetches a provider-hosted artifact (e.g. a rendered page
// image) from a URL returned in a parse result.
func (c *Client) DownloadArtifact(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	raw, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("artifact download failed with status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, err
	}
	return raw.([]byte), nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if err := json.Unmarshal(body, out); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w, body: %s", err, string(body))
		}
		return nil, nil
	})
	return err
}

func mapProviderState(state string) Status {
	switch state {
	case "pending":
		return StatusPending
	case "running", "converting":
		return StatusProcessing
	case "done":
		return StatusSuccess
	case "failed":
		return StatusFailed
	default:
		return StatusProcessing
	}
}
