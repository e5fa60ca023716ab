package ragclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Roles for conversational context messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the conversational context sent with a query,
// oldest first.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type queryRequest struct {
	Question string    `json:"question"`
	Messages []Message `json:"messages,omitempty"`
}

// StatusError reports a non-success HTTP response from the backend.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Detail)
	}
	return fmt.Sprintf("backend returned status %d", e.Code)
}

// Client talks to the document QA backend. Streaming requests carry no
// client-side timeout (answers can take arbitrarily long); short requests
// are bounded by the configured timeout.
type Client struct {
	baseURL string
	agentic bool
	timeout time.Duration
	http    *http.Client
}

// New creates a client for the backend at baseURL. When agentic is set,
// queries and ingestion use the ReAct-agent endpoints.
func New(baseURL string, timeout time.Duration, agentic bool) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("backend URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		agentic: agentic,
		timeout: timeout,
		http:    &http.Client{},
	}, nil
}

func (c *Client) queryPath() string {
	if c.agentic {
		return "/query-agentic"
	}
	return "/query"
}

func (c *Client) ingestPath() string {
	if c.agentic {
		return "/ingest-agentic"
	}
	return "/ingest"
}

// Query posts the question plus prior conversation context and returns the
// response body as a chunk stream. The caller owns the stream and must
// close it.
func (c *Client) Query(ctx context.Context, question string, history []Message) (Stream, error) {
	body, err := json.Marshal(queryRequest{Question: question, Messages: history})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}
	endpoint := c.baseURL + c.queryPath()

	return newByteStream(ctx, func(ctx context.Context, chunks chan<- []byte) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("query request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return &StatusError{Code: resp.StatusCode, Detail: readDetail(resp.Body)}
		}

		buf := make([]byte, 32*1024)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if err == io.EOF {
				return nil
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("read response: %w", err)
			}
		}
	}), nil
}

// IngestResult is the backend's answer to a document upload.
type IngestResult struct {
	Message string `json:"message"`
}

// Ingest uploads a PDF for indexing and returns the backend's status
// message. Ingestion can take a while for large documents, so the normal
// request timeout is stretched rather than applied as-is.
func (c *Client) Ingest(ctx context.Context, path string) (string, error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return "", fmt.Errorf("only PDF files are supported: %s", filepath.Base(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.ingestPath(), &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ingest request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode, Detail: readDetail(resp.Body)}
	}

	var result IngestResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode ingest response: %w", err)
	}
	return result.Message, nil
}

// RecentLogs fetches the latest persisted analytics records, newest first.
func (c *Client) RecentLogs(ctx context.Context, limit int) ([]LogRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/logs/recent?limit=%d", c.baseURL, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("logs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Detail: readDetail(resp.Body)}
	}

	var records []LogRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode logs response: %w", err)
	}
	return records, nil
}

// Ping checks that the backend is reachable.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ping", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Detail: readDetail(resp.Body)}
	}
	return nil
}

// readDetail extracts a FastAPI-style {"detail": "..."} message, falling
// back to the raw body.
func readDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 8*1024))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Detail != "" {
		return payload.Detail
	}
	return strings.TrimSpace(string(raw))
}
