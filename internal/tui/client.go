package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kaneboard/kaneboard/internal/models"
	"github.com/kaneboard/kaneboard/internal/tracker"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// Client wraps HTTP calls to the Kaneboard API on behalf of one user.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout.
func NewClient(baseURL, userID string) *Client {
	return &Client{
		baseURL: baseURL,
		userID:  userID,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// APIError is a non-2xx response or a soft failure.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ListProjects fetches the user's projects.
func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	if err := c.do(ctx, http.MethodGet, "/projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// Board fetches a project's board.
func (c *Client) Board(ctx context.Context, projectID string) (*tracker.Board, error) {
	var board tracker.Board
	if err := c.do(ctx, http.MethodGet, "/projects/"+projectID+"/board", nil, &board); err != nil {
		return nil, err
	}
	return &board, nil
}

// CurrentTimer fetches the user's running timer, or nil.
func (c *Client) CurrentTimer(ctx context.Context) (*tracker.RunningTimer, error) {
	var resp struct {
		Running bool                  `json:"running"`
		Timer   *tracker.RunningTimer `json:"timer"`
	}
	if err := c.do(ctx, http.MethodGet, "/timer", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Timer, nil
}

// Timer runs a timer action (start, pause, resume, stop) and returns the
// server's message. A soft failure comes back as an *APIError.
func (c *Client) Timer(ctx context.Context, ticketID, action string) (string, error) {
	var resp struct {
		OK      bool   `json:"ok"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/tickets/"+ticketID+"/timer/"+action, nil, &resp); err != nil {
		return "", err
	}
	if !resp.OK {
		return "", &APIError{Status: http.StatusOK, Code: resp.Code, Message: resp.Message}
	}
	return resp.Message, nil
}

// MoveTicket changes a ticket's status.
func (c *Client) MoveTicket(ctx context.Context, ticketID string, status models.Status) (*tracker.TicketResult, error) {
	var res tracker.TicketResult
	body := map[string]string{"status": string(status)}
	if err := c.do(ctx, http.MethodPost, "/tickets/"+ticketID+"/move", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CheckHealth checks if the daemon is healthy.
func (c *Client) CheckHealth(ctx context.Context) (bool, error) {
	var health struct {
		OK bool `json:"ok"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		return false, err
	}
	return health.OK, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("X-User-ID", c.userID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		apiErr := &APIError{Status: resp.StatusCode, Message: string(data)}
		if json.Unmarshal(data, &envelope) == nil && envelope.Error.Code != "" {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
