package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/taply/backend/internal/models"
)

// APIError is a non-2xx answer from the Taply API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("taply api: status %d", e.Status)
	}
	return fmt.Sprintf("taply api: status %d: %s", e.Status, e.Message)
}

// Client talks to the Taply HTTP API. It keeps the bearer token issued by the
// last Register or Login.
type Client struct {
	http *resty.Client

	mu    sync.RWMutex
	token string
}

func NewClient(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(15 * time.Second).
			SetHeader("Content-Type", "application/json"),
	}
}

// HTTPClient exposes the underlying resty client for transport tweaks and mocking.
func (c *Client) HTTPClient() *resty.Client {
	return c.http
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Logout forgets the token. The server keeps it until the next login.
func (c *Client) Logout() {
	c.SetToken("")
}

func (c *Client) Register(ctx context.Context, email, password, username string) (*models.AuthResponse, error) {
	var out models.AuthResponse
	body := models.RegisterRequest{Email: email, Password: password, Username: username}
	if err := c.do(ctx, http.MethodPost, "/api/register", body, &out, false); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var out models.AuthResponse
	body := models.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/login", body, &out, false); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

func (c *Client) Me(ctx context.Context) (*models.MeResponse, error) {
	var out models.MeResponse
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateMe(ctx context.Context, req models.UpdateMeRequest) (*models.UpdateMeResponse, error) {
	var out models.UpdateMeResponse
	if err := c.do(ctx, http.MethodPut, "/api/me", req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveProfile sends the whole document and the username in one PUT /api/me.
func (c *Client) SaveProfile(ctx context.Context, p models.Profile, username string) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	var patch map[string]json.RawMessage
	if err := json.Unmarshal(data, &patch); err != nil {
		return err
	}
	req := models.UpdateMeRequest{Profile: patch}
	if username != "" {
		req.Username = &username
	}
	_, err = c.UpdateMe(ctx, req)
	return err
}

func (c *Client) PublicProfile(ctx context.Context, username string) (*models.PublicProfile, error) {
	var out models.PublicProfile
	if err := c.do(ctx, http.MethodGet, "/api/profile/"+username, nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RecordView(ctx context.Context, username string) error {
	return c.do(ctx, http.MethodPost, "/api/profile/"+username+"/view", nil, nil, false)
}

func (c *Client) RecordClick(ctx context.Context, username, linkID string) error {
	body := map[string]string{"linkId": linkID}
	return c.do(ctx, http.MethodPost, "/api/profile/"+username+"/click", body, nil, false)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, auth bool) error {
	req := c.http.R().
		SetContext(ctx).
		SetError(&models.ErrorResponse{})
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	if auth {
		req.SetAuthToken(c.Token())
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("taply api %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr := &APIError{Status: resp.StatusCode()}
		if e, ok := resp.Error().(*models.ErrorResponse); ok && e != nil {
			apiErr.Message = e.Error
		}
		return apiErr
	}
	return nil
}
