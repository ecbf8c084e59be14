package courierapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/pkg/errors"
)

const DefaultBaseURL = "https://socket-server-cjq4.onrender.com/"

// APIError is a non-2xx answer from the courier API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("courier api http %d", e.StatusCode)
	}
	return fmt.Sprintf("courier api http %d: %s", e.StatusCode, e.Message)
}

// MessageOr returns the server message carried by err, or fallback.
func MessageOr(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type Client struct {
	baseURL string
	httpc   *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpc: &http.Client{
			Timeout: timeout,
		},
	}
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type assignBody struct {
	AgentID string `json:"agentId"`
}

type errorBody struct {
	Message string `json:"message"`
}

func (c *Client) Login(ctx context.Context, email, password string) (models.AuthResult, error) {
	var res models.AuthResult
	err := c.do(ctx, http.MethodPost, "/api/auth/login", "", loginBody{Email: email, Password: password}, &res)
	return res, err
}

func (c *Client) Register(ctx context.Context, in models.RegisterInput) (models.AuthResult, error) {
	var res models.AuthResult
	err := c.do(ctx, http.MethodPost, "/api/auth/register", "", in, &res)
	return res, err
}

func (c *Client) Me(ctx context.Context, token string) (models.User, error) {
	var u models.User
	err := c.do(ctx, http.MethodGet, "/api/auth/me", token, nil, &u)
	return u, err
}

func (c *Client) BookParcel(ctx context.Context, token string, draft models.BookingDraft) (models.Parcel, error) {
	var p models.Parcel
	err := c.do(ctx, http.MethodPost, "/api/parcels/book", token, draft, &p)
	return p, err
}

func (c *Client) ListParcels(ctx context.Context, token string) ([]models.Parcel, error) {
	var ps []models.Parcel
	if err := c.do(ctx, http.MethodGet, "/api/parcels", token, nil, &ps); err != nil {
		return nil, err
	}
	return ps, nil
}

func (c *Client) Track(ctx context.Context, trackingID string) (models.Parcel, error) {
	var p models.Parcel
	err := c.do(ctx, http.MethodGet, "/api/track/"+url.PathEscape(trackingID), "", nil, &p)
	return p, err
}

func (c *Client) AssignAgent(ctx context.Context, token, parcelID, agentID string) error {
	return c.do(ctx, http.MethodPut, "/api/parcels/"+url.PathEscape(parcelID)+"/assign", token, assignBody{AgentID: agentID}, nil)
}

func (c *Client) UpdateStatus(ctx context.Context, token, parcelID string, upd models.StatusUpdate) error {
	return c.do(ctx, http.MethodPut, "/api/parcels/"+url.PathEscape(parcelID)+"/status", token, upd, nil)
}

func (c *Client) DashboardStats(ctx context.Context, token string) (models.DashboardStats, error) {
	var st models.DashboardStats
	err := c.do(ctx, http.MethodGet, "/api/reports/dashboard", token, nil, &st)
	return st, err
}

func (c *Client) ListAgents(ctx context.Context, token string) ([]models.User, error) {
	var us []models.User
	if err := c.do(ctx, http.MethodGet, "/api/users/agents", token, nil, &us); err != nil {
		return nil, err
	}
	return us, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return errors.Wrap(err, "parse base url")
	}
	u.Path = strings.TrimRight(u.Path, "/") + path

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode body")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		return &APIError{StatusCode: resp.StatusCode, Message: eb.Message}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode")
	}
	return nil
}
