package syncclient

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

	"notesync/internal/domain"
	"notesync/pkg/response"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTPTransport talks to the sync server's JSON API.
type HTTPTransport struct {
	baseURL string
	token   string
	client  *http.Client
}

type TransportOption func(*HTTPTransport)

func WithToken(token string) TransportOption {
	return func(t *HTTPTransport) { t.token = token }
}

func WithHTTPClient(c *http.Client) TransportOption {
	return func(t *HTTPTransport) { t.client = c }
}

func NewHTTPTransport(baseURL string, opts ...TransportOption) *HTTPTransport {
	t := &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *HTTPTransport) Sync(ctx context.Context, req *domain.SyncRequest) (*domain.SyncResponse, error) {
	var res domain.SyncResponse
	if err := t.do(ctx, http.MethodPost, "/api/v1/sync", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (t *HTTPTransport) Register(ctx context.Context, req *domain.RegisterRequest) error {
	return t.do(ctx, http.MethodPost, "/api/v1/auth/register", req, nil)
}

func (t *HTTPTransport) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	var res domain.LoginResponse
	if err := t.do(ctx, http.MethodPost, "/api/v1/auth/login", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (t *HTTPTransport) Logout(ctx context.Context) error {
	return t.do(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil)
}

func (t *HTTPTransport) Me(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := t.do(ctx, http.MethodGet, "/api/v1/users/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (t *HTTPTransport) Devices(ctx context.Context) ([]domain.DeviceSession, error) {
	var devices []domain.DeviceSession
	if err := t.do(ctx, http.MethodGet, "/api/v1/devices", nil, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

func (t *HTTPTransport) RevokeDevice(ctx context.Context, sessionID string) error {
	return t.do(ctx, http.MethodDelete, "/api/v1/devices/"+url.PathEscape(sessionID), nil, nil)
}

// do sends body as JSON and decodes the envelope's data into out. Auth
// rejections come back as domain.ErrUnauthorized, anything else that
// prevents a usable answer as domain.ErrTransport.
func (t *HTTPTransport) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	var env response.Envelope[json.RawMessage]
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode >= 300 {
		msg := env.Error
		if decodeErr != nil || msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("%s %s: %s: %w", method, path, msg, statusError(resp.StatusCode))
	}
	if decodeErr != nil {
		return fmt.Errorf("%w: invalid response body: %v", domain.ErrTransport, decodeErr)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%w: invalid response data: %v", domain.ErrTransport, err)
		}
	}
	return nil
}

func statusError(code int) error {
	switch code {
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusBadRequest:
		return domain.ErrValidation
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusConflict:
		return domain.ErrAlreadyExists
	default:
		return domain.ErrTransport
	}
}
