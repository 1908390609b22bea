// Package client talks to the household backend over HTTP on behalf of the
// device.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/zoomi/household-auth/internal/errors"
	"github.com/zoomi/household-auth/internal/httputil"
	"github.com/zoomi/household-auth/internal/localstore"
)

const (
	identityService = "identity provider"
	gatewayService  = "data gateway"

	maxErrorBodySize = 64 << 10
)

// Client holds what IdentityClient and GatewayClient share: the backend
// address, the HTTP client and the device store that keeps the session token.
type Client struct {
	baseURL string
	http    *http.Client
	stream  *http.Client
	store   localstore.Store
}

func New(baseURL string, timeout time.Duration, store localstore.Store) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		// event streams stay open, so only the context bounds them
		stream: &http.Client{},
		store:  store,
	}
}

func (c *Client) token(ctx context.Context) (string, error) {
	token, ok, err := c.store.Get(ctx, localstore.KeySessionToken)
	if err != nil {
		return "", fmt.Errorf("read session token: %w", err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// request describes one JSON call. A nil out discards the response body.
type request struct {
	method  string
	path    string
	body    any
	out     any
	auth    bool
	service string
}

func (c *Client) newRequest(ctx context.Context, req request) (*http.Request, error) {
	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	if req.auth {
		token, err := c.token(ctx)
		if err != nil {
			return nil, err
		}
		if token == "" {
			return nil, apperrors.Unauthorized("Not signed in")
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	return httpReq, nil
}

// do sends req and decodes a 2xx response into req.out. Error responses
// become AppErrors with the backend's code; transport failures become
// REMOTE_UNAVAILABLE.
func (c *Client) do(ctx context.Context, req request) error {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return apperrors.RemoteUnavailable(req.service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if req.out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(req.out); err != nil {
		return apperrors.RemoteUnavailable(req.service, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func decodeError(resp *http.Response) *apperrors.AppError {
	var body httputil.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err := json.Unmarshal(data, &body); err != nil || body.Code == "" {
		code := httputil.CodeFromStatus(resp.StatusCode)
		return apperrors.New(code, fmt.Sprintf("backend returned %d", resp.StatusCode))
	}
	return apperrors.New(body.Code, body.Error).WithDetails(body.Details)
}

// isNotFound reports a 404 that lookups translate into (nil, nil).
func isNotFound(err error) bool {
	return apperrors.HasCode(err, apperrors.ErrCodeNotFound)
}
