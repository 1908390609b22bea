package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/zoomi/household-auth/internal/errors"
	"github.com/zoomi/household-auth/internal/localstore"
	"github.com/zoomi/household-auth/internal/model"
)

const (
	EventSessionRevoked = "session_revoked"

	watchRetryDelay = 5 * time.Second
)

type signOutRequest struct {
	Everywhere bool `json:"everywhere"`
}

// IdentityClient signs the device in and out and keeps the session token in
// the device store.
type IdentityClient struct {
	*Client

	mu        sync.Mutex
	listeners map[int]func(*model.Session)
	nextID    int
}

func NewIdentityClient(c *Client) *IdentityClient {
	return &IdentityClient{
		Client:    c,
		listeners: make(map[int]func(*model.Session)),
	}
}

// GetSession validates the stored token with the backend. A rejected token is
// dropped and reported as no session.
func (c *IdentityClient) GetSession(ctx context.Context) (*model.Session, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, nil
	}

	var session model.Session
	err = c.do(ctx, request{
		method:  http.MethodGet,
		path:    "/v1/auth/session",
		out:     &session,
		auth:    true,
		service: identityService,
	})
	if apperrors.HasCode(err, apperrors.ErrCodeUnauthorized) {
		log.Info().Msg("stored session is no longer valid, dropping it")
		if err := c.store.Remove(ctx, localstore.KeySessionToken); err != nil {
			log.Error().Err(err).Msg("failed to remove session token")
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	session.Token = token
	return &session, nil
}

// OnSessionChange registers fn to be called after every sign-in, sign-up,
// sign-out and observed revocation. fn receives nil when the session ended.
func (c *IdentityClient) OnSessionChange(fn func(*model.Session)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *IdentityClient) SignUp(ctx context.Context, params model.SignUpParams) (*model.Session, error) {
	return c.authenticate(ctx, "/v1/auth/signup", params)
}

func (c *IdentityClient) SignIn(ctx context.Context, creds model.Credentials) (*model.Session, error) {
	return c.authenticate(ctx, "/v1/auth/signin", creds)
}

func (c *IdentityClient) authenticate(ctx context.Context, path string, body any) (*model.Session, error) {
	var session model.Session
	err := c.do(ctx, request{
		method:  http.MethodPost,
		path:    path,
		body:    body,
		out:     &session,
		service: identityService,
	})
	if err != nil {
		return nil, err
	}
	if session.Token == "" {
		return nil, apperrors.RemoteUnavailable(identityService, errors.New("response has no session token"))
	}

	if err := c.store.Set(ctx, localstore.KeySessionToken, session.Token); err != nil {
		return nil, fmt.Errorf("save session token: %w", err)
	}

	c.emit(&session)
	return &session, nil
}

// SignOut revokes the session on the backend and forgets it locally. Without
// a session it does nothing. The local token is dropped even when the
// backend cannot be reached.
func (c *IdentityClient) SignOut(ctx context.Context) error {
	return c.signOut(ctx, false)
}

// SignOutEverywhere also revokes the account's sessions on every other
// device.
func (c *IdentityClient) SignOutEverywhere(ctx context.Context) error {
	return c.signOut(ctx, true)
}

func (c *IdentityClient) signOut(ctx context.Context, everywhere bool) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}

	req := request{
		method:  http.MethodPost,
		path:    "/v1/auth/signout",
		auth:    true,
		service: identityService,
	}
	if everywhere {
		req.body = signOutRequest{Everywhere: true}
	}

	remoteErr := c.do(ctx, req)
	if apperrors.HasCode(remoteErr, apperrors.ErrCodeUnauthorized) {
		remoteErr = nil
	}

	if err := c.store.Remove(ctx, localstore.KeySessionToken); err != nil {
		return fmt.Errorf("remove session token: %w", err)
	}

	c.emit(nil)
	return remoteErr
}

// WatchSessionEvents follows the backend event stream until ctx is done or
// the session is revoked. Broken streams are retried.
func (c *IdentityClient) WatchSessionEvents(ctx context.Context) error {
	for {
		revoked, err := c.watchOnce(ctx)
		if revoked || ctx.Err() != nil {
			return nil
		}
		if apperrors.HasCode(err, apperrors.ErrCodeUnauthorized) {
			log.Info().Msg("no active session to watch")
			return nil
		}
		log.Warn().Err(err).Dur("retryIn", watchRetryDelay).Msg("session event stream interrupted")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(watchRetryDelay):
		}
	}
}

func (c *IdentityClient) watchOnce(ctx context.Context) (bool, error) {
	req, err := c.newRequest(ctx, request{
		method: http.MethodGet,
		path:   "/v1/auth/events",
		auth:   true,
	})
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return false, apperrors.RemoteUnavailable(identityService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.revoke(ctx)
		return true, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, decodeError(resp)
	}

	log.Debug().Msg("session event stream connected")

	var eventType string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case line == "":
			if eventType == EventSessionRevoked {
				c.revoke(ctx)
				return true, nil
			}
			eventType = ""
		}
	}

	if err := scanner.Err(); err != nil {
		return false, apperrors.RemoteUnavailable(identityService, err)
	}
	return false, apperrors.RemoteUnavailable(identityService, errors.New("event stream closed"))
}

func (c *IdentityClient) revoke(ctx context.Context) {
	log.Info().Msg("session revoked by backend")
	if err := c.store.Remove(ctx, localstore.KeySessionToken); err != nil {
		log.Error().Err(err).Msg("failed to remove session token")
	}
	c.emit(nil)
}

func (c *IdentityClient) emit(session *model.Session) {
	c.mu.Lock()
	fns := make([]func(*model.Session), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(session)
	}
}
