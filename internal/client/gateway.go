package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/zoomi/household-auth/internal/model"
)

// GatewayClient reads and writes household records. Lookups return (nil, nil)
// when the backend answers 404.
type GatewayClient struct {
	*Client
}

func NewGatewayClient(c *Client) *GatewayClient {
	return &GatewayClient{Client: c}
}

type linkingCodeResponse struct {
	Code      string `json:"code"`
	ExpiresAt string `json:"expiresAt"`
}

type verifyRequest struct {
	Code string `json:"code"`
}

type addChildRequest struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

type childrenResponse struct {
	Children []model.Child `json:"children"`
}

func (c *GatewayClient) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var profile model.Profile
	err := c.do(ctx, request{
		method:  http.MethodGet,
		path:    "/v1/profiles/" + url.PathEscape(userID),
		out:     &profile,
		auth:    true,
		service: gatewayService,
	})
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *GatewayClient) GetChild(ctx context.Context, childID string) (*model.Child, error) {
	return c.getChild(ctx, "/v1/children/"+url.PathEscape(childID), true)
}

func (c *GatewayClient) GetChildByOwner(ctx context.Context, userID string) (*model.Child, error) {
	return c.getChild(ctx, "/v1/children?owner="+url.QueryEscape(userID), true)
}

// GetLinkedChild works without a session: linked devices never have one.
func (c *GatewayClient) GetLinkedChild(ctx context.Context, childID string) (*model.Child, error) {
	return c.getChild(ctx, "/v1/linked-children/"+url.PathEscape(childID), false)
}

func (c *GatewayClient) getChild(ctx context.Context, path string, auth bool) (*model.Child, error) {
	var child model.Child
	err := c.do(ctx, request{
		method:  http.MethodGet,
		path:    path,
		out:     &child,
		auth:    auth,
		service: gatewayService,
	})
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &child, nil
}

func (c *GatewayClient) GenerateLinkingCode(ctx context.Context, childID string) (string, error) {
	var resp linkingCodeResponse
	err := c.do(ctx, request{
		method:  http.MethodPost,
		path:    "/v1/children/" + url.PathEscape(childID) + "/linking-code",
		out:     &resp,
		auth:    true,
		service: gatewayService,
	})
	if err != nil {
		return "", err
	}
	return resp.Code, nil
}

func (c *GatewayClient) VerifyLinkingCode(ctx context.Context, code string) (model.VerifyResult, error) {
	var result model.VerifyResult
	err := c.do(ctx, request{
		method:  http.MethodPost,
		path:    "/v1/linking-codes/verify",
		body:    verifyRequest{Code: code},
		out:     &result,
		service: gatewayService,
	})
	if err != nil {
		return model.VerifyResult{}, err
	}
	return result, nil
}

func (c *GatewayClient) ListChildren(ctx context.Context) ([]model.Child, error) {
	var resp childrenResponse
	err := c.do(ctx, request{
		method:  http.MethodGet,
		path:    "/v1/children",
		out:     &resp,
		auth:    true,
		service: gatewayService,
	})
	if err != nil {
		return nil, err
	}
	return resp.Children, nil
}

func (c *GatewayClient) AddChild(ctx context.Context, name string, age int) (*model.Child, error) {
	var child model.Child
	err := c.do(ctx, request{
		method:  http.MethodPost,
		path:    "/v1/children",
		body:    addChildRequest{Name: name, Age: age},
		out:     &child,
		auth:    true,
		service: gatewayService,
	})
	if err != nil {
		return nil, err
	}
	return &child, nil
}
