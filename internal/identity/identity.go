// Package identity decides who is using the device and keeps that answer
// observable for the rest of the application.
package identity

import (
	"context"

	"github.com/zoomi/household-auth/internal/model"
)

// IdentityProvider is the remote account service. GetSession returns nil
// without error when nobody is signed in.
type IdentityProvider interface {
	GetSession(ctx context.Context) (*model.Session, error)
	OnSessionChange(fn func(*model.Session)) (unsubscribe func())
	SignUp(ctx context.Context, params model.SignUpParams) (*model.Session, error)
	SignIn(ctx context.Context, creds model.Credentials) (*model.Session, error)
	SignOut(ctx context.Context) error
}

// DataGateway reads household records from the backend. Lookups return
// (nil, nil) when the record does not exist.
type DataGateway interface {
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	GetChild(ctx context.Context, childID string) (*model.Child, error)
	GetChildByOwner(ctx context.Context, userID string) (*model.Child, error)
	GetLinkedChild(ctx context.Context, childID string) (*model.Child, error)
	GenerateLinkingCode(ctx context.Context, childID string) (string, error)
	VerifyLinkingCode(ctx context.Context, code string) (model.VerifyResult, error)
	ListChildren(ctx context.Context) ([]model.Child, error)
	AddChild(ctx context.Context, name string, age int) (*model.Child, error)
}

// Pairing is implemented by pairing.Service.
type Pairing interface {
	RedeemCode(ctx context.Context, code string) model.Result[model.Child]
	GetPersistedLinkedChild(ctx context.Context) *model.Child
	ClearPairing(ctx context.Context)
	LinkedChildID(ctx context.Context) (string, bool)
}
