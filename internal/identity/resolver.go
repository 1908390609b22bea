package identity

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	apperrors "github.com/zoomi/household-auth/internal/errors"
	"github.com/zoomi/household-auth/internal/model"
)

type Resolver struct {
	provider IdentityProvider
	gateway  DataGateway
	pairing  Pairing
}

func NewResolver(provider IdentityProvider, gateway DataGateway, pairing Pairing) *Resolver {
	return &Resolver{
		provider: provider,
		gateway:  gateway,
		pairing:  pairing,
	}
}

// Resolve answers "who is using this device". Each step waits for the
// previous one. The returned identity is always usable: on error it is
// unauthenticated and the error says why.
func (r *Resolver) Resolve(ctx context.Context) (model.ResolvedIdentity, error) {
	session, err := r.provider.GetSession(ctx)
	if err != nil {
		return model.Unauthenticated(), remoteError("identity provider", err)
	}

	if session != nil {
		identity, resolved, err := r.resolveSession(ctx, session)
		if err != nil || resolved {
			return identity, err
		}
	}

	child := r.pairing.GetPersistedLinkedChild(ctx)
	if child == nil {
		return model.Unauthenticated(), nil
	}
	return model.LinkedChildIdentity(*child), nil
}

// resolveSession reports resolved=false when the session turned out to be
// unusable and was signed out, so the caller continues as if there was none.
func (r *Resolver) resolveSession(ctx context.Context, session *model.Session) (model.ResolvedIdentity, bool, error) {
	profile, err := r.gateway.GetProfile(ctx, session.UserID)
	if err != nil {
		return model.Unauthenticated(), true, remoteError("data gateway", err)
	}

	if profile == nil {
		log.Warn().
			Err(apperrors.ProfileMissing(session.UserID)).
			Str("userId", session.UserID).
			Msg("session has no profile, signing out")
		if err := r.provider.SignOut(ctx); err != nil {
			log.Error().Err(err).Str("userId", session.UserID).Msg("forced sign-out failed")
		}
		return model.Unauthenticated(), false, nil
	}

	switch profile.Role {
	case model.RoleIndependentChild:
		child, err := r.gateway.GetChildByOwner(ctx, session.UserID)
		if err != nil {
			return model.Unauthenticated(), true, remoteError("data gateway", err)
		}
		if child == nil {
			log.Error().Str("userId", session.UserID).Msg("independent child account has no child record")
			return model.Unauthenticated(), true, apperrors.ChildMissing(session.UserID)
		}
		return model.IndependentChildIdentity(session, profile, child), true, nil

	case model.RoleParent:
		return model.ParentIdentity(session, profile), true, nil

	default:
		return model.Unauthenticated(), true, apperrors.Internal(fmt.Sprintf("unknown profile role %q", profile.Role))
	}
}

func remoteError(service string, err error) error {
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.RemoteUnavailable(service, err)
}
