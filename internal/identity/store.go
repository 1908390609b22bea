package identity

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	apperrors "github.com/zoomi/household-auth/internal/errors"
	"github.com/zoomi/household-auth/internal/model"
)

// State is what the store exposes to readers. Fault holds the error of the
// last resolution, if any, so it can be shown instead of silently dropped.
type State struct {
	Identity      model.ResolvedIdentity
	IsLoading     bool
	IsInitialized bool
	Fault         *apperrors.AppError
}

// Store owns the current identity. Every resolution takes a generation number
// when it starts and commits only if no newer resolution or identity-replacing
// mutation has started since, so a slow resolution never overwrites a fresh one.
type Store struct {
	provider IdentityProvider
	gateway  DataGateway
	pairing  Pairing
	resolver *Resolver

	mu         sync.Mutex
	state      State
	generation uint64
	pending    int
	baseCtx    context.Context

	listenersMu    sync.Mutex
	listeners      map[int]func(State)
	nextListenerID int

	unsubscribeSession func()
}

func NewStore(provider IdentityProvider, gateway DataGateway, pairing Pairing) *Store {
	return &Store{
		provider:  provider,
		gateway:   gateway,
		pairing:   pairing,
		resolver:  NewResolver(provider, gateway, pairing),
		state:     State{Identity: model.Unauthenticated()},
		baseCtx:   context.Background(),
		listeners: make(map[int]func(State)),
	}
}

// Start subscribes to session changes and runs the cold-start resolution.
// Session-change resolutions use ctx, so it should live as long as the store.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	s.unsubscribeSession = s.provider.OnSessionChange(func(session *model.Session) {
		userID := ""
		if session != nil {
			userID = session.UserID
		}
		log.Debug().Str("userId", userID).Msg("session changed")
		_ = s.resolve(s.context(), false)
	})

	return s.resolve(ctx, true)
}

// Close detaches the store from the provider and drops all subscribers.
func (s *Store) Close() {
	if s.unsubscribeSession != nil {
		s.unsubscribeSession()
		s.unsubscribeSession = nil
	}

	s.listenersMu.Lock()
	s.listeners = make(map[int]func(State))
	s.listenersMu.Unlock()
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn to receive every new state. The returned function
// removes the subscription.
func (s *Store) Subscribe(fn func(State)) func() {
	s.listenersMu.Lock()
	id := s.nextListenerID
	s.nextListenerID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// Resolve re-runs the identity resolution and returns its error, if any. The
// error is also kept in State.Fault.
func (s *Store) Resolve(ctx context.Context) error {
	return s.resolve(ctx, false)
}

func (s *Store) resolve(ctx context.Context, initial bool) error {
	gen := s.begin(true)

	identity, err := s.resolver.Resolve(ctx)
	fault := asFault(err)

	s.end(func(st *State) {
		if initial {
			st.IsInitialized = true
		}
		if gen != s.generation {
			log.Debug().Uint64("generation", gen).Msg("discarding stale resolution")
			return
		}
		st.Identity = identity
		st.Fault = fault
	})

	return err
}

// SignOut ends the backend session and forgets the paired child, whatever the
// current mode. The store is unauthenticated afterwards even if the backend
// call fails; that failure is returned for display.
func (s *Store) SignOut(ctx context.Context) error {
	s.begin(true)

	// pairing goes first so a resolution triggered by the sign-out sees it gone
	s.pairing.ClearPairing(ctx)
	err := s.provider.SignOut(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("remote sign-out failed")
	}

	s.end(func(st *State) {
		s.generation++
		st.Identity = model.Unauthenticated()
		st.Fault = nil
	})

	return err
}

// PairDevice redeems code and, on success, replaces the identity with the
// linked child. A failure leaves the identity untouched.
func (s *Store) PairDevice(ctx context.Context, code string) model.Result[model.Child] {
	s.begin(false)

	result := s.pairing.RedeemCode(ctx, code)

	s.end(func(st *State) {
		if !result.OK {
			return
		}
		s.generation++
		st.Identity = model.LinkedChildIdentity(result.Value)
		st.Fault = nil
	})

	return result
}

// RefreshActiveChild re-fetches only the active child and swaps it in,
// keeping the mode and the linked-device flag.
func (s *Store) RefreshActiveChild(ctx context.Context) error {
	s.mu.Lock()
	current := s.state.Identity
	gen := s.generation
	s.mu.Unlock()

	if current.Child == nil {
		return nil
	}
	childID := current.Child.ID

	s.begin(false)

	var (
		fresh    *model.Child
		unlinked bool
		err      error
	)
	if current.Mode == model.ModeLinkedChild {
		if _, ok := s.pairing.LinkedChildID(ctx); !ok {
			unlinked = true
		} else {
			fresh = s.pairing.GetPersistedLinkedChild(ctx)
		}
	} else {
		fresh, err = s.gateway.GetChild(ctx, childID)
		if err != nil {
			err = remoteError("data gateway", err)
		} else if fresh == nil {
			err = apperrors.NotFound("Child")
		}
	}

	s.end(func(st *State) {
		if gen != s.generation || st.Identity.Mode != current.Mode ||
			st.Identity.Child == nil || st.Identity.Child.ID != childID {
			return
		}
		if unlinked {
			log.Info().Str("childId", childID).Msg("pairing was removed, signing out linked device")
			s.generation++
			st.Identity = model.Unauthenticated()
			return
		}
		if fresh == nil || fresh.ID != childID {
			return
		}
		updated := *fresh
		updated.IsLinkedDevice = st.Identity.Child.IsLinkedDevice
		identity := st.Identity
		identity.Child = &updated
		st.Identity = identity
	})

	return err
}

// SetActiveChild picks which child a parent is looking at. It is ignored in
// every other mode.
func (s *Store) SetActiveChild(child *model.Child) {
	s.mu.Lock()
	if s.state.Identity.Mode != model.ModeParent {
		mode := s.state.Identity.Mode
		s.mu.Unlock()
		log.Debug().Str("mode", string(mode)).Msg("ignoring active child outside parent mode")
		return
	}

	identity := s.state.Identity
	if child == nil {
		identity.Child = nil
	} else {
		active := *child
		active.IsLinkedDevice = false
		identity.Child = &active
	}
	s.state.Identity = identity
	snap := s.state
	s.mu.Unlock()

	s.notify(snap)
}

// SignIn signs in through the provider. The provider's session-change
// notification drives the resolution.
func (s *Store) SignIn(ctx context.Context, creds model.Credentials) error {
	s.begin(false)
	_, err := s.provider.SignIn(ctx, creds)
	s.end(nil)
	return err
}

func (s *Store) SignUp(ctx context.Context, params model.SignUpParams) error {
	s.begin(false)
	_, err := s.provider.SignUp(ctx, params)
	s.end(nil)
	return err
}

// begin marks an operation in flight and, when bump is set, starts a new
// generation. It returns the generation the operation belongs to.
func (s *Store) begin(bump bool) uint64 {
	s.mu.Lock()
	if bump {
		s.generation++
	}
	gen := s.generation
	s.pending++
	s.state.IsLoading = true
	snap := s.state
	s.mu.Unlock()

	s.notify(snap)
	return gen
}

// end applies update under the lock and clears IsLoading once nothing else
// is in flight.
func (s *Store) end(update func(*State)) {
	s.mu.Lock()
	if update != nil {
		update(&s.state)
	}
	s.pending--
	s.state.IsLoading = s.pending > 0
	snap := s.state
	s.mu.Unlock()

	s.notify(snap)
}

func (s *Store) notify(state State) {
	s.listenersMu.Lock()
	fns := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

func (s *Store) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}

func asFault(err error) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}
	return apperrors.Internal(err.Error()).WithCause(err)
}
