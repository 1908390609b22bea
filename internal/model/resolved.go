package model

type Mode string

const (
	ModeUnauthenticated  Mode = "unauthenticated"
	ModeParent           Mode = "parent"
	ModeIndependentChild Mode = "independent_child"
	ModeLinkedChild      Mode = "linked_child"
)

// ResolvedIdentity is exactly one of the four identity modes. Child is the
// active child: chosen explicitly by a parent, implicit for child modes.
type ResolvedIdentity struct {
	Mode    Mode     `json:"mode"`
	Session *Session `json:"session,omitempty"`
	Profile *Profile `json:"profile,omitempty"`
	Child   *Child   `json:"child,omitempty"`
}

func Unauthenticated() ResolvedIdentity {
	return ResolvedIdentity{Mode: ModeUnauthenticated}
}

func ParentIdentity(session *Session, profile *Profile) ResolvedIdentity {
	return ResolvedIdentity{Mode: ModeParent, Session: session, Profile: profile}
}

func IndependentChildIdentity(session *Session, profile *Profile, child *Child) ResolvedIdentity {
	return ResolvedIdentity{Mode: ModeIndependentChild, Session: session, Profile: profile, Child: child}
}

func LinkedChildIdentity(child Child) ResolvedIdentity {
	linked := child.AsLinkedDevice()
	return ResolvedIdentity{Mode: ModeLinkedChild, Child: &linked}
}

func (id ResolvedIdentity) IsAuthenticated() bool {
	return id.Mode != ModeUnauthenticated
}

// Consistent reports whether the identity satisfies the mode invariants.
func (id ResolvedIdentity) Consistent() bool {
	hasSession := id.Session != nil
	wantSession := id.Mode == ModeParent || id.Mode == ModeIndependentChild
	if hasSession != wantSession {
		return false
	}
	linked := id.Child != nil && id.Child.IsLinkedDevice
	if linked != (id.Mode == ModeLinkedChild) {
		return false
	}
	switch id.Mode {
	case ModeUnauthenticated:
		return id.Profile == nil && id.Child == nil
	case ModeParent:
		return id.Profile != nil
	case ModeIndependentChild, ModeLinkedChild:
		return id.Child != nil
	}
	return false
}
