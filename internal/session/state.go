// ABOUTME: Key scoping rules for the three-tier state model
// ABOUTME: Classifies state keys into app/user/session/transient scopes by prefix

package session

import "strings"

// Reserved state-key prefixes. A key carrying one of these belongs to the
// named tier; an unprefixed key is session-local.
const (
	AppPrefix  = "app:"
	UserPrefix = "user:"
	TempPrefix = "temp:"
)

// Scope identifies the tier a state key is persisted at.
type Scope int

const (
	// ScopeSession is session-local state, stored in the session document.
	ScopeSession Scope = iota
	// ScopeApp is application-wide state, shared by all users of an app.
	ScopeApp
	// ScopeUser is per-user state, shared by all of a user's sessions.
	ScopeUser
	// ScopeTransient state is never persisted anywhere.
	ScopeTransient
	// ScopeInvalid marks empty or bare-prefix keys, which are dropped.
	ScopeInvalid
)

// String returns the scope name for logging.
func (s Scope) String() string {
	switch s {
	case ScopeSession:
		return "session"
	case ScopeApp:
		return "app"
	case ScopeUser:
		return "user"
	case ScopeTransient:
		return "transient"
	default:
		return "invalid"
	}
}

// Classify assigns a state key to exactly one scope. Precedence when a key
// could match more than one prefix: transient first, then application,
// then user; anything unprefixed is session-local. An empty key, or a key
// that is only a prefix with nothing after it, is invalid. Invalid keys
// are dropped silently rather than rejected, so unknown future key shapes
// degrade to no-ops instead of errors.
func Classify(key string) Scope {
	switch {
	case key == "":
		return ScopeInvalid
	case strings.HasPrefix(key, TempPrefix):
		if key == TempPrefix {
			return ScopeInvalid
		}
		return ScopeTransient
	case strings.HasPrefix(key, AppPrefix):
		if key == AppPrefix {
			return ScopeInvalid
		}
		return ScopeApp
	case strings.HasPrefix(key, UserPrefix):
		if key == UserPrefix {
			return ScopeInvalid
		}
		return ScopeUser
	default:
		return ScopeSession
	}
}

// StorageKey resolves a scoped key to the key used within its tier's
// document: tier prefixes are stripped, session-local keys pass through
// unchanged. Transient and invalid keys have no storage key.
func StorageKey(key string, scope Scope) string {
	switch scope {
	case ScopeApp:
		return strings.TrimPrefix(key, AppPrefix)
	case ScopeUser:
		return strings.TrimPrefix(key, UserPrefix)
	case ScopeSession:
		return key
	default:
		return ""
	}
}
