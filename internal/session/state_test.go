// ABOUTME: Tests for state-key scope classification and prefix stripping
// ABOUTME: Covers precedence, invalid keys, and storage-key resolution

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		key  string
		want Scope
	}{
		{"app:theme", ScopeApp},
		{"user:name", ScopeUser},
		{"temp:scratch", ScopeTransient},
		{"counter", ScopeSession},
		{"some.dotted.key", ScopeSession},
		{"", ScopeInvalid},
		{"app:", ScopeInvalid},
		{"user:", ScopeInvalid},
		{"temp:", ScopeInvalid},
		// A second prefix after the first is just part of the key
		{"app:user:x", ScopeApp},
		{"temp:app:x", ScopeTransient},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.key))
		})
	}
}

func TestStorageKey(t *testing.T) {
	assert.Equal(t, "theme", StorageKey("app:theme", ScopeApp))
	assert.Equal(t, "name", StorageKey("user:name", ScopeUser))
	assert.Equal(t, "counter", StorageKey("counter", ScopeSession))

	// Transient and invalid keys are never stored
	assert.Equal(t, "", StorageKey("temp:x", ScopeTransient))
	assert.Equal(t, "", StorageKey("app:", ScopeInvalid))
}

func TestScopeString(t *testing.T) {
	assert.Equal(t, "app", ScopeApp.String())
	assert.Equal(t, "user", ScopeUser.String())
	assert.Equal(t, "session", ScopeSession.String())
	assert.Equal(t, "transient", ScopeTransient.String())
	assert.Equal(t, "invalid", ScopeInvalid.String())
}
