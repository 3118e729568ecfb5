// Package session persists conversational-agent sessions under a
// three-tier scoped state model.
//
// # State tiers
//
// Every state key belongs to exactly one tier, chosen by its prefix:
//
//	app:theme     application state, shared by all users of the app
//	user:name     user state, shared by all of that user's sessions
//	count         session-local state (no prefix)
//	temp:scratch  transient, never persisted
//
// Tier keys are stored in their tier's document without the prefix; the
// prefix is re-added when the merged view is presented. Session-local
// keys are unprefixed by construction so they cannot collide with tier
// keys.
//
// # Storage layout
//
// Documents live in a hierarchy addressed by application, user, and
// session identifiers (never store-generated IDs):
//
//	applications/{app}                               app state
//	applications/{app}/users/{u}                     user state
//	applications/{app}/users/{u}/sessions/{s}        session
//	applications/{app}/users/{u}/sessions/{s}/events event log
//
// Identifiers must not contain "/".
//
// # Service
//
// Service wires the lifecycle together:
//
//	svc := session.NewService(store)
//	sess, _ := svc.Create(ctx, "demo", "ann", nil, "")
//	svc.AppendEvent(ctx, sess, &session.Event{
//		Author:     "agent",
//		StateDelta: map[string]any{"app:counter": 1, "step": 2},
//	})
//
// AppendEvent persists the event record and every state-tier write it
// implies as one atomic store batch; either all of it lands or none.
// The in-memory session is mutated before the commit, so a failed commit
// leaves the object ahead of the store.
//
// Get returns (nil, nil) for a missing session. Malformed stored records
// are recovered best-effort or skipped, never fatal. Store I/O failures
// propagate to the caller unchanged.
//
// # Construction
//
// Open builds a Service from a store URI (sqlite://, mem://); NewService
// accepts any docstore.Store for direct wiring and tests.
package session
