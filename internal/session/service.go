// ABOUTME: Session lifecycle, three-tier state merge, and atomic event append
// ABOUTME: Routes scoped state writes to app/user/session documents in one batch

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-sessions/internal/docstore"
)

// DefaultDeletePageSize is how many event documents a session deletion
// removes per page.
const DefaultDeletePageSize = 50

// Service persists sessions, their event logs, and three-tier scoped
// state in a hierarchical document store:
//
//	applications/{app}                          application state
//	applications/{app}/users/{user}             user state
//	.../sessions/{session}                      session document
//	.../sessions/{session}/events/{event}       event log
//
// Service methods are independently invocable and hold no locks of their
// own; concurrent appends to the same session rely on the store's
// per-batch atomicity.
type Service struct {
	store          docstore.Store
	logger         *slog.Logger
	deletePageSize int
}

// Option configures a Service.
type Option func(*Service)

// WithDeletePageSize sets the page size for event-log deletion.
func WithDeletePageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.deletePageSize = n
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a session service on top of the given document store.
func NewService(store docstore.Store, opts ...Option) *Service {
	s := &Service{
		store:          store,
		logger:         slog.Default().With("component", "session"),
		deletePageSize: DefaultDeletePageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the underlying store.
func (s *Service) Close() error {
	return s.store.Close()
}

func appStatePath(appName string) string {
	return "applications/" + appName
}

func userStatePath(appName, userID string) string {
	return appStatePath(appName) + "/users/" + userID
}

func sessionPath(appName, userID, sessionID string) string {
	return userStatePath(appName, userID) + "/sessions/" + sessionID
}

func eventsPath(appName, userID, sessionID string) string {
	return sessionPath(appName, userID, sessionID) + "/events"
}

// Create writes a new session document and returns the session with
// app- and user-tier state merged in. If sessionID is empty or blank
// after trimming, a random identifier is generated; collisions are not
// checked beyond the identifier's own randomness.
func (s *Service) Create(ctx context.Context, appName, userID string, state map[string]any, sessionID string) (*Session, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		id = uuid.NewString()
	}

	if state == nil {
		state = map[string]any{}
	}

	sess := &Session{
		ID:             id,
		AppName:        appName,
		UserID:         userID,
		State:          state,
		Events:         []*Event{},
		LastUpdateTime: time.Now().UTC(),
	}

	if err := s.store.Set(ctx, sessionPath(appName, userID, id), sessionDoc(sess)); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	s.logger.Debug("created session", "app", appName, "user", userID, "session", id)
	return s.mergeState(ctx, sess)
}

// GetOptions narrows which events Get attaches to the session. The
// zero value loads the full event log.
type GetOptions struct {
	// AfterTimestamp keeps only events strictly after this time.
	AfterTimestamp time.Time

	// NumRecentEvents keeps only the N most recent events. They are
	// fetched newest-first from the store and re-sorted ascending, so
	// a large log is never scanned in full.
	NumRecentEvents int
}

// Get loads a session and its events. It returns (nil, nil) when the
// session does not exist: absence is a result, not an error. Stored
// records that fail to parse are recovered best-effort (the session) or
// skipped (individual events) rather than failing the read.
func (s *Service) Get(ctx context.Context, appName, userID, sessionID string, opts *GetOptions) (*Session, error) {
	doc, err := s.store.Get(ctx, sessionPath(appName, userID, sessionID))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	sess := sessionFromDoc(doc, appName, userID, sessionID)

	q := docstore.Query{OrderBy: "timestamp"}
	if opts != nil {
		if !opts.AfterTimestamp.IsZero() {
			q.Filter = &docstore.Filter{
				Field: "timestamp",
				Op:    ">",
				Value: opts.AfterTimestamp.UnixMicro(),
			}
		}
		if opts.NumRecentEvents > 0 {
			q.Direction = docstore.Descending
			q.Limit = opts.NumRecentEvents
		}
	}

	snaps, err := s.store.Query(ctx, eventsPath(appName, userID, sessionID), q)
	if err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}

	for _, snap := range snaps {
		event, err := eventFromDoc(snap.Doc)
		if err != nil {
			s.logger.Warn("skipping malformed event", "path", snap.Path, "error", err)
			continue
		}
		sess.Events = append(sess.Events, event)
	}

	// The recent-count query fetched newest-first; callers always see
	// events in ascending timestamp order.
	if opts != nil && opts.NumRecentEvents > 0 {
		sort.SliceStable(sess.Events, func(i, j int) bool {
			return sess.Events[i].Timestamp.Before(sess.Events[j].Timestamp)
		})
	}

	return s.mergeState(ctx, sess)
}

// List returns all of a user's sessions ordered by descending last-update
// time. Event logs are not loaded for a listing. Entries that fail to
// validate are skipped.
func (s *Service) List(ctx context.Context, appName, userID string) ([]*Session, error) {
	snaps, err := s.store.Query(ctx, userStatePath(appName, userID)+"/sessions", docstore.Query{
		OrderBy:   "last_update_time",
		Direction: docstore.Descending,
	})
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	var sessions []*Session
	for _, snap := range snaps {
		if stringField(snap.Doc, "id", "") == "" {
			s.logger.Warn("skipping malformed session", "path", snap.Path)
			continue
		}
		sess := sessionFromDoc(snap.Doc, appName, userID, "")
		merged, err := s.mergeState(ctx, sess)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, merged)
	}
	return sessions, nil
}

// Delete removes a session and its event log. The event sub-collection is
// drained page by page because the store cannot delete an unbounded
// collection in one request. Deleting an absent session is a no-op.
func (s *Service) Delete(ctx context.Context, appName, userID, sessionID string) error {
	events := eventsPath(appName, userID, sessionID)
	for {
		snaps, err := s.store.Query(ctx, events, docstore.Query{
			OrderBy: "timestamp",
			Limit:   s.deletePageSize,
		})
		if err != nil {
			return fmt.Errorf("listing events for deletion: %w", err)
		}
		for _, snap := range snaps {
			if err := s.store.Delete(ctx, snap.Path); err != nil {
				return fmt.Errorf("deleting event: %w", err)
			}
		}
		if len(snaps) < s.deletePageSize {
			break
		}
	}

	if err := s.store.Delete(ctx, sessionPath(appName, userID, sessionID)); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	s.logger.Debug("deleted session", "app", appName, "user", userID, "session", sessionID)
	return nil
}

// AppendEvent applies the event's state delta to the in-memory session,
// then persists the event record and all resulting state-tier writes as
// one atomic batch. Partial events are returned unchanged with no
// persistence or mutation.
//
// The in-memory session is mutated before the batch commits, so a commit
// failure leaves the session object ahead of the store; the caller owns
// recovery (typically by re-reading the session).
func (s *Service) AppendEvent(ctx context.Context, sess *Session, event *Event) (*Event, error) {
	if event.Partial {
		return event, nil
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if sess.State == nil {
		sess.State = map[string]any{}
	}
	for key, value := range event.StateDelta {
		scope := Classify(key)
		if scope == ScopeTransient || scope == ScopeInvalid {
			continue
		}
		// Full scoped key, so the local view matches what a merge
		// would produce.
		sess.State[key] = value
	}
	sess.Events = append(sess.Events, event)
	sess.LastUpdateTime = event.Timestamp

	appUpdates := docstore.Document{}
	userUpdates := docstore.Document{}
	sessionUpdates := docstore.Document{}
	for key, value := range event.StateDelta {
		scope := Classify(key)
		switch scope {
		case ScopeApp:
			appUpdates[StorageKey(key, scope)] = value
		case ScopeUser:
			userUpdates[StorageKey(key, scope)] = value
		case ScopeSession:
			sessionUpdates["state."+key] = value
		}
	}

	batch := s.store.Batch()
	batch.Set(eventsPath(sess.AppName, sess.UserID, sess.ID)+"/"+event.ID, eventDoc(event))
	if len(appUpdates) > 0 {
		batch.Merge(appStatePath(sess.AppName), appUpdates)
	}
	if len(userUpdates) > 0 {
		batch.Merge(userStatePath(sess.AppName, sess.UserID), userUpdates)
	}
	sessionUpdates["last_update_time"] = sess.LastUpdateTime.UnixMicro()
	batch.Update(sessionPath(sess.AppName, sess.UserID, sess.ID), sessionUpdates)

	if err := batch.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appending event: %w", err)
	}

	s.logger.Debug("appended event",
		"app", sess.AppName,
		"user", sess.UserID,
		"session", sess.ID,
		"event", event.ID,
	)
	return event, nil
}

// mergeState overlays the application and user state documents onto the
// session's state map under their tier prefixes. A missing tier document
// contributes no keys. The two reads are independent point-in-time reads,
// not a snapshot.
func (s *Service) mergeState(ctx context.Context, sess *Session) (*Session, error) {
	if sess.State == nil {
		sess.State = map[string]any{}
	}

	appDoc, err := s.store.Get(ctx, appStatePath(sess.AppName))
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("reading app state: %w", err)
	}
	for k, v := range appDoc {
		sess.State[AppPrefix+k] = v
	}

	userDoc, err := s.store.Get(ctx, userStatePath(sess.AppName, sess.UserID))
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("reading user state: %w", err)
	}
	for k, v := range userDoc {
		sess.State[UserPrefix+k] = v
	}

	return sess, nil
}
