// ABOUTME: Store-URI glue for constructing a Service from configuration
// ABOUTME: Maps sqlite:// and mem:// URIs onto docstore backends

package session

import (
	"fmt"
	"net/url"

	"github.com/2389/coven-sessions/internal/docstore"
)

// OpenStore creates a document store from a URI.
//
// Supported schemes:
//
//	sqlite:///var/lib/coven/sessions.db   SQLite file (path after //)
//	sqlite::memory:                       in-process SQLite
//	mem://                                in-memory store
func OpenStore(uri string) (docstore.Store, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parsing store URI: %w", err)
	}

	switch parsed.Scheme {
	case "mem", "memory":
		return docstore.NewMemoryStore(), nil

	case "sqlite":
		if parsed.Opaque == ":memory:" {
			return docstore.NewSQLiteStore(":memory:")
		}
		// sqlite:///abs/path parses to an empty host and an absolute
		// path; sqlite://rel/path puts the first segment in the host.
		path := parsed.Path
		if parsed.Host != "" {
			path = parsed.Host + parsed.Path
		}
		if path == "" {
			return nil, fmt.Errorf("sqlite store URI %q has no path", uri)
		}
		return docstore.NewSQLiteStore(path)

	case "":
		return nil, fmt.Errorf("store URI %q has no scheme", uri)

	default:
		return nil, fmt.Errorf("unsupported store scheme %q", parsed.Scheme)
	}
}

// Open constructs a Service from a store URI.
func Open(uri string, opts ...Option) (*Service, error) {
	store, err := OpenStore(uri)
	if err != nil {
		return nil, err
	}
	return NewService(store, opts...), nil
}
