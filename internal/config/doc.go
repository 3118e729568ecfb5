// Package config loads session-store configuration from YAML files.
//
// # Format
//
//	store:
//	  uri: "sqlite:///var/lib/coven/sessions.db"
//	  delete_page_size: 50
//
//	logging:
//	  level: "info"     # debug, info, warn, error
//	  format: "text"    # text or json
//
// Environment variables in the form ${VAR_NAME} are expanded before
// parsing, so secrets and host-specific paths can stay out of the file:
//
//	store:
//	  uri: "sqlite://${SESSIONS_DB_PATH}"
//
// Missing fields receive defaults (in-memory store, page size 50,
// info-level text logging). Default() returns the same defaults when no
// config file is present at all.
package config
