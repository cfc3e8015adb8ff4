// Package discovery fans out research topics to external discovery
// services, gated by per-service circuit breakers, and normalizes the
// results into deduplicated raw items.
package discovery

import (
	"context"
	"errors"

	"github.com/kbforge/curator/pkg/models"
)

// ErrUnavailable categorizes any external-client failure: transport
// errors, timeouts, and non-2xx responses all surface as this kind so
// the stage policy can treat them uniformly.
var ErrUnavailable = errors.New("external service unavailable")

// ErrNoSourcesDiscovered is returned when every external client was
// inadmissible or failed. The DISCOVER stage fails on it.
var ErrNoSourcesDiscovered = errors.New("no external client returned results")

// RawItem is the uniform shape every external client adapts its API
// response into.
type RawItem struct {
	// Identifier is the canonical external identifier (usually the
	// URL or DOI). The content hash derives from it.
	Identifier  string
	Title       string
	URL         string
	Description string
	SourceType  models.SourceType
	// PublishedAt is the raw publication date string as returned by
	// the API; the freshness scorer parses it leniently.
	PublishedAt string
	Metadata    map[string]any
}

// ExternalClient wraps one third-party discovery API. Implementations
// must respect the caller's context deadline and surface failures as
// a single categorical error wrapping ErrUnavailable. Clients do not
// consult their breaker; the discovery service does that.
type ExternalClient interface {
	// Name is the stable service identifier matched against the
	// breaker configuration table.
	Name() string
	Search(ctx context.Context, query string, limit int) ([]RawItem, error)
}
