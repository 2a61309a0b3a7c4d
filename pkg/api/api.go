// Package api pins the HTTP surface of the experiment-tracking backend: the
// endpoint paths and the request/response payloads the fetcher exchanges
// with them.
package api

const (
	HeaderAccept      = "Accept"
	HeaderContentType = "Content-Type"
	HeaderRetryAfter  = "Retry-After"
	HeaderRequestID   = "X-Neptune-Client-Request-Id"
	ContentTypeJSON   = "application/json"

	PathClientConfig              = "/client-config"
	PathSearchLeaderboardEntries  = "/search-leaderboard-entries"
	PathQueryAttributeDefinitions = "/query-attribute-definitions-within-project"
	PathQueryAttributes           = "/query-attributes-within-project"
	PathFloatSeriesValues         = "/float-series-values"
	PathSeriesValues              = "/series-values"

	// Container type tags accepted by the search endpoint.
	ContainerTypeRun        = "run"
	ContainerTypeExperiment = "experiment"

	// Point orderings accepted by the series endpoints.
	OrderAscending  = "ascending"
	OrderDescending = "descending"

	// Lineage selectors for series fetches.
	LineageFull = "FULL"
	LineageNone = "NONE"

	// Error tags the backend embeds in non-2xx bodies.
	ErrorTypeAccessDenied = "ACCESS_DENIED"
)
