package api

// ClientConfig is the unauthenticated bootstrap payload.
type ClientConfig struct {
	APIURL   string               `json:"apiUrl"`
	Security SecurityClientConfig `json:"security"`
}

// SecurityClientConfig carries the OIDC discovery parameters used for the
// token exchange.
type SecurityClientConfig struct {
	ClientID        string `json:"clientId"`
	OpenIDDiscovery string `json:"openIdDiscovery"`
}

// ErrorBody is the shape the backend uses for non-2xx responses.
type ErrorBody struct {
	ErrorType string `json:"errorType"`
	Message   string `json:"message"`
}

// NextPage drives token-based pagination on all query endpoints.
type NextPage struct {
	Limit         int    `json:"limit"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// SearchLeaderboardEntriesRequest selects runs or experiment heads matching
// a serialized query.
type SearchLeaderboardEntriesRequest struct {
	Project       string   `json:"project"`
	Types         []string `json:"types"`
	Query         string   `json:"filterQuery,omitempty"`
	SortBy        *SortBy  `json:"sortBy,omitempty"`
	SortDirection string   `json:"sortDirection,omitempty"`
	Limit         *int     `json:"limit,omitempty"`
	Pagination    NextPage `json:"pagination"`
}

// SortBy orders search results by one attribute. Series attributes sort by
// an aggregation.
type SortBy struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Aggregation string `json:"aggregation,omitempty"`
}

type SearchLeaderboardEntriesResponse struct {
	Entries       []LeaderboardEntry `json:"entries"`
	NextPageToken string             `json:"nextPageToken,omitempty"`
}

type LeaderboardEntry struct {
	SysID       string `json:"sysId"`
	SysName     string `json:"sysName,omitempty"`
	CustomRunID string `json:"customRunId,omitempty"`
}

// QueryAttributeDefinitionsRequest lists attribute definitions within a
// project, optionally restricted to a run set and name/type criteria.
type QueryAttributeDefinitionsRequest struct {
	ProjectIdentifiers  []string              `json:"projectIdentifiers"`
	ExperimentIdsFilter []string              `json:"experimentIdsFilter,omitempty"`
	AttributeNameFilter *AttributeNameFilter  `json:"attributeNameFilter,omitempty"`
	AttributeFilter     []AttributeTypeFilter `json:"attributeFilter,omitempty"`
	NextPage            NextPage              `json:"nextPage"`
}

// AttributeNameFilter restricts names by regex: every mustMatch applies, no
// mustNotMatch may apply.
type AttributeNameFilter struct {
	MustMatchRegexes    []string `json:"mustMatchRegexes,omitempty"`
	MustNotMatchRegexes []string `json:"mustNotMatchRegexes,omitempty"`
}

type AttributeTypeFilter struct {
	AttributeType string `json:"attributeType"`
}

type QueryAttributeDefinitionsResponse struct {
	Entries  []AttributeDefinitionDTO `json:"entries"`
	NextPage NextPage                 `json:"nextPage"`
}

type AttributeDefinitionDTO struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// QueryAttributesRequest fetches attribute values for a set of runs.
type QueryAttributesRequest struct {
	Project              string   `json:"project"`
	ExperimentIdsFilter  []string `json:"experimentIdsFilter"`
	AttributeNamesFilter []string `json:"attributeNamesFilter,omitempty"`
	NextPage             NextPage `json:"nextPage"`
}

type QueryAttributesResponse struct {
	Entries  []ExperimentAttributesDTO `json:"entries"`
	NextPage NextPage                  `json:"nextPage"`
}

type ExperimentAttributesDTO struct {
	ExperimentID string         `json:"experimentId"`
	Attributes   []AttributeDTO `json:"attributes"`
}

// AttributeDTO is the backend's typed value union. Exactly one properties
// field is populated, selected by Type. Unknown type tags arrive with no
// recognized properties and are skipped by the decoder.
type AttributeDTO struct {
	Name string `json:"name"`
	Type string `json:"type"`

	FloatProperties           *FloatAttributeDTO           `json:"floatProperties,omitempty"`
	IntProperties             *IntAttributeDTO             `json:"intProperties,omitempty"`
	StringProperties          *StringAttributeDTO          `json:"stringProperties,omitempty"`
	BoolProperties            *BoolAttributeDTO            `json:"boolProperties,omitempty"`
	DatetimeProperties        *DatetimeAttributeDTO        `json:"datetimeProperties,omitempty"`
	StringSetProperties       *StringSetAttributeDTO       `json:"stringSetProperties,omitempty"`
	FileProperties            *FileDTO                     `json:"fileProperties,omitempty"`
	FloatSeriesProperties     *FloatSeriesAttributeDTO     `json:"floatSeriesProperties,omitempty"`
	StringSeriesProperties    *StringSeriesAttributeDTO    `json:"stringSeriesProperties,omitempty"`
	FileSeriesProperties      *FileSeriesAttributeDTO      `json:"fileSeriesProperties,omitempty"`
	HistogramSeriesProperties *HistogramSeriesAttributeDTO `json:"histogramSeriesProperties,omitempty"`
}

type FloatAttributeDTO struct {
	Value float64 `json:"value"`
}

type IntAttributeDTO struct {
	Value int64 `json:"value"`
}

type StringAttributeDTO struct {
	Value string `json:"value"`
}

type BoolAttributeDTO struct {
	Value bool `json:"value"`
}

type DatetimeAttributeDTO struct {
	ValueMillis int64 `json:"valueMillis"`
}

type StringSetAttributeDTO struct {
	Values []string `json:"values"`
}

type FileDTO struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"sizeBytes"`
	MimeType  string `json:"mimeType"`
}

// FloatSeriesAttributeDTO carries the scalar summaries of a float series.
// Fields are nil when the series has no committed points yet.
type FloatSeriesAttributeDTO struct {
	Last     *float64 `json:"last,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Average  *float64 `json:"average,omitempty"`
	Variance *float64 `json:"variance,omitempty"`
}

type StringSeriesAttributeDTO struct {
	Last     *string  `json:"last,omitempty"`
	LastStep *float64 `json:"lastStep,omitempty"`
}

type FileSeriesAttributeDTO struct {
	Last     *FileDTO `json:"last,omitempty"`
	LastStep *float64 `json:"lastStep,omitempty"`
}

type HistogramDTO struct {
	Type   string    `json:"type"`
	Edges  []float64 `json:"edges"`
	Values []float64 `json:"values"`
}

type HistogramSeriesAttributeDTO struct {
	Last     *HistogramDTO `json:"last,omitempty"`
	LastStep *float64      `json:"lastStep,omitempty"`
}

// StepRange bounds series fetches by step. Nil ends are unbounded.
type StepRange struct {
	From *float64 `json:"from,omitempty"`
	To   *float64 `json:"to,omitempty"`
}

// FloatSeriesValuesRequest fetches float metric points for many series at
// once. Each entry pages independently through AfterStep.
type FloatSeriesValuesRequest struct {
	Requests             []SeriesRequest `json:"requests"`
	StepRange            StepRange       `json:"stepRange"`
	Order                string          `json:"order"`
	PerSeriesPointsLimit int             `json:"perSeriesPointsLimit"`
}

// SeriesSpec names one series: the holder run, the attribute path, and how
// much of the fork lineage to include.
type SeriesSpec struct {
	Holder         HolderSpec `json:"holder"`
	Attribute      string     `json:"attribute"`
	Lineage        string     `json:"lineage"`
	IncludePreview bool       `json:"includePreview,omitempty"`
}

type HolderSpec struct {
	Identifier string `json:"identifier"`
	Type       string `json:"type"`
}

type FloatSeriesValuesResponse struct {
	Series []FloatSeriesValuesDTO `json:"series"`
}

type FloatSeriesValuesDTO struct {
	RequestID string          `json:"requestId"`
	Values    []FloatPointDTO `json:"values"`
}

type FloatPointDTO struct {
	TimestampMillis int64   `json:"timestampMillis"`
	Step            float64 `json:"step"`
	Value           float64 `json:"value"`
	IsPreview       bool    `json:"isPreview,omitempty"`
	CompletionRatio float64 `json:"completionRatio,omitempty"`
}

// SeriesValuesRequest is the non-numeric sibling of
// FloatSeriesValuesRequest.
type SeriesValuesRequest struct {
	Requests             []SeriesRequest `json:"requests"`
	StepRange            StepRange       `json:"stepRange"`
	Order                string          `json:"order"`
	PerSeriesPointsLimit int             `json:"perSeriesPointsLimit"`
}

// SeriesRequest addresses one series within a multi-series fetch; AfterStep
// carries the per-series pagination cursor.
type SeriesRequest struct {
	RequestID string     `json:"requestId"`
	Series    SeriesSpec `json:"series"`
	AfterStep *float64   `json:"afterStep,omitempty"`
}

type SeriesValuesResponse struct {
	Series []SeriesValuesDTO `json:"series"`
}

type SeriesValuesDTO struct {
	RequestID string           `json:"requestId"`
	Values    []SeriesPointDTO `json:"values"`
}

// SeriesPointDTO is one non-numeric series element; exactly one value field
// is set.
type SeriesPointDTO struct {
	TimestampMillis int64         `json:"timestampMillis"`
	Step            float64       `json:"step"`
	StringValue     *string       `json:"stringValue,omitempty"`
	FileValue       *FileDTO      `json:"fileValue,omitempty"`
	HistogramValue  *HistogramDTO `json:"histogramValue,omitempty"`
}
