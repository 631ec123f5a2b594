package activity

import (
	"strings"
	"time"
)

// Verbs emitted by datasets and cache administration.
const (
	VerbFetched      = "dataset.fetched"
	VerbCacheHit     = "dataset.cache_hit"
	VerbCacheWritten = "dataset.cache_written"
	VerbCachePurged  = "dataset.cache_purged"
)

// ObjectTypeDataset is the object type of every dataset event.
const ObjectTypeDataset = "dataset"

// FetchEventInput describes one fetch and its cache interaction.
type FetchEventInput struct {
	Dataset  string
	Kind     string
	Flag     string
	CacheKey string
	Rows     int
	Columns  int
	Duration time.Duration
	Metadata map[string]any
	// OccurredAt defaults to the time the event is normalized.
	OccurredAt time.Time
}

// BuildFetchedEvent describes a completed fetch.
func BuildFetchedEvent(input FetchEventInput) Event {
	event := buildDatasetEvent(VerbFetched, input)
	event.Metadata["rows"] = input.Rows
	event.Metadata["columns"] = input.Columns
	if input.Duration > 0 {
		event.Metadata["duration_ms"] = input.Duration.Milliseconds()
	}
	return event
}

// BuildCacheHitEvent describes a fetch served from the cache.
func BuildCacheHitEvent(input FetchEventInput) Event {
	return buildDatasetEvent(VerbCacheHit, input)
}

// BuildCacheWrittenEvent describes a fetch result stored in the cache.
func BuildCacheWrittenEvent(input FetchEventInput) Event {
	return buildDatasetEvent(VerbCacheWritten, input)
}

// AllDatasets is the object id of purges that span every dataset.
const AllDatasets = "*"

// BuildCachePurgedEvent describes removed cache entries. An empty flag means
// every flag of the dataset; an empty dataset means every dataset.
func BuildCachePurgedEvent(dataset, flag string, removed int) Event {
	if strings.TrimSpace(dataset) == "" {
		dataset = AllDatasets
	}
	event := buildDatasetEvent(VerbCachePurged, FetchEventInput{Dataset: dataset, Flag: flag})
	event.Metadata["removed"] = removed
	return event
}

func buildDatasetEvent(verb string, input FetchEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	if kind := strings.TrimSpace(input.Kind); kind != "" {
		metadata["kind"] = kind
	}
	if key := strings.TrimSpace(input.CacheKey); key != "" {
		metadata["cache_key"] = key
	}
	return Event{
		Verb:       verb,
		ObjectType: ObjectTypeDataset,
		ObjectID:   strings.TrimSpace(input.Dataset),
		Flag:       strings.TrimSpace(input.Flag),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}
