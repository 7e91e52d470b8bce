package domain

import (
	"strings"
	"time"
)

// EventKind classifies a storage mutation independently of the provider's
// event-name strings.
type EventKind string

const (
	KindCreated EventKind = "created"
	KindRemoved EventKind = "removed"
	KindUpdated EventKind = "updated"
)

// KindFromEventName maps a provider event name to an EventKind.
// Names beginning "ObjectCreated" are creations, "ObjectRemoved:Delete" is a
// removal, and everything else falls through to Updated, the catch-all for
// metadata-change style events such as caption updates.
func KindFromEventName(name string) EventKind {
	switch {
	case strings.HasPrefix(name, "ObjectCreated"):
		return KindCreated
	case name == "ObjectRemoved:Delete":
		return KindRemoved
	default:
		return KindUpdated
	}
}

// Event is the normalized, provider-independent representation of a storage
// mutation. It is immutable once constructed: every subscription receives
// the same value and none may modify it. Events are never persisted.
type Event struct {
	Kind            EventKind         `json:"kind"`
	ResourceKey     string            `json:"resource_key"`
	SourceContainer string            `json:"source_container"`
	EventName       string            `json:"event_name"`
	ReceivedAt      time.Time         `json:"received_at"`
	RawAttributes   map[string]string `json:"raw_attributes,omitempty"`
}

// Attribute returns the named raw attribute, or "" when absent.
func (e Event) Attribute(name string) string {
	return e.RawAttributes[name]
}

// Extension returns the lower-cased file extension of the resource key
// (the substring after the final dot), or "" when the key has none.
func (e Event) Extension() string {
	return ExtensionOf(e.ResourceKey)
}

// ExtensionOf extracts the lower-cased extension from a resource key.
func ExtensionOf(key string) string {
	idx := strings.LastIndex(key, ".")
	if idx < 0 || idx == len(key)-1 {
		return ""
	}
	return strings.ToLower(key[idx+1:])
}
