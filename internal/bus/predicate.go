package bus

import (
	"strings"

	"github.com/imagehub/storage-pipeline/internal/domain"
)

// Predicate decides whether a subscription receives an event. Predicates are
// pure functions over the event's kind and raw event name: no side effects,
// no ordering dependency between subscriptions.
type Predicate func(domain.Event) bool

// KindIs matches events whose kind is any of the given kinds.
func KindIs(kinds ...domain.EventKind) Predicate {
	return func(ev domain.Event) bool {
		for _, k := range kinds {
			if ev.Kind == k {
				return true
			}
		}
		return false
	}
}

// NamePrefix matches events whose raw event name starts with prefix.
func NamePrefix(prefix string) Predicate {
	return func(ev domain.Event) bool {
		return strings.HasPrefix(ev.EventName, prefix)
	}
}

// NameIn matches events whose raw event name is in the allow-list.
func NameIn(names ...string) Predicate {
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}
	return func(ev domain.Event) bool {
		return allowed[ev.EventName]
	}
}

// And matches when every given predicate matches.
func And(ps ...Predicate) Predicate {
	return func(ev domain.Event) bool {
		for _, p := range ps {
			if !p(ev) {
				return false
			}
		}
		return true
	}
}

// Or matches when any given predicate matches.
func Or(ps ...Predicate) Predicate {
	return func(ev domain.Event) bool {
		for _, p := range ps {
			if p(ev) {
				return true
			}
		}
		return false
	}
}
