// Package envelope decodes the raw, possibly multiply-wrapped notification
// envelopes the object store emits: a transport batch wrapping bus envelopes
// wrapping the actual storage notification. Each layer is a small typed
// decode step that either yields a typed result or a MalformedEventError,
// so the chain replaces deep conditional nesting with composition.
package envelope

import (
	"encoding/json"
	"net/url"
	"time"

	"github.com/imagehub/storage-pipeline/internal/domain"
)

// TransportEnvelope is the outermost batch: one entry per delivered record.
// Bodies arrive either as JSON strings (re-encoded inner documents) or as
// inline objects; json.RawMessage defers that decision to UnwrapBus.
type TransportEnvelope struct {
	Records []json.RawMessage `json:"Records"`
}

// busEnvelope is one bus wrapping layer: the inner document is re-encoded
// as a JSON string under "Message". Some transports nest it one level
// deeper under "Sns".
type busEnvelope struct {
	Message string `json:"Message"`
	Sns     *struct {
		Message string `json:"Message"`
	} `json:"Sns"`
}

// StorageNotification is the innermost document: the storage service's own
// record batch describing affected objects.
type StorageNotification struct {
	Records []StorageRecord `json:"Records"`
}

// StorageRecord is one affected object within a storage notification.
type StorageRecord struct {
	EventName string `json:"eventName"`
	EventTime string `json:"eventTime"`
	S3        struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key      string            `json:"key"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"s3"`
}

// DecodeTransport parses the outermost envelope. A body that is valid JSON
// but carries no Records array decodes to an empty batch: a valid no-op
// notification, not an error.
func DecodeTransport(body []byte) (*TransportEnvelope, error) {
	var env TransportEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, domain.Malformed("transport envelope is not valid JSON: %v", err)
	}
	return &env, nil
}

// UnwrapBus strips any number of bus wrapping layers from a raw record,
// returning the innermost document. A record that is itself a JSON string
// is unquoted first (transports deliver bodies as re-encoded strings).
// A layer that does not look like a bus envelope terminates the chain and
// is returned as-is.
func UnwrapBus(raw json.RawMessage) json.RawMessage {
	for {
		// A JSON string at this level is a re-encoded inner document.
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			raw = json.RawMessage(s)
			continue
		}

		var env busEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return raw
		}
		switch {
		case env.Message != "":
			raw = json.RawMessage(env.Message)
		case env.Sns != nil && env.Sns.Message != "":
			raw = json.RawMessage(env.Sns.Message)
		default:
			return raw
		}
	}
}

// Normalize unwraps one raw record down to its storage notification and
// converts every inner record into a domain.Event. A document without an
// inner Records array yields zero events. A record missing its bucket or
// key fails with a MalformedEventError scoped to that record; siblings in
// the same notification are still returned alongside the error slice.
func Normalize(raw json.RawMessage, receivedAt time.Time) ([]domain.Event, []error) {
	inner := UnwrapBus(raw)

	var notification StorageNotification
	if err := json.Unmarshal(inner, &notification); err != nil {
		return nil, []error{domain.Malformed("storage notification is not valid JSON: %v", err)}
	}
	if len(notification.Records) == 0 {
		return nil, nil // no-op notification
	}

	var (
		events []domain.Event
		errs   []error
	)
	for _, rec := range notification.Records {
		ev, err := normalizeRecord(rec, receivedAt)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		events = append(events, ev)
	}
	return events, errs
}

func normalizeRecord(rec StorageRecord, receivedAt time.Time) (domain.Event, error) {
	if rec.S3.Bucket.Name == "" {
		return domain.Event{}, domain.Malformed("record has no bucket name")
	}
	if rec.S3.Object.Key == "" {
		return domain.Event{}, domain.Malformed("record has no object key")
	}

	key, err := decodeKey(rec.S3.Object.Key)
	if err != nil {
		return domain.Event{}, err
	}

	attrs := map[string]string{}
	for k, v := range rec.S3.Object.Metadata {
		attrs[k] = v
	}
	if rec.EventTime != "" {
		attrs["event_time"] = rec.EventTime
	}

	return domain.Event{
		Kind:            domain.KindFromEventName(rec.EventName),
		ResourceKey:     key,
		SourceContainer: rec.S3.Bucket.Name,
		EventName:       rec.EventName,
		ReceivedAt:      receivedAt,
		RawAttributes:   attrs,
	}, nil
}

// decodeKey percent-decodes the object key, with literal '+' decoding to a
// space as the storage service encodes it.
func decodeKey(encoded string) (string, error) {
	key, err := url.QueryUnescape(encoded)
	if err != nil {
		return "", domain.Malformed("object key %q is not percent-decodable: %v", encoded, err)
	}
	return key, nil
}
