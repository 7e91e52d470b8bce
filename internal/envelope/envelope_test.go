package envelope_test

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/imagehub/storage-pipeline/internal/domain"
	"github.com/imagehub/storage-pipeline/internal/envelope"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// storageJSON builds the innermost storage notification for a single object.
func storageJSON(eventName, bucket, key string) string {
	return fmt.Sprintf(`{"Records":[{"eventName":%q,"s3":{"bucket":{"name":%q},"object":{"key":%q}}}]}`,
		eventName, bucket, key)
}

// wrapBus re-encodes a document as a bus envelope {"Message": "<json>"}.
func wrapBus(t *testing.T, inner string) string {
	t.Helper()
	quoted, err := json.Marshal(inner)
	if err != nil {
		t.Fatal(err)
	}
	return fmt.Sprintf(`{"Message":%s}`, quoted)
}

func TestDecodeTransport(t *testing.T) {
	t.Run("batch with two records", func(t *testing.T) {
		env, err := envelope.DecodeTransport([]byte(`{"Records":[{"a":1},{"b":2}]}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(env.Records) != 2 {
			t.Fatalf("expected 2 records, got %d", len(env.Records))
		}
	})

	t.Run("no Records array is a valid no-op", func(t *testing.T) {
		env, err := envelope.DecodeTransport([]byte(`{"something":"else"}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(env.Records) != 0 {
			t.Fatalf("expected empty batch, got %d records", len(env.Records))
		}
	})

	t.Run("invalid JSON is malformed", func(t *testing.T) {
		_, err := envelope.DecodeTransport([]byte(`{not json`))
		if !domain.IsMalformed(err) {
			t.Fatalf("expected MalformedEventError, got %v", err)
		}
	})
}

func TestNormalize_SingleWrap(t *testing.T) {
	raw := json.RawMessage(wrapBus(t, storageJSON("ObjectCreated:Put", "imgs", "cat.png")))

	events, errs := envelope.Normalize(raw, now)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	ev := events[0]
	if ev.Kind != domain.KindCreated {
		t.Fatalf("expected kind=created, got %s", ev.Kind)
	}
	if ev.ResourceKey != "cat.png" {
		t.Fatalf("expected key=cat.png, got %q", ev.ResourceKey)
	}
	if ev.SourceContainer != "imgs" {
		t.Fatalf("expected container=imgs, got %q", ev.SourceContainer)
	}
	if !ev.ReceivedAt.Equal(now) {
		t.Fatalf("expected receivedAt=%v, got %v", now, ev.ReceivedAt)
	}
}

// TestNormalize_DoubleWrap covers the transport-wrapping-bus-wrapping-storage
// case: the record body is a JSON string holding a bus envelope whose Message
// holds the storage notification.
func TestNormalize_DoubleWrap(t *testing.T) {
	busLayer := wrapBus(t, storageJSON("ObjectRemoved:Delete", "imgs", "old.jpeg"))
	outer, err := json.Marshal(busLayer) // record body delivered as a string
	if err != nil {
		t.Fatal(err)
	}

	events, errs := envelope.Normalize(outer, now)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(events) != 1 || events[0].Kind != domain.KindRemoved {
		t.Fatalf("expected one removed event, got %+v", events)
	}
}

func TestNormalize_PercentEncodedKey(t *testing.T) {
	raw := json.RawMessage(wrapBus(t, storageJSON("ObjectCreated:Put", "imgs", "cat%2Bhat.png")))

	events, errs := envelope.Normalize(raw, now)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	// %2B decodes to '+', which the storage service uses for a space.
	if events[0].ResourceKey != "cat hat.png" {
		t.Fatalf("expected key=%q, got %q", "cat hat.png", events[0].ResourceKey)
	}
}

func TestNormalize_PlusDecodesToSpace(t *testing.T) {
	raw := json.RawMessage(wrapBus(t, storageJSON("ObjectCreated:Put", "imgs", "summer+trip.jpeg")))

	events, _ := envelope.Normalize(raw, now)
	if len(events) != 1 || events[0].ResourceKey != "summer trip.jpeg" {
		t.Fatalf("expected key=%q, got %+v", "summer trip.jpeg", events)
	}
}

func TestNormalize_NoInnerRecords(t *testing.T) {
	raw := json.RawMessage(wrapBus(t, `{"Event":"TestEvent"}`))

	events, errs := envelope.Normalize(raw, now)
	if len(events) != 0 || len(errs) != 0 {
		t.Fatalf("expected no-op, got events=%v errs=%v", events, errs)
	}
}

// TestNormalize_MalformedRecordDoesNotAbortSiblings verifies the per-record
// failure scope: one record without a key must not drop the rest of the batch.
func TestNormalize_MalformedRecordDoesNotAbortSiblings(t *testing.T) {
	inner := `{"Records":[
		{"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"imgs"},"object":{}}},
		{"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"imgs"},"object":{"key":"ok.png"}}}
	]}`
	raw := json.RawMessage(wrapBus(t, inner))

	events, errs := envelope.Normalize(raw, now)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	if !domain.IsMalformed(errs[0]) {
		t.Fatalf("expected MalformedEventError, got %v", errs[0])
	}
	if len(events) != 1 || events[0].ResourceKey != "ok.png" {
		t.Fatalf("sibling record was lost: %+v", events)
	}
}

func TestNormalize_MissingBucket(t *testing.T) {
	inner := `{"Records":[{"eventName":"ObjectCreated:Put","s3":{"object":{"key":"cat.png"}}}]}`
	raw := json.RawMessage(wrapBus(t, inner))

	events, errs := envelope.Normalize(raw, now)
	if len(events) != 0 || len(errs) != 1 || !domain.IsMalformed(errs[0]) {
		t.Fatalf("expected a single malformed error, got events=%v errs=%v", events, errs)
	}
}

func TestNormalize_MetadataLandsInRawAttributes(t *testing.T) {
	inner := `{"Records":[{"eventName":"ObjectCaption:Set","s3":{"bucket":{"name":"imgs"},"object":{"key":"cat.png","metadata":{"description":"a cat"}}}}]}`
	raw := json.RawMessage(wrapBus(t, inner))

	events, errs := envelope.Normalize(raw, now)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	ev := events[0]
	if ev.Kind != domain.KindUpdated {
		t.Fatalf("expected kind=updated, got %s", ev.Kind)
	}
	if ev.Attribute("description") != "a cat" {
		t.Fatalf("expected description attribute, got %+v", ev.RawAttributes)
	}
}
