package domain

import "time"

// AllowedExtensions is the set of media types the pipeline accepts.
// Anything else is rejected with an UnsupportedMediaError.
var AllowedExtensions = map[string]bool{
	"jpeg": true,
	"png":  true,
}

// Record is a row in the system of record, keyed by the normalized resource
// key. Its existence is the durable witness that the object was successfully
// processed; at most one live Record exists per key.
type Record struct {
	ResourceKey string    `json:"resource_key"`
	Extension   string    `json:"extension"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ChangeOp is the operation observed on the records change feed.
type ChangeOp string

const (
	ChangeInsert ChangeOp = "INSERT"
	ChangeModify ChangeOp = "MODIFY"
	ChangeRemove ChangeOp = "REMOVE"
)

// RecordChange is one entry on the change feed: a committed row-level
// mutation with the images surrounding it. OldImage is set for MODIFY and
// REMOVE, NewImage for INSERT and MODIFY. Delivery is at-least-once and
// ordered only per key.
type RecordChange struct {
	Op       ChangeOp
	Key      string
	OldImage *Record
	NewImage *Record
	At       time.Time
}

// ListFilter holds query parameters for paginated record listing.
type ListFilter struct {
	Extension *string
	From      *time.Time
	To        *time.Time
	Page      int
	Limit     int
}
