package domain

// TaskKind identifies the outcome a notification reports.
type TaskKind string

const (
	TaskConfirmation TaskKind = "confirmation"
	TaskRejection    TaskKind = "rejection"
	TaskDeletion     TaskKind = "deletion"
)

func (k TaskKind) IsValid() bool {
	switch k {
	case TaskConfirmation, TaskRejection, TaskDeletion:
		return true
	}
	return false
}

// NotificationTask is a single, consume-once mail request. Rendering is pure
// and nothing about the task is persisted: delivery is best-effort and a
// failed send is dropped, never retried through the event pipeline.
type NotificationTask struct {
	Kind      TaskKind
	Recipient string
	Context   map[string]string
}
