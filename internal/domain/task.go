package domain

import "errors"

type TaskStatus string

const (
	TaskPending  TaskStatus = "pending"
	TaskInFlight TaskStatus = "in-flight"
	TaskRetrying TaskStatus = "retrying"
	TaskDone     TaskStatus = "done"
	TaskFailed   TaskStatus = "failed"
)

func (s TaskStatus) IsTerminal() bool {
	return s == TaskDone || s == TaskFailed
}

var ErrInvalidTaskTransition = errors.New("invalid task status transition")

func CanTaskTransition(from, to TaskStatus) bool {
	switch from {
	case TaskPending:
		return to == TaskInFlight
	case TaskInFlight:
		return to == TaskDone || to == TaskRetrying || to == TaskFailed
	case TaskRetrying:
		return to == TaskInFlight || to == TaskFailed
	default:
		return false
	}
}

// DownloadTask wraps one SegmentDescriptor with mutable scheduling state.
// Owned exclusively by the scheduler; never shared outside it.
type DownloadTask struct {
	Segment  SegmentDescriptor
	Status   TaskStatus
	Attempts int
	LastErr  error
}

func (t *DownloadTask) Transition(to TaskStatus) error {
	if !CanTaskTransition(t.Status, to) {
		return ErrInvalidTaskTransition
	}
	t.Status = to
	return nil
}

// AssembledSegment is decrypted media for one segment, tagged with its final
// position. Ownership passes to the assembler on completion.
type AssembledSegment struct {
	Index int
	Data  []byte
}
