package services

import (
	"context"
	"errors"
	"time"

	"financeiro/internal/core"
)

type (
	ChangeKind string
	ChangeOp   string
)

const (
	KindPayable ChangeKind = "payable"
	KindInflow  ChangeKind = "inflow"
	KindAll     ChangeKind = "all"
)

const (
	OpCreate ChangeOp = "create"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
	OpImport ChangeOp = "import"
	OpClear  ChangeOp = "clear"
)

// Change describes a persisted mutation. ID is empty for bulk operations.
type Change struct {
	Kind ChangeKind
	Op   ChangeOp
	ID   string
	At   time.Time
}

type (
	ChangePublisher interface {
		PublishChange(ctx context.Context, c Change) error
	}

	// Observer receives mutation outcomes, typically for metrics.
	Observer interface {
		ObserveMutation(kind, op, outcome string)
		ObserveStorageError(op string)
	}
)

// Outcome labels the result of an operation.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrValidation):
		return "invalid"
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	case errors.Is(err, core.ErrStorageWrite), errors.Is(err, core.ErrStorageRead):
		return "storage_error"
	default:
		return "error"
	}
}
