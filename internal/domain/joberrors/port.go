package joberrors

import "context"

// Repository port for call-failure audit rows
type Repository interface {
	Record(ctx context.Context, f *CallFailure) error
	ByJob(ctx context.Context, jobID string) ([]*CallFailure, error)
}
