package jobs

import "context"

// Repository port (durable persistence for job records)
type Repository interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context, id JobID) (*Job, error)
	Save(ctx context.Context, j *Job) error
	Latest(ctx context.Context, owner string, limit int) ([]*Job, error)
}

// Cache port (fast read path in front of the repository)
type Cache interface {
	Get(ctx context.Context, id JobID) (*Job, error)
	Set(ctx context.Context, j *Job) error
	Delete(ctx context.Context, id JobID) error
}
