package port

import (
	"context"

	"github.com/fiapx/fiapx-interpolation-service/internal/domain/entity"
	"github.com/google/uuid"
)

// JobRepository persists interpolation jobs across delivery attempts.
// FindByID fails for unknown ids; callers treat that as a first attempt.
type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	Update(ctx context.Context, job *entity.Job) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
}
