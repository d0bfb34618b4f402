package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/fiapx/fiapx-interpolation-service/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrJobNotFound = errors.New("job not found")

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

const jobColumns = `id, user_id, video_key, output_key, status, strategy, passes,
	source_fps, output_fps, source_frames, output_frames, file_size,
	attempt, max_attempts, failed_pass, error_message,
	created_at, updated_at, completed_at`

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	query := `INSERT INTO interpolation_jobs (` + jobColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`

	_, err := r.pool.Exec(ctx, query,
		job.ID, job.UserID, job.VideoKey, job.OutputKey, string(job.Status),
		string(job.Strategy), job.Passes,
		job.SourceFPS, job.OutputFPS, job.SourceFrames, job.OutputFrames, job.FileSize,
		job.Attempt, job.MaxAttempts, job.FailedPass, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) Update(ctx context.Context, job *entity.Job) error {
	query := `
		UPDATE interpolation_jobs SET
			status=$2, output_key=$3, strategy=$4, passes=$5,
			source_fps=$6, output_fps=$7, source_frames=$8, output_frames=$9,
			attempt=$10, failed_pass=$11, error_message=$12,
			updated_at=$13, completed_at=$14
		WHERE id=$1`

	tag, err := r.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.OutputKey, string(job.Strategy), job.Passes,
		job.SourceFPS, job.OutputFPS, job.SourceFrames, job.OutputFrames,
		job.Attempt, job.FailedPass, job.ErrorMessage,
		job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update job %s: %w", job.ID, ErrJobNotFound)
	}
	return nil
}

func (r *JobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM interpolation_jobs WHERE id=$1`

	job := &entity.Job{}
	var status, strategy string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.UserID, &job.VideoKey, &job.OutputKey, &status, &strategy, &job.Passes,
		&job.SourceFPS, &job.OutputFPS, &job.SourceFrames, &job.OutputFrames, &job.FileSize,
		&job.Attempt, &job.MaxAttempts, &job.FailedPass, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("find job %s: %w", id, ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find job by id: %w", err)
	}
	job.Status = entity.JobStatus(status)
	job.Strategy = entity.StrategyKind(strategy)
	return job, nil
}
