package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

type Job struct {
	ID           uuid.UUID
	UserID       string
	VideoKey     string
	OutputKey    string
	Status       JobStatus
	Strategy     StrategyKind
	Passes       int
	SourceFPS    float64
	OutputFPS    float64
	SourceFrames int
	OutputFrames int
	FileSize     int64
	Attempt      int
	MaxAttempts  int
	FailedPass   int
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

func NewJob(userID, videoKey string, fileSize int64, strategy StrategyKind, passes, maxAttempts int) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:          uuid.New(),
		UserID:      userID,
		VideoKey:    videoKey,
		FileSize:    fileSize,
		Status:      JobStatusPending,
		Strategy:    strategy,
		Passes:      passes,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (j *Job) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Attempt++
	j.FailedPass = 0
	j.ErrorMessage = ""
	j.UpdatedAt = time.Now().UTC()
}

// InterpolationSummary is what a finished run reports back onto the job.
type InterpolationSummary struct {
	Strategy     StrategyKind
	SourceFPS    float64
	OutputFPS    float64
	SourceFrames int
	OutputFrames int
}

func (j *Job) MarkCompleted(outputKey string, s InterpolationSummary) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.OutputKey = outputKey
	j.Strategy = s.Strategy
	j.SourceFPS = s.SourceFPS
	j.OutputFPS = s.OutputFPS
	j.SourceFrames = s.SourceFrames
	j.OutputFrames = s.OutputFrames
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *Job) MarkFailed(errMsg string, failedPass int) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.FailedPass = failedPass
	j.UpdatedAt = time.Now().UTC()
}

func (j *Job) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}
