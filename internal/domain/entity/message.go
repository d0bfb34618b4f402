package entity

import "github.com/google/uuid"

// InterpolationMessage is the inbound message from the video.interpolation queue.
// Zero Passes, empty Strategy and empty AudioPolicy fall back to worker defaults.
type InterpolationMessage struct {
	JobID       uuid.UUID `json:"job_id"`
	UserID      string    `json:"user_id"`
	VideoKey    string    `json:"video_key"`
	FileSize    int64     `json:"file_size"`
	UserEmail   string    `json:"user_email"`
	Passes      int       `json:"passes,omitempty"`
	Strategy    string    `json:"strategy,omitempty"`
	AudioPolicy string    `json:"audio_policy,omitempty"`
}

// InterpolationStatusMessage is the outbound message published to the status queue.
type InterpolationStatusMessage struct {
	JobID        uuid.UUID    `json:"job_id"`
	UserID       string       `json:"user_id"`
	Status       JobStatus    `json:"status"`
	VideoKey     string       `json:"video_key"`
	OutputKey    string       `json:"output_key,omitempty"`
	Strategy     StrategyKind `json:"strategy,omitempty"`
	Passes       int          `json:"passes"`
	SourceFPS    float64      `json:"source_fps,omitempty"`
	OutputFPS    float64      `json:"output_fps,omitempty"`
	OutputFrames int          `json:"output_frames,omitempty"`
	FailedPass   int          `json:"failed_pass,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Attempt      int          `json:"attempt"`
	MaxAttempts  int          `json:"max_attempts"`
}
