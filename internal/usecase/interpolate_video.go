package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fiapx/fiapx-interpolation-service/internal/domain/entity"
	"github.com/fiapx/fiapx-interpolation-service/internal/domain/port"
	"github.com/fiapx/fiapx-interpolation-service/internal/infra/metrics"
	"github.com/fiapx/fiapx-interpolation-service/internal/interpolation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

type InterpolateVideoUseCase struct {
	repo       port.JobRepository
	storage    port.VideoStorage
	decoder    port.FrameDecoder
	assembler  port.SequenceAssembler
	strategies interpolation.Strategies
	publisher  port.StatusPublisher
	dlq        port.DLQPublisher
	notifier   port.FailureNotifier
	logger     *zap.Logger
	cfg        InterpolateVideoConfig
}

type InterpolateVideoConfig struct {
	TempDir         string
	MaxRetries      int
	DefaultPasses   int
	MaxPasses       int
	DefaultStrategy entity.StrategyKind
	AllowFallback   bool
	AudioPolicy     entity.AudioPolicy
	PairWorkers     int
}

func NewInterpolateVideoUseCase(
	repo port.JobRepository,
	storage port.VideoStorage,
	decoder port.FrameDecoder,
	assembler port.SequenceAssembler,
	strategies interpolation.Strategies,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg InterpolateVideoConfig,
) *InterpolateVideoUseCase {
	if cfg.DefaultPasses < 1 {
		cfg.DefaultPasses = 1
	}
	if cfg.DefaultStrategy == "" {
		cfg.DefaultStrategy = entity.StrategyNaive
	}
	if cfg.AudioPolicy == "" {
		cfg.AudioPolicy = entity.AudioKeep
	}
	return &InterpolateVideoUseCase{
		repo:       repo,
		storage:    storage,
		decoder:    decoder,
		assembler:  assembler,
		strategies: strategies,
		publisher:  publisher,
		dlq:        dlq,
		notifier:   notifier,
		logger:     logger,
		cfg:        cfg,
	}
}

// jobRequest is an inbound message with worker defaults applied.
type jobRequest struct {
	msg      entity.InterpolationMessage
	raw      []byte
	passes   int
	strategy entity.StrategyKind
	audio    entity.AudioPolicy
}

func (uc *InterpolateVideoUseCase) resolve(msg entity.InterpolationMessage, raw []byte) (jobRequest, error) {
	req := jobRequest{msg: msg, raw: raw, passes: msg.Passes, strategy: uc.cfg.DefaultStrategy, audio: uc.cfg.AudioPolicy}
	if req.passes == 0 {
		req.passes = uc.cfg.DefaultPasses
	}

	var errs []error
	if msg.Strategy != "" {
		kind, err := entity.ParseStrategyKind(msg.Strategy)
		if err != nil {
			errs = append(errs, err)
		} else {
			req.strategy = kind
		}
	}
	if msg.AudioPolicy != "" {
		policy, err := entity.ParseAudioPolicy(msg.AudioPolicy)
		if err != nil {
			errs = append(errs, err)
		} else {
			req.audio = policy
		}
	}
	if req.passes < 0 || (uc.cfg.MaxPasses > 0 && req.passes > uc.cfg.MaxPasses) {
		errs = append(errs, fmt.Errorf("%w: %d (limit %d)", interpolation.ErrInvalidPasses, req.passes, uc.cfg.MaxPasses))
	}
	return req, errors.Join(errs...)
}

// Execute handles one delivery. A nil return acks it: that covers success and
// permanent failures, which are routed to the DLQ here. A non-nil return asks
// the consumer to requeue.
func (uc *InterpolateVideoUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "InterpolateVideoUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.InterpolationMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()
		return nil
	}

	req, reqErr := uc.resolve(msg, rawMsg)

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.video_key", msg.VideoKey),
		attribute.Int("job.passes", req.passes),
		attribute.String("job.strategy", string(req.strategy)),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("video_key", msg.VideoKey))

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err != nil {
		job = entity.NewJob(msg.UserID, msg.VideoKey, msg.FileSize, req.strategy, req.passes, uc.cfg.MaxRetries)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	}

	if reqErr != nil {
		log.Warn("rejecting invalid interpolation request", zap.Error(reqErr))
		return uc.handlePermanentFailure(ctx, job, req, "invalid_request: "+reqErr.Error(), 0, log)
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		return uc.handlePermanentFailure(ctx, job, req, "max retries exceeded", job.FailedPass, log)
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	completed, err := uc.pipeline(ctx, job, req, log)
	if err != nil || !completed {
		return err
	}

	metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.StageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())
	return nil
}

// pipeline reports completed=false with a nil error when the job failed
// permanently and was already routed to the DLQ.
func (uc *InterpolateVideoUseCase) pipeline(ctx context.Context, job *entity.Job, req jobRequest, log *zap.Logger) (bool, error) {
	workDir := filepath.Join(uc.cfg.TempDir, job.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return false, fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	videoPath := filepath.Join(workDir, "input"+sourceExt(req.msg.VideoKey))
	err := uc.stage(ctx, "download", func(ctx context.Context) error {
		return uc.storage.DownloadVideo(ctx, req.msg.VideoKey, videoPath)
	})
	if err != nil {
		log.Error("failed to download video", zap.Error(err))
		return false, uc.handleRetryableFailure(ctx, job, req, "download_video: "+err.Error(), log)
	}

	var decoded *port.DecodedVideo
	err = uc.stage(ctx, "decode", func(ctx context.Context) error {
		var err error
		decoded, err = uc.decoder.Decode(ctx, videoPath)
		return err
	})
	if err != nil {
		log.Error("frame decoding failed", zap.Error(err))
		if isPermanent(err) {
			return false, uc.handlePermanentFailure(ctx, job, req, "decode_video: "+err.Error(), 0, log)
		}
		return false, uc.handleRetryableFailure(ctx, job, req, "decode_video: "+err.Error(), log)
	}

	sel, err := interpolation.SelectStrategy(req.strategy, uc.strategies, uc.cfg.AllowFallback)
	if err != nil {
		log.Error("no usable interpolation strategy", zap.Error(err))
		return false, uc.handlePermanentFailure(ctx, job, req, "select_strategy: "+err.Error(), 0, log)
	}
	if sel.Fallback {
		metrics.StrategyFallbackTotal.Inc()
		log.Warn("requested strategy unavailable, falling back",
			zap.String("requested", string(req.strategy)),
			zap.String("using", string(sel.Strategy.Kind())),
			zap.Error(sel.Cause),
		)
	}

	var result *interpolation.Result
	err = uc.stage(ctx, "interpolate", func(ctx context.Context) error {
		in := interpolation.NewInterpolator(sel.Strategy, interpolation.Config{
			Workers:   uc.cfg.PairWorkers,
			MaxPasses: uc.cfg.MaxPasses,
		})
		var err error
		result, err = in.Run(ctx, decoded.Sequence, decoded.Probe.FPS, req.passes)
		return err
	})
	if err != nil {
		log.Error("interpolation failed", zap.Error(err), zap.Int("failed_pass", interpolation.FailedPass(err)))
		if ctx.Err() != nil {
			return false, uc.handleRetryableFailure(ctx, job, req, "interpolate: "+err.Error(), log)
		}
		return false, uc.handlePermanentFailure(ctx, job, req, "interpolate: "+err.Error(), interpolation.FailedPass(err), log)
	}
	if result.Skipped != nil {
		log.Info("input too short to interpolate, passing frames through", zap.Int("frames", decoded.Sequence.Len()))
	}
	metrics.FramesSynthesizedTotal.WithLabelValues(string(sel.Strategy.Kind())).Add(float64(result.Synthesized))

	outputPath := filepath.Join(workDir, "output.mp4")
	err = uc.stage(ctx, "assemble", func(ctx context.Context) error {
		areq := port.AssembleRequest{
			Sequence:   result.Sequence,
			FPS:        result.OutputFPS,
			Policy:     req.audio,
			OutputPath: outputPath,
		}
		if decoded.Probe.HasAudio {
			areq.Audio = &port.AudioTrack{SourcePath: videoPath, Duration: decoded.Probe.AudioDuration}
		}
		return uc.assembler.Assemble(ctx, areq)
	})
	if err != nil {
		log.Error("video assembly failed", zap.Error(err))
		return false, uc.handleRetryableFailure(ctx, job, req, "assemble_video: "+err.Error(), log)
	}

	outputKey := fmt.Sprintf("%s/interpolated_%s.mp4", req.msg.UserID, job.ID.String())
	err = uc.stage(ctx, "upload", func(ctx context.Context) error {
		f, err := os.Open(outputPath)
		if err != nil {
			return err
		}
		defer f.Close()
		stat, err := f.Stat()
		if err != nil {
			return err
		}
		return uc.storage.UploadVideo(ctx, outputKey, f, stat.Size())
	})
	if err != nil {
		log.Error("video upload failed", zap.Error(err))
		return false, uc.handleRetryableFailure(ctx, job, req, "upload_video: "+err.Error(), log)
	}

	job.MarkCompleted(outputKey, entity.InterpolationSummary{
		Strategy:     sel.Strategy.Kind(),
		SourceFPS:    result.SourceFPS,
		OutputFPS:    result.OutputFPS,
		SourceFrames: decoded.Sequence.Len(),
		OutputFrames: result.Sequence.Len(),
	})
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return false, fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)

	log.Info("job completed successfully",
		zap.String("strategy", string(job.Strategy)),
		zap.Int("passes", result.PassesApplied),
		zap.Float64("source_fps", result.SourceFPS),
		zap.Float64("output_fps", result.OutputFPS),
		zap.Int("output_frames", job.OutputFrames),
		zap.String("output_key", outputKey),
	)
	return true, nil
}

// stage runs fn inside its own span and records its duration.
func (uc *InterpolateVideoUseCase) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, span := otel.Tracer("usecase").Start(ctx, name)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return err
}

func (uc *InterpolateVideoUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.Job,
	req jobRequest,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg, 0)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, req, errMsg, 0, log)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *InterpolateVideoUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.Job,
	req jobRequest,
	errMsg string,
	failedPass int,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg, failedPass)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, req.raw, errMsg)

	uc.publishStatus(ctx, job, log)

	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()

	if req.msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, req.msg.UserEmail, job.ID.String(), req.msg.VideoKey, failedPass, errMsg)
	}

	return nil
}

func (uc *InterpolateVideoUseCase) publishStatus(ctx context.Context, job *entity.Job, log *zap.Logger) {
	statusMsg := entity.InterpolationStatusMessage{
		JobID:        job.ID,
		UserID:       job.UserID,
		Status:       job.Status,
		VideoKey:     job.VideoKey,
		OutputKey:    job.OutputKey,
		Strategy:     job.Strategy,
		Passes:       job.Passes,
		SourceFPS:    job.SourceFPS,
		OutputFPS:    job.OutputFPS,
		OutputFrames: job.OutputFrames,
		FailedPass:   job.FailedPass,
		ErrorMessage: job.ErrorMessage,
		Attempt:      job.Attempt,
		MaxAttempts:  job.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}

// isPermanent reports failures that retrying the same input cannot fix.
func isPermanent(err error) bool {
	return errors.Is(err, port.ErrUnprocessableVideo)
}

func sourceExt(videoKey string) string {
	if ext := filepath.Ext(videoKey); ext != "" {
		return ext
	}
	return ".mp4"
}
