package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/fiapx/fiapx-interpolation-service/internal/domain/entity"
	"github.com/fiapx/fiapx-interpolation-service/internal/domain/port"
	"github.com/fiapx/fiapx-interpolation-service/internal/interpolation"
	"github.com/fiapx/fiapx-interpolation-service/internal/strategy/average"
	"github.com/fiapx/fiapx-interpolation-service/internal/strategy/convnet"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]entity.Job
}

func (r *fakeRepo) Create(_ context.Context, job *entity.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *fakeRepo) Update(_ context.Context, job *entity.Job) error {
	return r.Create(context.Background(), job)
}

func (r *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &job, nil
}

type fakeStorage struct {
	downloadErr error
	uploadedKey string
	uploaded    []byte
}

func (s *fakeStorage) DownloadVideo(_ context.Context, _ string, destPath string) error {
	if s.downloadErr != nil {
		return s.downloadErr
	}
	return os.WriteFile(destPath, []byte("source"), 0o644)
}

func (s *fakeStorage) UploadVideo(_ context.Context, key string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: %d != %d", len(data), size)
	}
	s.uploadedKey, s.uploaded = key, data
	return nil
}

type fakeDecoder struct {
	video *port.DecodedVideo
	err   error
}

func (d *fakeDecoder) Decode(context.Context, string) (*port.DecodedVideo, error) {
	return d.video, d.err
}

type fakeAssembler struct {
	req *port.AssembleRequest
}

func (a *fakeAssembler) Assemble(_ context.Context, req port.AssembleRequest) error {
	a.req = &req
	return os.WriteFile(req.OutputPath, []byte("video"), 0o644)
}

type fakeStatus struct {
	msgs []entity.InterpolationStatusMessage
}

func (p *fakeStatus) PublishStatus(_ context.Context, msg []byte) error {
	var m entity.InterpolationStatusMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return err
	}
	p.msgs = append(p.msgs, m)
	return nil
}

func (p *fakeStatus) last() entity.InterpolationStatusMessage {
	return p.msgs[len(p.msgs)-1]
}

type fakeDLQ struct {
	reasons []string
}

func (d *fakeDLQ) PublishToDLQ(_ context.Context, _ []byte, reason string) error {
	d.reasons = append(d.reasons, reason)
	return nil
}

type notification struct {
	email      string
	failedPass int
	errMsg     string
}

type fakeNotifier struct {
	sent []notification
}

func (n *fakeNotifier) NotifyFailure(_ context.Context, userEmail, _, _ string, failedPass int, errorMsg string) error {
	n.sent = append(n.sent, notification{email: userEmail, failedPass: failedPass, errMsg: errorMsg})
	return nil
}

type brokenStrategy struct{}

func (brokenStrategy) Kind() entity.StrategyKind { return entity.StrategyDeep }
func (brokenStrategy) Ready() error              { return nil }
func (brokenStrategy) Interpolate(_, _ *entity.Frame) (*entity.Frame, error) {
	return nil, errors.New("inference failed")
}

type harness struct {
	uc        *InterpolateVideoUseCase
	repo      *fakeRepo
	storage   *fakeStorage
	decoder   *fakeDecoder
	assembler *fakeAssembler
	status    *fakeStatus
	dlq       *fakeDLQ
	notifier  *fakeNotifier
}

func newHarness(t *testing.T, strategies interpolation.Strategies, allowFallback bool) *harness {
	t.Helper()
	h := &harness{
		repo:      &fakeRepo{jobs: map[uuid.UUID]entity.Job{}},
		storage:   &fakeStorage{},
		decoder:   &fakeDecoder{video: decodedVideo(3, 10, true)},
		assembler: &fakeAssembler{},
		status:    &fakeStatus{},
		dlq:       &fakeDLQ{},
		notifier:  &fakeNotifier{},
	}
	if strategies == nil {
		strategies = interpolation.Strategies{
			entity.StrategyNaive: average.New(),
			entity.StrategyDeep:  convnet.New(convnet.Config{}),
		}
	}
	h.uc = NewInterpolateVideoUseCase(
		h.repo, h.storage, h.decoder, h.assembler, strategies,
		h.status, h.dlq, h.notifier,
		zap.NewNop(),
		InterpolateVideoConfig{
			TempDir:       t.TempDir(),
			MaxRetries:    3,
			DefaultPasses: 1,
			MaxPasses:     5,
			AllowFallback: allowFallback,
			PairWorkers:   2,
		},
	)
	return h
}

func decodedVideo(frames int, fps float64, audio bool) *port.DecodedVideo {
	seq := make([]*entity.Frame, frames)
	for i := range seq {
		v := uint8(i * 40)
		seq[i] = entity.SolidFrame(8, 6, v, v, v)
	}
	probe := port.VideoProbe{
		FPS:        fps,
		Duration:   float64(frames) / fps,
		FrameCount: frames,
		Resolution: entity.Resolution{Width: 8, Height: 6},
		HasAudio:   audio,
	}
	if audio {
		probe.AudioDuration = probe.Duration
	}
	return &port.DecodedVideo{Probe: probe, Sequence: entity.NewSequence(seq)}
}

func message(t *testing.T, msg entity.InterpolationMessage) []byte {
	t.Helper()
	if msg.JobID == uuid.Nil {
		msg.JobID = uuid.New()
	}
	if msg.UserID == "" {
		msg.UserID = "user-1"
	}
	if msg.VideoKey == "" {
		msg.VideoKey = "user-1/clip.mp4"
	}
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return data
}

func TestExecuteCompletesNaiveJob(t *testing.T) {
	h := newHarness(t, nil, true)
	jobID := uuid.New()

	err := h.uc.Execute(context.Background(), message(t, entity.InterpolationMessage{JobID: jobID, Passes: 2}))
	require.NoError(t, err)

	require.NotNil(t, h.assembler.req)
	assert.Equal(t, 9, h.assembler.req.Sequence.Len())
	assert.Equal(t, 40.0, h.assembler.req.FPS)
	assert.Equal(t, entity.AudioKeep, h.assembler.req.Policy)
	require.NotNil(t, h.assembler.req.Audio)
	assert.InDelta(t, 0.3, h.assembler.req.Audio.Duration, 1e-9)

	assert.Equal(t, fmt.Sprintf("user-1/interpolated_%s.mp4", jobID), h.storage.uploadedKey)
	assert.Equal(t, []byte("video"), h.storage.uploaded)

	job, err := h.repo.FindByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, entity.StrategyNaive, job.Strategy)
	assert.Equal(t, 3, job.SourceFrames)
	assert.Equal(t, 9, job.OutputFrames)
	assert.Equal(t, 10.0, job.SourceFPS)
	assert.Equal(t, 40.0, job.OutputFPS)
	assert.Equal(t, 1, job.Attempt)

	require.Len(t, h.status.msgs, 1)
	assert.Equal(t, entity.JobStatusCompleted, h.status.last().Status)
	assert.Equal(t, 2, h.status.last().Passes)
	assert.Empty(t, h.dlq.reasons)
}

func TestExecuteFallsBackToNaive(t *testing.T) {
	h := newHarness(t, nil, true)
	jobID := uuid.New()

	err := h.uc.Execute(context.Background(), message(t, entity.InterpolationMessage{JobID: jobID, Strategy: "deep"}))
	require.NoError(t, err)

	job, err := h.repo.FindByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, entity.StrategyNaive, job.Strategy)
}

func TestExecuteUnavailableStrategyWithoutFallbackIsPermanent(t *testing.T) {
	h := newHarness(t, nil, false)
	jobID := uuid.New()

	err := h.uc.Execute(context.Background(), message(t, entity.InterpolationMessage{
		JobID: jobID, Strategy: "deep", UserEmail: "user@example.com",
	}))
	require.NoError(t, err)

	assert.Nil(t, h.assembler.req)
	require.Len(t, h.dlq.reasons, 1)
	assert.Contains(t, h.dlq.reasons[0], "select_strategy")
	require.Len(t, h.notifier.sent, 1)
	assert.Equal(t, 0, h.notifier.sent[0].failedPass)
	assert.Equal(t, entity.JobStatusFailed, h.status.last().Status)
}

func TestExecutePairFailureReportsPass(t *testing.T) {
	h := newHarness(t, interpolation.Strategies{entity.StrategyDeep: brokenStrategy{}}, false)
	jobID := uuid.New()

	err := h.uc.Execute(context.Background(), message(t, entity.InterpolationMessage{
		JobID: jobID, Strategy: "deep", Passes: 3, UserEmail: "user@example.com",
	}))
	require.NoError(t, err)

	require.Len(t, h.notifier.sent, 1)
	assert.Equal(t, 1, h.notifier.sent[0].failedPass)
	assert.Contains(t, h.notifier.sent[0].errMsg, "pass 1 pair 0")

	job, err := h.repo.FindByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	assert.Equal(t, 1, job.FailedPass)
	assert.Equal(t, 1, h.status.last().FailedPass)
	assert.Nil(t, h.assembler.req)
}

func TestExecuteDownloadFailureIsRetried(t *testing.T) {
	h := newHarness(t, nil, true)
	h.storage.downloadErr = errors.New("connection reset")
	jobID := uuid.New()
	raw := message(t, entity.InterpolationMessage{JobID: jobID, UserEmail: "user@example.com"})

	err := h.uc.Execute(context.Background(), raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attempt 1/3")
	assert.Empty(t, h.dlq.reasons)
	assert.Empty(t, h.notifier.sent)

	require.Error(t, h.uc.Execute(context.Background(), raw))

	// The third attempt exhausts the budget and goes to the DLQ.
	require.NoError(t, h.uc.Execute(context.Background(), raw))
	require.Len(t, h.dlq.reasons, 1)
	require.Len(t, h.notifier.sent, 1)

	job, err := h.repo.FindByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, 3, job.Attempt)
	assert.Equal(t, entity.JobStatusFailed, job.Status)
}

func TestExecuteUnprocessableVideoIsPermanent(t *testing.T) {
	h := newHarness(t, nil, true)
	h.decoder.err = fmt.Errorf("%w: no video stream", port.ErrUnprocessableVideo)

	err := h.uc.Execute(context.Background(), message(t, entity.InterpolationMessage{}))
	require.NoError(t, err)
	require.Len(t, h.dlq.reasons, 1)
	assert.Contains(t, h.dlq.reasons[0], "decode_video")
}

func TestExecuteRejectsInvalidRequests(t *testing.T) {
	cases := map[string]entity.InterpolationMessage{
		"too many passes":  {Passes: 6},
		"negative passes":  {Passes: -1},
		"unknown strategy": {Strategy: "optical-flow"},
		"unknown audio":    {AudioPolicy: "loop"},
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, nil, true)
			require.NoError(t, h.uc.Execute(context.Background(), message(t, msg)))
			require.Len(t, h.dlq.reasons, 1)
			assert.Contains(t, h.dlq.reasons[0], "invalid_request")
			assert.Nil(t, h.assembler.req)
		})
	}
}

func TestExecuteMalformedMessageGoesToDLQ(t *testing.T) {
	h := newHarness(t, nil, true)
	require.NoError(t, h.uc.Execute(context.Background(), []byte(`{invalid json`)))
	require.Len(t, h.dlq.reasons, 1)
	assert.Contains(t, h.dlq.reasons[0], "unmarshal_error")
	assert.Empty(t, h.repo.jobs)
}

func TestExecuteSingleFramePassesThrough(t *testing.T) {
	h := newHarness(t, nil, true)
	h.decoder.video = decodedVideo(1, 24, false)
	jobID := uuid.New()

	require.NoError(t, h.uc.Execute(context.Background(), message(t, entity.InterpolationMessage{
		JobID: jobID, Passes: 3, AudioPolicy: "stretch",
	})))

	require.NotNil(t, h.assembler.req)
	assert.Equal(t, 1, h.assembler.req.Sequence.Len())
	assert.Equal(t, 24.0, h.assembler.req.FPS)
	assert.Nil(t, h.assembler.req.Audio)
	assert.Equal(t, entity.AudioStretch, h.assembler.req.Policy)

	job, err := h.repo.FindByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, 1, job.OutputFrames)
}
