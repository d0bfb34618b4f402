package interpolation_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/fiapx/fiapx-interpolation-service/internal/domain/entity"
	"github.com/fiapx/fiapx-interpolation-service/internal/domain/port"
	"github.com/fiapx/fiapx-interpolation-service/internal/interpolation"
	"github.com/fiapx/fiapx-interpolation-service/internal/strategy/average"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// solidStrategy always emits one fixed frame and counts calls.
type solidStrategy struct {
	frame *entity.Frame
	calls atomic.Int32
}

func (s *solidStrategy) Kind() entity.StrategyKind { return "solid" }
func (s *solidStrategy) Ready() error              { return nil }
func (s *solidStrategy) Interpolate(a, b *entity.Frame) (*entity.Frame, error) {
	s.calls.Add(1)
	return s.frame, nil
}

type unavailableStrategy struct {
	calls atomic.Int32
}

func (s *unavailableStrategy) Kind() entity.StrategyKind { return entity.StrategyDeep }
func (s *unavailableStrategy) Ready() error {
	return fmt.Errorf("%w: weights missing", port.ErrStrategyUnavailable)
}
func (s *unavailableStrategy) Interpolate(a, b *entity.Frame) (*entity.Frame, error) {
	s.calls.Add(1)
	return nil, errors.New("must not be called")
}

// failingStrategy delegates to the average strategy except for pairs whose
// left frame is one of the marked frames.
type failingStrategy struct {
	fail map[*entity.Frame]bool
}

func (s *failingStrategy) Kind() entity.StrategyKind { return "failing" }
func (s *failingStrategy) Ready() error              { return nil }
func (s *failingStrategy) Interpolate(a, b *entity.Frame) (*entity.Frame, error) {
	if s.fail[a] {
		return nil, errors.New("boom")
	}
	return average.New().Interpolate(a, b)
}

func frames(n int) []*entity.Frame {
	out := make([]*entity.Frame, n)
	for i := range out {
		v := uint8(i * 40)
		out[i] = entity.SolidFrame(4, 2, v, v, v)
	}
	return out
}

func newInterpolator(s port.Strategy) *interpolation.Interpolator {
	return interpolation.NewInterpolator(s, interpolation.Config{Workers: 3, MaxPasses: 8})
}

func TestExpandInterleavesOriginalsOnEvenPositions(t *testing.T) {
	for _, n := range []int{2, 3, 7} {
		t.Run(fmt.Sprintf("len_%d", n), func(t *testing.T) {
			seq := entity.NewSequence(frames(n))

			out, err := newInterpolator(average.New()).Expand(context.Background(), seq)
			require.NoError(t, err)

			require.Equal(t, 2*n-1, out.Len())
			assert.Same(t, seq.At(0), out.At(0))
			assert.Same(t, seq.At(n-1), out.At(out.Len()-1))
			for i := 0; i < n; i++ {
				assert.Same(t, seq.At(i), out.At(2*i))
			}
			assert.Equal(t, seq.Resolution, out.Resolution)
		})
	}
}

func TestExpandShortSequenceIsIdentity(t *testing.T) {
	s := &solidStrategy{frame: entity.NewFrame(4, 2)}
	in := newInterpolator(s)

	for _, n := range []int{0, 1} {
		seq := entity.NewSequence(frames(n))
		out, err := in.Expand(context.Background(), seq)
		require.NoError(t, err)
		assert.Equal(t, seq, out)
	}
	assert.Zero(t, s.calls.Load())
}

func TestExpandWithBlackStrategy(t *testing.T) {
	black := entity.SolidFrame(4, 2, 0, 0, 0)
	fs := frames(3)
	a, b, c := fs[0], fs[1], fs[2]

	out, err := newInterpolator(&solidStrategy{frame: black}).Expand(context.Background(), entity.NewSequence(fs))
	require.NoError(t, err)

	assert.Equal(t, []*entity.Frame{a, black, b, black, c}, out.Frames)
}

func TestRunLengthFollowsPassCount(t *testing.T) {
	for _, tc := range []struct{ length, passes int }{
		{2, 1}, {2, 3}, {3, 2}, {5, 4}, {4, 0},
	} {
		t.Run(fmt.Sprintf("L%d_P%d", tc.length, tc.passes), func(t *testing.T) {
			res, err := newInterpolator(average.New()).Run(context.Background(), entity.NewSequence(frames(tc.length)), 30, tc.passes)
			require.NoError(t, err)

			want := (tc.length-1)*(1<<tc.passes) + 1
			assert.Equal(t, want, res.Sequence.Len())
			assert.Equal(t, entity.FrameCountAfter(tc.length, tc.passes), res.Sequence.Len())
			assert.Equal(t, want-tc.length, res.Synthesized)
			assert.Equal(t, tc.passes, res.PassesApplied)
			assert.Equal(t, 30*float64(int(1)<<tc.passes), res.OutputFPS)
			assert.Nil(t, res.Skipped)
		})
	}
}

func TestRunZeroPassesIsIdentity(t *testing.T) {
	seq := entity.NewSequence(frames(3))

	res, err := newInterpolator(average.New()).Run(context.Background(), seq, 25, 0)
	require.NoError(t, err)
	assert.Equal(t, seq.Frames, res.Sequence.Frames)
	assert.Equal(t, 25.0, res.OutputFPS)
}

func TestRunPixelAverageTwoPasses(t *testing.T) {
	a := entity.SolidFrame(2, 2, 0, 0, 0)
	b := entity.SolidFrame(2, 2, 255, 255, 255)
	in := newInterpolator(average.New())

	one, err := in.Run(context.Background(), entity.NewSequence([]*entity.Frame{a, b}), 10, 1)
	require.NoError(t, err)
	require.Equal(t, 3, one.Sequence.Len())
	assert.True(t, entity.SolidFrame(2, 2, 128, 128, 128).Equal(one.Sequence.At(1)))

	two, err := in.Run(context.Background(), entity.NewSequence([]*entity.Frame{a, b}), 10, 2)
	require.NoError(t, err)
	require.Equal(t, 5, two.Sequence.Len())

	want := []*entity.Frame{
		a,
		entity.SolidFrame(2, 2, 64, 64, 64),
		entity.SolidFrame(2, 2, 128, 128, 128),
		entity.SolidFrame(2, 2, 192, 192, 192),
		b,
	}
	for i, f := range want {
		assert.True(t, f.Equal(two.Sequence.At(i)), "frame %d", i)
	}
	assert.Equal(t, 40.0, two.OutputFPS)
}

func TestRunShortSeedIsSkipped(t *testing.T) {
	seq := entity.NewSequence(frames(1))

	res, err := newInterpolator(average.New()).Run(context.Background(), seq, 30, 3)
	require.NoError(t, err)
	assert.ErrorIs(t, res.Skipped, interpolation.ErrInputTooShort)
	assert.Equal(t, seq, res.Sequence)
	assert.Equal(t, 30.0, res.OutputFPS)
	assert.Zero(t, res.PassesApplied)
}

func TestRunUnavailableStrategyFailsBeforeAnyPair(t *testing.T) {
	s := &unavailableStrategy{}

	_, err := newInterpolator(s).Run(context.Background(), entity.NewSequence(frames(4)), 30, 2)
	assert.ErrorIs(t, err, port.ErrStrategyUnavailable)
	assert.Zero(t, s.calls.Load())
}

func TestRunRejectsPassesOverLimit(t *testing.T) {
	in := interpolation.NewInterpolator(average.New(), interpolation.Config{MaxPasses: 5})

	_, err := in.Run(context.Background(), entity.NewSequence(frames(2)), 30, 6)
	assert.ErrorIs(t, err, interpolation.ErrInvalidPasses)

	_, err = in.Run(context.Background(), entity.NewSequence(frames(2)), 30, -1)
	assert.ErrorIs(t, err, interpolation.ErrInvalidPasses)
}

func TestRunRejectsMixedSeedResolution(t *testing.T) {
	seq := entity.NewSequence([]*entity.Frame{entity.NewFrame(4, 2), entity.NewFrame(2, 2)})

	_, err := newInterpolator(average.New()).Run(context.Background(), seq, 30, 1)
	assert.ErrorIs(t, err, interpolation.ErrResolutionMismatch)
}

func TestRunReportsFailingPassAndPair(t *testing.T) {
	fs := frames(4)
	s := &failingStrategy{fail: map[*entity.Frame]bool{fs[2]: true}}

	_, err := newInterpolator(s).Run(context.Background(), entity.NewSequence(fs), 30, 2)
	require.Error(t, err)

	var pe *interpolation.PairError
	require.ErrorAs(t, err, &pe)
	// Pass 1 over [f0 f1 f2 f3] fails on the pair starting at f2.
	assert.Equal(t, 1, pe.Pass)
	assert.Equal(t, 2, pe.Pair)
	assert.Equal(t, 1, interpolation.FailedPass(err))
}

func TestRunReportsLeftmostFailingPair(t *testing.T) {
	fs := frames(6)
	s := &failingStrategy{fail: map[*entity.Frame]bool{fs[4]: true, fs[1]: true, fs[3]: true}}

	_, err := newInterpolator(s).Run(context.Background(), entity.NewSequence(fs), 30, 1)

	var pe *interpolation.PairError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Pair)
}

func TestRunRejectsUnusableStrategyOutput(t *testing.T) {
	broken := &entity.Frame{Width: 4, Height: 2, Pix: []uint8{1, 2, 3}}

	_, err := newInterpolator(&solidStrategy{frame: broken}).Run(context.Background(), entity.NewSequence(frames(2)), 30, 1)

	var pe *interpolation.PairError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, interpolation.ErrResolutionMismatch)
	assert.Equal(t, 1, pe.Pass)
	assert.Equal(t, 0, pe.Pair)
}

func TestRunNormalizesOnlyAfterFinalPass(t *testing.T) {
	// The strategy always emits 16x16; intermediate passes must see it unresized.
	big := entity.SolidFrame(16, 16, 9, 9, 9)
	seen := &recordingStrategy{out: big}

	res, err := newInterpolator(seen).Run(context.Background(), entity.NewSequence(frames(2)), 30, 2)
	require.NoError(t, err)

	assert.Contains(t, seen.inputSizes(), entity.Resolution{Width: 16, Height: 16})
	for _, f := range res.Sequence.Frames {
		assert.Equal(t, entity.Resolution{Width: 4, Height: 2}, f.Resolution())
	}
	assert.True(t, res.Sequence.Uniform())
}

func TestRunHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newInterpolator(average.New()).Run(ctx, entity.NewSequence(frames(3)), 30, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingStrategy struct {
	out *entity.Frame

	mu    sync.Mutex
	sizes []entity.Resolution
}

func (s *recordingStrategy) Kind() entity.StrategyKind { return "recording" }
func (s *recordingStrategy) Ready() error              { return nil }
func (s *recordingStrategy) Interpolate(a, b *entity.Frame) (*entity.Frame, error) {
	s.mu.Lock()
	s.sizes = append(s.sizes, a.Resolution(), b.Resolution())
	s.mu.Unlock()
	return s.out, nil
}

func (s *recordingStrategy) inputSizes() []entity.Resolution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.Resolution(nil), s.sizes...)
}
