//Package pipeline drives the umpire engine over a stream of frames.
//
//Frames go through four stages connected by channels: decode -> detect -> decide -> encode.
//Decoding, detection and encoding run in their own goroutines, the decision stage runs in the caller's
//goroutine and sees frames strictly in order, one at a time.
package pipeline

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chenBenjamin97/strike-zone/pkg/detection"
	"github.com/chenBenjamin97/strike-zone/pkg/umpire"
	"github.com/golang/glog"
	"github.com/pkg/errors"
)

//ErrSourceExhausted is what a Source returns after its last frame. It ends the run normally.
var ErrSourceExhausted = io.EOF

//Source produces frames in order
type Source[F any] interface {
	Read(ctx context.Context) (F, error)
}

//Detector returns the detections of one frame
type Detector[F any] interface {
	Detect(ctx context.Context, frame F) ([]detection.Detection, error)
}

//DetectorFunc adapts a function to Detector
type DetectorFunc[F any] func(ctx context.Context, frame F) ([]detection.Detection, error)

func (f DetectorFunc[F]) Detect(ctx context.Context, frame F) ([]detection.Detection, error) {
	return f(ctx, frame)
}

//Sink receives every frame exactly once, with the engine's decision for it. It owns the frame afterwards.
type Sink[F any] interface {
	Write(frame F, d umpire.Decision) error
}

type Options[F any] struct {
	//Clock stamps frames as they are decoded. A Ticker clock is ticked after every frame.
	Clock umpire.Clock
	//Buffer is the capacity of the channels between stages
	Buffer int
	//OnVerdict is called from the decision stage for every verdict, in order
	OnVerdict func(umpire.Verdict)
	//Discard releases frames that are dropped because the run was aborted
	Discard func(F)
}

type Result struct {
	Frames   int
	Verdicts []umpire.Verdict
}

type frame[F any] struct {
	index int
	at    time.Duration
	data  F
	dets  []detection.Detection
}

type decided[F any] struct {
	data     F
	decision umpire.Decision
}

//Run processes the source until it is exhausted, the context is cancelled or a stage fails.
//Verdicts gathered before a failure or cancellation are returned with the error.
func Run[F any](ctx context.Context, src Source[F], det Detector[F], sink Sink[F], eng *umpire.Engine, opts Options[F]) (Result, error) {
	if opts.Clock == nil {
		opts.Clock = umpire.NewMonotonicClock()
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 8
	}
	if opts.Discard == nil {
		opts.Discard = func(F) {}
	}

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg      sync.WaitGroup
		errOnce sync.Once
		runErr  error
		written int64
		drained bool
		last    frame[F]
		res     Result
	)
	fail := func(err error) {
		errOnce.Do(func() {
			runErr = err
			cancel()
		})
	}

	decodedC := make(chan frame[F], opts.Buffer)
	detectedC := make(chan frame[F], opts.Buffer)
	decidedC := make(chan decided[F], opts.Buffer)

	wg.Add(3)

	//decode
	go func() {
		defer wg.Done()
		defer close(decodedC)

		for index := 1; ; index++ {
			if ctx.Err() != nil {
				return
			}

			data, err := src.Read(ctx)
			if errors.Is(err, ErrSourceExhausted) {
				drained = true
				return
			}
			if err != nil {
				fail(errors.Wrapf(err, "pipeline: reading frame %d", index))
				return
			}

			f := frame[F]{index: index, at: opts.Clock.Now(), data: data}
			if t, ok := opts.Clock.(umpire.Ticker); ok {
				t.Tick()
			}

			select {
			case decodedC <- f:
			case <-ctx.Done():
				opts.Discard(data)
				return
			}
		}
	}()

	//detect
	go func() {
		defer wg.Done()
		defer close(detectedC)

		for f := range decodedC {
			if ctx.Err() != nil {
				opts.Discard(f.data)
				continue
			}

			dets, err := det.Detect(ctx, f.data)
			if err != nil && ctx.Err() == nil {
				glog.Warningf("pipeline: detector failed on frame %d, got '%v'", f.index, err)
				dets = nil
			}
			f.dets = dets

			select {
			case detectedC <- f:
			case <-ctx.Done():
				opts.Discard(f.data)
			}
		}
	}()

	//encode
	go func() {
		defer wg.Done()

		for d := range decidedC {
			if ctx.Err() != nil {
				opts.Discard(d.data)
				continue
			}
			if err := sink.Write(d.data, d.decision); err != nil {
				fail(errors.Wrapf(err, "pipeline: writing frame %d", d.decision.FrameIndex))
				continue
			}
			atomic.AddInt64(&written, 1)
		}
	}()

	emit := func(v umpire.Verdict) {
		res.Verdicts = append(res.Verdicts, v)
		if opts.OnVerdict != nil {
			opts.OnVerdict(v)
		}
	}

	//decide
	for f := range detectedC {
		if ctx.Err() != nil {
			opts.Discard(f.data)
			continue
		}

		d := eng.Step(f.index, f.at, f.dets)
		if d.Emitted != nil {
			emit(*d.Emitted)
		}
		last = f

		select {
		case decidedC <- decided[F]{data: f.data, decision: d}:
		case <-ctx.Done():
			opts.Discard(f.data)
		}
	}

	//the video ended mid-pitch, judge it with what we have
	if drained && ctx.Err() == nil && last.index > 0 {
		if v := eng.Flush(last.index, last.at); v != nil {
			emit(*v)
		}
	}

	close(decidedC)
	wg.Wait()

	res.Frames = int(atomic.LoadInt64(&written))

	if runErr != nil {
		return res, runErr
	}
	if err := parent.Err(); err != nil {
		return res, err
	}
	return res, nil
}
