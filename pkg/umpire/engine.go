package umpire

import (
	"time"

	"github.com/chenBenjamin97/strike-zone/pkg/detection"
	"github.com/golang/glog"
)

//Engine turns the per-frame detection stream of one video into one Strike/ Ball call per pitch.
//
//Phases: Idle -> Tracking -> Concluded -> (display window) -> Idle.
//The engine is a plain state transformer: frames must be stepped in order, from one goroutine.
//Time is passed in with every frame, so the same detections and timestamps always give the same verdicts.
type Engine struct {
	cfg     Config
	zones   ZoneCalculator
	locator BallLocator
	tracker ContinuityTracker

	state    TrackState
	zone     *StrikeZone
	verdicts []Verdict
	lastAt   time.Duration
}

func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Labels == nil {
		cfg.Labels = detection.DefaultLabelMap()
	}

	return &Engine{
		cfg:     cfg,
		zones:   NewZoneCalculator(cfg),
		tracker: NewContinuityTracker(cfg),
	}, nil
}

//Step processes one frame taken at 'at' and returns what should be drawn on it
func (e *Engine) Step(frameIndex int, at time.Duration, dets []detection.Detection) Decision {
	if at < e.lastAt {
		glog.Warningf("Engine: frame %d timestamp %v is before previous %v, holding time", frameIndex, at, e.lastAt)
		at = e.lastAt
	}
	e.lastAt = at

	dets = e.prepare(frameIndex, dets)

	e.zone = e.zones.Compute(bestOf(dets, detection.Batter), bestOf(dets, detection.Catcher), e.zone)

	d := Decision{FrameIndex: frameIndex, At: at}

	if e.state.Phase == Concluded && at-e.state.VerdictEmittedAt >= e.cfg.DisplayWindow {
		glog.V(1).Infof("Engine: verdict of pitch %d cleared at %v", e.state.Pitch, at)
		e.state.Verdict = nil
		e.state.VerdictEmittedAt = 0
		e.state.clearBall()
		e.state.Phase = Idle
	}

	//while a verdict is on screen new balls are not tracked, the next pitch starts once we are back to Idle
	if e.state.Phase != Concluded {
		ball := e.tracker.Select(&e.state, e.locator.Candidates(dets))
		if ball != nil {
			p := center(ball.Box)
			box := ball.Box
			d.Ball = &p
			d.BallBox = &box
			if e.zone != nil {
				d.BallInZone = e.zone.Contains(p)
			}
		}

		if e.tracker.Observe(&e.state, ball, at) {
			d.Emitted = e.conclude(frameIndex, at)
		}
	}

	if e.zone != nil {
		z := *e.zone
		d.Zone = &z
	}
	d.Phase = e.state.Phase
	d.Display = e.state.Verdict
	if len(e.state.Trail) > 0 {
		d.Trail = append([]Point(nil), e.state.Trail...)
	}

	return d
}

//Flush concludes a pitch still being tracked when the video ends, so it is not lost.
//It returns the verdict, nil if there was nothing to conclude or no zone to judge against.
func (e *Engine) Flush(frameIndex int, at time.Duration) *Verdict {
	if e.state.Phase != Tracking {
		return nil
	}
	if at < e.lastAt {
		at = e.lastAt
	}
	e.state.Phase = Concluded
	return e.conclude(frameIndex, at)
}

//conclude makes the call for the pitch that was just concluded
func (e *Engine) conclude(frameIndex int, at time.Duration) *Verdict {
	if e.zone == nil || e.state.LastKnownBallPosition == nil {
		if !e.state.noZoneLogged {
			glog.Warningf("Engine: pitch %d concluded at %v without a call, got '%v'", e.state.Pitch, at, ErrNoZoneAvailable)
			e.state.noZoneLogged = true
		}
		e.state.clearBall()
		e.state.Phase = Idle
		return nil
	}

	pos := *e.state.LastKnownBallPosition
	call := Ball
	if e.zone.Contains(pos) {
		call = Strike
	}

	v := Verdict{
		Pitch:      e.state.Pitch,
		Call:       call,
		FrameIndex: frameIndex,
		At:         at,
		Position:   pos,
		Zone:       *e.zone,
	}
	e.state.Verdict = &v
	e.state.VerdictEmittedAt = at
	e.verdicts = append(e.verdicts, v)

	glog.Infof("Engine: pitch %d is a %s (ball at %.0f,%.0f, frame %d, %v)", v.Pitch, v.Call, pos.X, pos.Y, frameIndex, at)

	out := v
	return &out
}

//prepare maps class names to labels and drops what the engine must not look at, on a copy
func (e *Engine) prepare(frameIndex int, dets []detection.Detection) []detection.Detection {
	mapped := make([]detection.Detection, len(dets))
	copy(mapped, dets)
	for i := range mapped {
		if mapped[i].Class != "" {
			mapped[i].Label = e.cfg.Labels.Lookup(mapped[i].Class)
		}
	}

	kept, malformed := detection.Sanitize(mapped, e.cfg.MinConfidence)
	if malformed > 0 {
		glog.V(2).Infof("Engine: frame %d: dropped %d detections, got '%v'", frameIndex, malformed, detection.ErrMalformedDetection)
	}
	return kept
}

//Verdicts returns every verdict emitted so far, oldest first
func (e *Engine) Verdicts() []Verdict {
	return append([]Verdict(nil), e.verdicts...)
}

//State returns a copy of the current track state
func (e *Engine) State() TrackState {
	s := e.state
	s.Trail = append([]Point(nil), e.state.Trail...)
	return s
}

//Zone returns the zone currently held, nil if none was ever established
func (e *Engine) Zone() *StrikeZone {
	if e.zone == nil {
		return nil
	}
	z := *e.zone
	return &z
}

func (e *Engine) Config() Config {
	return e.cfg
}
