package umpire

import (
	"math"
	"time"

	"github.com/chenBenjamin97/strike-zone/pkg/detection"
	"github.com/golang/glog"
)

//ContinuityTracker keeps the ball of the current pitch alive across frames where the detector misses it,
//and decides when it has been missing long enough for the pitch to be over.
//It holds configuration only, the state it works on belongs to the caller.
type ContinuityTracker struct {
	dropout     time.Duration
	association bool
	minIoU      float64
	maxDistance float64
	trailLength int
}

func NewContinuityTracker(cfg Config) ContinuityTracker {
	return ContinuityTracker{
		dropout:     cfg.DropoutThreshold,
		association: cfg.Association,
		minIoU:      cfg.AssociationMinIoU,
		maxDistance: cfg.AssociationMaxDistance,
		trailLength: cfg.TrailLength,
	}
}

//Select chooses which of this frame's ball candidates continues the current trajectory.
//candidates must be ordered by confidence (BallLocator.Candidates). Without a live track the most confident one wins.
func (t ContinuityTracker) Select(state *TrackState, candidates []detection.Detection) *detection.Detection {
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) == 1 || !t.association || state.Phase != Tracking || state.LastBallBox == nil {
		return &candidates[0]
	}

	glog.V(2).Infof("ContinuityTracker: %v, %d candidates for pitch %d", ErrAmbiguousBallDetection, len(candidates), state.Pitch)

	//overlap with the last box first, the ball moves little between consecutive frames
	bestIoU, bestIdx := 0.0, -1
	for i := range candidates {
		iou := candidates[i].Box.IoU(*state.LastBallBox)
		if iou >= t.minIoU && iou > bestIoU {
			bestIoU, bestIdx = iou, i
		}
	}
	if bestIdx >= 0 {
		return &candidates[bestIdx]
	}

	//no overlap (fast pitch or low frame rate) - nearest center within the jump limit
	last := *state.LastKnownBallPosition
	bestDist, bestIdx := math.Inf(1), -1
	for i := range candidates {
		d := distance(center(candidates[i].Box), last)
		if d < bestDist {
			bestDist, bestIdx = d, i
		}
	}
	if bestIdx >= 0 && (t.maxDistance == 0 || bestDist <= t.maxDistance) {
		return &candidates[bestIdx]
	}

	return &candidates[0]
}

//Observe feeds one frame's selected ball (nil when none) into the state.
//It returns true on the frame the pitch is concluded by dropout.
func (t ContinuityTracker) Observe(state *TrackState, ball *detection.Detection, at time.Duration) bool {
	if ball != nil {
		if state.Phase == Idle {
			state.Pitch++
			state.Phase = Tracking
			state.noZoneLogged = false
			state.Trail = nil
			glog.V(1).Infof("ContinuityTracker: pitch %d started at %v", state.Pitch, at)
		}

		p := center(ball.Box)
		box := ball.Box
		state.LastKnownBallPosition = &p
		state.LastBallBox = &box
		state.LastSeen = at

		if t.trailLength > 0 {
			state.Trail = append(state.Trail, p)
			if len(state.Trail) > t.trailLength {
				state.Trail = append([]Point(nil), state.Trail[len(state.Trail)-t.trailLength:]...)
			}
		}
		return false
	}

	if state.Phase == Tracking && at-state.LastSeen > t.dropout {
		state.Phase = Concluded
		glog.V(1).Infof("ContinuityTracker: pitch %d concluded at %v, last seen %v", state.Pitch, at, state.LastSeen)
		return true
	}

	return false
}

func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
