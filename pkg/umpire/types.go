package umpire

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/chenBenjamin97/strike-zone/pkg/detection"
)

//ErrNoZoneAvailable means a pitch concluded before any batter or catcher was seen, no call can be made for it
var ErrNoZoneAvailable = errors.New("no strike zone available")

//ErrAmbiguousBallDetection means more than one ball was detected on one frame.
//It is resolved by confidence/ association and only ever traced, never returned.
var ErrAmbiguousBallDetection = errors.New("ambiguous ball detection")

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

//StrikeZone is the rectangle a ball position is judged against, in pixels
type StrikeZone struct {
	XMin float64 `json:"xmin"`
	YMin float64 `json:"ymin"`
	XMax float64 `json:"xmax"`
	YMax float64 `json:"ymax"`
}

//Valid reports whether the zone is a real rectangle
func (z StrikeZone) Valid() bool {
	return z.XMin < z.XMax && z.YMin < z.YMax
}

//Contains is inclusive on all four sides, a ball on the line is a strike
func (z StrikeZone) Contains(p Point) bool {
	return z.XMin <= p.X && p.X <= z.XMax && z.YMin <= p.Y && p.Y <= z.YMax
}

type Phase int

const (
	Idle Phase = iota
	Tracking
	Concluded
)

func (p Phase) String() string {
	switch p {
	case Tracking:
		return "Tracking"
	case Concluded:
		return "Concluded"
	default:
		return "Idle"
	}
}

type Call int

const (
	Strike Call = iota
	Ball
)

func (c Call) String() string {
	if c == Strike {
		return "Strike"
	}
	return "Ball"
}

func (c Call) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Call) UnmarshalText(b []byte) error {
	switch string(b) {
	case "Strike":
		*c = Strike
	case "Ball":
		*c = Ball
	default:
		return errors.New("unknown call '" + string(b) + "'")
	}
	return nil
}

//Verdict is the final call of one pitch. Produced exactly once per pitch.
type Verdict struct {
	Pitch      int
	Call       Call
	FrameIndex int
	At         time.Duration
	Position   Point
	Zone       StrikeZone
}

type verdictJSON struct {
	Pitch     int        `json:"pitch"`
	Call      Call       `json:"call"`
	Frame     int        `json:"frame"`
	Timestamp float64    `json:"timestamp"`
	Position  Point      `json:"position"`
	Zone      StrikeZone `json:"zone"`
}

//MarshalJSON exports the verdict with its timestamp in seconds
func (v Verdict) MarshalJSON() ([]byte, error) {
	return json.Marshal(verdictJSON{
		Pitch:     v.Pitch,
		Call:      v.Call,
		Frame:     v.FrameIndex,
		Timestamp: v.At.Seconds(),
		Position:  v.Position,
		Zone:      v.Zone,
	})
}

func (v *Verdict) UnmarshalJSON(b []byte) error {
	var r verdictJSON
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	*v = Verdict{
		Pitch:      r.Pitch,
		Call:       r.Call,
		FrameIndex: r.Frame,
		At:         time.Duration(r.Timestamp * float64(time.Second)),
		Position:   r.Position,
		Zone:       r.Zone,
	}
	return nil
}

//TrackState is everything the engine remembers about the pitch in flight.
//LastSeen is meaningful only while LastKnownBallPosition is set, VerdictEmittedAt only while Verdict is set.
type TrackState struct {
	Pitch                 int
	Phase                 Phase
	LastKnownBallPosition *Point
	LastBallBox           *detection.Box
	LastSeen              time.Duration
	Verdict               *Verdict
	VerdictEmittedAt      time.Duration
	Trail                 []Point

	noZoneLogged bool
}

//clearBall forgets the ball of the finished pitch so the next one starts clean
func (s *TrackState) clearBall() {
	s.LastKnownBallPosition = nil
	s.LastBallBox = nil
	s.LastSeen = 0
	s.Trail = nil
}

//Decision is what the engine tells the renderer about one frame
type Decision struct {
	FrameIndex int
	At         time.Duration
	Phase      Phase

	//Zone is nil until a batter or catcher has been seen (or a fixed zone is configured)
	Zone *StrikeZone

	//Ball is the live ball marker, set only when a ball was located on this frame
	Ball       *Point
	BallBox    *detection.Box
	BallInZone bool
	Trail      []Point

	//Display is the verdict currently on screen, Emitted is set only on the frame it was decided
	Display *Verdict
	Emitted *Verdict
}
