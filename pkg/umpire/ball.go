package umpire

import (
	"sort"

	"github.com/chenBenjamin97/strike-zone/pkg/detection"
)

//BallLocator picks the ball out of a frame's detections
type BallLocator struct{}

//Candidates returns every ball detection ordered by confidence, highest first, keeping detector order on ties
func (BallLocator) Candidates(dets []detection.Detection) []detection.Detection {
	balls := make([]detection.Detection, 0, 1)
	for _, d := range dets {
		if d.Label == detection.Ball {
			balls = append(balls, d)
		}
	}
	sort.SliceStable(balls, func(i, j int) bool {
		return balls[i].Confidence > balls[j].Confidence
	})
	return balls
}

//Locate returns the center of the most confident ball, ok is false when there is none
func (l BallLocator) Locate(dets []detection.Detection) (Point, bool) {
	balls := l.Candidates(dets)
	if len(balls) == 0 {
		return Point{}, false
	}
	return center(balls[0].Box), true
}

func center(b detection.Box) Point {
	x, y := b.Center()
	return Point{X: x, Y: y}
}
