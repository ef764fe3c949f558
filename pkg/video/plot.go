package video

import (
	"image"
	"image/color"
	"strings"

	"github.com/chenBenjamin97/strike-zone/pkg/umpire"
	"github.com/chenBenjamin97/strike-zone/pkg/utils"
	"gocv.io/x/gocv"
)

//plotDecision draws everything the engine decided for this frame: zone, ball trail, live ball marker and verdict.
//Frames without a strike zone go out untouched, there is nothing to judge the ball against yet.
func plotDecision(frame *gocv.Mat, d umpire.Decision) {
	if d.Zone == nil {
		return
	}

	plotZone(frame, *d.Zone)
	plotTrail(frame, d.Trail)

	if d.Ball != nil {
		plotBall(frame, *d.Ball, d)
	}

	if d.Display != nil {
		plotVerdict(frame, *d.Display)
	}
}

func plotZone(frame *gocv.Mat, z umpire.StrikeZone) {
	gocv.Rectangle(frame, zoneRect(z), utils.ZoneColor, 2)
}

//plotTrail connects the ball's positions in the current pitch
func plotTrail(frame *gocv.Mat, trail []umpire.Point) {
	for i := 1; i < len(trail); i++ {
		gocv.Line(frame, toPt(trail[i-1]), toPt(trail[i]), utils.TrailColor, 2)
	}
}

//plotBall marks the live ball with a filled circle and writes above it whether it is in the zone right now
func plotBall(frame *gocv.Mat, p umpire.Point, d umpire.Decision) {
	c, label := markerStyle(d)
	center := toPt(p)

	gocv.Circle(frame, center, utils.BallMarkerRadius, c, -1) //thickness -1 == filled circle
	gocv.PutText(frame, label, image.Pt(center.X-20, center.Y-20), gocv.FontHersheySimplex, 0.9, c, 2)
}

//plotVerdict writes the call in big letters at the top left of the frame
func plotVerdict(frame *gocv.Mat, v umpire.Verdict) {
	org := image.Pt(int(float64(frame.Cols())*utils.VerdictTextOriginX), int(float64(frame.Rows())*utils.VerdictTextOriginY))
	gocv.PutText(frame, strings.ToUpper(v.Call.String()), org, gocv.FontHersheySimplex, utils.VerdictFontScale, callColor(v.Call), utils.VerdictThickness)
}

//markerStyle picks the live marker's color and label from the provisional call
func markerStyle(d umpire.Decision) (color.RGBA, string) {
	if d.BallInZone {
		return utils.StrikeColor, umpire.Strike.String()
	}
	return utils.BallColor, umpire.Ball.String()
}

func callColor(c umpire.Call) color.RGBA {
	if c == umpire.Strike {
		return utils.StrikeColor
	}
	return utils.BallColor
}

func zoneRect(z umpire.StrikeZone) image.Rectangle {
	return image.Rect(int(z.XMin), int(z.YMin), int(z.XMax), int(z.YMax))
}

func toPt(p umpire.Point) image.Point {
	return image.Pt(int(p.X), int(p.Y))
}
