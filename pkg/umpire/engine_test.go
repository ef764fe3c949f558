package umpire

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/chenBenjamin97/strike-zone/pkg/detection"
	"github.com/pmezard/go-difflib/difflib"
)

func batterDet(xmin, ymin, xmax, ymax float64) detection.Detection {
	return detection.Detection{Class: "Batter", Confidence: 0.9, Box: detection.Box{XMin: xmin, YMin: ymin, XMax: xmax, YMax: ymax}}
}

func ballDet(cx, cy, conf float64) detection.Detection {
	return detection.Detection{Class: "Baseball_ball", Confidence: conf, Box: detection.Box{XMin: cx - 5, YMin: cy - 5, XMax: cx + 5, YMax: cy + 5}}
}

//frameAt gives frame n a timestamp of n * 100ms
func frameAt(n int) time.Duration {
	return time.Duration(n) * 100 * time.Millisecond
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine() = %v", err)
	}
	return e
}

func transcript(vs []Verdict) string {
	var b strings.Builder
	for _, v := range vs {
		fmt.Fprintf(&b, "pitch=%d call=%s frame=%d at=%v pos=(%.1f,%.1f)\n", v.Pitch, v.Call, v.FrameIndex, v.At, v.Position.X, v.Position.Y)
	}
	return b.String()
}

func assertTranscript(t *testing.T, want, got string) {
	t.Helper()
	if want == got {
		return
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  3,
	})
	t.Errorf("verdict transcript mismatch:\n%s", diff)
}

func TestEngine_VerdictAfterDropout(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())

	var emitted []Decision
	for n := 1; n <= 20; n++ {
		dets := []detection.Detection{batterDet(100, 100, 200, 200)}
		if n <= 10 {
			dets = append(dets, ballDet(150, 150, 0.8))
		}
		d := e.Step(n, frameAt(n), dets)
		if d.Emitted != nil {
			emitted = append(emitted, d)
		}
		if n <= 15 && d.Phase != Tracking {
			t.Errorf("frame %d: phase = %v, want Tracking", n, d.Phase)
		}
	}

	if len(emitted) != 1 {
		t.Fatalf("got %d verdicts, want 1", len(emitted))
	}
	v := emitted[0].Emitted
	if v.FrameIndex != 16 {
		t.Errorf("verdict frame = %d, want 16", v.FrameIndex)
	}
	if v.At != 1600*time.Millisecond {
		t.Errorf("verdict at = %v, want 1.6s", v.At)
	}
	if v.Position != (Point{150, 150}) {
		t.Errorf("verdict position = %+v, want the frame 10 position", v.Position)
	}
	if v.Call != Strike {
		t.Errorf("call = %v, want Strike", v.Call)
	}
	if emitted[0].Phase != Concluded || emitted[0].Display == nil {
		t.Errorf("emitting frame should display the verdict, got %+v", emitted[0])
	}
}

func TestEngine_CallAgainstZone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ZoneMode = ZoneFixed
	cfg.FixedZone = StrikeZone{XMin: 100, YMin: 100, XMax: 200, YMax: 200}

	tests := []struct {
		name string
		ball Point
		want Call
	}{
		{"center", Point{150, 150}, Strike},
		{"outside", Point{50, 50}, Ball},
		{"left edge", Point{100, 150}, Strike},
		{"bottom right corner", Point{200, 200}, Strike},
		{"just right", Point{200.5, 150}, Ball},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, cfg)
			for n := 1; n <= 3; n++ {
				e.Step(n, frameAt(n), []detection.Detection{ballDet(tt.ball.X, tt.ball.Y, 0.9)})
			}
			for n := 4; n <= 10; n++ {
				e.Step(n, frameAt(n), nil)
			}
			vs := e.Verdicts()
			if len(vs) != 1 {
				t.Fatalf("got %d verdicts, want 1", len(vs))
			}
			if vs[0].Call != tt.want {
				t.Errorf("call = %v, want %v", vs[0].Call, tt.want)
			}
		})
	}
}

func TestEngine_DisplayWindow(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())

	for n := 1; n <= 30; n++ {
		dets := []detection.Detection{batterDet(100, 100, 200, 200)}
		if n <= 10 {
			dets = append(dets, ballDet(150, 150, 0.8))
		}
		d := e.Step(n, frameAt(n), dets)

		switch {
		case n < 16:
			if d.Display != nil {
				t.Errorf("frame %d: verdict displayed before conclusion", n)
			}
		case n < 26:
			if d.Display == nil {
				t.Errorf("frame %d: verdict should still be displayed", n)
			}
			if d.Phase != Concluded {
				t.Errorf("frame %d: phase = %v, want Concluded", n, d.Phase)
			}
		default:
			if d.Display != nil {
				t.Errorf("frame %d: verdict should be gone one second after emission", n)
			}
			if d.Phase != Idle {
				t.Errorf("frame %d: phase = %v, want Idle", n, d.Phase)
			}
		}
	}

	s := e.State()
	if s.LastKnownBallPosition != nil {
		t.Errorf("last known position should be cleared, got %+v", *s.LastKnownBallPosition)
	}
	if s.Verdict != nil {
		t.Error("verdict should be cleared")
	}
}

func TestEngine_BallDuringDisplayIsIgnored(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	bat := batterDet(100, 100, 300, 300)

	for n := 1; n <= 10; n++ {
		e.Step(n, frameAt(n), []detection.Detection{bat, ballDet(200, 200, 0.9)})
	}
	for n := 11; n <= 16; n++ {
		e.Step(n, frameAt(n), []detection.Detection{bat})
	}
	if len(e.Verdicts()) != 1 {
		t.Fatalf("want first verdict emitted by frame 16")
	}

	for n := 17; n <= 25; n++ {
		d := e.Step(n, frameAt(n), []detection.Detection{bat, ballDet(10, 10, 0.9)})
		if d.Ball != nil {
			t.Errorf("frame %d: ball should not be tracked while the verdict is shown", n)
		}
		if d.Display == nil || d.Display.Pitch != 1 {
			t.Errorf("frame %d: display of pitch 1 interrupted", n)
		}
	}

	d := e.Step(26, frameAt(26), []detection.Detection{bat, ballDet(10, 10, 0.9)})
	if d.Phase != Tracking || d.Ball == nil {
		t.Fatalf("frame 26: new pitch should start once back to Idle, got phase %v", d.Phase)
	}
	if e.State().Pitch != 2 {
		t.Errorf("pitch = %d, want 2", e.State().Pitch)
	}
	if *e.State().LastKnownBallPosition != (Point{10, 10}) {
		t.Errorf("new pitch should start from the new ball, got %+v", *e.State().LastKnownBallPosition)
	}
}

func TestEngine_NoBatterNoVerdict(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())

	for n := 1; n <= 100; n++ {
		var dets []detection.Detection
		if n%30 < 10 {
			dets = append(dets, ballDet(150, 150, 0.9))
		}
		d := e.Step(n, frameAt(n), dets)
		if d.Zone != nil || d.Display != nil || d.Emitted != nil {
			t.Fatalf("frame %d: nothing should be annotated without a zone, got %+v", n, d)
		}
	}

	if len(e.Verdicts()) != 0 {
		t.Errorf("got %d verdicts, want 0", len(e.Verdicts()))
	}
	if e.State().Pitch < 3 {
		t.Errorf("pitch attempts = %d, each ball episode should still count as a pitch", e.State().Pitch)
	}
}

func TestEngine_ZoneHeldAcrossMissedBatter(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())

	e.Step(1, frameAt(1), []detection.Detection{batterDet(100, 100, 200, 200), ballDet(150, 150, 0.9)})
	for n := 2; n <= 10; n++ {
		e.Step(n, frameAt(n), []detection.Detection{ballDet(150, 150, 0.9)})
	}
	for n := 11; n <= 20; n++ {
		e.Step(n, frameAt(n), nil)
	}

	vs := e.Verdicts()
	if len(vs) != 1 || vs[0].Call != Strike {
		t.Fatalf("verdicts = %+v, want one Strike judged against the held zone", vs)
	}
	if vs[0].Zone != (StrikeZone{100, 130, 200, 170}) {
		t.Errorf("zone = %+v", vs[0].Zone)
	}
}

func TestEngine_MalformedDetectionsIgnored(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())

	inverted := batterDet(200, 200, 100, 100)
	degenerateBall := detection.Detection{Class: "Baseball_ball", Confidence: 0.9, Box: detection.Box{XMin: 5, YMin: 5, XMax: 5, YMax: 9}}

	d := e.Step(1, frameAt(1), []detection.Detection{inverted, degenerateBall})
	if d.Zone != nil {
		t.Errorf("inverted batter box produced a zone %+v", *d.Zone)
	}
	if d.Ball != nil {
		t.Errorf("degenerate ball box was located at %+v", *d.Ball)
	}
	if d.Phase != Idle {
		t.Errorf("phase = %v, want Idle", d.Phase)
	}
}

func TestEngine_AssociationKeepsTrajectory(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	bat := batterDet(0, 0, 1000, 1000)

	e.Step(1, frameAt(1), []detection.Detection{bat, ballDet(100, 100, 0.9)})
	e.Step(2, frameAt(2), []detection.Detection{bat, ballDet(104, 100, 0.9)})

	//a spurious, more confident box far away
	d := e.Step(3, frameAt(3), []detection.Detection{bat, ballDet(800, 800, 0.95), ballDet(108, 100, 0.6)})
	if d.Ball == nil || *d.Ball != (Point{108, 100}) {
		t.Fatalf("ball = %+v, want the candidate continuing the trajectory", d.Ball)
	}

	cfg := DefaultConfig()
	cfg.Association = false
	plain := newTestEngine(t, cfg)
	plain.Step(1, frameAt(1), []detection.Detection{bat, ballDet(100, 100, 0.9)})
	plain.Step(2, frameAt(2), []detection.Detection{bat, ballDet(104, 100, 0.9)})
	d = plain.Step(3, frameAt(3), []detection.Detection{bat, ballDet(800, 800, 0.95), ballDet(108, 100, 0.6)})
	if d.Ball == nil || *d.Ball != (Point{800, 800}) {
		t.Fatalf("without association the most confident ball wins, got %+v", d.Ball)
	}
}

func TestEngine_TrailAndLiveMarker(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrailLength = 3
	e := newTestEngine(t, cfg)
	bat := batterDet(100, 100, 200, 200)

	var d Decision
	for n := 1; n <= 5; n++ {
		d = e.Step(n, frameAt(n), []detection.Detection{bat, ballDet(float64(100+n), 150, 0.9)})
	}
	if len(d.Trail) != 3 || d.Trail[0].X != 103 || d.Trail[2].X != 105 {
		t.Errorf("trail = %+v, want the last 3 positions", d.Trail)
	}
	if !d.BallInZone {
		t.Error("ball at (105,150) should be marked inside the zone")
	}

	d = e.Step(6, frameAt(6), []detection.Detection{bat, ballDet(20, 150, 0.9)})
	if d.BallInZone {
		t.Error("ball at (20,150) should be marked outside the zone")
	}
}

func TestEngine_Flush(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())

	for n := 1; n <= 5; n++ {
		e.Step(n, frameAt(n), []detection.Detection{batterDet(100, 100, 200, 200), ballDet(20, 20, 0.9)})
	}

	v := e.Flush(6, frameAt(6))
	if v == nil {
		t.Fatal("Flush() should conclude the pitch in flight")
	}
	if v.Call != Ball || v.FrameIndex != 6 {
		t.Errorf("verdict = %+v", v)
	}
	if e.Flush(7, frameAt(7)) != nil {
		t.Error("second Flush() should be a no-op")
	}
}

func TestEngine_TimeNeverGoesBack(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	bat := batterDet(100, 100, 200, 200)

	e.Step(1, frameAt(10), []detection.Detection{bat, ballDet(150, 150, 0.9)})
	d := e.Step(2, frameAt(5), []detection.Detection{bat})
	if d.At != frameAt(10) {
		t.Errorf("at = %v, want time held at %v", d.At, frameAt(10))
	}
}

func TestEngine_CustomBallLabels(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Labels = detection.NewLabelMap([]string{"pelota"}, detection.DefaultBatterLabels, nil, nil, nil)
	e := newTestEngine(t, cfg)

	d := e.Step(1, frameAt(1), []detection.Detection{
		batterDet(100, 100, 200, 200),
		ballDet(150, 150, 0.9), //Baseball_ball is unknown to this map
	})
	if d.Ball != nil {
		t.Fatalf("unexpected ball %+v", *d.Ball)
	}

	p := ballDet(150, 150, 0.9)
	p.Class = "pelota"
	d = e.Step(2, frameAt(2), []detection.Detection{batterDet(100, 100, 200, 200), p})
	if d.Ball == nil {
		t.Fatal("pelota should be located as the ball")
	}
}

//twoPitches: zone (100,160,200,240); a strike at frames 1-5, a ball at frames 21-25
func twoPitches() [][]detection.Detection {
	frames := make([][]detection.Detection, 41)
	for n := 1; n <= 40; n++ {
		dets := []detection.Detection{batterDet(100, 100, 200, 300)}
		switch {
		case n <= 5:
			dets = append(dets, ballDet(150, 200, 0.9))
		case n >= 21 && n <= 25:
			dets = append(dets, ballDet(50, 200, 0.9))
		}
		frames[n] = dets
	}
	return frames
}

func run(t *testing.T, frames [][]detection.Detection) []Verdict {
	e := newTestEngine(t, DefaultConfig())
	for n := 1; n < len(frames); n++ {
		e.Step(n, frameAt(n), frames[n])
	}
	return e.Verdicts()
}

func TestEngine_Transcript(t *testing.T) {
	want := "pitch=1 call=Strike frame=11 at=1.1s pos=(150.0,200.0)\n" +
		"pitch=2 call=Ball frame=31 at=3.1s pos=(50.0,200.0)\n"

	assertTranscript(t, want, transcript(run(t, twoPitches())))
}

func TestEngine_Deterministic(t *testing.T) {
	first := transcript(run(t, twoPitches()))
	second := transcript(run(t, twoPitches()))
	assertTranscript(t, first, second)
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ZoneTopRatio = 0.8
	if _, err := NewEngine(cfg); err == nil {
		t.Error("NewEngine() should reject top ratio above bottom ratio")
	}
}
