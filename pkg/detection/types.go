package detection

import (
	"errors"
	"math"
	"strings"
)

//ErrMalformedDetection marks a detection with an inverted/ degenerate box or an impossible confidence.
//Such detections are dropped before any decision logic sees them.
var ErrMalformedDetection = errors.New("malformed detection")

//Label is the detector-independent class of a detection
type Label int

const (
	Other Label = iota
	Ball
	Batter
	Catcher
	Umpire
	HomePlate
)

func (l Label) String() string {
	switch l {
	case Ball:
		return "Ball"
	case Batter:
		return "Batter"
	case Catcher:
		return "Catcher"
	case Umpire:
		return "Umpire"
	case HomePlate:
		return "HomePlate"
	default:
		return "Other"
	}
}

//Box is a bounding box in pixel coordinates
type Box struct {
	XMin float64 `json:"xmin"`
	YMin float64 `json:"ymin"`
	XMax float64 `json:"xmax"`
	YMax float64 `json:"ymax"`
}

func (b Box) Width() float64  { return b.XMax - b.XMin }
func (b Box) Height() float64 { return b.YMax - b.YMin }

//Center returns the middle point of the box
func (b Box) Center() (x, y float64) {
	return (b.XMin + b.XMax) / 2, (b.YMin + b.YMax) / 2
}

//Valid returns false for inverted or zero-area boxes
func (b Box) Valid() bool {
	for _, v := range []float64{b.XMin, b.YMin, b.XMax, b.YMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.XMin < b.XMax && b.YMin < b.YMax
}

//IoU returns intersection over union of two boxes, 0 when they do not overlap
func (b Box) IoU(o Box) float64 {
	ix := math.Min(b.XMax, o.XMax) - math.Max(b.XMin, o.XMin)
	iy := math.Min(b.YMax, o.YMax) - math.Max(b.YMin, o.YMin)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := b.Width()*b.Height() + o.Width()*o.Height() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

//Detection is one object reported by the detector on a single frame.
//Class keeps the detector's own class name, Label is what the engine works with.
type Detection struct {
	Class      string  `json:"class"`
	Label      Label   `json:"-"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

//Validate reports ErrMalformedDetection for detections the engine must ignore
func (d Detection) Validate() error {
	if !d.Box.Valid() {
		return ErrMalformedDetection
	}
	if math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
		return ErrMalformedDetection
	}
	return nil
}

//Sanitize drops malformed detections and those under minConfidence, keeping the original order.
//It returns how many were dropped as malformed.
func Sanitize(dets []Detection, minConfidence float64) ([]Detection, int) {
	kept := make([]Detection, 0, len(dets))
	malformed := 0
	for _, d := range dets {
		if d.Validate() != nil {
			malformed++
			continue
		}
		if d.Confidence < minConfidence {
			continue
		}
		kept = append(kept, d)
	}
	return kept, malformed
}

//LabelMap translates detector class names into Labels, case-insensitive.
//Different detector versions name the same thing differently ("Baseball_ball", "sports ball"), this keeps the engine out of it.
type LabelMap map[string]Label

//DefaultBallLabels holds the domain label first and the generic COCO-style fallbacks after it
var DefaultBallLabels = []string{"Baseball_ball", "sports ball", "ball"}

var DefaultBatterLabels = []string{"Batter"}
var DefaultCatcherLabels = []string{"Catcher"}
var DefaultUmpireLabels = []string{"Umpire"}
var DefaultHomePlateLabels = []string{"Home_plate", "HomePlate"}

//NewLabelMap builds a map from per-label class name lists. Later lists win on duplicates.
func NewLabelMap(ball, batter, catcher, umpire, homePlate []string) LabelMap {
	m := make(LabelMap)
	add := func(names []string, l Label) {
		for _, n := range names {
			m[strings.ToLower(strings.TrimSpace(n))] = l
		}
	}
	add(ball, Ball)
	add(batter, Batter)
	add(catcher, Catcher)
	add(umpire, Umpire)
	add(homePlate, HomePlate)
	return m
}

//DefaultLabelMap maps the class names of the trained baseball model plus the generic fallbacks
func DefaultLabelMap() LabelMap {
	return NewLabelMap(DefaultBallLabels, DefaultBatterLabels, DefaultCatcherLabels, DefaultUmpireLabels, DefaultHomePlateLabels)
}

//Lookup returns Other for unknown class names
func (m LabelMap) Lookup(class string) Label {
	if l, ok := m[strings.ToLower(strings.TrimSpace(class))]; ok {
		return l
	}
	return Other
}

//Apply sets Label on every detection from its Class
func (m LabelMap) Apply(dets []Detection) {
	for i := range dets {
		dets[i].Label = m.Lookup(dets[i].Class)
	}
}
