package video

import (
	"github.com/chenBenjamin97/strike-zone/pkg/umpire"
)

//Options controls one Judge run
type Options struct {
	//Engine is the decision engine's configuration, usually utils.EngineConfig() with per-request overrides
	Engine umpire.Config

	//OnVerdict is called for every verdict as soon as it is emitted (live updates)
	OnVerdict func(umpire.Verdict)

	//OutputWidth/ OutputHeight resize the annotated video, zero keeps the source size
	OutputWidth  int
	OutputHeight int
}

//Report is the result of judging one video, also written next to the output video as JSON
type Report struct {
	Video    string           `json:"video"`
	Frames   int              `json:"frames"`
	FPS      float64          `json:"fps"`
	Verdicts []umpire.Verdict `json:"verdicts"`
}

//Strikes counts the strikes in the report
func (r Report) Strikes() int {
	n := 0
	for _, v := range r.Verdicts {
		if v.Call == umpire.Strike {
			n++
		}
	}
	return n
}
