package umpire

import "github.com/chenBenjamin97/strike-zone/pkg/detection"

//ZoneCalculator derives the strike zone from player geometry
type ZoneCalculator struct {
	mode            ZoneMode
	topRatio        float64
	bottomRatio     float64
	fixed           StrikeZone
	catcherFallback bool
}

func NewZoneCalculator(cfg Config) ZoneCalculator {
	return ZoneCalculator{
		mode:            cfg.ZoneMode,
		topRatio:        cfg.ZoneTopRatio,
		bottomRatio:     cfg.ZoneBottomRatio,
		fixed:           cfg.FixedZone,
		catcherFallback: cfg.CatcherFallback,
	}
}

//FromBox applies the height ratios to a player box: full width, vertical band between the ratios
func (zc ZoneCalculator) FromBox(b detection.Box) (StrikeZone, bool) {
	h := b.Height()
	z := StrikeZone{
		XMin: b.XMin,
		YMin: b.YMin + h*zc.topRatio,
		XMax: b.XMax,
		YMax: b.YMin + h*zc.bottomRatio,
	}
	return z, z.Valid()
}

//Compute returns the zone for this frame. batter/catcher may be nil, prev is the last frame's zone (nil if none).
//When nothing usable is seen the previous zone is kept unchanged, nil only when there never was one.
func (zc ZoneCalculator) Compute(batter, catcher *detection.Detection, prev *StrikeZone) *StrikeZone {
	if zc.mode == ZoneFixed {
		z := zc.fixed
		return &z
	}

	if batter != nil {
		if z, ok := zc.FromBox(batter.Box); ok {
			return &z
		}
	}

	if catcher != nil && zc.catcherFallback {
		if z, ok := zc.FromBox(catcher.Box); ok {
			return &z
		}
	}

	return prev
}

//bestOf returns the highest confidence detection with the given label, first seen on ties
func bestOf(dets []detection.Detection, label detection.Label) *detection.Detection {
	var best *detection.Detection
	for i := range dets {
		if dets[i].Label != label {
			continue
		}
		if best == nil || dets[i].Confidence > best.Confidence {
			best = &dets[i]
		}
	}
	return best
}
