package umpire

import (
	"fmt"
	"time"

	"github.com/chenBenjamin97/strike-zone/pkg/detection"
)

type ZoneMode string

const (
	//ZoneRatio derives the zone from the batter (or catcher) box every frame it is available
	ZoneRatio ZoneMode = "ratio"
	//ZoneFixed always uses Config.FixedZone
	ZoneFixed ZoneMode = "fixed"
)

//Config holds every tunable of the decision engine
type Config struct {
	ZoneMode        ZoneMode
	ZoneTopRatio    float64
	ZoneBottomRatio float64
	FixedZone       StrikeZone
	CatcherFallback bool

	DropoutThreshold time.Duration
	DisplayWindow    time.Duration

	Labels        detection.LabelMap
	MinConfidence float64

	Association            bool
	AssociationMinIoU      float64
	AssociationMaxDistance float64

	TrailLength int
}

//DefaultConfig returns the defaults the broadcast footage was tuned on
func DefaultConfig() Config {
	return Config{
		ZoneMode:               ZoneRatio,
		ZoneTopRatio:           0.3,
		ZoneBottomRatio:        0.7,
		FixedZone:              StrikeZone{XMin: 1000, YMin: 512, XMax: 1192, YMax: 674},
		CatcherFallback:        true,
		DropoutThreshold:       500 * time.Millisecond,
		DisplayWindow:          time.Second,
		Labels:                 detection.DefaultLabelMap(),
		MinConfidence:          0,
		Association:            true,
		AssociationMinIoU:      0.1,
		AssociationMaxDistance: 150,
		TrailLength:            16,
	}
}

func (c Config) Validate() error {
	switch c.ZoneMode {
	case ZoneRatio:
		if c.ZoneTopRatio < 0 || c.ZoneBottomRatio > 1 || c.ZoneTopRatio >= c.ZoneBottomRatio {
			return fmt.Errorf("zone ratios must satisfy 0 <= top < bottom <= 1, got top=%v bottom=%v", c.ZoneTopRatio, c.ZoneBottomRatio)
		}
	case ZoneFixed:
		if !c.FixedZone.Valid() {
			return fmt.Errorf("fixed zone %+v is not a rectangle", c.FixedZone)
		}
	default:
		return fmt.Errorf("unknown zone mode '%s'", c.ZoneMode)
	}

	if c.DropoutThreshold <= 0 {
		return fmt.Errorf("dropout threshold must be positive, got %v", c.DropoutThreshold)
	}
	if c.DisplayWindow < 0 {
		return fmt.Errorf("display window must not be negative, got %v", c.DisplayWindow)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be in [0,1], got %v", c.MinConfidence)
	}
	if c.AssociationMinIoU < 0 || c.AssociationMinIoU > 1 {
		return fmt.Errorf("association min IoU must be in [0,1], got %v", c.AssociationMinIoU)
	}
	if c.AssociationMaxDistance < 0 {
		return fmt.Errorf("association max distance must not be negative, got %v", c.AssociationMaxDistance)
	}
	if c.TrailLength < 0 {
		return fmt.Errorf("trail length must not be negative, got %d", c.TrailLength)
	}
	return nil
}

//Seconds converts a configuration value in seconds to a Duration
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
