package utils

import (
	"fmt"
	"time"

	"github.com/chenBenjamin97/strike-zone/pkg/detection"
	"github.com/chenBenjamin97/strike-zone/pkg/umpire"
	"github.com/spf13/viper"
)

//SetDefaults registers the defaults of every key the service reads, so a minimal config file is enough
func SetDefaults() {
	viper.SetDefault("http.port", "8080")
	viper.SetDefault("video.prod_format", "mp4")
	viper.SetDefault("video.output_width", 0)
	viper.SetDefault("video.output_height", 0)

	viper.SetDefault("umpire.zone_mode", string(umpire.ZoneRatio))
	viper.SetDefault("umpire.zone_top_ratio", 0.3)
	viper.SetDefault("umpire.zone_bottom_ratio", 0.7)
	viper.SetDefault("umpire.fixed_zone", []float64{1000, 512, 1192, 674})
	viper.SetDefault("umpire.catcher_fallback", true)
	viper.SetDefault("umpire.dropout_threshold_seconds", 0.5)
	viper.SetDefault("umpire.display_window_seconds", 1.0)
	viper.SetDefault("umpire.ball_labels", detection.DefaultBallLabels)
	viper.SetDefault("umpire.batter_labels", detection.DefaultBatterLabels)
	viper.SetDefault("umpire.catcher_labels", detection.DefaultCatcherLabels)
	viper.SetDefault("umpire.umpire_labels", detection.DefaultUmpireLabels)
	viper.SetDefault("umpire.home_plate_labels", detection.DefaultHomePlateLabels)
	viper.SetDefault("umpire.min_confidence", 0.0)
	viper.SetDefault("umpire.association", true)
	viper.SetDefault("umpire.association_min_iou", 0.1)
	viper.SetDefault("umpire.association_max_distance", 150.0)
	viper.SetDefault("umpire.trail_length", 16)

	viper.SetDefault("detector.kind", "script")
	viper.SetDefault("detector.interpreter", "python3")
	viper.SetDefault("detector.script", "detect.py")
	viper.SetDefault("detector.url", "http://localhost:5000/predict")
	viper.SetDefault("detector.model", "models/best.onnx")
	viper.SetDefault("detector.classes", []string{"Baseball_ball", "Batter", "Catcher", "Umpire", "Home_plate"})
	viper.SetDefault("detector.input_size", 640)
	viper.SetDefault("detector.confidence", 0.25)
	viper.SetDefault("detector.nms", 0.45)
	viper.SetDefault("detector.timeout_seconds", 5.0)
}

//EngineConfig builds the decision engine's configuration from the 'umpire' section
func EngineConfig() (umpire.Config, error) {
	cfg := umpire.Config{
		ZoneMode:               umpire.ZoneMode(viper.GetString("umpire.zone_mode")),
		ZoneTopRatio:           viper.GetFloat64("umpire.zone_top_ratio"),
		ZoneBottomRatio:        viper.GetFloat64("umpire.zone_bottom_ratio"),
		CatcherFallback:        viper.GetBool("umpire.catcher_fallback"),
		DropoutThreshold:       umpire.Seconds(viper.GetFloat64("umpire.dropout_threshold_seconds")),
		DisplayWindow:          umpire.Seconds(viper.GetFloat64("umpire.display_window_seconds")),
		MinConfidence:          viper.GetFloat64("umpire.min_confidence"),
		Association:            viper.GetBool("umpire.association"),
		AssociationMinIoU:      viper.GetFloat64("umpire.association_min_iou"),
		AssociationMaxDistance: viper.GetFloat64("umpire.association_max_distance"),
		TrailLength:            viper.GetInt("umpire.trail_length"),
		Labels: detection.NewLabelMap(
			viper.GetStringSlice("umpire.ball_labels"),
			viper.GetStringSlice("umpire.batter_labels"),
			viper.GetStringSlice("umpire.catcher_labels"),
			viper.GetStringSlice("umpire.umpire_labels"),
			viper.GetStringSlice("umpire.home_plate_labels"),
		),
	}

	fixed, err := floatSlice(viper.Get("umpire.fixed_zone"))
	if err != nil || len(fixed) != 4 {
		return cfg, fmt.Errorf("EngineConfig: umpire.fixed_zone must be [xmin, ymin, xmax, ymax], got '%v'", viper.Get("umpire.fixed_zone"))
	}
	cfg.FixedZone = umpire.StrikeZone{XMin: fixed[0], YMin: fixed[1], XMax: fixed[2], YMax: fixed[3]}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("EngineConfig: %v", err)
	}
	return cfg, nil
}

//DetectorTimeout is the per-frame timeout of remote detectors
func DetectorTimeout() time.Duration {
	return umpire.Seconds(viper.GetFloat64("detector.timeout_seconds"))
}

//floatSlice accepts what yaml and SetDefault may hand us for a list of numbers
func floatSlice(v interface{}) ([]float64, error) {
	switch s := v.(type) {
	case []float64:
		return s, nil
	case []interface{}:
		out := make([]float64, 0, len(s))
		for _, x := range s {
			switch n := x.(type) {
			case int:
				out = append(out, float64(n))
			case int64:
				out = append(out, float64(n))
			case float64:
				out = append(out, n)
			default:
				return nil, fmt.Errorf("not a number: %v", x)
			}
		}
		return out, nil
	case []int:
		out := make([]float64, 0, len(s))
		for _, n := range s {
			out = append(out, float64(n))
		}
		return out, nil
	}
	return nil, fmt.Errorf("not a list: %v", v)
}
