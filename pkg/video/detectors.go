package video

import (
	"context"
	"io"
	"path"

	"github.com/chenBenjamin97/strike-zone/pkg/detection"
	"github.com/chenBenjamin97/strike-zone/pkg/pipeline"
	"github.com/chenBenjamin97/strike-zone/pkg/utils"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gocv.io/x/gocv"
)

//scriptFrameDetector reads the external script's results in lockstep with the decoded frames, the frame itself is not needed
type scriptFrameDetector struct {
	script *detection.ScriptDetector
}

func (d scriptFrameDetector) Detect(ctx context.Context, _ gocv.Mat) ([]detection.Detection, error) {
	return d.script.Detect(ctx)
}

//httpFrameDetector sends every frame as JPEG to an inference server
type httpFrameDetector struct {
	client *detection.HTTPDetector
}

func (d httpFrameDetector) Detect(ctx context.Context, frame gocv.Mat) ([]detection.Detection, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		return nil, errors.Wrap(err, "httpFrameDetector: encoding frame")
	}
	defer buf.Close()

	return d.client.Detect(ctx, buf.GetBytes())
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

//NewDetector builds the detector configured under 'detector.kind' for the video at srcVideoPath.
//The returned closer must be closed once the video is done.
func NewDetector(ctx context.Context, srcVideoPath string) (pipeline.Detector[gocv.Mat], io.Closer, error) {
	switch kind := viper.GetString("detector.kind"); kind {
	case "script":
		script := viper.GetString("detector.script")
		if dir := viper.GetString("directory.detector"); dir != "" {
			script = path.Join(dir, script)
		}

		s, err := detection.StartScript(ctx, viper.GetString("detector.interpreter"), script, srcVideoPath)
		if err != nil {
			return nil, nil, err
		}
		return scriptFrameDetector{script: s}, s, nil

	case "http":
		client := detection.NewHTTPDetector(viper.GetString("detector.url"), utils.DetectorTimeout())
		if err := client.CheckHealth(ctx); err != nil {
			return nil, nil, errors.Wrap(err, "NewDetector: inference server is not healthy")
		}
		return httpFrameDetector{client: client}, nopCloser{}, nil

	case "onnx":
		y, err := NewYOLO(YOLOConfig{
			ModelPath:        viper.GetString("detector.model"),
			Classes:          viper.GetStringSlice("detector.classes"),
			InputSize:        viper.GetInt("detector.input_size"),
			ConfidenceThresh: float32(viper.GetFloat64("detector.confidence")),
			NMSThresh:        float32(viper.GetFloat64("detector.nms")),
		})
		if err != nil {
			return nil, nil, err
		}
		return y, y, nil

	default:
		return nil, nil, errors.Errorf("NewDetector: unknown detector kind '%s'", kind)
	}
}
