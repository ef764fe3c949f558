package video

import (
	"context"
	"image"
	"os"
	"sync"

	"github.com/chenBenjamin97/strike-zone/pkg/detection"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

//YOLOConfig configures the in-process ONNX detector
type YOLOConfig struct {
	ModelPath        string
	Classes          []string //class names by model output index
	InputSize        int
	ConfidenceThresh float32
	NMSThresh        float32
}

//YOLODetector runs a YOLOv8 ONNX model on gocv frames
type YOLODetector struct {
	net    gocv.Net
	config YOLOConfig
	mu     sync.Mutex
}

//NewYOLO loads the model at cfg.ModelPath
func NewYOLO(cfg YOLOConfig) (*YOLODetector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "NewYOLO: model file '%s'", cfg.ModelPath)
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = 640
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, errors.Errorf("NewYOLO: could not load model from '%s'", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &YOLODetector{net: net, config: cfg}, nil
}

func (d *YOLODetector) Detect(ctx context.Context, frame gocv.Mat) ([]detection.Detection, error) {
	if frame.Empty() {
		return nil, errors.New("YOLODetector: empty frame")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	size := image.Pt(d.config.InputSize, d.config.InputSize)
	blob := gocv.BlobFromImage(frame, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	//YOLOv8 output is [1, 4+classes, anchors]
	dims := output.Size()
	if len(dims) != 3 {
		return nil, errors.Errorf("YOLODetector: unexpected output shape %v", dims)
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "YOLODetector: reading output")
	}

	scaleX := float32(frame.Cols()) / float32(d.config.InputSize)
	scaleY := float32(frame.Rows()) / float32(d.config.InputSize)
	cands := parseYOLOv8(data, dims[1], dims[2], scaleX, scaleY, d.config.ConfidenceThresh)
	if len(cands) == 0 {
		return nil, nil
	}

	boxes := make([]image.Rectangle, len(cands))
	scores := make([]float32, len(cands))
	for i, c := range cands {
		boxes[i] = c.rect
		scores[i] = c.score
	}

	var dets []detection.Detection
	for _, idx := range gocv.NMSBoxes(boxes, scores, d.config.ConfidenceThresh, d.config.NMSThresh) {
		dets = append(dets, cands[idx].detection(d.config.Classes))
	}
	return dets, nil
}

func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

type yoloCandidate struct {
	rect    image.Rectangle
	score   float32
	classID int
}

func (c yoloCandidate) detection(classes []string) detection.Detection {
	class := ""
	if c.classID < len(classes) {
		class = classes[c.classID]
	}
	return detection.Detection{
		Class:      class,
		Confidence: float64(c.score),
		Box: detection.Box{
			XMin: float64(c.rect.Min.X),
			YMin: float64(c.rect.Min.Y),
			XMax: float64(c.rect.Max.X),
			YMax: float64(c.rect.Max.Y),
		},
	}
}

//parseYOLOv8 reads the channel-major output (cx, cy, w, h, class scores...) for every anchor and keeps the
//anchors whose best class score reaches the threshold. Boxes are scaled back to frame pixels.
func parseYOLOv8(data []float32, attrs, anchors int, scaleX, scaleY, thresh float32) []yoloCandidate {
	if attrs <= 4 || len(data) < attrs*anchors {
		return nil
	}

	var cands []yoloCandidate
	for i := 0; i < anchors; i++ {
		best, bestID := float32(0), 0
		for c := 4; c < attrs; c++ {
			if s := data[c*anchors+i]; s > best {
				best, bestID = s, c-4
			}
		}
		if best < thresh {
			continue
		}

		cx, cy := data[i], data[anchors+i]
		w, h := data[2*anchors+i], data[3*anchors+i]
		cands = append(cands, yoloCandidate{
			rect: image.Rect(
				int((cx-w/2)*scaleX), int((cy-h/2)*scaleY),
				int((cx+w/2)*scaleX), int((cy+h/2)*scaleY),
			),
			score:   best,
			classID: bestID,
		})
	}
	return cands
}
