package video

import (
	"context"
	"image"

	"github.com/chenBenjamin97/strike-zone/pkg/pipeline"
	"github.com/chenBenjamin97/strike-zone/pkg/umpire"
	"gocv.io/x/gocv"
)

//captureSource hands out the frames of an opened video, each in its own Mat owned by the caller
type captureSource struct {
	cap *gocv.VideoCapture
}

func (s *captureSource) Read(ctx context.Context) (gocv.Mat, error) {
	frame := gocv.NewMat()
	if ok := s.cap.Read(&frame); !ok || frame.Empty() {
		frame.Close()
		return gocv.Mat{}, pipeline.ErrSourceExhausted
	}
	return frame, nil
}

//writerSink plots the engine's decision above each frame and writes it to the temp video
type writerSink struct {
	writer *gocv.VideoWriter
	size   image.Point //zero value keeps the source size
}

func (s *writerSink) Write(frame gocv.Mat, d umpire.Decision) error {
	defer frame.Close()

	plotDecision(&frame, d)

	if s.size.X > 0 && s.size.Y > 0 && (frame.Cols() != s.size.X || frame.Rows() != s.size.Y) {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(frame, &resized, s.size, 0, 0, gocv.InterpolationLinear)
		return s.writer.Write(resized)
	}
	return s.writer.Write(frame)
}

func closeMat(m gocv.Mat) {
	m.Close()
}
