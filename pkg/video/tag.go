package video

import (
	"context"
	"encoding/json"
	"image"
	"io/ioutil"
	"os"
	"os/exec"
	"path"
	"strings"

	"github.com/chenBenjamin97/strike-zone/pkg/pipeline"
	"github.com/chenBenjamin97/strike-zone/pkg/umpire"
	"github.com/chenBenjamin97/strike-zone/pkg/utils"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gocv.io/x/gocv"
)

//Tag judges a video from 'directory.source' and saves the annotated video (in 'video.prod_format') to 'directory.ready',
//with its verdicts next to it. srcVideoName should include file's extension ('.mp4', etc.)
func Tag(ctx context.Context, srcVideoName string, opts Options) (Report, error) {
	srcVideoPath := path.Join(viper.GetString("directory.source"), srcVideoName)
	outputVideoPath := path.Join(viper.GetString("directory.ready"), utils.BaseName(srcVideoName)+"."+viper.GetString("video.prod_format"))

	return Judge(ctx, srcVideoPath, outputVideoPath, opts)
}

//Judge runs the whole detection-to-verdict pipeline over srcVideoPath. The annotated frames are written to a temporary
//XVID ('.avi') file which is converted by ffmpeg to outputVideoPath, the verdicts are saved to VerdictsPath(outputVideoPath).
//Verdicts gathered before a failure are returned with the error.
func Judge(ctx context.Context, srcVideoPath, outputVideoPath string, opts Options) (Report, error) {
	report := Report{Video: utils.BaseName(outputVideoPath)}

	eng, err := umpire.NewEngine(opts.Engine)
	if err != nil {
		return report, errors.Wrap(err, "Judge")
	}

	cap, err := gocv.VideoCaptureFile(srcVideoPath)
	if err != nil {
		return report, errors.Wrapf(err, "Judge: could not open '%s'", srcVideoPath)
	}
	defer cap.Close()

	report.FPS = cap.Get(gocv.VideoCaptureFPS)
	width, height := int(cap.Get(gocv.VideoCaptureFrameWidth)), int(cap.Get(gocv.VideoCaptureFrameHeight))
	sink := &writerSink{}
	if opts.OutputWidth > 0 && opts.OutputHeight > 0 {
		width, height = opts.OutputWidth, opts.OutputHeight
		sink.size = image.Pt(width, height)
	}

	tmpVideoPath, err := tempVideoPath(outputVideoPath)
	if err != nil {
		return report, err
	}
	defer os.Remove(tmpVideoPath) //remove '.avi' temp file at the end of this function

	videoWriter, err := gocv.VideoWriterFile(tmpVideoPath, utils.TempVideoCodec, report.FPS, width, height, true)
	if err != nil {
		return report, errors.Wrapf(err, "Judge: could not create '%s'", tmpVideoPath)
	}
	sink.writer = videoWriter

	det, closer, err := NewDetector(ctx, srcVideoPath)
	if err != nil {
		videoWriter.Close()
		return report, err
	}
	defer closer.Close()

	glog.Infof("Judge: Started judging '%s' (%.2f FPS, %dx%d)", srcVideoPath, report.FPS, width, height)

	res, runErr := pipeline.Run[gocv.Mat](ctx, &captureSource{cap: cap}, det, sink, eng, pipeline.Options[gocv.Mat]{
		Clock:     umpire.NewFrameClock(report.FPS),
		OnVerdict: opts.OnVerdict,
		Discard:   closeMat,
	})
	videoWriter.Close() //ffmpeg needs the finished file

	report.Frames = res.Frames
	report.Verdicts = res.Verdicts
	if report.Verdicts == nil {
		report.Verdicts = []umpire.Verdict{}
	}
	if runErr != nil {
		return report, runErr
	}

	//Convert to from 'avi' to the production format. example: ffmpeg -y -i pitch.avi pitch.mp4
	cmd := exec.CommandContext(ctx, "ffmpeg", "-y", "-i", tmpVideoPath, outputVideoPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		glog.Errorf("Judge: Error from ffmpeg, got '%v': %s", err, lastLine(out))
		return report, errors.Wrap(err, "Judge: ffmpeg")
	}

	if err := WriteReport(VerdictsPath(outputVideoPath), report); err != nil {
		return report, err
	}

	glog.Infof("Judge: '%s' done, %d frames, %d verdicts (%d strikes)", outputVideoPath, report.Frames, len(report.Verdicts), report.Strikes())
	return report, nil
}

//VerdictsPath is where the verdicts of the given annotated video are stored
func VerdictsPath(outputVideoPath string) string {
	return path.Join(path.Dir(outputVideoPath), utils.BaseName(outputVideoPath)+utils.VerdictsFileSuffix)
}

//WriteReport saves the report as indented JSON
func WriteReport(reportPath string, report Report) error {
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.Wrap(err, "WriteReport")
	}
	if err := ioutil.WriteFile(reportPath, b, 0644); err != nil {
		return errors.Wrapf(err, "WriteReport: could not write '%s'", reportPath)
	}
	return nil
}

//ReadReport loads a report saved by WriteReport
func ReadReport(reportPath string) (Report, error) {
	var report Report

	b, err := ioutil.ReadFile(reportPath)
	if err != nil {
		return report, err
	}
	if err := json.Unmarshal(b, &report); err != nil {
		return report, errors.Wrapf(err, "ReadReport: '%s'", reportPath)
	}
	return report, nil
}

//tempVideoPath reserves a unique '.avi' file in 'directory.temp', so concurrent runs over the same video never share it
func tempVideoPath(outputVideoPath string) (string, error) {
	dir := viper.GetString("directory.temp")
	if dir == "" {
		dir = os.TempDir()
	}

	f, err := os.CreateTemp(dir, utils.BaseName(outputVideoPath)+"-*."+utils.TempVideoExt)
	if err != nil {
		return "", errors.Wrap(err, "Judge: temp video file")
	}
	f.Close()
	return f.Name(), nil
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return lines[len(lines)-1]
}
