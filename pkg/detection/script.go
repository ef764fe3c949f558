package detection

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

//scriptObject is one detection line printed by the detection script, e.g.
//{"Class":"Batter","Confidence":0.91,"Xmin":410,"Ymin":120,"Xmax":530,"Ymax":460}
type scriptObject struct {
	Class      string
	Confidence float64
	Xmin       float64
	Ymin       float64
	Xmax       float64
	Ymax       float64
}

//ScriptDetector runs an external detection script over the whole video and hands out its output frame by frame.
//The script reads the video on its own, so frames come out in the same order the video source reads them.
//
//Expected script output: a "Frame #: N" line opens every frame, followed by one JSON line per object.
//"FPS: ..." lines are ignored, a single "EOF" line ends the stream.
type ScriptDetector struct {
	cmd    *exec.Cmd
	frames chan []Detection

	stop   chan struct{} //closed by Close, unblocks the parser
	waited chan struct{} //closed once the script's process was reaped

	once      sync.Once
	exhausted bool
}

//StartScript starts 'interpreter script --video videoPath' and begins parsing its standard output
func StartScript(ctx context.Context, interpreter, script, videoPath string) (*ScriptDetector, error) {
	cmd := exec.CommandContext(ctx, interpreter, script, "--video", videoPath)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "StartScript: stdout pipe")
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "StartScript: could not start '%s'", script)
	}

	d := &ScriptDetector{
		cmd:    cmd,
		frames: make(chan []Detection, 64),
		stop:   make(chan struct{}),
		waited: make(chan struct{}),
	}

	go func() {
		defer close(d.waited)

		ParseScriptOutput(stdout, d.frames, d.stop)
		if err := cmd.Wait(); err != nil {
			select {
			case <-d.stop: //killed by Close
				glog.V(1).Infof("ScriptDetector: script '%s' stopped, got '%v'", script, err)
			default:
				glog.Warningf("ScriptDetector: Error waiting script's process, got '%v'", err)
			}
		}
	}()

	return d, nil
}

//Detect returns the detections of the next frame. The frame content itself is ignored.
//Once the script has no more frames every call returns an empty set.
func (d *ScriptDetector) Detect(ctx context.Context) ([]Detection, error) {
	if d.exhausted {
		return nil, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case dets, ok := <-d.frames:
		if !ok {
			d.exhausted = true
			glog.Warningf("ScriptDetector: script output ended before the video did")
			return nil, nil
		}
		return dets, nil
	}
}

//Close stops the parser, kills the script if it is still running and waits until its process is reaped
func (d *ScriptDetector) Close() error {
	var err error
	d.once.Do(func() {
		close(d.stop)

		select {
		case <-d.waited:
		default:
			if kerr := d.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
				err = errors.Wrap(kerr, "ScriptDetector: kill")
			}
		}
		<-d.waited
	})
	return err
}

//ParseScriptOutput reads the script's output and sends one detection slice per frame.
//It returns early once stopC is closed. Because this function is the only one who writes to the given chan,
//it closes it before returning.
func ParseScriptOutput(r io.Reader, framesC chan<- []Detection, stopC <-chan struct{}) {
	defer close(framesC)

	var current []Detection
	open := false

	send := func() bool {
		select {
		case framesC <- current:
			return true
		case <-stopC:
			return false
		}
	}
	flush := func() bool {
		if open && !send() {
			return false
		}
		current = make([]Detection, 0)
		open = true
		return true
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case strings.HasPrefix(line, "Frame #:"):
			if !flush() {
				return
			}
		case line == "EOF":
			if open {
				send()
			}
			return
		case strings.HasPrefix(line, "FPS:"), line == "":
			//log print, skip it
		case strings.HasPrefix(line, "{"):
			obj := scriptObject{}
			if err := json.Unmarshal([]byte(line), &obj); err != nil {
				glog.Warningf("ParseScriptOutput: Error, got '%v'", err)
				continue
			}
			if !open { //objects before the first frame marker belong to the first frame
				flush()
			}
			current = append(current, Detection{
				Class:      obj.Class,
				Confidence: obj.Confidence,
				Box:        Box{XMin: obj.Xmin, YMin: obj.Ymin, XMax: obj.Xmax, YMax: obj.Ymax},
			})
		default:
			glog.V(2).Infof("ParseScriptOutput: skipping line '%s'", line)
		}
	}

	if err := scanner.Err(); err != nil {
		glog.Warningf("ParseScriptOutput: Error, got '%v'", err)
	}
	if open {
		send()
	}
}
