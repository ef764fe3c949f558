package detection

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		det  Detection
		ok   bool
	}{
		{"normal", Detection{Confidence: 0.5, Box: Box{0, 0, 10, 10}}, true},
		{"inverted x", Detection{Confidence: 0.5, Box: Box{10, 0, 0, 10}}, false},
		{"zero height", Detection{Confidence: 0.5, Box: Box{0, 5, 10, 5}}, false},
		{"nan", Detection{Confidence: 0.5, Box: Box{math.NaN(), 0, 10, 10}}, false},
		{"confidence above one", Detection{Confidence: 1.5, Box: Box{0, 0, 10, 10}}, false},
		{"negative confidence", Detection{Confidence: -0.1, Box: Box{0, 0, 10, 10}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.det.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	dets := []Detection{
		{Class: "a", Confidence: 0.9, Box: Box{0, 0, 10, 10}},
		{Class: "b", Confidence: 0.9, Box: Box{10, 10, 0, 0}},
		{Class: "c", Confidence: 0.1, Box: Box{0, 0, 10, 10}},
		{Class: "d", Confidence: 0.4, Box: Box{0, 0, 10, 10}},
	}

	kept, malformed := Sanitize(dets, 0.3)
	if malformed != 1 {
		t.Errorf("malformed = %d, want 1", malformed)
	}
	if len(kept) != 2 || kept[0].Class != "a" || kept[1].Class != "d" {
		t.Errorf("kept = %+v, want [a d]", kept)
	}
}

func TestIoU(t *testing.T) {
	a := Box{0, 0, 10, 10}
	if got := a.IoU(a); got != 1 {
		t.Errorf("IoU(self) = %v, want 1", got)
	}
	if got := a.IoU(Box{20, 20, 30, 30}); got != 0 {
		t.Errorf("IoU(disjoint) = %v, want 0", got)
	}
	// half overlap: inter 50, union 150
	if got := a.IoU(Box{5, 0, 15, 10}); math.Abs(got-1.0/3.0) > 1e-9 {
		t.Errorf("IoU(half) = %v, want 1/3", got)
	}
}

func TestLabelMap(t *testing.T) {
	m := DefaultLabelMap()

	tests := map[string]Label{
		"Baseball_ball": Ball,
		"sports ball":   Ball,
		"BALL":          Ball,
		"Batter":        Batter,
		"catcher":       Catcher,
		"Umpire":        Umpire,
		"Home_plate":    HomePlate,
		"person":        Other,
	}
	for class, want := range tests {
		if got := m.Lookup(class); got != want {
			t.Errorf("Lookup(%q) = %v, want %v", class, got, want)
		}
	}

	custom := NewLabelMap([]string{"pelota"}, nil, nil, nil, nil)
	if custom.Lookup("Baseball_ball") != Other {
		t.Error("custom map should not know the default ball label")
	}
	if custom.Lookup("pelota") != Ball {
		t.Error("custom map should map pelota to Ball")
	}
}

func TestParseScriptOutput(t *testing.T) {
	out := strings.Join([]string{
		"loading model",
		"Frame #: 1",
		`{"Class":"Batter","Confidence":0.9,"Xmin":100,"Ymin":100,"Xmax":200,"Ymax":300}`,
		`{"Class":"Baseball_ball","Confidence":0.8,"Xmin":10,"Ymin":10,"Xmax":20,"Ymax":20}`,
		"FPS: 24.1",
		"Frame #: 2",
		"Frame #: 3",
		`{"Class":"Catcher","Confidence":0.7,"Xmin":1,"Ymin":1,"Xmax":2,"Ymax":2}`,
		"EOF",
		"Frame #: 4",
	}, "\n")

	framesC := make(chan []Detection, 10)
	ParseScriptOutput(strings.NewReader(out), framesC, nil)

	var frames [][]Detection
	for f := range framesC {
		frames = append(frames, f)
	}

	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	if len(frames[0]) != 2 || frames[0][1].Class != "Baseball_ball" || frames[0][1].Box.XMax != 20 {
		t.Errorf("frame 1 = %+v", frames[0])
	}
	if len(frames[1]) != 0 {
		t.Errorf("frame 2 should be empty, got %+v", frames[1])
	}
	if len(frames[2]) != 1 || frames[2][0].Class != "Catcher" {
		t.Errorf("frame 3 = %+v", frames[2])
	}
}

func TestParseScriptOutput_NoEOF(t *testing.T) {
	out := "Frame #: 1\n{\"Class\":\"Batter\",\"Confidence\":0.9,\"Xmin\":1,\"Ymin\":1,\"Xmax\":2,\"Ymax\":2}\n"

	framesC := make(chan []Detection, 10)
	ParseScriptOutput(strings.NewReader(out), framesC, nil)

	n := 0
	for range framesC {
		n++
	}
	if n != 1 {
		t.Errorf("got %d frames, want 1", n)
	}
}

func TestParseScriptOutput_Stop(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 100; i++ {
		fmt.Fprintf(&b, "Frame #: %d\n", i)
	}

	framesC := make(chan []Detection)
	stopC := make(chan struct{})
	returned := make(chan struct{})
	go func() {
		ParseScriptOutput(strings.NewReader(b.String()), framesC, stopC)
		close(returned)
	}()

	<-framesC
	close(stopC)

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("ParseScriptOutput() kept blocking after stop")
	}
	for range framesC {
	}
}

//writeScript writes a shell script for StartScript, skipping the test where there is no shell
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no sh in PATH")
	}
	p := filepath.Join(t.TempDir(), "detect.sh")
	if err := os.WriteFile(p, []byte(body), 0755); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestScriptDetector_CloseMidVideo(t *testing.T) {
	script := writeScript(t, `i=1
while [ $i -le 300 ]; do
  echo "Frame #: $i"
  echo '{"Class":"Batter","Confidence":0.9,"Xmin":1,"Ymin":1,"Xmax":2,"Ymax":2}'
  i=$((i+1))
done
echo EOF
`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d, err := StartScript(ctx, "sh", script, "pitch.mp4")
	if err != nil {
		t.Fatalf("StartScript() = %v", err)
	}

	dets, err := d.Detect(ctx)
	if err != nil || len(dets) != 1 {
		t.Fatalf("Detect() = %+v, %v", dets, err)
	}

	closed := make(chan error)
	go func() { closed <- d.Close() }()
	select {
	case err := <-closed:
		if err != nil {
			t.Errorf("Close() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close() did not return, the parser is stuck")
	}

	select {
	case <-d.waited:
	default:
		t.Error("the script's process was not reaped")
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestScriptDetector_EndOfVideo(t *testing.T) {
	script := writeScript(t, `echo "Frame #: 1"
echo '{"Class":"Baseball_ball","Confidence":0.8,"Xmin":10,"Ymin":10,"Xmax":20,"Ymax":20}'
echo EOF
`)

	ctx := context.Background()
	d, err := StartScript(ctx, "sh", script, "pitch.mp4")
	if err != nil {
		t.Fatalf("StartScript() = %v", err)
	}

	if dets, _ := d.Detect(ctx); len(dets) != 1 || dets[0].Class != "Baseball_ball" {
		t.Errorf("first Detect() = %+v", dets)
	}
	if dets, err := d.Detect(ctx); dets != nil || err != nil {
		t.Errorf("Detect() after the script's EOF = %+v, %v", dets, err)
	}

	<-d.waited //the script exited on its own
	if err := d.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestHTTPDetector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, _, err := r.FormFile("file"); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"detections": []map[string]interface{}{
				{"class": "sports ball", "confidence": 0.6, "box": map[string]float64{"xmin": 1, "ymin": 2, "xmax": 3, "ymax": 4}},
				{"class": "Batter", "confidence": 0.9, "box": map[string]float64{"xmin": 10, "ymin": 20, "xmax": 30, "ymax": 40}},
			},
		})
	}))
	defer srv.Close()

	d := NewHTTPDetector(srv.URL+"/predict", time.Second)
	ctx := context.Background()

	if err := d.CheckHealth(ctx); err != nil {
		t.Fatalf("CheckHealth() = %v", err)
	}

	dets, err := d.Detect(ctx, []byte{0xff, 0xd8})
	if err != nil {
		t.Fatalf("Detect() = %v", err)
	}
	if len(dets) != 2 {
		t.Fatalf("got %d detections, want 2", len(dets))
	}
	if dets[0].Class != "sports ball" || dets[0].Confidence != 0.6 || dets[0].Box.YMax != 4 {
		t.Errorf("dets[0] = %+v", dets[0])
	}
	if dets[1].Class != "Batter" || dets[1].Box.XMin != 10 {
		t.Errorf("dets[1] = %+v", dets[1])
	}
}

func TestHTTPDetector_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewHTTPDetector(srv.URL+"/predict", time.Second)
	if _, err := d.Detect(context.Background(), []byte{1}); err == nil {
		t.Error("Detect() should fail on 500")
	}
}
