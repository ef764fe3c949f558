package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chenBenjamin97/strike-zone/pkg/umpire"
	"github.com/chenBenjamin97/strike-zone/pkg/video"
	"github.com/golang/glog"
	"github.com/google/uuid"
)

//JudgeFunc judges a video from the source directory, video.Tag in production
type JudgeFunc func(ctx context.Context, srcVideoName string, opts video.Options) (video.Report, error)

type JobStatus string

const (
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

//subscriberBuffer is how many verdicts a slow live client may lag behind before it is dropped
const subscriberBuffer = 64

//Job is one background judging of an uploaded video
type Job struct {
	ID      string
	Video   string
	Started time.Time

	mu       sync.Mutex
	status   JobStatus
	err      error
	verdicts []umpire.Verdict
	subs     map[chan umpire.Verdict]struct{}
}

//JobView is the JSON form of a job
type JobView struct {
	ID       string           `json:"id"`
	Video    string           `json:"video"`
	Status   JobStatus        `json:"status"`
	Error    string           `json:"error,omitempty"`
	Started  time.Time        `json:"started"`
	Verdicts []umpire.Verdict `json:"verdicts"`
}

func (j *Job) View() JobView {
	j.mu.Lock()
	defer j.mu.Unlock()

	v := JobView{
		ID:       j.ID,
		Video:    j.Video,
		Status:   j.status,
		Started:  j.Started,
		Verdicts: append([]umpire.Verdict{}, j.verdicts...),
	}
	if j.err != nil {
		v.Error = j.err.Error()
	}
	return v
}

//Subscribe returns the verdicts emitted so far and a channel carrying the following ones.
//The channel is closed when the job ends, or early if the subscriber falls too far behind.
func (j *Job) Subscribe() ([]umpire.Verdict, <-chan umpire.Verdict, func()) {
	j.mu.Lock()
	defer j.mu.Unlock()

	past := append([]umpire.Verdict{}, j.verdicts...)
	c := make(chan umpire.Verdict, subscriberBuffer)
	if j.status != JobRunning {
		close(c)
		return past, c, func() {}
	}

	j.subs[c] = struct{}{}
	unsubscribe := func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		if _, ok := j.subs[c]; ok {
			delete(j.subs, c)
			close(c)
		}
	}
	return past, c, unsubscribe
}

func (j *Job) publish(v umpire.Verdict) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.verdicts = append(j.verdicts, v)
	for c := range j.subs {
		select {
		case c <- v:
		default:
			glog.Warningf("Job %s: live subscriber is too slow, dropping it", j.ID)
			delete(j.subs, c)
			close(c)
		}
	}
}

func (j *Job) finish(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.status = JobDone
	if err != nil {
		j.status = JobFailed
		j.err = err
	}
	for c := range j.subs {
		delete(j.subs, c)
		close(c)
	}
}

//ErrVideoBusy is returned when the video is already being judged, both runs would write the same outputs
var ErrVideoBusy = errors.New("video is already being judged")

//Jobs keeps every job started since the server came up, and which videos are being judged right now
type Jobs struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	busy map[string]struct{}
}

func NewJobs() *Jobs {
	return &Jobs{jobs: make(map[string]*Job), busy: make(map[string]struct{})}
}

//acquire marks srcVideoName as being judged, false if it already is
func (js *Jobs) acquire(srcVideoName string) bool {
	js.mu.Lock()
	defer js.mu.Unlock()
	if _, ok := js.busy[srcVideoName]; ok {
		return false
	}
	js.busy[srcVideoName] = struct{}{}
	return true
}

func (js *Jobs) release(srcVideoName string) {
	js.mu.Lock()
	defer js.mu.Unlock()
	delete(js.busy, srcVideoName)
}

//Run judges srcVideoName in the calling goroutine, unless it is already being judged
func (js *Jobs) Run(ctx context.Context, judge JudgeFunc, srcVideoName string, opts video.Options) (video.Report, error) {
	if !js.acquire(srcVideoName) {
		return video.Report{}, ErrVideoBusy
	}
	defer js.release(srcVideoName)

	return judge(ctx, srcVideoName, opts)
}

//Start judges srcVideoName in the background and returns its job, unless the video is already being judged
func (js *Jobs) Start(judge JudgeFunc, srcVideoName string, opts video.Options) (*Job, error) {
	if !js.acquire(srcVideoName) {
		return nil, ErrVideoBusy
	}

	job := &Job{
		ID:      uuid.New().String(),
		Video:   srcVideoName,
		Started: time.Now(),
		status:  JobRunning,
		subs:    make(map[chan umpire.Verdict]struct{}),
	}

	js.mu.Lock()
	js.jobs[job.ID] = job
	js.mu.Unlock()

	opts.OnVerdict = job.publish

	go func() {
		_, err := judge(context.Background(), srcVideoName, opts)
		if err != nil {
			glog.Errorf("Job %s: Error judging '%s', got '%v'", job.ID, srcVideoName, err)
		}
		js.release(srcVideoName) //before finish, a client seeing the job done may judge the video again
		job.finish(err)
	}()

	return job, nil
}

func (js *Jobs) Get(id string) (*Job, bool) {
	js.mu.RLock()
	defer js.mu.RUnlock()
	job, ok := js.jobs[id]
	return job, ok
}
