package api

import (
	"net/http"
	"net/url"
	"time"

	"github.com/chenBenjamin97/strike-zone/pkg/umpire"
	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

const (
	//time allowed to write a message to the peer
	writeWait = 10 * time.Second

	//ping period, the browser answers with pongs which keep the connection alive through proxies
	pingPeriod = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

const (
	MsgTypeVerdict = "verdict"
	MsgTypeDone    = "done"
	MsgTypeLagged  = "lagged"
)

//LiveMessage is what /api/Live pushes: one "verdict" message per verdict, then a single "done" message.
//A client too slow to keep up gets "lagged" instead of "done" while the job still runs, it can poll /api/Jobs/:id.
type LiveMessage struct {
	Type    string          `json:"type"`
	Verdict *umpire.Verdict `json:"verdict,omitempty"`
	Status  JobStatus       `json:"status,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (s *server) live(ctx *gin.Context) {
	job, ok := s.jobs.Get(ctx.Param("id"))
	if !ok {
		ctx.Status(http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		glog.Warningf("api/Live: Could not upgrade connection, got '%v'", err)
		return
	}
	defer conn.Close()

	past, verdictsC, unsubscribe := job.Subscribe()
	defer unsubscribe()

	send := func(msg LiveMessage) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(msg)
	}

	for i := range past {
		if err := send(LiveMessage{Type: MsgTypeVerdict, Verdict: &past[i]}); err != nil {
			return
		}
	}

	//the client never talks, reading only notices it went away
	goneC := make(chan struct{})
	go func() {
		defer close(goneC)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case v, ok := <-verdictsC:
			if !ok {
				send(closingMessage(job.View()))
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := send(LiveMessage{Type: MsgTypeVerdict, Verdict: &v}); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-goneC:
			return
		}
	}
}

//closingMessage is the last message of a live feed, the subscription ended either with the job or because the client lagged
func closingMessage(view JobView) LiveMessage {
	if view.Status == JobRunning {
		return LiveMessage{Type: MsgTypeLagged, Status: view.Status, Error: "client fell behind, live verdicts stopped"}
	}
	return LiveMessage{Type: MsgTypeDone, Status: view.Status, Error: view.Error}
}
