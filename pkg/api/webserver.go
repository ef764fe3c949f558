package api

import (
	"io/ioutil"
	"net/http"
	"os"
	"path"
	"strconv"

	"github.com/chenBenjamin97/strike-zone/pkg/umpire"
	"github.com/chenBenjamin97/strike-zone/pkg/utils"
	"github.com/chenBenjamin97/strike-zone/pkg/video"
	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
	"github.com/spf13/viper"
)

type server struct {
	judge JudgeFunc
	jobs  *Jobs
}

//SetRouter builds the web server. judge processes uploaded videos, pass video.Tag in production.
func SetRouter(judge JudgeFunc) *gin.Engine {
	s := &server{judge: judge, jobs: NewJobs()}
	r := gin.Default()

	//serve html pages to client
	if static := viper.GetString("frontend.static-files-path"); static != "" {
		r.Static("/client", static)
		r.StaticFile("/", static+"home_page/dist/index.html")
	}

	apiRoutes := r.Group("/api")

	apiRoutes.GET("/ReadyVideosNames", func(ctx *gin.Context) {
		if names, err := utils.ListDir(viper.GetString("directory.ready")); err != nil {
			ctx.Status(http.StatusInternalServerError)
		} else {
			ctx.JSON(http.StatusOK, names)
		}
	})

	apiRoutes.GET("/UserUploadsVideosNames", func(ctx *gin.Context) {
		if names, err := utils.ListDir(viper.GetString("directory.source")); err != nil {
			ctx.Status(http.StatusInternalServerError)
		} else {
			ctx.JSON(http.StatusOK, names)
		}
	})

	apiRoutes.GET("/Play", s.play)
	apiRoutes.POST("/Upload", s.upload)
	apiRoutes.POST("/Process", s.process)
	apiRoutes.GET("/Verdicts", s.verdicts)
	apiRoutes.GET("/Jobs/:id", s.job)
	apiRoutes.GET("/Live/:id", s.live)

	return r
}

func (s *server) play(ctx *gin.Context) {
	videoName := ctx.Query("name")
	if videoName == "" || !utils.SafeName(videoName) {
		ctx.Status(http.StatusNotAcceptable) //missing url parameter
		return
	}

	analyzed := ctx.Query("analyzed")
	if analyzed != "true" && analyzed != "false" {
		ctx.Status(http.StatusNotAcceptable) //missing url parameter
		return
	}

	var videoPath string
	if analyzed == "true" {
		videoPath = path.Join(viper.GetString("directory.ready"), videoName+"."+viper.GetString("video.prod_format"))
	} else {
		videoPath = path.Join(viper.GetString("directory.source"), videoName+"."+viper.GetString("video.prod_format"))
	}

	if _, err := os.Stat(videoPath); err != nil {
		if os.IsNotExist(err) {
			ctx.Status(http.StatusNotFound)
		} else {
			ctx.Status(http.StatusInternalServerError)
		}
		return
	}

	ctx.Header("Content-Type", "video/mp4")
	http.ServeFile(ctx.Writer, ctx.Request, videoPath)
}

//upload saves the video to the source directory and starts judging it in the background
func (s *server) upload(ctx *gin.Context) {
	file, fHeader, err := ctx.Request.FormFile("video")
	if err != nil {
		ctx.Status(http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !utils.SafeName(fHeader.Filename) {
		ctx.Status(http.StatusNotAcceptable)
		return
	}

	if existNames, err := utils.ListDir(viper.GetString("directory.source")); err != nil {
		ctx.Status(http.StatusInternalServerError)
		return
	} else if utils.InSlice(fHeader.Filename, existNames) {
		ctx.Status(http.StatusNotAcceptable)
		return
	}

	opts, err := judgeOptions(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	glog.Infof("api/Upload: Recived new file: name - '%s', size - %v Bytes", fHeader.Filename, fHeader.Size)

	fileBytes, err := ioutil.ReadAll(file)
	if err != nil {
		glog.Errorf("api/Upload: Could not read request's body, got '%v'", err)
		ctx.Status(http.StatusInternalServerError)
		return
	}

	srcFilePath := path.Join(viper.GetString("directory.source"), fHeader.Filename)
	if err = ioutil.WriteFile(srcFilePath, fileBytes, 0444); err != nil {
		glog.Errorf("api/Upload: Could not write '%s' file, got '%v'", srcFilePath, err)
		ctx.Status(http.StatusInternalServerError)
		return
	}

	job, err := s.jobs.Start(s.judge, fHeader.Filename, opts)
	if err != nil {
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusAccepted, gin.H{"id": job.ID})
}

//process judges an already uploaded video and answers with its report once done
func (s *server) process(ctx *gin.Context) {
	videoName := ctx.Query("name")
	if videoName == "" || !utils.SafeName(videoName) {
		ctx.Status(http.StatusNotAcceptable) //missing url parameter
		return
	}

	if _, err := os.Stat(path.Join(viper.GetString("directory.source"), videoName)); err != nil {
		if os.IsNotExist(err) {
			ctx.Status(http.StatusNotFound)
		} else {
			ctx.Status(http.StatusInternalServerError)
		}
		return
	}

	opts, err := judgeOptions(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := s.jobs.Run(ctx.Request.Context(), s.judge, videoName, opts)
	if err == ErrVideoBusy {
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		glog.Errorf("api/Process: Error judging '%s', got '%v'", videoName, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, report)
}

//verdicts serves the saved verdicts of a judged video, name is without extension
func (s *server) verdicts(ctx *gin.Context) {
	videoName := ctx.Query("name")
	if videoName == "" || !utils.SafeName(videoName) {
		ctx.Status(http.StatusNotAcceptable) //missing url parameter
		return
	}

	report, err := video.ReadReport(path.Join(viper.GetString("directory.ready"), videoName+utils.VerdictsFileSuffix))
	if err != nil {
		if os.IsNotExist(err) {
			ctx.Status(http.StatusNotFound)
		} else {
			glog.Errorf("api/Verdicts: got '%v'", err)
			ctx.Status(http.StatusInternalServerError)
		}
		return
	}
	ctx.JSON(http.StatusOK, report)
}

func (s *server) job(ctx *gin.Context) {
	job, ok := s.jobs.Get(ctx.Param("id"))
	if !ok {
		ctx.Status(http.StatusNotFound)
		return
	}
	ctx.JSON(http.StatusOK, job.View())
}

//judgeOptions starts from the configured engine and applies the request's overrides
func judgeOptions(ctx *gin.Context) (video.Options, error) {
	opts := video.Options{
		OutputWidth:  viper.GetInt("video.output_width"),
		OutputHeight: viper.GetInt("video.output_height"),
	}

	cfg, err := utils.EngineConfig()
	if err != nil {
		return opts, err
	}

	overrides := []struct {
		key string
		set func(float64)
	}{
		{"zone_top_ratio", func(v float64) { cfg.ZoneTopRatio = v }},
		{"zone_bottom_ratio", func(v float64) { cfg.ZoneBottomRatio = v }},
		{"dropout_threshold_seconds", func(v float64) { cfg.DropoutThreshold = umpire.Seconds(v) }},
		{"display_window_seconds", func(v float64) { cfg.DisplayWindow = umpire.Seconds(v) }},
	}
	for _, o := range overrides {
		raw, ok := ctx.GetQuery(o.key)
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return opts, err
		}
		o.set(v)
	}

	if err := cfg.Validate(); err != nil {
		return opts, err
	}
	opts.Engine = cfg
	return opts, nil
}
