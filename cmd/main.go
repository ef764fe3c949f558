package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/chenBenjamin97/strike-zone/pkg/api"
	"github.com/chenBenjamin97/strike-zone/pkg/utils"
	"github.com/chenBenjamin97/strike-zone/pkg/video"
	"github.com/golang/glog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	configPath := pflag.String("config", "", "config file path (default ./config.yaml)")
	videoPath := pflag.String("video", "", "judge this video and exit instead of serving HTTP")
	outPath := pflag.String("out", "", "annotated output video path (with --video)")
	pflag.String("port", "", "HTTP port, overrides http.port")

	//glog registers it's flags on the go flag set
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()
	flag.CommandLine.Parse(nil) //silence glog's "logging before flag.Parse"
	defer glog.Flush()

	utils.SetDefaults()
	viper.BindPFlag("http.port", pflag.Lookup("port"))

	if *configPath != "" {
		viper.SetConfigFile(*configPath)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || *videoPath == "" {
			glog.Fatalf("Error: Could not read config file, got '%v'", err)
		}
		glog.Warningf("No config file found, using defaults")
	}

	if _, err := utils.EngineConfig(); err != nil {
		glog.Fatalf("Error: Bad umpire configuration, got '%v'", err)
	}

	if *videoPath != "" {
		os.Exit(judgeOne(*videoPath, *outPath))
	}

	//first - create project's data root dir
	if root := viper.GetString("directory.root"); root != "" {
		if err := os.MkdirAll(root, 0766); err != nil {
			glog.Errorf("Error Creating '%s' directory, got '%v'", root, err)
		}
	}

	//create missing directories from config file
	for _, dir := range viper.GetStringMapString("directory") {
		if err := os.MkdirAll(dir, 0766); err != nil {
			glog.Errorf("Error Creating '%s' directory, got '%v'", dir, err)
		}
	}

	if viper.GetString("video.prod_format") == "" || viper.GetString("directory.source") == "" || viper.GetString("directory.ready") == "" {
		glog.Fatalf("Error: Missing critical configurations")
	}

	r := api.SetRouter(video.Tag)
	if err := r.Run(":" + viper.GetString("http.port")); err != nil {
		glog.Fatalf("Error: Got '%v'", err)
	}
}

//judgeOne processes a single video from the command line and prints it's verdicts as JSON
func judgeOne(videoPath, outPath string) int {
	if outPath == "" {
		outPath = utils.BaseName(videoPath) + "_judged." + viper.GetString("video.prod_format")
	}

	cfg, err := utils.EngineConfig()
	if err != nil {
		glog.Errorf("Error: got '%v'", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := video.Judge(ctx, videoPath, outPath, video.Options{
		Engine:       cfg,
		OutputWidth:  viper.GetInt("video.output_width"),
		OutputHeight: viper.GetInt("video.output_height"),
	})
	if err != nil {
		glog.Errorf("Error: Could not judge '%s', got '%v'", videoPath, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(report)

	if err != nil {
		return 1
	}
	return 0
}
