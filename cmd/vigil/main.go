package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vigil/internal/capture"
	"vigil/internal/config"
	"vigil/internal/database"
	"vigil/internal/dedup"
	"vigil/internal/describe"
	"vigil/internal/detect"
	"vigil/internal/logger"
	"vigil/internal/motion"
	"vigil/internal/pipeline"
	"vigil/internal/storage"
)

const (
	exitOK              = 0
	exitRuntime         = 1
	exitBadConfig       = 2
	exitStorageExceeded = 3
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vigil: invalid configuration: %v\n", err)
		return exitBadConfig
	}

	log, err := logger.New(logger.ParseLevel(cfg.Log.Verbosity), cfg.Log.Directory)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vigil: %v\n", err)
		return exitRuntime
	}
	defer log.Close()

	log.Info("vigil starting, camera %s (%s)", cfg.Camera.ID, cfg.Camera.URL)

	db, err := database.New(cfg.Storage.DatabasePath)
	if err != nil {
		log.Error("open database: %v", err)
		return exitRuntime
	}
	defer db.Close()

	source := capture.NewFFmpegSource(cfg.Camera.URL, cfg.Camera.FPS)
	client := capture.NewClient(source, capture.Options{
		CameraID:               cfg.Camera.ID,
		ConnectTimeout:         cfg.Camera.ConnectTimeout,
		MaxConsecutiveFailures: cfg.Camera.MaxConsecutiveFailures,
		MaxBackoff:             cfg.Camera.MaxBackoff,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := client.Connect(ctx); err != nil {
		log.Error("camera connect: %v", err)
		return exitRuntime
	}
	client.Start()
	defer func() {
		if err := client.Stop(shutdownTimeout); err != nil {
			log.Warn("capture stop: %v", err)
		}
	}()

	monitor := storage.NewMonitor(cfg.Storage.Root, cfg.Storage.MaxGB, cfg.Storage.CheckIntervalEvents, log)
	rotator := storage.NewRotator(cfg.Storage.Root, monitor.LimitBytes(), cfg.Storage.MinRetentionDays, log)

	orch := pipeline.New(pipeline.Deps{
		CameraID: cfg.Camera.ID,
		Frames:   client,
		Gate: motion.NewGate(
			motion.NewRunningAverage(0.05, cfg.Motion.PixelDelta),
			cfg.Motion.Sensitivity,
			cfg.Motion.LearningFrames,
		),
		Sampler:   pipeline.NewSampler(cfg.Motion.SamplingRate),
		Filter:    detect.NewFilter(cfg.Detector.ConfidenceFloor, cfg.Detector.Blacklist),
		Detector:  detect.NewHTTPDetector(cfg.Detector.Endpoint),
		Describer: describe.NewOllamaDescriber(cfg.Describer.Endpoint, cfg.Describer.Model, cfg.Describer.Timeout),
		Dedup:     dedup.New(time.Duration(cfg.Dedup.WindowSeconds) * time.Second),
		Writer:    storage.NewWriter(cfg.Storage.Root),
		Store:     db,
		Monitor:   monitor,
		Rotator:   rotator,
		Log:       log,
	})

	if err := orch.Run(ctx); err != nil {
		if errors.Is(err, pipeline.ErrStorageExhausted) {
			log.Error("storage quota exhausted, stopping: %v", err)
			return exitStorageExceeded
		}
		log.Error("pipeline: %v", err)
		return exitRuntime
	}

	log.Info("vigil stopped")
	return exitOK
}
