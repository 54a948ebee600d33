package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"hazlabel/internal/auth"
	"hazlabel/internal/capture"
	"hazlabel/internal/database"
	"hazlabel/internal/detection"
	"hazlabel/internal/export"
	"hazlabel/internal/pipeline"
	"hazlabel/internal/stream"
	"hazlabel/internal/track"
	"hazlabel/internal/ws"
)

func main() {
	var (
		sourceF     = flag.String("source", "/dev/video0", "Frame source: V4L2 device, rtsp:// or http(s):// URL")
		detectorF   = flag.String("detector-endpoint", "http://localhost:8000", "YOLO inference backend base URL")
		grpcHealthF = flag.String("grpc-health", "", "Optional gRPC health endpoint of the inference sidecar (host:port)")
		httpPortF   = flag.String("http-port", "8080", "Control API port")
		dbF         = flag.String("db", "hazlabel.db", "SQLite database path (empty disables persistence)")
		outputF     = flag.String("output-dir", "exports", "Directory for CSV exports and screenshots")
		confF       = flag.Float64("conf", 0.25, "Confidence threshold")
		iouF        = flag.Float64("iou", 0.45, "IoU threshold for association and NMS")
		trackingF   = flag.Bool("tracking", true, "Enable cross-frame tracking")
		queueF      = flag.Int("queue-depth", 1, "Frame buffer capacity")
		confirmF    = flag.Int("confirm", 2, "Consecutive matches before a track is confirmed")
		graceF      = flag.Int("grace", 5, "Missed frames tolerated before a track is deleted")
		historyF    = flag.Int("history", 300, "Frames of detection history retained in memory")
		fpsF        = flag.Int("fps", 15, "Capture frame rate")
		widthF      = flag.Int("width", 1280, "Capture width")
		heightF     = flag.Int("height", 720, "Capture height")
		autostartF  = flag.Bool("autostart", false, "Start the pipeline immediately")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[hazlabel] ", log.Ltime)

	cfg := pipeline.Config{
		ConfidenceThreshold: float32(*confF),
		IoUThreshold:        float32(*iouF),
		TrackingEnabled:     *trackingF,
		MaxQueueDepth:       *queueF,
		ConfirmationFrames:  *confirmF,
		LostGraceFrames:     *graceF,
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	// Frame source
	var source pipeline.FrameSource
	if capture.IsStillURL(*sourceF) {
		source = capture.NewHTTPStillSource(*sourceF, *fpsF)
	} else {
		source = capture.NewFFmpegSource(*sourceF, *fpsF, *widthF, *heightF)
	}

	// Detector with optional gRPC health probing
	var checker detection.HealthChecker
	if *grpcHealthF != "" {
		c, err := detection.NewGRPCHealthChecker(*grpcHealthF)
		if err != nil {
			logger.Fatalf("gRPC health checker: %v", err)
		}
		checker = c
	}
	detector := detection.NewHTTPDetector(*detectorF, checker)

	controller, err := pipeline.NewController(source, detector, track.NewIoUTracker(), cfg, *historyF)
	if err != nil {
		logger.Fatalf("pipeline: %v", err)
	}

	// Persistence
	var recorder *database.Recorder
	if *dbF != "" {
		db, err := database.New(*dbF)
		if err != nil {
			logger.Fatalf("database: %v", err)
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			logger.Fatalf("database: %v", err)
		}
		recorder = database.NewRecorder(db)
	}

	exporter, err := export.NewExporter(*outputF)
	if err != nil {
		logger.Fatalf("export: %v", err)
	}

	// Live consumers drain the bus on their own goroutines; only the
	// recorder's cheap append runs on the processing worker.
	hub := ws.NewHub()
	hub.Attach(controller.Bus())

	preview := stream.NewMJPEGStream()
	preview.Attach(controller.Bus())

	srv := newServer(serverDeps{
		controller: controller,
		recorder:   recorder,
		exporter:   exporter,
		hub:        hub,
		preview:    preview,
		auth:       auth.NewAuthenticator(),
		source:     *sourceF,
		detector:   detector.Name(),
		logger:     logger,
	})

	errc := make(chan error)

	// Interrupt handler: SIGINT and SIGTERM stop the service gracefully.
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	addr := net.JoinHostPort("", *httpPortF)
	go func() {
		logger.Printf("HTTP server listening on %s", addr)
		errc <- srv.ListenAndServe(addr)
	}()

	if *autostartF {
		if err := srv.startPipeline(); err != nil {
			logger.Printf("autostart failed: %v", err)
		}
	}

	logger.Printf("exiting (%v)", <-errc)

	srv.Shutdown()
	if err := controller.Stop(); err != nil {
		logger.Printf("stop: %v", err)
	}
	detector.Close()
	logger.Println("exited")
}
