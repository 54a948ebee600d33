package design

import (
    . "goa.design/goa/v3/dsl"
)

// API definition
var _ = API("hazlabel", func() {
    Title("HazLabel Detection Service")
    Description("Real-time GHS hazard label detection and tracking over a camera feed")
    Version("1.0")
    Server("hazlabel", func() {
        Host("localhost", func() {
            URI("http://localhost:8080")
        })
    })
})

// Error types
var BadRequestError = Type("BadRequestError", func() {
    Description("Bad request error")
    Field(1, "message", String, "Error message")
    Field(2, "details", String, "Error details")
    Required("message")
})

var ConflictError = Type("ConflictError", func() {
    Description("Operation not valid in the current pipeline state")
    Field(1, "message", String, "Error message")
    Field(2, "state", String, "Current pipeline state")
    Required("message", "state")
})

var InternalError = Type("InternalError", func() {
    Description("Internal server error")
    Field(1, "message", String, "Error message")
    Required("message")
})

// Data types
var PipelineConfig = Type("PipelineConfig", func() {
    Description("Runtime pipeline configuration")
    Field(1, "confidence_threshold", Float32, "Minimum detection confidence (0-1)")
    Field(2, "iou_threshold", Float32, "IoU threshold for association and NMS (0-1)")
    Field(3, "tracking_enabled", Boolean, "Whether cross-frame tracking is active")
    Field(4, "max_queue_depth", Int, "Frame buffer capacity", func() {
        Minimum(1)
    })
    Field(5, "confirmation_frames", Int, "Consecutive matches before a track is confirmed", func() {
        Minimum(1)
    })
    Field(6, "lost_grace_frames", Int, "Missed frames tolerated before a track is deleted", func() {
        Minimum(0)
    })
    Required("confidence_threshold", "iou_threshold", "tracking_enabled",
        "max_queue_depth", "confirmation_frames", "lost_grace_frames")
})

var TrackedDetection = Type("TrackedDetection", func() {
    Description("One tracked detection in a processed frame")
    Field(1, "track_id", Int64, "Stable track identifier")
    Field(2, "class", String, "Detected hazard label class")
    Field(3, "confidence", Float32, "Detection confidence (0-1)")
    Field(4, "bbox", ArrayOf(Float32), "Box corners [x1, y1, x2, y2] in pixels")
    Field(5, "frame_seq", Int64, "Source frame sequence number")
    Required("track_id", "class", "confidence", "bbox", "frame_seq")
})

var FrameDetections = Type("FrameDetections", func() {
    Description("All tracked detections of a single frame")
    Field(1, "frame_seq", Int64, "Frame sequence number")
    Field(2, "timestamp", String, "Capture timestamp", func() {
        Format(FormatDateTime)
    })
    Field(3, "detections", ArrayOf(TrackedDetection), "Tracked detections")
    Required("frame_seq", "timestamp", "detections")
})

var PipelineStats = Type("PipelineStats", func() {
    Description("Pipeline runtime statistics")
    Field(1, "state", String, "Pipeline state", func() {
        Enum("stopped", "starting", "running", "paused", "stopping")
    })
    Field(2, "frames_captured", Int64, "Frames read from the source")
    Field(3, "frames_processed", Int64, "Frames run through detection")
    Field(4, "frames_dropped", Int64, "Frames evicted from the buffer")
    Field(5, "detection_errors", Int64, "Backend failures absorbed")
    Field(6, "active_tracks", Int, "Currently live tracks")
    Field(7, "avg_inference_ms", Float32, "Rolling average inference latency")
    Field(8, "fps", Float32, "Processed frames per second since start")
    Required("state", "frames_captured", "frames_processed", "frames_dropped", "detection_errors")
})

// Pipeline control service
var _ = Service("pipeline", func() {
    Description("Lifecycle and configuration control for the detection pipeline")

    Method("start", func() {
        Description("Open the frame source and begin processing")
        Result(PipelineStats)
        Error("conflict", ConflictError, "Pipeline is not stopped")
        Error("internal", InternalError, "Source failed to open")
        HTTP(func() {
            POST("/api/pipeline/start")
            Response(StatusOK)
            Response("conflict", StatusConflict)
            Response("internal", StatusInternalServerError)
        })
    })

    Method("stop", func() {
        Description("Stop processing and release the source; valid in any state")
        Result(PipelineStats)
        HTTP(func() {
            POST("/api/pipeline/stop")
            Response(StatusOK)
        })
    })

    Method("pause", func() {
        Description("Suspend detection while keeping the source open")
        Result(PipelineStats)
        Error("conflict", ConflictError, "Pipeline is not running")
        HTTP(func() {
            POST("/api/pipeline/pause")
            Response(StatusOK)
            Response("conflict", StatusConflict)
        })
    })

    Method("resume", func() {
        Description("Resume detection after a pause")
        Result(PipelineStats)
        Error("conflict", ConflictError, "Pipeline is not paused")
        HTTP(func() {
            POST("/api/pipeline/resume")
            Response(StatusOK)
            Response("conflict", StatusConflict)
        })
    })

    Method("get_config", func() {
        Description("Return the active pipeline configuration")
        Result(PipelineConfig)
        HTTP(func() {
            GET("/api/pipeline/config")
            Response(StatusOK)
        })
    })

    Method("update_config", func() {
        Description("Atomically replace the pipeline configuration; rejected values leave the prior config active")
        Payload(PipelineConfig)
        Result(PipelineConfig)
        Error("bad_request", BadRequestError, "Validation failed")
        HTTP(func() {
            PUT("/api/pipeline/config")
            Response(StatusOK)
            Response("bad_request", StatusBadRequest)
        })
    })

    Method("stats", func() {
        Description("Return runtime counters and the current state")
        Result(PipelineStats)
        HTTP(func() {
            GET("/api/pipeline/stats")
            Response(StatusOK)
        })
    })
})

// Results service
var _ = Service("results", func() {
    Description("Access to the latest detections and rolling history")

    Method("latest", func() {
        Description("Return the most recently processed frame's detections")
        Result(FrameDetections)
        HTTP(func() {
            GET("/api/results")
            Response(StatusOK)
        })
    })

    Method("history", func() {
        Description("Return the rolling history of processed frames, oldest first")
        Result(ArrayOf(FrameDetections))
        HTTP(func() {
            GET("/api/results/history")
            Response(StatusOK)
        })
    })

    Method("export", func() {
        Description("Write the rolling history to a CSV file on the server")
        Result(String, "Path of the written file")
        Error("internal", InternalError, "Export failed")
        HTTP(func() {
            POST("/api/export")
            Response(StatusOK)
            Response("internal", StatusInternalServerError)
        })
    })
})

// Health check service
var _ = Service("health", func() {
    Description("Health check endpoints for probes")

    Method("healthz", func() {
        Description("Liveness probe endpoint - indicates if the service is alive")
        Result(Empty)
        HTTP(func() {
            GET("/healthz")
            Response(StatusOK)
        })
    })
})
