package task

import (
	"time"

	"videotoolbox/youtube"
)

type Kind string

const (
	KindConvert    Kind = "convert"
	KindTrim       Kind = "trim"
	KindScreenshot Kind = "screenshot"
	KindCompress   Kind = "compress"
	KindDownload   Kind = "download"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Task tracks one asynchronous media operation. The kind-specific parameter
// fields are set at submission time and never mutated afterwards; only the
// executor that owns the task writes Status, Progress, Error and OutputPath.
type Task struct {
	ID       string    `json:"id"`
	Kind     Kind      `json:"-"`
	Status   Status    `json:"status"`
	Progress int       `json:"progress"`
	Error    string    `json:"error,omitempty"`
	Created  time.Time `json:"created"`

	// OutputPath is relative to the public uploads root and only set once
	// the operation completed.
	OutputPath string `json:"outputPath,omitempty"`

	InputFile        string               `json:"inputFile,omitempty"`
	OutputFormat     string               `json:"outputFormat,omitempty"`
	StartTime        float64              `json:"startTime,omitempty"`
	EndTime          float64              `json:"endTime,omitempty"`
	Timestamp        float64              `json:"timestamp,omitempty"`
	ImageFormat      string               `json:"format,omitempty"`
	Quality          string               `json:"quality,omitempty"`
	CompressionLevel string               `json:"compressionLevel,omitempty"`
	Resolution       string               `json:"resolution,omitempty"`
	URL              string               `json:"url,omitempty"`
	Encoding         *youtube.VideoFormat `json:"encoding,omitempty"`
	OutputSize       int64                `json:"outputSize,omitempty"`
}

// Key builds the registry key for a task. Ids are globally unique, the kind
// prefix exists so lookups and listings can be scoped per operation.
func Key(kind Kind, id string) string {
	return string(kind) + ":" + id
}
