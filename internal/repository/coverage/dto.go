package coverage

import "time"

const manifestVersion = 1

// Compression values recorded in the manifest.
const (
	CompressionNone   = "none"
	CompressionSnappy = "snappy"
)

type manifestDTO struct {
	Version     int         `json:"version"`
	Generation  uint64      `json:"generation"`
	Iterations  uint64      `json:"iterations"`
	Timestamp   time.Time   `json:"timestamp"`
	RunID       string      `json:"run_id"`
	Compression string      `json:"compression"`
	Works       []workEntry `json:"works"`
}

type workEntry struct {
	Name   string `json:"name"`
	Key    string `json:"key"`
	Length int    `json:"length"`
}
