package security

import "time"

const (
	MaxTextLength     = 100000
	MaxFileSize       = 10 * 1024 * 1024
	MaxBatchSize      = 100
	RateLimitRequests = 10
	RateLimitWindow   = 60 * time.Second
)

// AllowedExtensions are the file types the analysis service accepts.
var AllowedExtensions = []string{".txt", ".csv", ".pdf", ".md", ".srt"}

// Limits bundles the client-side constraints checked before any request.
type Limits struct {
	MaxTextLength     int
	MaxFileSize       int64
	MaxBatchSize      int
	AllowedExtensions []string
}

func DefaultLimits() Limits {
	return Limits{
		MaxTextLength:     MaxTextLength,
		MaxFileSize:       MaxFileSize,
		MaxBatchSize:      MaxBatchSize,
		AllowedExtensions: append([]string(nil), AllowedExtensions...),
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxTextLength <= 0 {
		l.MaxTextLength = d.MaxTextLength
	}
	if l.MaxFileSize <= 0 {
		l.MaxFileSize = d.MaxFileSize
	}
	if l.MaxBatchSize <= 0 {
		l.MaxBatchSize = d.MaxBatchSize
	}
	if len(l.AllowedExtensions) == 0 {
		l.AllowedExtensions = d.AllowedExtensions
	}
	return l
}
