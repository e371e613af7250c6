package security

import (
	"fmt"
	"strings"
)

// FileCandidate is a file the user picked, before any validation.
type FileCandidate struct {
	Path string
	Name string
	Size int64
}

// SelectFiles splits candidates into accepted files and per-file rejections.
// Invalid files never abort the selection; every rejection names its file.
func SelectFiles(candidates []FileCandidate, limits Limits) ([]FileCandidate, []ValidationError) {
	limits = limits.withDefaults()

	var accepted []FileCandidate
	var rejected []ValidationError
	for _, c := range candidates {
		if reason := checkFile(c, limits); reason != "" {
			rejected = append(rejected, ValidationError{Field: "file", Name: c.Name, Reason: reason})
			continue
		}
		if len(accepted) >= limits.MaxBatchSize {
			rejected = append(rejected, ValidationError{
				Field:  "file",
				Name:   c.Name,
				Reason: fmt.Sprintf("Too many files. Maximum %d per batch.", limits.MaxBatchSize),
			})
			continue
		}
		accepted = append(accepted, c)
	}
	return accepted, rejected
}

func checkFile(c FileCandidate, limits Limits) string {
	if !ValidateFileName(c.Name) {
		return "Invalid file name. Please rename the file."
	}
	if !ValidateFileType(c.Name, limits.AllowedExtensions) {
		return "Unsupported file type. Supported: " + strings.Join(limits.AllowedExtensions, ", ")
	}
	if !ValidateFileSize(c.Size, limits.MaxFileSize) {
		return fmt.Sprintf("File too large. Maximum size: %dMB", limits.MaxFileSize/(1024*1024))
	}
	return ""
}
