package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
}

type MetaResponse struct {
	Version         string            `json:"version"`
	PipelineVersion string            `json:"pipeline_version"`
	Capabilities    Capabilities   `json:"capabilities"`
	Models          map[string]any `json:"models"`
}

// DescribeModel renders one models entry on a single line. Services report
// either a bare name or an object of attributes.
func DescribeModel(v any) string {
	switch m := v.(type) {
	case nil:
		return ""
	case string:
		return m
	case map[string]any:
		if name, ok := m["name"].(string); ok && len(m) == 1 {
			return name
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+DescribeModel(m[k]))
		}
		return strings.Join(parts, " ")
	case []any:
		parts := make([]string, 0, len(m))
		for _, item := range m {
			parts = append(parts, DescribeModel(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(m)
	}
}

type Capabilities struct {
	NLPTasks         []string `json:"nlp_tasks"`
	SupportedFormats []string `json:"supported_formats"`
	BatchProcessing  bool     `json:"batch_processing"`
	MaxBatchSize     int      `json:"max_batch_size"`
}

type AnalyzeRequest struct {
	Texts []string `json:"texts"`
	Tasks []string `json:"tasks,omitempty"`
}

type AnalyzeResponse struct {
	Results  []AnalysisResult `json:"results"`
	Metadata AnalyzeMetadata  `json:"metadata"`
}

// AnalyzeMetadata carries whatever the service reports about how the request
// was served. Timings are per stage, in milliseconds. Decoding never fails on
// a field of unexpected shape; such fields are dropped.
type AnalyzeMetadata struct {
	Mode           string             `json:"mode,omitempty"`
	TextsProcessed int                `json:"texts_processed,omitempty"`
	FilesProcessed int                `json:"files_processed,omitempty"`
	Tasks          []string           `json:"tasks,omitempty"`
	Warnings       []string           `json:"warnings,omitempty"`
	Timings        map[string]float64 `json:"timings,omitempty"`
	ProcessingTime float64            `json:"processing_time,omitempty"`
}

func (m *AnalyzeMetadata) UnmarshalJSON(data []byte) error {
	*m = AnalyzeMetadata{}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		// metadata is informational; a non-object is ignored
		return nil
	}

	_ = json.Unmarshal(raw["mode"], &m.Mode)
	m.TextsProcessed = int(number(raw["texts_processed"]))
	m.FilesProcessed = int(number(raw["files_processed"]))
	m.ProcessingTime = number(raw["processing_time"])
	m.Tasks = stringList(raw["tasks"])
	m.Warnings = stringList(raw["warnings"])

	var timings map[string]json.RawMessage
	if json.Unmarshal(raw["timings"], &timings) == nil {
		for stage, v := range timings {
			var ms float64
			if json.Unmarshal(v, &ms) != nil {
				continue
			}
			if m.Timings == nil {
				m.Timings = make(map[string]float64, len(timings))
			}
			m.Timings[stage] = ms
		}
	}
	return nil
}

func number(raw json.RawMessage) float64 {
	var f float64
	if json.Unmarshal(raw, &f) != nil {
		return 0
	}
	return f
}

// stringList accepts a string, or a list whose non-string items are kept in
// their JSON form.
func stringList(raw json.RawMessage) []string {
	var one string
	if json.Unmarshal(raw, &one) == nil {
		if one == "" {
			return nil
		}
		return []string{one}
	}

	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) == nil {
			out = append(out, s)
			continue
		}
		out = append(out, string(item))
	}
	return out
}

// LogRecord is the wire form of one shipped client log line.
type LogRecord struct {
	Level         string         `json:"level"`
	Message       string         `json:"message"`
	Timestamp     string         `json:"timestamp"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Attrs         map[string]any `json:"context,omitempty"`
}

type LogBatch struct {
	Logs []LogRecord `json:"logs"`
}
