package mockserver

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jasperwreed/unip/internal/extract"
	"github.com/jasperwreed/unip/internal/models"
	"github.com/jasperwreed/unip/internal/security"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   "unip-mock",
	})
}

func (s *Server) meta(c *gin.Context) {
	c.JSON(http.StatusOK, models.MetaResponse{
		Version:         Version,
		PipelineVersion: PipelineVersion,
		Capabilities: models.Capabilities{
			NLPTasks:         models.AllTasks,
			SupportedFormats: security.AllowedExtensions,
			BatchProcessing:  true,
			MaxBatchSize:     MaxBatchSize,
		},
		Models: map[string]any{
			"sentiment": "lexicon",
			"keywords":  "term-frequency",
			"topics":    "keyword-groups",
			"summary":   "lead-sentences",
		},
	})
}

func normalizeTasks(tasks []string) []string {
	if len(tasks) == 0 {
		return models.AllTasks
	}
	var out []string
	for _, t := range tasks {
		if t = strings.TrimSpace(strings.ToLower(t)); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return models.AllTasks
	}
	return out
}

func validTasks(tasks []string) (string, bool) {
	for _, t := range tasks {
		switch t {
		case models.TaskSentiment, models.TaskKeywords, models.TaskTopics, models.TaskSummary:
		default:
			return t, false
		}
	}
	return "", true
}

func (s *Server) analyzeTexts(c *gin.Context) {
	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorDetail(c, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}

	var texts []string
	for _, t := range req.Texts {
		if strings.TrimSpace(t) != "" {
			texts = append(texts, t)
		}
	}
	if len(texts) == 0 {
		errorDetail(c, http.StatusBadRequest, "No texts provided")
		return
	}
	if len(texts) > MaxBatchSize {
		errorDetail(c, http.StatusBadRequest, "Batch size exceeds maximum of %d", MaxBatchSize)
		return
	}
	for _, t := range texts {
		if len([]rune(t)) > MaxTextLength {
			errorDetail(c, http.StatusRequestEntityTooLarge, "Text exceeds maximum length of %d characters", MaxTextLength)
			return
		}
	}

	tasks := normalizeTasks(req.Tasks)
	if bad, ok := validTasks(tasks); !ok {
		errorDetail(c, http.StatusBadRequest, "Unknown task: %s", bad)
		return
	}

	c.JSON(http.StatusOK, s.respond(texts, nil, tasks, time.Now()))
}

func (s *Server) analyzeFile(c *gin.Context) {
	start := time.Now()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBatchSize*MaxUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		errorDetail(c, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	files := form.File["file"]
	if len(files) == 0 {
		errorDetail(c, http.StatusBadRequest, "No file provided")
		return
	}
	if len(files) > MaxBatchSize {
		errorDetail(c, http.StatusBadRequest, "Batch size exceeds maximum of %d", MaxBatchSize)
		return
	}

	var tasks []string
	if raw := c.PostForm("tasks"); raw != "" {
		tasks = strings.Split(raw, ",")
	}
	tasks = normalizeTasks(tasks)
	if bad, ok := validTasks(tasks); !ok {
		errorDetail(c, http.StatusBadRequest, "Unknown task: %s", bad)
		return
	}

	var texts, sources []string
	for _, fh := range files {
		if !security.ValidateFileType(fh.Filename, security.AllowedExtensions) {
			errorDetail(c, http.StatusUnsupportedMediaType, "Unsupported file type: %s", fh.Filename)
			return
		}
		if fh.Size > MaxUploadBytes {
			errorDetail(c, http.StatusRequestEntityTooLarge, "File too large: %s", fh.Filename)
			return
		}

		f, err := fh.Open()
		if err != nil {
			errorDetail(c, http.StatusBadRequest, "Unreadable file: %s", fh.Filename)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			errorDetail(c, http.StatusBadRequest, "Unreadable file: %s", fh.Filename)
			return
		}

		text, err := extract.Bytes(context.Background(), fh.Filename, data)
		if err != nil || strings.TrimSpace(text) == "" {
			errorDetail(c, http.StatusUnprocessableEntity, "Could not extract text from %s", fh.Filename)
			return
		}
		texts = append(texts, text)
		sources = append(sources, fh.Filename)
	}

	if len(files) == 1 {
		sources = nil
	}
	c.JSON(http.StatusOK, s.respond(texts, sources, tasks, start))
}

func (s *Server) respond(texts, sources, tasks []string, start time.Time) models.AnalyzeResponse {
	resp := models.AnalyzeResponse{
		Results: make([]models.AnalysisResult, len(texts)),
		Metadata: models.AnalyzeMetadata{
			Mode:           s.mode,
			TextsProcessed: len(texts),
			Tasks:          tasks,
			Timings:        make(map[string]float64),
		},
	}
	if sources != nil {
		resp.Metadata.FilesProcessed = len(sources)
	}

	for _, task := range tasks {
		taskStart := time.Now()
		for i, t := range texts {
			partial := analyze(t, []string{task})
			r := &resp.Results[i]
			r.Text = t
			switch task {
			case models.TaskSentiment:
				r.Sentiment = partial.Sentiment
			case models.TaskKeywords:
				r.Keywords = partial.Keywords
			case models.TaskTopics:
				r.Topics = partial.Topics
			case models.TaskSummary:
				r.Summary = partial.Summary
			}
		}
		resp.Metadata.Timings[task] = float64(time.Since(taskStart).Microseconds()) / 1000
	}
	for i := range sources {
		resp.Results[i].SourceFile = sources[i]
	}

	resp.Metadata.ProcessingTime = float64(time.Since(start).Microseconds()) / 1000
	return resp
}

func (s *Server) receiveLog(c *gin.Context) {
	var rec models.LogRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		errorDetail(c, http.StatusUnprocessableEntity, "Invalid log record")
		return
	}
	s.mu.Lock()
	s.logs = append(s.logs, rec)
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"status": "logged"})
}

func (s *Server) receiveLogBatch(c *gin.Context) {
	var batch models.LogBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		errorDetail(c, http.StatusUnprocessableEntity, "Invalid log batch")
		return
	}
	s.mu.Lock()
	s.logs = append(s.logs, batch.Logs...)
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"status": "logged", "count": len(batch.Logs)})
}
