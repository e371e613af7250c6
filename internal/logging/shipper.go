package logging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jasperwreed/unip/internal/models"
)

const (
	pathLogs      = "/api/v1/logs"
	pathLogsBatch = "/api/v1/logs/batch"
)

// Sender posts a JSON body to a service path.
type Sender interface {
	PostJSON(ctx context.Context, path string, body any) error
}

type ShipperConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	QueueSize     int
	// Level is the minimum level shipped, independent of the console level.
	Level slog.Level
	// CorrelationID returns the id stamped on each record.
	CorrelationID func() string
}

func DefaultShipperConfig() ShipperConfig {
	return ShipperConfig{
		BatchSize:     50,
		FlushInterval: 5 * time.Second,
		QueueSize:     1000,
		Level:         slog.LevelInfo,
	}
}

// ShipperStats counts outcomes. Shipping is best-effort, so failures only
// show up here.
type ShipperStats struct {
	Queued  int64
	Sent    int64
	Failed  int64
	Dropped int64
}

// Shipper batches log records and posts them to the service. Error records
// bypass the batch and are sent on their own.
type Shipper struct {
	sender Sender
	cfg    ShipperConfig

	queue     chan models.LogRecord
	immediate chan models.LogRecord
	flushReq  chan chan struct{}
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	queued  atomic.Int64
	sent    atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

func NewShipper(sender Sender, cfg ShipperConfig) *Shipper {
	d := DefaultShipperConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = d.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = d.FlushInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = d.QueueSize
	}

	s := &Shipper{
		sender:    sender,
		cfg:       cfg,
		queue:     make(chan models.LogRecord, cfg.QueueSize),
		immediate: make(chan models.LogRecord, cfg.QueueSize),
		flushReq:  make(chan chan struct{}),
		stopCh:    make(chan struct{}),
	}

	s.wg.Add(2)
	go s.batchLoop()
	go s.immediateLoop()

	return s
}

// Enqueue hands a record to the shipper without blocking. A full queue
// drops the record.
func (s *Shipper) Enqueue(rec models.LogRecord) {
	if rec.CorrelationID == "" && s.cfg.CorrelationID != nil {
		rec.CorrelationID = s.cfg.CorrelationID()
	}

	ch := s.queue
	if rec.Level == slog.LevelError.String() {
		ch = s.immediate
	}

	select {
	case <-s.stopCh:
		s.dropped.Add(1)
		return
	default:
	}

	select {
	case ch <- rec:
		s.queued.Add(1)
	default:
		s.dropped.Add(1)
	}
}

// Flush sends whatever is batched and waits for it.
func (s *Shipper) Flush() {
	done := make(chan struct{})
	select {
	case s.flushReq <- done:
		<-done
	case <-s.stopCh:
	}
}

// Close flushes pending records and stops the workers.
func (s *Shipper) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
	})
	return nil
}

func (s *Shipper) Stats() ShipperStats {
	return ShipperStats{
		Queued:  s.queued.Load(),
		Sent:    s.sent.Load(),
		Failed:  s.failed.Load(),
		Dropped: s.dropped.Load(),
	}
}

func (s *Shipper) batchLoop() {
	defer s.wg.Done()

	batch := make([]models.LogRecord, 0, s.cfg.BatchSize)
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		s.send(pathLogsBatch, models.LogBatch{Logs: batch}, len(batch))
		batch = make([]models.LogRecord, 0, s.cfg.BatchSize)
	}

	for {
		select {
		case <-s.stopCh:
			for {
				select {
				case rec := <-s.queue:
					batch = append(batch, rec)
					if len(batch) >= s.cfg.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}

		case rec := <-s.queue:
			batch = append(batch, rec)
			if len(batch) >= s.cfg.BatchSize {
				flush()
			}

		case done := <-s.flushReq:
			for len(s.queue) > 0 {
				batch = append(batch, <-s.queue)
				if len(batch) >= s.cfg.BatchSize {
					flush()
				}
			}
			flush()
			close(done)

		case <-ticker.C:
			flush()
		}
	}
}

func (s *Shipper) immediateLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			for {
				select {
				case rec := <-s.immediate:
					s.send(pathLogs, rec, 1)
				default:
					return
				}
			}
		case rec := <-s.immediate:
			s.send(pathLogs, rec, 1)
		}
	}
}

func (s *Shipper) send(path string, body any, n int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.sender.PostJSON(ctx, path, body); err != nil {
		s.failed.Add(int64(n))
		return
	}
	s.sent.Add(int64(n))
}

// Handler tees records into the shipper after next has handled them.
func (s *Shipper) Handler(next slog.Handler) slog.Handler {
	return &shipHandler{next: next, shipper: s}
}

type shipHandler struct {
	next    slog.Handler
	shipper *Shipper
	attrs   []slog.Attr
	group   string
}

func (h *shipHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level) || level >= h.shipper.cfg.Level
}

func (h *shipHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if h.next.Enabled(ctx, r.Level) {
		err = h.next.Handle(ctx, r)
	}
	if r.Level < h.shipper.cfg.Level {
		return err
	}

	rec := models.LogRecord{
		Level:     r.Level.String(),
		Message:   r.Message,
		Timestamp: r.Time.UTC().Format(time.RFC3339Nano),
		Attrs:     make(map[string]any),
	}
	for _, a := range h.attrs {
		put(rec.Attrs, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "correlation_id" {
			rec.CorrelationID = a.Value.String()
		}
		put(rec.Attrs, h.group, a)
		return true
	})
	if len(rec.Attrs) == 0 {
		rec.Attrs = nil
	}

	h.shipper.Enqueue(rec)
	return err
}

func put(m map[string]any, group string, a slog.Attr) {
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		// an unnamed group is inlined into its parent
		prefix := key
		if a.Key == "" {
			prefix = group
		}
		for _, ga := range v.Group() {
			put(m, prefix, ga)
		}
	case slog.KindDuration:
		m[key] = v.Duration().String()
	case slog.KindTime:
		m[key] = v.Time().Format(time.RFC3339Nano)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			m[key] = err.Error()
			return
		}
		m[key] = fmt.Sprint(v.Any())
	default:
		m[key] = v.Any()
	}
}

func (h *shipHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.next = h.next.WithAttrs(attrs)
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		c.attrs = append(c.attrs, a)
	}
	return &c
}

func (h *shipHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.next = h.next.WithGroup(name)
	if c.group != "" {
		c.group += "." + name
	} else {
		c.group = name
	}
	return &c
}
