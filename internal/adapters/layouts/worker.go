// Package layouts renders planned plate layouts into artifacts and stores
// them asynchronously.
package layouts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cultureplan/internal/blob"
	"cultureplan/internal/core"
)

// ExportStatus describes the lifecycle stage of an export job.
type ExportStatus string

const (
	ExportStatusQueued    ExportStatus = "queued"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusSucceeded ExportStatus = "succeeded"
	ExportStatusFailed    ExportStatus = "failed"
)

// ErrWorkerStopped is returned when enqueueing after Stop.
var ErrWorkerStopped = errors.New("export worker stopped")

// ErrQueueFull is returned when the job queue has no room.
var ErrQueueFull = errors.New("export queue full")

// DefaultQueueSize bounds pending export jobs.
const DefaultQueueSize = 32

// KeyPrefix namespaces export artifacts in the blob store.
const KeyPrefix = "plans"

// Artifact is one stored rendering.
type Artifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	Plate       int       `json:"plate"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	ETag        string    `json:"etag,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExportRecord tracks an export job and its artifacts.
type ExportRecord struct {
	ID          string       `json:"id"`
	Label       string       `json:"label,omitempty"`
	Formats     []Format     `json:"formats"`
	Plates      int          `json:"plates"`
	Status      ExportStatus `json:"status"`
	Error       string       `json:"error,omitempty"`
	Artifacts   []Artifact   `json:"artifacts,omitempty"`
	RequestedBy string       `json:"requested_by,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

func (r ExportRecord) copy() ExportRecord {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	dup.Artifacts = append([]Artifact(nil), r.Artifacts...)
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		dup.CompletedAt = &t
	}
	return dup
}

// Done reports whether the job reached a terminal status.
func (r ExportRecord) Done() bool {
	return r.Status == ExportStatusSucceeded || r.Status == ExportStatusFailed
}

// ExportInput is an export request.
type ExportInput struct {
	Label       string
	Plan        core.Plan
	Formats     []Format
	RequestedBy string
}

// AuditEntry records an export job transition.
type AuditEntry struct {
	ExportID   string       `json:"export_id"`
	Actor      string       `json:"actor,omitempty"`
	Status     ExportStatus `json:"status"`
	Note       string       `json:"note,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// AuditLogger receives export job transitions.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// Option customizes a Worker.
type Option func(*Worker)

// WithAuditLogger records job transitions to audit.
func WithAuditLogger(audit AuditLogger) Option {
	return func(w *Worker) { w.audit = audit }
}

// WithLogger sets the worker logger.
func WithLogger(logger core.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithQueueSize bounds pending jobs.
func WithQueueSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.queueSize = n
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

type exportTask struct {
	id   string
	plan core.Plan
}

type job struct {
	record ExportRecord
	done   chan struct{}
}

// Worker renders and stores layout exports on a background goroutine.
type Worker struct {
	store     blob.Store
	audit     AuditLogger
	logger    core.Logger
	now       func() time.Time
	queueSize int

	mu      sync.Mutex
	queue   chan exportTask
	stopped bool
	jobs    map[string]*job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NewWorker constructs an export worker writing to store.
func NewWorker(store blob.Store, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		store:     store,
		logger:    nopLogger{},
		now:       func() time.Time { return time.Now().UTC() },
		queueSize: DefaultQueueSize,
		jobs:      make(map[string]*job),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.queue = make(chan exportTask, w.queueSize)
	return w
}

// Start begins processing queued exports.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop refuses new jobs, finishes the queued ones and waits for the loop to
// exit. If ctx expires first, in-flight work is cancelled and ctx's error
// returned.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.queue)
	}
	w.mu.Unlock()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		w.cancel()
		return nil
	case <-ctx.Done():
		w.cancel()
		<-done
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for task := range w.queue {
		w.process(task)
	}
}

// Enqueue validates and queues an export job, returning its queued record.
func (w *Worker) Enqueue(ctx context.Context, input ExportInput) (ExportRecord, error) {
	if w.store == nil {
		return ExportRecord{}, errors.New("export store not configured")
	}
	if len(input.Plan.Plates) == 0 {
		return ExportRecord{}, errors.New("plan has no plates to export")
	}
	formats, err := uniqueFormats(input.Formats)
	if err != nil {
		return ExportRecord{}, err
	}
	now := w.now()
	j := &job{
		record: ExportRecord{
			ID:          uuid.NewString(),
			Label:       input.Label,
			Formats:     formats,
			Plates:      len(input.Plan.Plates),
			Status:      ExportStatusQueued,
			RequestedBy: input.RequestedBy,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		done: make(chan struct{}),
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ExportRecord{}, ErrWorkerStopped
	}
	select {
	case w.queue <- exportTask{id: j.record.ID, plan: input.Plan}:
	default:
		w.mu.Unlock()
		return ExportRecord{}, ErrQueueFull
	}
	w.jobs[j.record.ID] = j
	queued := j.record.copy()
	w.mu.Unlock()

	w.record(ctx, queued, "")
	w.logger.Debug("export queued", "export_id", queued.ID, "formats", len(formats))
	return queued, nil
}

func uniqueFormats(in []Format) ([]Format, error) {
	if len(in) == 0 {
		in = DefaultFormats
	}
	seen := make(map[Format]struct{}, len(in))
	out := make([]Format, 0, len(in))
	for _, f := range in {
		if _, ok := contentTypes[f]; !ok {
			return nil, fmt.Errorf("unsupported export format %q", f)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out, nil
}

// Get returns a snapshot of an export record.
func (w *Worker) Get(id string) (ExportRecord, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	j, ok := w.jobs[id]
	if !ok {
		return ExportRecord{}, false
	}
	return j.record.copy(), true
}

// Wait blocks until the job finishes or ctx ends.
func (w *Worker) Wait(ctx context.Context, id string) (ExportRecord, error) {
	w.mu.Lock()
	j, ok := w.jobs[id]
	w.mu.Unlock()
	if !ok {
		return ExportRecord{}, fmt.Errorf("export %s not found", id)
	}
	select {
	case <-j.done:
		rec, _ := w.Get(id)
		return rec, nil
	case <-ctx.Done():
		return ExportRecord{}, ctx.Err()
	}
}

func (w *Worker) process(task exportTask) {
	rec := w.transition(task.id, func(r *ExportRecord) { r.Status = ExportStatusRunning })

	var (
		mu    sync.Mutex
		files []file
	)
	var g errgroup.Group
	for _, format := range rec.Formats {
		g.Go(func() error {
			rendered, err := render(format, task.plan)
			if err != nil {
				return err
			}
			mu.Lock()
			files = append(files, rendered...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		w.fail(task.id, fmt.Sprintf("render failed: %v", err))
		return
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })

	artifacts := make([]Artifact, 0, len(files))
	for _, f := range files {
		key := path.Join(KeyPrefix, task.id, f.name)
		info, err := w.store.Put(w.ctx, key, bytes.NewReader(f.payload), blob.PutOptions{
			ContentType: contentTypes[f.format],
			Metadata:    map[string]string{"export_id": task.id, "format": string(f.format)},
		})
		if err != nil {
			w.fail(task.id, fmt.Sprintf("store artifact %s: %v", f.name, err))
			return
		}
		artifacts = append(artifacts, Artifact{
			Key:         info.Key,
			Format:      f.format,
			Plate:       f.plate,
			ContentType: contentTypes[f.format],
			SizeBytes:   info.Size,
			ETag:        info.ETag,
			CreatedAt:   w.now(),
		})
	}

	done := w.transition(task.id, func(r *ExportRecord) {
		r.Status = ExportStatusSucceeded
		r.Artifacts = artifacts
	})
	w.logger.Info("export stored", "export_id", task.id, "artifacts", len(done.Artifacts))
}

func (w *Worker) fail(id, reason string) {
	w.transition(id, func(r *ExportRecord) {
		r.Status = ExportStatusFailed
		r.Error = reason
	})
	w.logger.Error("export failed", "export_id", id, "error", reason)
}

// transition applies mutate under the lock, stamps timestamps, closes the
// job's done channel on terminal states and audits the new status.
func (w *Worker) transition(id string, mutate func(*ExportRecord)) ExportRecord {
	now := w.now()
	w.mu.Lock()
	j, ok := w.jobs[id]
	if !ok {
		w.mu.Unlock()
		return ExportRecord{}
	}
	mutate(&j.record)
	j.record.UpdatedAt = now
	if j.record.Done() {
		j.record.CompletedAt = &now
		close(j.done)
	}
	snapshot := j.record.copy()
	w.mu.Unlock()
	w.record(w.ctx, snapshot, snapshot.Error)
	return snapshot
}

func (w *Worker) record(ctx context.Context, rec ExportRecord, note string) {
	if w.audit == nil {
		return
	}
	w.audit.Record(ctx, AuditEntry{
		ExportID:   rec.ID,
		Actor:      rec.RequestedBy,
		Status:     rec.Status,
		Note:       note,
		OccurredAt: rec.UpdatedAt,
	})
}

// MemoryAuditLog captures audit entries in memory.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// Record implements AuditLogger.
func (l *MemoryAuditLog) Record(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

// Entries returns a copy of recorded entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]AuditEntry(nil), l.entries...)
}
