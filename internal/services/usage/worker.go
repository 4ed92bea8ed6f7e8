package usage

import (
	"context"
	"sync"

	"github.com/Egham-7/repurpose-api/internal/models"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Recorder appends uncharged usage log entries.
type Recorder interface {
	Record(ctx context.Context, params models.RecordUsageParams, requestID string)
}

// Record writes the entry synchronously, logging failures.
func (s *Service) Record(ctx context.Context, params models.RecordUsageParams, requestID string) {
	if _, err := s.RecordUsage(ctx, params); err != nil {
		fiberlog.Errorf("[%s] Failed to record usage: %v", requestID, err)
	}
}

// Worker records usage entries off the request path
type Worker struct {
	service *Service
	tasks   chan RecordTask
	wg      sync.WaitGroup

	// mu orders Record sends against the close in Stop.
	mu      sync.RWMutex
	stopped bool
}

// RecordTask represents a usage recording task
type RecordTask struct {
	Params    models.RecordUsageParams
	RequestID string
}

// NewWorker creates a new usage recording worker with the specified pool size
func NewWorker(service *Service, poolSize, bufferSize int) *Worker {
	w := &Worker{
		service: service,
		tasks:   make(chan RecordTask, bufferSize),
	}

	for range poolSize {
		w.wg.Add(1)
		go w.run()
	}

	return w
}

// Record queues the entry. It never blocks; entries are dropped when the buffer is full.
func (w *Worker) Record(_ context.Context, params models.RecordUsageParams, requestID string) {
	w.enqueue(RecordTask{Params: params, RequestID: requestID})
}

func (w *Worker) enqueue(task RecordTask) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		fiberlog.Warnf("[%s] Worker stopped, dropping usage recording task", task.RequestID)
		return false
	}

	select {
	case w.tasks <- task:
		return true
	default:
		fiberlog.Warnf("[%s] Usage recording buffer full, dropping task", task.RequestID)
		return false
	}
}

func (w *Worker) run() {
	defer w.wg.Done()

	for task := range w.tasks {
		w.record(task)
	}
}

func (w *Worker) record(task RecordTask) {
	if _, err := w.service.RecordUsage(context.Background(), task.Params); err != nil {
		fiberlog.Errorf("[%s] Failed to record usage: %v", task.RequestID, err)
	}
}

// Stop stops accepting tasks, flushes what is queued and waits for the pool to exit
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.tasks)
	w.mu.Unlock()

	w.wg.Wait()
}
