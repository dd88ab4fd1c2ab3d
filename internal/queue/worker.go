package queue

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veridian/aigov/internal/governance"
	"github.com/veridian/aigov/internal/models"
	"github.com/veridian/aigov/internal/scoring"
	"github.com/veridian/aigov/internal/store"
)

// Notifier receives the outcomes a worker considers alert-worthy. The
// notifications service implements it; tests supply a fake.
type Notifier interface {
	NotifyBlockingTasks(ctx context.Context, system *models.AISystem, tasks []models.GovernanceTask) error
	NotifyCriticalRisk(ctx context.Context, system *models.AISystem, result *scoring.Result) error
}

type Worker struct {
	id        string
	queue     *Queue
	store     *store.Store
	evaluator *governance.Evaluator
	scorer    *scoring.Scorer
	notifier  Notifier

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	running bool
	mu      sync.Mutex
}

type WorkerConfig struct {
	Queue     *Queue
	Store     *store.Store
	Evaluator *governance.Evaluator
	Scorer    *scoring.Scorer
	Notifier  Notifier
}

func NewWorker(cfg WorkerConfig) *Worker {
	hostname, _ := os.Hostname()
	workerID := fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8])

	return &Worker{
		id:        workerID,
		queue:     cfg.Queue,
		store:     cfg.Store,
		evaluator: cfg.Evaluator,
		scorer:    cfg.Scorer,
		notifier:  cfg.Notifier,
	}
}

func (w *Worker) ID() string {
	return w.id
}

func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("worker already running")
	}
	w.running = true
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	log.Printf("[%s] Worker starting", w.id)

	w.wg.Add(1)
	go w.heartbeatLoop()

	w.wg.Add(1)
	go w.processLoop()

	return nil
}

func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	log.Printf("[%s] Worker stopping", w.id)
	w.cancel()
	w.wg.Wait()
	log.Printf("[%s] Worker stopped", w.id)
}

func (w *Worker) heartbeatLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.queue.WorkerHeartbeat(w.ctx, w.id)
		}
	}
}

func (w *Worker) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			job, err := w.queue.DequeueJob(w.ctx, w.id)
			if err != nil {
				log.Printf("[%s] Error dequeuing job: %v", w.id, err)
				time.Sleep(5 * time.Second)
				continue
			}

			if job == nil {
				time.Sleep(1 * time.Second)
				continue
			}

			log.Printf("[%s] Processing job %s (system: %s, trigger: %s)",
				w.id, job.ID, job.SystemID, job.Trigger)

			if err := w.processJob(job); err != nil {
				log.Printf("[%s] Job %s failed: %v", w.id, job.ID, err)
				w.queue.RequeueJob(w.ctx, job, err.Error())
			} else {
				log.Printf("[%s] Job %s completed successfully", w.id, job.ID)
				w.queue.CompleteJob(w.ctx, job, true)
			}
		}
	}
}

// processJob re-runs the governance rules and the risk scorer for one
// system, then raises notifications for anything the run surfaced.
func (w *Worker) processJob(job *Job) error {
	system, err := w.store.GetSystem(w.ctx, job.SystemID)
	if err != nil {
		return fmt.Errorf("getting system: %w", err)
	}
	if system == nil {
		return fmt.Errorf("system not found: %s", job.SystemID)
	}

	before, err := w.evaluator.BlockingTasks(w.ctx, job.SystemID)
	if err != nil {
		return fmt.Errorf("listing blocking tasks: %w", err)
	}
	known := make(map[uuid.UUID]bool, len(before))
	for _, t := range before {
		known[t.ID] = true
	}

	tasks, err := w.evaluator.EvaluateSystem(w.ctx, job.SystemID)
	if err != nil {
		return fmt.Errorf("evaluating governance tasks: %w", err)
	}

	var newBlocking []models.GovernanceTask
	blockingOpen := 0
	for _, t := range tasks {
		if !t.Blocking || t.Status == models.TaskCompleted {
			continue
		}
		blockingOpen++
		if !known[t.ID] {
			newBlocking = append(newBlocking, t)
		}
	}

	progress, _ := w.queue.GetProgress(w.ctx, job.ID)
	if progress == nil {
		progress = &JobProgress{JobID: job.ID, SystemID: job.SystemID}
	}
	progress.TasksEvaluated = len(tasks)
	progress.BlockingOpen = blockingOpen

	snapshot, err := w.store.BuildSnapshot(w.ctx, job.SystemID)
	if err != nil {
		return fmt.Errorf("building compliance snapshot: %w", err)
	}
	assessments, err := w.store.ListAssessments(w.ctx, job.SystemID)
	if err != nil {
		return fmt.Errorf("listing assessments: %w", err)
	}

	result := w.scorer.Calculate(snapshot, assessments)
	progress.RiskLevel = string(result.OverallRiskLevel)
	progress.CompositeScore = result.CompositeScore
	_ = w.queue.UpdateProgress(w.ctx, progress)

	if w.notifier != nil {
		if len(newBlocking) > 0 {
			if err := w.notifier.NotifyBlockingTasks(w.ctx, system, newBlocking); err != nil {
				log.Printf("[%s] Blocking task notification failed: %v", w.id, err)
			}
		}
		if result.OverallRiskLevel == scoring.RiskLevelCritical {
			if err := w.notifier.NotifyCriticalRisk(w.ctx, system, result); err != nil {
				log.Printf("[%s] Critical risk notification failed: %v", w.id, err)
			}
		}
	}

	return nil
}
