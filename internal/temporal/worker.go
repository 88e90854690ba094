package temporal

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// WorkerConfig contains configuration for the Temporal worker.
type WorkerConfig struct {
	TaskQueue string

	// MaxConcurrentActivityExecutionSize bounds acquisitions running on this worker.
	// Each one holds HTTP connections for up to the session timeout. Default: 20.
	MaxConcurrentActivityExecutionSize int

	// MaxConcurrentWorkflowTaskExecutionSize defaults to 50.
	MaxConcurrentWorkflowTaskExecutionSize int

	// MaxConcurrentActivityTaskPollers defaults to 4.
	MaxConcurrentActivityTaskPollers int

	// MaxConcurrentWorkflowTaskPollers defaults to 2.
	MaxConcurrentWorkflowTaskPollers int
}

// DefaultWorkerConfig returns a WorkerConfig with default values.
func DefaultWorkerConfig(taskQueue string) WorkerConfig {
	return WorkerConfig{
		TaskQueue:                              taskQueue,
		MaxConcurrentActivityExecutionSize:     20,
		MaxConcurrentWorkflowTaskExecutionSize: 50,
		MaxConcurrentActivityTaskPollers:       4,
		MaxConcurrentWorkflowTaskPollers:       2,
	}
}

func workerOptionsFromConfig(cfg WorkerConfig) worker.Options {
	def := DefaultWorkerConfig(cfg.TaskQueue)
	if cfg.MaxConcurrentActivityExecutionSize == 0 {
		cfg.MaxConcurrentActivityExecutionSize = def.MaxConcurrentActivityExecutionSize
	}
	if cfg.MaxConcurrentWorkflowTaskExecutionSize == 0 {
		cfg.MaxConcurrentWorkflowTaskExecutionSize = def.MaxConcurrentWorkflowTaskExecutionSize
	}
	if cfg.MaxConcurrentActivityTaskPollers == 0 {
		cfg.MaxConcurrentActivityTaskPollers = def.MaxConcurrentActivityTaskPollers
	}
	if cfg.MaxConcurrentWorkflowTaskPollers == 0 {
		cfg.MaxConcurrentWorkflowTaskPollers = def.MaxConcurrentWorkflowTaskPollers
	}

	return worker.Options{
		MaxConcurrentActivityExecutionSize:     cfg.MaxConcurrentActivityExecutionSize,
		MaxConcurrentWorkflowTaskExecutionSize: cfg.MaxConcurrentWorkflowTaskExecutionSize,
		MaxConcurrentActivityTaskPollers:       cfg.MaxConcurrentActivityTaskPollers,
		MaxConcurrentWorkflowTaskPollers:       cfg.MaxConcurrentWorkflowTaskPollers,
	}
}

// WorkerManager owns a Temporal worker and what is registered on it.
type WorkerManager struct {
	worker     worker.Worker
	taskQueue  string
	workflows  int
	activities int
}

// NewWorkerManager creates a worker polling cfg.TaskQueue.
func NewWorkerManager(c client.Client, cfg WorkerConfig) (*WorkerManager, error) {
	if cfg.TaskQueue == "" {
		return nil, errors.New("task queue is required")
	}
	return &WorkerManager{
		worker:    worker.New(c, cfg.TaskQueue, workerOptionsFromConfig(cfg)),
		taskQueue: cfg.TaskQueue,
	}, nil
}

// RegisterWorkflow registers a workflow function under its function name.
func (m *WorkerManager) RegisterWorkflow(wf interface{}) {
	m.worker.RegisterWorkflow(wf)
	m.workflows++
}

// RegisterActivity registers an activity function or every exported method of a struct.
func (m *WorkerManager) RegisterActivity(a interface{}) {
	m.worker.RegisterActivity(a)
	m.activities++
}

// TaskQueue returns the configured task queue name.
func (m *WorkerManager) TaskQueue() string {
	return m.taskQueue
}

// Run starts the worker and blocks until ctx is done, then stops it.
func (m *WorkerManager) Run(ctx context.Context) error {
	if m.workflows == 0 || m.activities == 0 {
		return fmt.Errorf("worker on %s has %d workflows and %d activities registered", m.taskQueue, m.workflows, m.activities)
	}
	if err := m.worker.Start(); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	<-ctx.Done()
	m.worker.Stop()
	return nil
}
