package temporal

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
)

const (
	// DefaultWorkflowExecutionTimeout bounds one acquisition workflow including resumes.
	DefaultWorkflowExecutionTimeout = 30 * time.Minute

	// DefaultBatchExecutionTimeout bounds a batch workflow.
	DefaultBatchExecutionTimeout = 24 * time.Hour

	// DefaultHealthCheckTimeout is the timeout for Temporal server health checks.
	DefaultHealthCheckTimeout = 5 * time.Second
)

// TLSConfig contains TLS configuration for the Temporal client.
type TLSConfig struct {
	Enabled    bool
	CertPath   string
	KeyPath    string
	CACertPath string
	ServerName string
}

func (t *TLSConfig) build() (*tls.Config, error) {
	cfg := &tls.Config{
		ServerName: t.ServerName,
		MinVersion: tls.VersionTLS12,
	}

	if t.CertPath != "" && t.KeyPath != "" {
		cert, err := tls.LoadX509KeyPair(t.CertPath, t.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	if t.CACertPath != "" {
		pem, err := os.ReadFile(t.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("parse CA certificate")
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

// ClientConfig contains configuration for the Temporal client.
type ClientConfig struct {
	HostPort  string
	Namespace string
	TaskQueue string
	TLS       *TLSConfig

	// Logger receives SDK logs; see observability.NewTemporalLogger.
	Logger log.Logger

	// ExecutionTimeout bounds single acquisitions. Default: DefaultWorkflowExecutionTimeout.
	ExecutionTimeout time.Duration

	// HealthCheckTimeout defaults to DefaultHealthCheckTimeout.
	HealthCheckTimeout time.Duration
}

// NewClient dials the Temporal server.
func NewClient(cfg ClientConfig) (client.Client, error) {
	options := client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    cfg.Logger,
	}

	if cfg.TLS != nil && cfg.TLS.Enabled {
		tlsConfig, err := cfg.TLS.build()
		if err != nil {
			return nil, fmt.Errorf("configure TLS: %w", err)
		}
		options.ConnectionOptions = client.ConnectionOptions{TLS: tlsConfig}
	}

	c, err := client.Dial(options)
	if err != nil {
		return nil, fmt.Errorf("create Temporal client: %w", err)
	}
	return c, nil
}

// AcquisitionWorkflowID is the workflow ID for a request. Redelivered requests map to
// the same workflow, which makes starting idempotent.
func AcquisitionWorkflowID(requestID string) string {
	return "fulltext-" + requestID
}

// BatchWorkflowID is the workflow ID for a batch.
func BatchWorkflowID(batchID string) string {
	return "fulltext-batch-" + batchID
}

// AcquisitionClient starts and inspects acquisition workflows.
// It is safe for concurrent use.
type AcquisitionClient struct {
	mu                 sync.RWMutex
	client             client.Client
	taskQueue          string
	executionTimeout   time.Duration
	healthCheckTimeout time.Duration
	closed             bool
}

// NewAcquisitionClient wraps c. TaskQueue must be set in cfg.
func NewAcquisitionClient(c client.Client, cfg ClientConfig) *AcquisitionClient {
	if cfg.ExecutionTimeout == 0 {
		cfg.ExecutionTimeout = DefaultWorkflowExecutionTimeout
	}
	if cfg.HealthCheckTimeout == 0 {
		cfg.HealthCheckTimeout = DefaultHealthCheckTimeout
	}
	return &AcquisitionClient{
		client:             c,
		taskQueue:          cfg.TaskQueue,
		executionTimeout:   cfg.ExecutionTimeout,
		healthCheckTimeout: cfg.HealthCheckTimeout,
	}
}

// Close closes the underlying Temporal client connection.
func (c *AcquisitionClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil && !c.closed {
		c.client.Close()
		c.closed = true
	}
}

func (c *AcquisitionClient) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Health checks the connection to the Temporal server.
func (c *AcquisitionClient) Health(ctx context.Context) error {
	if c.isClosed() {
		return closedError("Health", "")
	}

	checkCtx, cancel := context.WithTimeout(ctx, c.healthCheckTimeout)
	defer cancel()

	if _, err := c.client.CheckHealth(checkCtx, &client.CheckHealthRequest{}); err != nil {
		return wrapTemporalError("Health", err, "", "")
	}
	return nil
}

// StartAcquisition starts the acquisition workflow for req and returns its workflow ID.
// A request whose workflow is already running, or already completed successfully, is
// not started again and reports no error.
func (c *AcquisitionClient) StartAcquisition(ctx context.Context, req domain.AcquisitionRequest) (string, error) {
	workflowID := AcquisitionWorkflowID(req.RequestID)
	if c.isClosed() {
		return "", closedError("StartAcquisition", workflowID)
	}

	options := client.StartWorkflowOptions{
		ID:                       workflowID,
		TaskQueue:                c.taskQueue,
		WorkflowExecutionTimeout: c.executionTimeout,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY,
	}

	_, err := c.client.ExecuteWorkflow(ctx, options, AcquisitionWorkflowName, AcquisitionWorkflowInput{Request: req})
	if err != nil {
		wrapped := wrapTemporalError("StartAcquisition", err, workflowID, "")
		if IsWorkflowAlreadyStarted(wrapped) {
			return workflowID, nil
		}
		return "", wrapped
	}
	return workflowID, nil
}

// StartBatch starts a batch workflow and returns its workflow and run IDs.
func (c *AcquisitionClient) StartBatch(ctx context.Context, input BatchWorkflowInput) (workflowID, runID string, err error) {
	workflowID = BatchWorkflowID(input.BatchID)
	if c.isClosed() {
		return "", "", closedError("StartBatch", workflowID)
	}

	options := client.StartWorkflowOptions{
		ID:                       workflowID,
		TaskQueue:                c.taskQueue,
		WorkflowExecutionTimeout: DefaultBatchExecutionTimeout,
	}

	run, err := c.client.ExecuteWorkflow(ctx, options, BatchAcquisitionWorkflowName, input)
	if err != nil {
		return "", "", wrapTemporalError("StartBatch", err, workflowID, "")
	}
	return workflowID, run.GetRunID(), nil
}

// AcquisitionResult waits for an acquisition workflow and returns its summary.
func (c *AcquisitionClient) AcquisitionResult(ctx context.Context, workflowID, runID string) (*AcquisitionSummary, error) {
	if c.isClosed() {
		return nil, closedError("AcquisitionResult", workflowID)
	}

	var summary AcquisitionSummary
	if err := c.client.GetWorkflow(ctx, workflowID, runID).Get(ctx, &summary); err != nil {
		return nil, wrapTemporalError("AcquisitionResult", err, workflowID, runID)
	}
	return &summary, nil
}

// BatchProgress queries a running batch.
func (c *AcquisitionClient) BatchProgress(ctx context.Context, workflowID string) (*BatchProgress, error) {
	if c.isClosed() {
		return nil, closedError("BatchProgress", workflowID)
	}

	resp, err := c.client.QueryWorkflow(ctx, workflowID, "", QueryProgress)
	if err != nil {
		return nil, wrapTemporalError("BatchProgress", err, workflowID, "")
	}

	var progress BatchProgress
	if err := resp.Get(&progress); err != nil {
		return nil, &TemporalError{
			Op:         "BatchProgress",
			Kind:       ErrQueryFailed,
			WorkflowID: workflowID,
			Err:        fmt.Errorf("decode query result: %w", err),
		}
	}
	return &progress, nil
}

// StopBatch signals a batch to start no further items.
func (c *AcquisitionClient) StopBatch(ctx context.Context, workflowID string) error {
	if c.isClosed() {
		return closedError("StopBatch", workflowID)
	}
	if err := c.client.SignalWorkflow(ctx, workflowID, "", SignalStop, nil); err != nil {
		return wrapTemporalError("StopBatch", err, workflowID, "")
	}
	return nil
}

// Cancel cancels a running workflow.
func (c *AcquisitionClient) Cancel(ctx context.Context, workflowID, runID string) error {
	if c.isClosed() {
		return closedError("Cancel", workflowID)
	}
	if err := c.client.CancelWorkflow(ctx, workflowID, runID); err != nil {
		return wrapTemporalError("Cancel", err, workflowID, runID)
	}
	return nil
}
