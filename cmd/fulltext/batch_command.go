package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
	"github.com/helixir/fulltext-acquisition-service/internal/storage"
	"github.com/helixir/fulltext-acquisition-service/internal/temporal"
	"github.com/helixir/fulltext-acquisition-service/internal/waterfall"
)

// maxRequestLine bounds one JSON line in a batch file.
const maxRequestLine = 1 << 20

// readRequests parses one acquisition request per line. Blank lines and lines starting
// with # are ignored; missing request IDs are generated.
func readRequests(r io.Reader) ([]domain.AcquisitionRequest, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRequestLine)

	var reqs []domain.AcquisitionRequest
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var req domain.AcquisitionRequest
		if err := json.Unmarshal([]byte(text), &req); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if req.RequestID == "" {
			req.RequestID = uuid.NewString()
		}
		reqs = append(reqs, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading requests: %w", err)
	}
	return reqs, nil
}

func readRequestFile(path string) ([]domain.AcquisitionRequest, error) {
	if path == "-" {
		return readRequests(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readRequests(f)
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Acquire many publications from a JSON Lines request file",
	}
	cmd.AddCommand(newBatchRunCommand(ctx))
	cmd.AddCommand(newBatchSubmitCommand(ctx))
	cmd.AddCommand(newBatchStatusCommand(ctx))
	cmd.AddCommand(newBatchStopCommand(ctx))
	return cmd
}

// batchRow is one line of a local batch report.
type batchRow struct {
	RequestID  string              `json:"request_id"`
	Identifier string              `json:"identifier,omitempty"`
	State      domain.SessionState `json:"state,omitempty"`
	SourceUsed domain.SourceName   `json:"source_used,omitempty"`
	Attempts   int                 `json:"attempts"`
	File       string              `json:"file,omitempty"`
	Skip       []string            `json:"skip,omitempty"`
	Error      string              `json:"error,omitempty"`
}

func newBatchRunCommand(ctx *commandContext) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "run <requests.jsonl|->",
		Short: "Run a batch in this process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := readRequestFile(args[0])
			if err != nil {
				return err
			}
			stack, err := ctx.acquisitionStack(cmd.Context())
			if err != nil {
				return err
			}
			if outDir != "" {
				if err := os.MkdirAll(outDir, 0o755); err != nil {
					return err
				}
			}

			rows := make([]batchRow, len(reqs))
			var items []waterfall.BatchItem
			var index []int
			for i, req := range reqs {
				rows[i].RequestID = req.RequestID
				id, err := stack.Service.Resolve(req)
				if err != nil {
					rows[i].Error = err.Error()
					continue
				}
				skip, err := req.SkipSet()
				if err != nil {
					rows[i].Error = err.Error()
					continue
				}
				rows[i].Identifier = id.Key()
				items = append(items, waterfall.BatchItem{Identifier: id, Skip: skip})
				index = append(index, i)
			}

			failed := 0
			for j, res := range stack.Orchestrator.AcquireMany(cmd.Context(), items) {
				row := &rows[index[j]]
				row.Skip = res.Skip.Strings()
				if res.Result != nil {
					row.State = res.Result.State
					row.SourceUsed = res.Result.SourceUsed
					row.Attempts = len(res.Result.Attempts)
				}
				if res.Err != nil && !errors.Is(res.Err, domain.ErrSessionDeadline) {
					row.Error = res.Err.Error()
					continue
				}
				if res.Result == nil || !res.Result.Success {
					continue
				}
				if outDir != "" {
					path := filepath.Join(outDir, storage.ObjectKey(res.Result.Content))
					if err := os.WriteFile(path, res.Result.Content.Data, 0o644); err != nil {
						row.Error = err.Error()
						continue
					}
					row.File = path
				}
			}

			succeeded := 0
			for _, r := range rows {
				switch {
				case r.Error != "":
					failed++
				case r.SourceUsed != "":
					succeeded++
				}
			}

			if *ctx.jsonFlag {
				if err := writeJSON(cmd, rows); err != nil {
					return err
				}
			} else {
				printBatchRows(cmd, rows)
				fmt.Fprintf(cmd.OutOrStdout(), "\n%d requests, %d acquired, %d failed\n", len(rows), succeeded, failed)
			}
			if succeeded == 0 && len(rows) > 0 {
				return errExhausted
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Write acquired content to this directory")
	return cmd
}

func printBatchRows(cmd *cobra.Command, rows []batchRow) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REQUEST\tIDENTIFIER\tSTATE\tSOURCE\tATTEMPTS\tNOTE")
	for _, r := range rows {
		note := r.File
		if r.Error != "" {
			note = r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", r.RequestID, r.Identifier, r.State, r.SourceUsed, r.Attempts, note)
	}
	_ = tw.Flush()
}

func newBatchSubmitCommand(ctx *commandContext) *cobra.Command {
	var batchID string
	var concurrency int

	cmd := &cobra.Command{
		Use:   "submit <requests.jsonl|->",
		Short: "Start the batch as a Temporal workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := readRequestFile(args[0])
			if err != nil {
				return err
			}
			if len(reqs) == 0 {
				return errors.New("request file is empty")
			}
			if batchID == "" {
				batchID = uuid.NewString()
			}

			return ctx.withTemporal(func(client *temporal.AcquisitionClient) error {
				wfID, runID, err := client.StartBatch(cmd.Context(), temporal.BatchWorkflowInput{
					BatchID:     batchID,
					Requests:    reqs,
					Concurrency: concurrency,
				})
				if err != nil {
					return err
				}
				if *ctx.jsonFlag {
					return writeJSON(cmd, map[string]any{
						"batch_id":    batchID,
						"workflow_id": wfID,
						"run_id":      runID,
						"requests":    len(reqs),
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Started batch %s (%d requests)\nWorkflow: %s\n", batchID, len(reqs), wfID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&batchID, "batch-id", "", "Batch ID (default: random)")
	cmd.Flags().IntVar(&concurrency, "concurrency", temporal.DefaultBatchConcurrency, "Acquisitions in flight")
	return cmd
}

func newBatchStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <batch-id>",
		Short: "Show the progress of a submitted batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withTemporal(func(client *temporal.AcquisitionClient) error {
				progress, err := client.BatchProgress(cmd.Context(), temporal.BatchWorkflowID(args[0]))
				if err != nil {
					return err
				}
				if *ctx.jsonFlag {
					return writeJSON(cmd, progress)
				}
				state := "running"
				if progress.Stopped {
					state = "stopping"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Batch %s: %s, %d/%d started, %d completed, %d acquired\n",
					args[0], state, progress.Started, progress.Total, progress.Completed, progress.Succeeded)
				return nil
			})
		},
	}
}

func newBatchStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <batch-id>",
		Short: "Stop a submitted batch after its running acquisitions finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withTemporal(func(client *temporal.AcquisitionClient) error {
				if err := client.StopBatch(cmd.Context(), temporal.BatchWorkflowID(args[0])); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stop requested for batch %s\n", args[0])
				return nil
			})
		},
	}
}
