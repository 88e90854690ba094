package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helixir/fulltext-acquisition-service/internal/temporal"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var rf requestFlags
	var wait bool

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Start one acquisition on the Temporal worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := rf.request()
			return ctx.withTemporal(func(client *temporal.AcquisitionClient) error {
				wfID, err := client.StartAcquisition(cmd.Context(), req)
				if err != nil {
					return err
				}
				if !wait {
					if *ctx.jsonFlag {
						return writeJSON(cmd, map[string]string{"request_id": req.RequestID, "workflow_id": wfID})
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Started %s\n", wfID)
					return nil
				}

				summary, err := client.AcquisitionResult(cmd.Context(), wfID, "")
				if err != nil {
					return err
				}
				if *ctx.jsonFlag {
					if err := writeJSON(cmd, summary); err != nil {
						return err
					}
				} else {
					printSummary(cmd, summary)
				}
				if !summary.Success {
					return errExhausted
				}
				return nil
			})
		},
	}
	rf.bind(cmd)
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the workflow and print its summary")
	return cmd
}

func printSummary(cmd *cobra.Command, s *temporal.AcquisitionSummary) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Identifier: %s\n", s.Identifier)
	fmt.Fprintf(w, "Session:    %s (%s), %d attempts, %d resumes\n", s.SessionID, s.State, s.Attempts, s.Resumes)
	if s.Success {
		fmt.Fprintf(w, "Source:     %s\n", s.SourceUsed)
		fmt.Fprintf(w, "Content:    %s, %d bytes, sha256 %s\n", s.Kind, s.SizeBytes, s.SHA256)
		fmt.Fprintf(w, "Stored:     %s\n", s.StorageURI)
	}
	fmt.Fprintf(w, "Skip set:   %v\n", s.Skip)
}
