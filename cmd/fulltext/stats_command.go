package main

import (
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixir/fulltext-acquisition-service/internal/app"
	"github.com/helixir/fulltext-acquisition-service/internal/domain"
	"github.com/helixir/fulltext-acquisition-service/internal/repository"
)

// sourceStats is one source's attempt outcomes over a window.
type sourceStats struct {
	Source   domain.SourceName               `json:"source"`
	Total    int64                           `json:"total"`
	Success  int64                           `json:"success"`
	Outcomes map[domain.AttemptOutcome]int64 `json:"outcomes"`
}

// summarizeOutcomes folds outcome counts into per-source rows ordered by total attempts.
func summarizeOutcomes(counts []repository.OutcomeCount) []sourceStats {
	bySource := make(map[domain.SourceName]*sourceStats)
	for _, c := range counts {
		s, ok := bySource[c.Source]
		if !ok {
			s = &sourceStats{Source: c.Source, Outcomes: make(map[domain.AttemptOutcome]int64)}
			bySource[c.Source] = s
		}
		s.Outcomes[c.Outcome] += c.Count
		s.Total += c.Count
		if c.Outcome == domain.OutcomeSuccess {
			s.Success += c.Count
		}
	}

	rows := make([]sourceStats, 0, len(bySource))
	for _, s := range bySource {
		rows = append(rows, *s)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Total != rows[j].Total {
			return rows[i].Total > rows[j].Total
		}
		return rows[i].Source < rows[j].Source
	})
	return rows
}

func (c *commandContext) recordedStack(cmd *cobra.Command) (*app.Stack, error) {
	*c.recordFlag = true
	stack, err := c.acquisitionStack(cmd.Context())
	if err != nil {
		return nil, err
	}
	if stack.Sessions == nil {
		return nil, errors.New("session store unavailable")
	}
	return stack, nil
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var window time.Duration

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show per-source attempt outcomes from recorded sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := ctx.recordedStack(cmd)
			if err != nil {
				return err
			}

			counts, err := stack.Sessions.OutcomeCounts(cmd.Context(), time.Now().Add(-window))
			if err != nil {
				return err
			}
			rows := summarizeOutcomes(counts)
			if *ctx.jsonFlag {
				return writeJSON(cmd, rows)
			}
			if len(rows) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No attempts recorded in the last %s\n", window)
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SOURCE\tATTEMPTS\tSUCCESS\tRATE")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%.1f%%\n", r.Source, r.Total, r.Success, 100*float64(r.Success)/float64(r.Total))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().DurationVar(&window, "since", 24*time.Hour, "Look back this far")

	cmd.AddCommand(newHistoryCommand(ctx))
	return cmd
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var rf requestFlags

	cmd := &cobra.Command{
		Use:   "last",
		Short: "Show the most recent recorded session for a publication",
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := ctx.recordedStack(cmd)
			if err != nil {
				return err
			}
			id, err := stack.Service.Resolve(rf.request())
			if err != nil {
				return err
			}

			rec, err := stack.Sessions.LatestByIdentifier(cmd.Context(), id.Key())
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					fmt.Fprintf(cmd.OutOrStdout(), "No sessions recorded for %s\n", id.Key())
					return nil
				}
				return err
			}
			if *ctx.jsonFlag {
				return writeJSON(cmd, map[string]any{
					"result":      rec.Result,
					"skip":        rec.Skip.Strings(),
					"storage_uri": rec.StorageURI,
				})
			}

			res := rec.Result
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Identifier: %s\n", id.Key())
			fmt.Fprintf(w, "Session:    %s (%s) at %s\n", res.SessionID, res.State, res.StartedAt.Format(time.RFC3339))
			if res.Success {
				fmt.Fprintf(w, "Source:     %s\n", res.SourceUsed)
			}
			if rec.StorageURI != "" {
				fmt.Fprintf(w, "Stored:     %s\n", rec.StorageURI)
			}
			printAttempts(cmd, res.Attempts)
			return nil
		},
	}
	rf.bind(cmd)
	return cmd
}
