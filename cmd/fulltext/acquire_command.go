package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/helixir/fulltext-acquisition-service/internal/acquisition"
	"github.com/helixir/fulltext-acquisition-service/internal/app"
	"github.com/helixir/fulltext-acquisition-service/internal/domain"
)

// requestFlags are the identifier flags shared by acquire, locate and resolve.
type requestFlags struct {
	requestID   string
	doi         string
	pmid        string
	pmcid       string
	arxiv       string
	title       string
	authors     []string
	year        int
	contentHash string
	skip        []string
	fresh       bool
}

func (f *requestFlags) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.requestID, "request-id", "", "Correlation ID (default: random)")
	flags.StringVar(&f.doi, "doi", "", "DOI, bare or as a doi.org URL")
	flags.StringVar(&f.pmid, "pmid", "", "PubMed ID")
	flags.StringVar(&f.pmcid, "pmcid", "", "PubMed Central ID, with or without the PMC prefix")
	flags.StringVar(&f.arxiv, "arxiv", "", "arXiv ID")
	flags.StringVar(&f.title, "title", "", "Title, used when no formal identifier is given")
	flags.StringArrayVar(&f.authors, "author", nil, "Author name (repeatable)")
	flags.IntVar(&f.year, "year", 0, "Publication year")
	flags.StringVar(&f.contentHash, "content-hash", "", "Precomputed content hash")
	flags.StringSliceVar(&f.skip, "skip", nil, "Source tokens to skip (comma separated or repeated)")
	flags.BoolVar(&f.fresh, "fresh", false, "Ignore and clear the skip set stored from earlier sessions")
}

func (f *requestFlags) request() domain.AcquisitionRequest {
	id := f.requestID
	if id == "" {
		id = uuid.NewString()
	}
	return domain.AcquisitionRequest{
		RequestID: id,
		Identifier: domain.IdentifierFields{
			DOI:     f.doi,
			PMID:    f.pmid,
			PMCID:   f.pmcid,
			ArXivID: f.arxiv,
			Title:   f.title,
			Authors: f.authors,
			Year:    f.year,
		},
		ContentHash: f.contentHash,
		Skip:        f.skip,
		Fresh:       f.fresh,
	}
}

// acquireOutput is the --json form of an acquisition.
type acquireOutput struct {
	Identifier  string                      `json:"identifier"`
	SessionID   string                      `json:"session_id"`
	State       domain.SessionState         `json:"state"`
	Success     bool                        `json:"success"`
	Interrupted bool                        `json:"interrupted,omitempty"`
	SourceUsed  domain.SourceName           `json:"source_used,omitempty"`
	Content     *domain.AcquiredContent     `json:"content,omitempty"`
	StorageURI  string                      `json:"storage_uri,omitempty"`
	OutputFile  string                      `json:"output_file,omitempty"`
	Skip        []string                    `json:"skip"`
	Attempts    []domain.AcquisitionAttempt `json:"attempts"`
}

func newAcquireCommand(ctx *commandContext) *cobra.Command {
	var rf requestFlags
	var outPath string

	cmd := &cobra.Command{
		Use:   "acquire",
		Short: "Download and validate the full text of one publication",
		Example: `  fulltext acquire --doi 10.1038/s41586-020-2649-2 --out paper.pdf
  fulltext acquire --pmcid PMC7096803 --skip scihub_mirror_1,libgen`,
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := ctx.acquisitionStack(cmd.Context())
			if err != nil {
				return err
			}

			out, acqErr := stack.Service.Acquire(cmd.Context(), rf.request())
			if acqErr != nil && !errors.Is(acqErr, domain.ErrSessionDeadline) {
				return acqErr
			}

			res := out.Result
			report := acquireOutput{
				Identifier:  res.Identifier.Key(),
				SessionID:   res.SessionID.String(),
				State:       res.State,
				Success:     res.Success,
				Interrupted: res.Interrupted,
				SourceUsed:  res.SourceUsed,
				Content:     res.Content,
				StorageURI:  out.StorageURI,
				Skip:        out.Skip.Strings(),
				Attempts:    res.Attempts,
			}
			if res.Success && outPath != "" {
				if err := os.WriteFile(outPath, res.Content.Data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", outPath, err)
				}
				report.OutputFile = outPath
			}

			if *ctx.jsonFlag {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				printAcquisition(cmd, out, report.OutputFile)
			}

			switch {
			case acqErr != nil:
				return acqErr
			case !res.Success:
				return errExhausted
			}
			return nil
		},
	}
	rf.bind(cmd)
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Also write the content to this file")
	return cmd
}

func printAcquisition(cmd *cobra.Command, out *acquisition.Outcome, outFile string) {
	w := cmd.OutOrStdout()
	res := out.Result

	fmt.Fprintf(w, "Identifier: %s\n", res.Identifier.Key())
	fmt.Fprintf(w, "Session:    %s (%s)\n", res.SessionID, res.State)
	if res.Success {
		fmt.Fprintf(w, "Source:     %s\n", res.SourceUsed)
		fmt.Fprintf(w, "Content:    %s, %d bytes, sha256 %s\n", res.Content.Kind, res.Content.SizeBytes, res.Content.SHA256)
		if out.StorageURI != "" {
			fmt.Fprintf(w, "Stored:     %s\n", out.StorageURI)
		}
		if outFile != "" {
			fmt.Fprintf(w, "Written:    %s\n", outFile)
		}
	} else if res.Interrupted {
		fmt.Fprintln(w, "Result:     interrupted by the session deadline")
	} else {
		fmt.Fprintln(w, "Result:     exhausted")
	}
	fmt.Fprintf(w, "Skip set:   %v\n", out.Skip.Strings())

	printAttempts(cmd, res.Attempts)
}

func printAttempts(cmd *cobra.Command, attempts []domain.AcquisitionAttempt) {
	if len(attempts) == 0 {
		return
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nSOURCE\tOUTCOME\tDURATION\tDETAIL")
	for _, a := range attempts {
		detail := a.Error
		if detail == "" {
			detail = a.URL
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.Source, a.Outcome, a.Duration.Round(time.Millisecond), detail)
	}
	_ = tw.Flush()
}

func newLocateCommand(ctx *commandContext) *cobra.Command {
	var rf requestFlags

	cmd := &cobra.Command{
		Use:   "locate",
		Short: "List candidate full-text locations without downloading",
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := ctx.acquisitionStack(cmd.Context())
			if err != nil {
				return err
			}

			res, err := stack.Service.Locate(cmd.Context(), rf.request())
			if err != nil {
				return err
			}
			if *ctx.jsonFlag {
				return writeJSON(cmd, res)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Identifier: %s\n", res.Identifier.Key())
			if len(res.Candidates) == 0 {
				fmt.Fprintln(w, "No candidate locations found")
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			for _, c := range res.Candidates {
				where := c.URL
				if c.Inline {
					where = "(inline content)"
				}
				fmt.Fprintf(tw, "%s\t%s\n", c.Source, where)
			}
			_ = tw.Flush()
			printAttempts(cmd, res.Attempts)
			return nil
		},
	}
	rf.bind(cmd)
	return cmd
}

// resolveOutput is the canonical form of an identifier.
type resolveOutput struct {
	Key         string                `json:"key"`
	Kind        domain.IdentifierKind `json:"kind"`
	Primary     string                `json:"primary"`
	DOI         string                `json:"doi,omitempty"`
	PMID        string                `json:"pmid,omitempty"`
	PMCID       string                `json:"pmc_id,omitempty"`
	ArXivID     string                `json:"arxiv_id,omitempty"`
	ContentHash string                `json:"content_hash,omitempty"`
}

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var rf requestFlags

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the canonical identifier for the given fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := ctx.acquisitionStack(cmd.Context())
			if err != nil {
				return err
			}

			id, err := stack.Service.Resolve(rf.request())
			if err != nil {
				return err
			}
			out := resolveOutput{
				Key:         id.Key(),
				Kind:        id.Kind(),
				Primary:     id.Primary(),
				DOI:         id.DOI(),
				PMID:        id.PMID(),
				PMCID:       id.PMCID(),
				ArXivID:     id.ArXivID(),
				ContentHash: id.ContentHash(),
			}
			if *ctx.jsonFlag {
				return writeJSON(cmd, out)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Key)
			return nil
		},
	}
	rf.bind(cmd)
	return cmd
}

func newSourcesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "Show the configured source priority and which sources are registered",
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := ctx.acquisitionStack(cmd.Context())
			if err != nil {
				return err
			}
			priority, err := ctx.config.Acquisition.PriorityNames()
			if err != nil {
				return err
			}
			missing, err := app.UnregisteredPriority(ctx.config, stack.Registry)
			if err != nil {
				return err
			}
			absent := domain.NewSkipSet(missing...)

			type row struct {
				Source     domain.SourceName `json:"source"`
				Registered bool              `json:"registered"`
			}
			rows := make([]row, 0, len(priority))
			for _, name := range priority {
				rows = append(rows, row{Source: name, Registered: !absent.Contains(name)})
			}
			if *ctx.jsonFlag {
				return writeJSON(cmd, rows)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tSOURCE\tSTATUS")
			for i, r := range rows {
				status := "enabled"
				if !r.Registered {
					status = "not configured"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, r.Source, status)
			}
			return tw.Flush()
		},
	}
}
