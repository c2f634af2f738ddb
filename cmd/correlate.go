package cmd

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"argus/correlate"
	"argus/service"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed correlation_request.schema.json
var requestSchema []byte

// maxRequestFileSize bounds correlation request files
const maxRequestFileSize = 1 << 20

// loadRequests reads a request file holding one correlation request or an
// array of them. The file is checked against the request schema before it
// is decoded.
func loadRequests(path string) ([]service.CorrelationRequest, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read request file: %w", err)
	}
	if info.Size() > maxRequestFileSize {
		return nil, false, fmt.Errorf("request file too large: %d bytes (max %d)", info.Size(), maxRequestFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read request file: %w", err)
	}
	if err := checkRequestSchema(data); err != nil {
		return nil, false, err
	}

	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		var reqs []service.CorrelationRequest
		if err := json.Unmarshal(data, &reqs); err != nil {
			return nil, false, fmt.Errorf("failed to decode request file: %w", err)
		}
		return reqs, true, nil
	}

	var req service.CorrelationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, false, fmt.Errorf("failed to decode request file: %w", err)
	}
	return []service.CorrelationRequest{req}, false, nil
}

func checkRequestSchema(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(requestSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("failed to validate request file: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("request file does not match the request schema: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// newCorrelateCmd creates the 'correlate' subcommand
func newCorrelateCmd() *cobra.Command {
	var (
		requestFile  string
		showProgress bool
	)

	cmd := &cobra.Command{
		Use:   "correlate",
		Short: "Correlate entity records",
		Long: `Correlate the records matched by a primary query with the records matched by
one or more secondary queries.

The request file holds one request object or an array of them; arrays are
run concurrently. A request that exceeds the correlation time budget
returns the results found so far, marked as timed out.`,
		Example: `  argus correlate --request request.json

  request.json:
  {
    "primary_query": "protocol:tcp AND bytes:>1MB",
    "secondary_queries": ["severity:>=high"],
    "correlation_params": {"fields": ["source_ip", "destination_ip"], "correlationType": "OR"}
  }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(commandContext(cmd), defaultTimeout)
			defer cancel()

			reqs, batch, err := loadRequests(requestFile)
			if err != nil {
				return err
			}

			svc, err := app.Correlations()
			if err != nil {
				return err
			}

			var s *spinner.Spinner
			if showProgress && !outputJSON && !quiet {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
				s.Suffix = " Correlating..."
				s.Start()
			}
			stop := func() {
				if s != nil {
					s.Stop()
				}
			}

			if batch {
				items := svc.CorrelateBatch(ctx, reqs)
				stop()
				return outputBatch(cmd, items)
			}

			resp, err := svc.Correlate(ctx, reqs[0])
			stop()
			if err != nil {
				if resp == nil || !service.IsPartial(err) {
					return err
				}
				if !outputJSON && !quiet {
					warningColor.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
				}
			}

			if outputJSON {
				return outputAsJSON(cmd.OutOrStdout(), resp)
			}
			renderCorrelation(cmd.OutOrStdout(), resp)
			return nil
		},
	}

	cmd.Flags().StringVarP(&requestFile, "request", "r", "", "Correlation request file (JSON)")
	cmd.Flags().BoolVar(&showProgress, "progress", true, "Show progress indicator")
	_ = cmd.MarkFlagRequired("request")

	return cmd
}

func outputBatch(cmd *cobra.Command, items []service.BatchItem) error {
	failed := 0
	for _, item := range items {
		if item.Response == nil {
			failed++
		}
	}

	if outputJSON {
		if err := outputAsJSON(cmd.OutOrStdout(), items); err != nil {
			return err
		}
	} else {
		renderBatch(cmd.OutOrStdout(), items)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d correlation requests failed", failed, len(items))
	}
	return nil
}

func renderBatch(w io.Writer, items []service.BatchItem) {
	for _, item := range items {
		if item.Response == nil {
			errorColor.Fprintf(w, "Request %d failed: %s\n\n", item.Index, item.Error)
			continue
		}
		renderCorrelation(w, item.Response)
		fmt.Fprintln(w)
	}
}

// newSuggestCmd creates the 'suggest' subcommand
func newSuggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <primary-query> <secondary-query>",
		Short: "Suggest correlation fields for two queries",
		Long:  "Infer the entity types of two queries and list proven correlation field sets for the pair.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := correlate.SuggestForQueries(app.Validator, args[0], args[1])
			if err != nil {
				return err
			}

			if outputJSON {
				return outputAsJSON(cmd.OutOrStdout(), set)
			}
			renderSuggestions(cmd.OutOrStdout(), set)
			return nil
		},
	}
}
