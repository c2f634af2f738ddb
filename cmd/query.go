package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"argus/core"
	"argus/search"
	"argus/service"

	"github.com/spf13/cobra"
)

// errInvalidQuery is returned after an invalid query has been reported
var errInvalidQuery = errors.New("query is invalid")

// parseEntity converts a flag value into an entity type; empty means infer
func parseEntity(s string) (core.EntityType, error) {
	if s == "" {
		return "", nil
	}
	return core.ParseEntityType(s)
}

// newValidateCmd creates the 'validate' subcommand
func newValidateCmd() *cobra.Command {
	var entity string

	cmd := &cobra.Command{
		Use:   "validate <query>",
		Short: "Validate a query",
		Long: `Check a query for syntax, unknown fields, operator/type mismatches and
dangerous content without reading any data. Deprecated field names are
reported together with a corrected query.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			et, err := parseEntity(entity)
			if err != nil {
				return err
			}

			resp := app.Validation().Validate(args[0], et)

			if outputJSON {
				if err := outputAsJSON(cmd.OutOrStdout(), resp); err != nil {
					return err
				}
			} else {
				renderValidation(cmd.OutOrStdout(), resp)
			}

			if !resp.IsValid {
				return errInvalidQuery
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&entity, "entity", "e", "", "Entity type to validate against (inferred when empty)")

	return cmd
}

// newSearchCmd creates the 'search' subcommand
func newSearchCmd() *cobra.Command {
	var (
		entity          string
		limit           int
		offset          int
		minSeverity     string
		includeResolved bool
		timeWindow      string
		aggregate       bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a query against an entity collection",
		Long:  "Validate a query, load the matching entity collection and print the records that match.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(commandContext(cmd), defaultTimeout)
			defer cancel()

			et, err := parseEntity(entity)
			if err != nil {
				return err
			}

			qs, err := app.Queries()
			if err != nil {
				return err
			}

			req := service.SearchRequest{
				Query:       args[0],
				EntityType:  et,
				Limit:       limit,
				Offset:      offset,
				MinSeverity: minSeverity,
				TimeWindow:  timeWindow,
				Aggregate:   aggregate,
			}
			if cmd.Flags().Changed("include-resolved") {
				req.IncludeResolved = &includeResolved
			}

			result, err := qs.Search(ctx, req)
			if err != nil {
				return err
			}

			if outputJSON {
				return outputAsJSON(cmd.OutOrStdout(), result)
			}
			return renderSearchResult(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVarP(&entity, "entity", "e", "", "Entity type to search (inferred when empty)")
	cmd.Flags().IntVarP(&limit, "limit", "n", service.DefaultSearchLimit, "Maximum number of records to print")
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip this many matching records")
	cmd.Flags().StringVar(&minSeverity, "min-severity", "", "Only records at or above this severity (low, medium, high, critical)")
	cmd.Flags().BoolVar(&includeResolved, "include-resolved", true, "Include resolved records")
	cmd.Flags().StringVar(&timeWindow, "time-window", "", "Only records newer than this window, e.g. 1h, 24h or 7d")
	cmd.Flags().BoolVar(&aggregate, "aggregate", false, "Count all matches by grouping fields")

	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func renderValidation(w io.Writer, resp search.ValidationResponse) {
	if resp.IsValid {
		successColor.Fprintln(w, "✓ Query is valid")
	} else {
		errorColor.Fprintln(w, "✗ Query is invalid")
	}
	for _, e := range resp.Errors {
		fmt.Fprintf(w, "  - %s\n", e)
	}
	if len(resp.Suggestions) > 0 {
		infoColor.Fprintf(w, "Suggestions: %s\n", strings.Join(resp.Suggestions, ", "))
	}
	if resp.CorrectedQuery != nil {
		infoColor.Fprintf(w, "Corrected query: %s\n", *resp.CorrectedQuery)
	}
}
