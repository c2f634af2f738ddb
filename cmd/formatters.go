package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"argus/core"
	"argus/correlate"
	"argus/service"

	"github.com/fatih/color"
)

// labelPaths are tried in order to name a record in text output
var labelPaths = []string{"id", "aid", "gid", "name", "device.name", "device.mac"}

// maxLineWidth truncates record lines in text output
const maxLineWidth = 160

// recordLabel returns a short human name for a record
func recordLabel(rec core.Record) string {
	for _, p := range labelPaths {
		if v, ok := core.GetNested(rec, p); ok && v != nil {
			return fmt.Sprintf("%s=%s", p, core.ToString(v))
		}
	}
	return compactJSON(rec)
}

func compactJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	s := string(b)
	if len(s) > maxLineWidth {
		s = s[:maxLineWidth-3] + "..."
	}
	return s
}

// confidenceColor maps a confidence bucket to its display color
func confidenceColor(c correlate.Confidence) *color.Color {
	switch c {
	case correlate.ConfidenceHigh:
		return successColor
	case correlate.ConfidenceMedium:
		return warningColor
	default:
		return errorColor
	}
}

// renderSearchResult prints matched records, one compact JSON line each
func renderSearchResult(w io.Writer, res *service.SearchResult) error {
	headerColor.Fprintf(w, "%d %s matching %s\n", res.Count, res.EntityType, res.Query)
	for _, rec := range res.Records {
		fmt.Fprintln(w, compactJSON(rec))
	}
	if res.Truncated {
		warningColor.Fprintln(w, "More records match; raise --limit to see them")
	}
	if res.Aggregations != nil {
		renderAggregations(w, res)
	}
	return nil
}

// renderAggregations prints per-field value counts, largest first
func renderAggregations(w io.Writer, res *service.SearchResult) {
	headerColor.Fprintf(w, "%d total matches\n", res.Total)

	fields := make([]string, 0, len(res.Aggregations))
	for f := range res.Aggregations {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, f := range fields {
		counts := res.Aggregations[f]
		values := make([]string, 0, len(counts))
		for v := range counts {
			values = append(values, v)
		}
		sort.Slice(values, func(i, j int) bool {
			if counts[values[i]] != counts[values[j]] {
				return counts[values[i]] > counts[values[j]]
			}
			return values[i] < values[j]
		})

		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = fmt.Sprintf("%s=%d", v, counts[v])
		}
		fmt.Fprintf(w, "  %-10s %s\n", f+":", strings.Join(parts, " "))
	}
}

// renderCorrelation prints one correlation response
func renderCorrelation(w io.Writer, resp *service.CorrelationResponse) {
	secondaries := make([]string, len(resp.SecondaryEntities))
	for i, et := range resp.SecondaryEntities {
		secondaries[i] = string(et)
	}

	headerColor.Fprintf(w, "Correlation %s\n", resp.RequestID)
	headerColor.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "%-12s %s\n", "Primary:", resp.PrimaryEntity)
	fmt.Fprintf(w, "%-12s %s\n", "Secondary:", strings.Join(secondaries, ", "))
	fmt.Fprintf(w, "%-12s %dms\n", "Duration:", resp.DurationMS)
	fmt.Fprintln(w, strings.Repeat("-", 80))

	if len(resp.CorrelatedResults) == 0 {
		warningColor.Fprintln(w, "No correlated records")
	}
	for _, r := range resp.CorrelatedResults {
		confidenceColor(r.Confidence).Fprintf(w, "%-7s", strings.ToUpper(string(r.Confidence)))
		fmt.Fprintf(w, " %.3f  %-8s %-13s %s <- %s\n",
			r.CorrelationScore, r.MatchType, r.EntityType, recordLabel(r.Entity), recordLabel(r.Primary))
		fmt.Fprintf(w, "        %s\n", formatFieldScores(r.FieldScores))
	}

	renderStats(w, resp.Stats)

	if resp.Truncated {
		warningColor.Fprintln(w, "Results truncated to the request limit")
	}
	if resp.TimedOut {
		warningColor.Fprintln(w, "Correlation timed out; results are partial")
	}
}

func formatFieldScores(scores map[string]float64) string {
	fields := make([]string, 0, len(scores))
	for f := range scores {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s=%.2f", f, scores[f])
	}
	return strings.Join(parts, " ")
}

func renderStats(w io.Writer, s correlate.Stats) {
	fmt.Fprintln(w, strings.Repeat("-", 80))
	fmt.Fprintf(w, "Correlated %d of %d secondary records, average score %.3f\n",
		s.CorrelatedCount, s.TotalSecondary, s.AverageScore)
	fmt.Fprintf(w, "Confidence: %s %d  %s %d  %s %d\n",
		successColor.Sprint("high"), s.ScoreDistribution.High,
		warningColor.Sprint("medium"), s.ScoreDistribution.Medium,
		errorColor.Sprint("low"), s.ScoreDistribution.Low)

	fields := make([]string, 0, len(s.FieldStatistics))
	for f := range s.FieldStatistics {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fs := s.FieldStatistics[f]
		fmt.Fprintf(w, "  %-20s exact %-5d fuzzy %-5d partial %-5d avg %.3f\n",
			f, fs.Exact, fs.Fuzzy, fs.Partial, fs.AvgScore)
	}
}

// renderSuggestions prints correlation field suggestions, best first
func renderSuggestions(w io.Writer, set *correlate.SuggestionSet) {
	headerColor.Fprintf(w, "Correlating %s with %s\n", set.PrimaryEntity, set.SecondaryEntity)
	if len(set.Suggestions) == 0 {
		warningColor.Fprintln(w, "No shared fields")
		return
	}
	fmt.Fprintf(w, "%-10s %-36s %s\n", "Confidence", "Fields", "Reason")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, s := range set.Suggestions {
		fmt.Fprintf(w, "%-10.2f %-36s %s\n", s.Confidence, strings.Join(s.Fields, ", "), s.Reason)
	}
}

// fieldInfo is the printable form of a field definition
type fieldInfo struct {
	Name  string   `json:"name"`
	Type  string   `json:"type"`
	Class string   `json:"match_class"`
	Paths []string `json:"paths"`
	Units []string `json:"units,omitempty"`
	Ranks []string `json:"ranks,omitempty"`
}

func describeField(def core.FieldDef) fieldInfo {
	info := fieldInfo{
		Name:  def.Name,
		Type:  string(def.Type),
		Class: string(def.Class),
		Paths: def.Paths,
	}
	for u := range def.Units {
		if u != "" {
			info.Units = append(info.Units, u)
		}
	}
	sort.Strings(info.Units)
	for r := range def.Ranks {
		info.Ranks = append(info.Ranks, r)
	}
	sort.Slice(info.Ranks, func(i, j int) bool {
		return def.Ranks[info.Ranks[i]] < def.Ranks[info.Ranks[j]]
	})
	return info
}

// renderFields prints the field table of one entity type
func renderFields(w io.Writer, et core.EntityType, fields []fieldInfo) {
	headerColor.Fprintf(w, "%s (%d fields)\n", et, len(fields))
	for _, f := range fields {
		extra := ""
		if len(f.Units) > 0 {
			extra = " units: " + strings.Join(f.Units, ",")
		}
		if len(f.Ranks) > 0 {
			extra = " ranks: " + strings.Join(f.Ranks, "<")
		}
		fmt.Fprintf(w, "  %-20s %-10s %-8s %s%s\n", f.Name, f.Type, f.Class, strings.Join(f.Paths, " | "), extra)
	}
}
