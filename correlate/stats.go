package correlate

// ScoreDistribution counts results per confidence bucket
type ScoreDistribution struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// FieldStat summarises one correlation field across the correlated results
type FieldStat struct {
	Exact    int     `json:"exact"`
	Fuzzy    int     `json:"fuzzy"`
	Partial  int     `json:"partial"`
	AvgScore float64 `json:"avg_score"`
}

// Stats describes a correlation pass. Counts cover every qualifying
// secondary record, including those cut by the result limit.
type Stats struct {
	TotalSecondary    int                   `json:"total_secondary"`
	CorrelatedCount   int                   `json:"correlated_count"`
	AverageScore      float64               `json:"average_score"`
	ScoreDistribution ScoreDistribution     `json:"score_distribution"`
	FieldStatistics   map[string]*FieldStat `json:"field_statistics"`
}

type statsBuilder struct {
	stats     Stats
	scoreSum  float64
	fieldSums map[string]float64
}

func newStatsBuilder(fields []string) *statsBuilder {
	b := &statsBuilder{
		stats:     Stats{FieldStatistics: make(map[string]*FieldStat, len(fields))},
		fieldSums: make(map[string]float64, len(fields)),
	}
	for _, f := range fields {
		b.stats.FieldStatistics[f] = &FieldStat{}
	}
	return b
}

func (b *statsBuilder) secondary() {
	b.stats.TotalSecondary++
}

func (b *statsBuilder) add(r Result, outcomes []FieldOutcome) {
	b.stats.CorrelatedCount++
	b.scoreSum += r.CorrelationScore

	switch r.Confidence {
	case ConfidenceHigh:
		b.stats.ScoreDistribution.High++
	case ConfidenceMedium:
		b.stats.ScoreDistribution.Medium++
	default:
		b.stats.ScoreDistribution.Low++
	}

	for _, o := range outcomes {
		fs := b.stats.FieldStatistics[o.Field]
		switch {
		case !o.Resolved || o.Score <= 0:
			fs.Partial++
		case o.Score >= 1:
			fs.Exact++
		default:
			fs.Fuzzy++
		}
		b.fieldSums[o.Field] += o.Score
	}
}

// snapshot returns the statistics gathered so far with averages filled in
func (b *statsBuilder) snapshot() Stats {
	out := b.stats
	out.FieldStatistics = make(map[string]*FieldStat, len(b.stats.FieldStatistics))
	for f, fs := range b.stats.FieldStatistics {
		c := *fs
		if out.CorrelatedCount > 0 {
			c.AvgScore = b.fieldSums[f] / float64(out.CorrelatedCount)
		}
		out.FieldStatistics[f] = &c
	}
	if out.CorrelatedCount > 0 {
		out.AverageScore = b.scoreSum / float64(out.CorrelatedCount)
	}
	return out
}
