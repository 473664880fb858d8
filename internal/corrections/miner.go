package corrections

import (
	"math"
	"sort"

	"github.com/expenseflow/expense-ocr/constants"
	"github.com/expenseflow/expense-ocr/internal/entity"
)

const (
	// DefaultMinFrequency drops one-off corrections: a mapping has to
	// recur before it counts as a pattern.
	DefaultMinFrequency = 2
	// DefaultMaxPerField caps mined patterns per field so a noisy field
	// cannot crowd the template.
	DefaultMaxPerField = 50
	// maxThreshold keeps the mined review threshold below full
	// confidence; nothing should require review of every extraction.
	maxThreshold = 0.95
)

// Miner derives recurring correction patterns and per-field confidence
// thresholds from a correction history slice. Stateless; recomputed on
// demand, never persisted.
type Miner struct {
	MinFrequency int
	MaxPerField  int
}

func NewMiner() *Miner {
	return &Miner{MinFrequency: DefaultMinFrequency, MaxPerField: DefaultMaxPerField}
}

type patternKey struct {
	field     string
	original  string
	corrected string
}

type patternAgg struct {
	insight entity.PatternInsight
	users   map[string]struct{}
}

// Patterns groups corrections by (field, original value, corrected value)
// and returns the recurring groups, most frequent first, capped per field.
func (m *Miner) Patterns(corrs []*entity.Correction) []entity.PatternInsight {
	groups := map[patternKey]*patternAgg{}
	for _, c := range corrs {
		for _, field := range c.FieldsCorrected {
			corrected, ok := c.CorrectedValue(field)
			if !ok {
				continue
			}
			var original string
			if v := c.OriginalInference.Field(field).Value; v != nil {
				original = *v
			}
			key := patternKey{field: field, original: original, corrected: corrected}
			agg, ok := groups[key]
			if !ok {
				agg = &patternAgg{
					insight: entity.PatternInsight{
						Field:          field,
						OriginalValue:  original,
						CorrectedValue: corrected,
					},
					users: map[string]struct{}{},
				}
				groups[key] = agg
			}
			agg.insight.Frequency++
			agg.users[c.UserID.String()] = struct{}{}
			if c.CreatedAt.After(agg.insight.LastSeen) {
				agg.insight.LastSeen = c.CreatedAt
			}
		}
	}

	perField := map[string][]entity.PatternInsight{}
	for _, agg := range groups {
		if agg.insight.Frequency < m.MinFrequency {
			continue
		}
		agg.insight.CorrectingUserCount = len(agg.users)
		perField[agg.insight.Field] = append(perField[agg.insight.Field], agg.insight)
	}

	var out []entity.PatternInsight
	for _, field := range constants.Fields {
		insights := perField[field]
		sort.Slice(insights, func(i, j int) bool {
			if insights[i].Frequency != insights[j].Frequency {
				return insights[i].Frequency > insights[j].Frequency
			}
			if !insights[i].LastSeen.Equal(insights[j].LastSeen) {
				return insights[i].LastSeen.After(insights[j].LastSeen)
			}
			return insights[i].OriginalValue < insights[j].OriginalValue
		})
		if len(insights) > m.MaxPerField {
			insights = insights[:m.MaxPerField]
		}
		out = append(out, insights...)
	}
	return out
}

// ConfidenceThresholds recommends a per-field review threshold from the
// OCR confidences observed when humans corrected that field: mean plus one
// standard deviation, capped. Fields with no corrections get no entry.
func (m *Miner) ConfidenceThresholds(corrs []*entity.Correction) map[string]float64 {
	samples := map[string][]float64{}
	for _, c := range corrs {
		for _, field := range c.FieldsCorrected {
			samples[field] = append(samples[field], float64(c.OCRConfidence))
		}
	}

	out := map[string]float64{}
	for field, vals := range samples {
		var sum float64
		for _, v := range vals {
			sum += v
		}
		mean := sum / float64(len(vals))
		var sq float64
		for _, v := range vals {
			sq += (v - mean) * (v - mean)
		}
		stddev := math.Sqrt(sq / float64(len(vals)))
		out[field] = math.Min(maxThreshold, mean+stddev)
	}
	return out
}
