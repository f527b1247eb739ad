package etl

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"eventmanager/internal/clock"
	"eventmanager/internal/quality"
)

// CleaningTransformer renames fields, trims strings and drops records missing a required field.
// Required fields are checked after renaming.
type CleaningTransformer struct {
	Mappings map[string]string
	Required []string
	Logger   *slog.Logger
}

func (t *CleaningTransformer) Transform(ctx context.Context, rec Record) (Record, error) {
	out := make(Record, len(rec))
	for k, v := range rec {
		if to, ok := t.Mappings[k]; ok {
			k = to
		}
		if s, ok := v.(string); ok {
			v = strings.TrimSpace(s)
		}
		out[k] = v
	}
	for _, f := range t.Required {
		if v, ok := out[f]; !ok || v == nil {
			if t.Logger != nil {
				t.Logger.WarnContext(ctx, "etl record missing required field", "field", f)
			}
			return nil, nil
		}
	}
	return out, nil
}

// EnrichmentTransformer derives occupancy rates and stamps the sync time.
type EnrichmentTransformer struct {
	Clock clock.Clock
}

func (t *EnrichmentTransformer) Transform(_ context.Context, rec Record) (Record, error) {
	c := t.Clock
	if c == nil {
		c = clock.NewSystem()
	}
	seats, _ := toFloat(rec["seats"])
	participants, _ := toFloat(rec["participant_count"])
	checkedIn, _ := toFloat(rec["checked_in_count"])

	out := make(Record, len(rec)+3)
	for k, v := range rec {
		out[k] = v
	}
	out["fill_rate"] = 0.0
	if seats > 0 {
		out["fill_rate"] = participants / seats * 100
	}
	out["check_in_rate"] = 0.0
	if participants > 0 {
		out["check_in_rate"] = checkedIn / participants * 100
	}
	out["synced_at"] = c.Now()
	return out, nil
}

// ValidationTransformer drops records that fail a quality validator.
type ValidationTransformer struct {
	Validator *quality.Validator
	Logger    *slog.Logger
}

func (t *ValidationTransformer) Transform(ctx context.Context, rec Record) (Record, error) {
	rep := t.Validator.Validate(quality.Record(rec))
	if rep.IsValid {
		return rec, nil
	}
	if t.Logger != nil {
		t.Logger.WarnContext(ctx, "etl record failed validation", "problems", strings.Join(rep.Problems(), "; "))
	}
	return nil, nil
}

// FuncTransformer adapts a function to Transformer.
type FuncTransformer func(ctx context.Context, rec Record) (Record, error)

func (f FuncTransformer) Transform(ctx context.Context, rec Record) (Record, error) { return f(ctx, rec) }

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case float32:
		return float64(t), nil
	case float64:
		return t, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
