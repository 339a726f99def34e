// Package fertilizer computes the fertilizer humidity chart: a bar series of
// the protocol's humidity rate per season.
package fertilizer

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/beancharts/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the chart handler with the registry.
func (m *Module) Register(h *registry.Handlers) {
	h.RegisterChart("RenderFertilizer", Render)
}

const seasonsQuery = `query FertilizerSeasons($first: Int!) {
  seasons(first: $first, orderBy: season, orderDirection: asc) {
    season
    timestamp
    humidity
  }
}`

type seasonRow struct {
	Season    int     `json:"season"`
	Timestamp int64   `json:"timestamp,string"`
	Humidity  float64 `json:"humidity,string"`
}

// Render queries the season series and assembles the compiled Vega-Lite
// document. The document layout (marks, encodings) belongs to this unit
// alone; downstream code treats it as opaque.
func Render(ctx context.Context, deps *registry.Deps) (cty.Value, error) {
	var out struct {
		Seasons []seasonRow `json:"seasons"`
	}
	if err := deps.Subgraph.Query(ctx, seasonsQuery, map[string]any{"first": 10000}, &out); err != nil {
		return cty.NilVal, fmt.Errorf("fertilizer series query failed: %w", err)
	}

	rows := make([]cty.Value, 0, len(out.Seasons))
	for _, row := range out.Seasons {
		rows = append(rows, cty.ObjectVal(map[string]cty.Value{
			"season":    cty.NumberIntVal(int64(row.Season)),
			"timestamp": cty.NumberIntVal(row.Timestamp),
			"humidity":  cty.NumberFloatVal(row.Humidity),
		}))
	}
	values := cty.EmptyTupleVal
	if len(rows) > 0 {
		values = cty.TupleVal(rows)
	}

	return cty.ObjectVal(map[string]cty.Value{
		"$schema":     cty.StringVal("https://vega.github.io/schema/vega-lite/v5.json"),
		"description": cty.StringVal("Fertilizer humidity per season."),
		"data": cty.ObjectVal(map[string]cty.Value{
			"values": values,
		}),
		"mark": cty.ObjectVal(map[string]cty.Value{
			"type": cty.StringVal("bar"),
		}),
		"encoding": cty.ObjectVal(map[string]cty.Value{
			"x": cty.ObjectVal(map[string]cty.Value{
				"field": cty.StringVal("season"),
				"type":  cty.StringVal("ordinal"),
				"title": cty.StringVal("Season"),
			}),
			"y": cty.ObjectVal(map[string]cty.Value{
				"field": cty.StringVal("humidity"),
				"type":  cty.StringVal("quantitative"),
				"title": cty.StringVal("Humidity %"),
			}),
		}),
		"autosize": cty.ObjectVal(map[string]cty.Value{
			"type": cty.StringVal("pad"),
		}),
		"config": cty.ObjectVal(map[string]cty.Value{
			"view": cty.ObjectVal(map[string]cty.Value{
				"continuousWidth":  cty.NumberIntVal(400),
				"continuousHeight": cty.NumberIntVal(300),
			}),
		}),
	}), nil
}
