// Package field computes the field allocation chart: an arc breakdown of
// sown versus harvestable pods for the latest season.
package field

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
	h.RegisterChart("RenderField", Render)
}

const fieldQuery = `query FieldState {
  fields(first: 1, orderBy: season, orderDirection: desc) {
    season
    podIndex
    harvestableIndex
    harvestedPods
  }
}`

type fieldRow struct {
	Season           int     `json:"season"`
	PodIndex         float64 `json:"podIndex,string"`
	HarvestableIndex float64 `json:"harvestableIndex,string"`
	HarvestedPods    float64 `json:"harvestedPods,string"`
}

// Render queries the current field state and assembles an arc chart of pod
// allocation.
func Render(ctx context.Context, deps *registry.Deps) (cty.Value, error) {
	var out struct {
		Fields []fieldRow `json:"fields"`
	}
	if err := deps.Subgraph.Query(ctx, fieldQuery, nil, &out); err != nil {
		return cty.NilVal, fmt.Errorf("field state query failed: %w", err)
	}
	if len(out.Fields) == 0 {
		return cty.NilVal, fmt.Errorf("field state query returned no rows")
	}

	f := out.Fields[0]
	unharvestable := f.PodIndex - f.HarvestableIndex
	slices := []cty.Value{
		segment("Harvestable", f.HarvestableIndex-f.HarvestedPods),
		segment("Harvested", f.HarvestedPods),
		segment("Unharvestable", unharvestable),
	}

	return cty.ObjectVal(map[string]cty.Value{
		"$schema":     cty.StringVal("https://vega.github.io/schema/vega-lite/v5.json"),
		"description": cty.StringVal(fmt.Sprintf("Pod allocation as of season %d.", f.Season)),
		"data": cty.ObjectVal(map[string]cty.Value{
			"values": cty.TupleVal(slices),
		}),
		"mark": cty.ObjectVal(map[string]cty.Value{
			"type":        cty.StringVal("arc"),
			"innerRadius": cty.NumberIntVal(50),
			"outerRadius": cty.NumberIntVal(80),
		}),
		"encoding": cty.ObjectVal(map[string]cty.Value{
			"theta": cty.ObjectVal(map[string]cty.Value{
				"field": cty.StringVal("pods"),
				"type":  cty.StringVal("quantitative"),
			}),
			"color": cty.ObjectVal(map[string]cty.Value{
				"field": cty.StringVal("category"),
				"type":  cty.StringVal("nominal"),
			}),
		}),
		"config": cty.ObjectVal(map[string]cty.Value{
			"view": cty.ObjectVal(map[string]cty.Value{
				"continuousWidth":  cty.NumberIntVal(300),
				"continuousHeight": cty.NumberIntVal(300),
			}),
		}),
	}), nil
}

func segment(category string, pods float64) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"category": cty.StringVal(category),
		"pods":     cty.NumberFloatVal(pods),
	})
}
