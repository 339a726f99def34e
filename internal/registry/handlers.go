package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/beancharts/internal/subgraph"
)

// Deps carries the external collaborators a chart handler may use. Handlers
// receive it on every invocation and must not retain it.
type Deps struct {
	Subgraph *subgraph.Client
}

// ChartFunc computes one chart document. The returned value is opaque to the
// rest of the service; only the width-path resolver looks inside it.
type ChartFunc func(ctx context.Context, deps *Deps) (cty.Value, error)

// Module is the interface chart module packages implement to contribute
// their handlers.
type Module interface {
	Register(h *Handlers)
}

// Handlers holds the compiled-in chart handlers by name.
type Handlers struct {
	all map[string]ChartFunc
}

// NewHandlers creates an empty handler set.
func NewHandlers() *Handlers {
	return &Handlers{all: make(map[string]ChartFunc)}
}

// RegisterChart registers a handler under a manifest-visible name. Duplicate
// registration is a programmer error and panics.
func (h *Handlers) RegisterChart(name string, fn ChartFunc) {
	if _, exists := h.all[name]; exists {
		panic(fmt.Sprintf("chart handler with name '%s' already registered", name))
	}
	slog.Debug("Registering chart handler.", "name", name)
	h.all[name] = fn
}

func (h *Handlers) get(name string) (ChartFunc, bool) {
	fn, ok := h.all[name]
	return fn, ok
}
