package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

// writeCharts lays out manifest files under a fresh temp dir. Keys are paths
// relative to the charts root, so subdirectories can be expressed directly.
func writeCharts(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func staticDoc(v cty.Value) ChartFunc {
	return func(ctx context.Context, deps *Deps) (cty.Value, error) {
		return v, nil
	}
}

func TestLoad_NamesAreLowercasedStems(t *testing.T) {
	t.Parallel()

	dir := writeCharts(t, map[string]string{
		"Fertilizer.hcl": `chart {
  handler = "RenderFertilizer"
}`,
		"Field.hcl": `chart {
  description = "Pod line chart."
  handler     = "RenderField"
  timeout     = "2m"
}`,
	})

	handlers := NewHandlers()
	handlers.RegisterChart("RenderFertilizer", staticDoc(cty.ObjectVal(map[string]cty.Value{"mark": cty.StringVal("bar")})))
	handlers.RegisterChart("RenderField", staticDoc(cty.ObjectVal(map[string]cty.Value{"mark": cty.StringVal("line")})))

	reg, err := Load(context.Background(), dir, handlers, &Deps{})
	require.NoError(t, err)

	require.Equal(t, []string{"fertilizer", "field"}, reg.Names())
	require.True(t, reg.Exists("fertilizer"))
	require.False(t, reg.Exists("Fertilizer"), "registry must not double-normalize")
	require.False(t, reg.Exists("silo"))
	require.Equal(t, 2*time.Minute, reg.charts["field"].timeout)
	require.Equal(t, DefaultTimeout, reg.charts["fertilizer"].timeout)
}

func TestLoad_DuplicateNameFails(t *testing.T) {
	t.Parallel()

	dir := writeCharts(t, map[string]string{
		"Fertilizer.hcl":     `chart { handler = "Render" }`,
		"sub/fertilizer.hcl": `chart { handler = "Render" }`,
	})

	handlers := NewHandlers()
	handlers.RegisterChart("Render", staticDoc(cty.EmptyObjectVal))

	_, err := Load(context.Background(), dir, handlers, &Deps{})
	require.Error(t, err)
	require.Contains(t, err.Error(), `"fertilizer"`)
}

func TestLoad_UnknownHandlerFails(t *testing.T) {
	t.Parallel()

	dir := writeCharts(t, map[string]string{
		"Fertilizer.hcl": `chart { handler = "NoSuchHandler" }`,
	})

	_, err := Load(context.Background(), dir, NewHandlers(), &Deps{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "NoSuchHandler")
}

func TestLoad_MalformedManifestFails(t *testing.T) {
	t.Parallel()

	dir := writeCharts(t, map[string]string{
		"Broken.hcl": `chart { handler = `,
	})

	_, err := Load(context.Background(), dir, NewHandlers(), &Deps{})
	require.Error(t, err)
}

func TestRegisterChart_DuplicatePanics(t *testing.T) {
	t.Parallel()

	handlers := NewHandlers()
	handlers.RegisterChart("Render", staticDoc(cty.EmptyObjectVal))
	require.Panics(t, func() {
		handlers.RegisterChart("Render", staticDoc(cty.EmptyObjectVal))
	})
}

func TestExecute_ReturnsDocumentAndDuration(t *testing.T) {
	t.Parallel()

	dir := writeCharts(t, map[string]string{
		"Fertilizer.hcl": `chart { handler = "Render" }`,
	})

	want := cty.ObjectVal(map[string]cty.Value{
		"mark": cty.StringVal("bar"),
	})
	handlers := NewHandlers()
	handlers.RegisterChart("Render", func(ctx context.Context, deps *Deps) (cty.Value, error) {
		time.Sleep(10 * time.Millisecond)
		return want, nil
	})

	reg, err := Load(context.Background(), dir, handlers, &Deps{})
	require.NoError(t, err)

	doc, elapsed, err := reg.Execute(context.Background(), "fertilizer")
	require.NoError(t, err)
	require.True(t, want.RawEquals(doc))
	require.GreaterOrEqual(t, elapsed, 10*time.Millisecond)
}

func TestExecute_AbsentNameIsExecutionError(t *testing.T) {
	t.Parallel()

	dir := writeCharts(t, map[string]string{})
	reg, err := Load(context.Background(), dir, NewHandlers(), &Deps{})
	require.NoError(t, err)

	_, _, err = reg.Execute(context.Background(), "ghost")
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, "ghost", execErr.Chart)
}

func TestExecute_HandlerErrorIsWrapped(t *testing.T) {
	t.Parallel()

	dir := writeCharts(t, map[string]string{
		"Fertilizer.hcl": `chart { handler = "Render" }`,
	})

	boom := errors.New("subgraph unreachable")
	handlers := NewHandlers()
	handlers.RegisterChart("Render", func(ctx context.Context, deps *Deps) (cty.Value, error) {
		return cty.NilVal, boom
	})

	reg, err := Load(context.Background(), dir, handlers, &Deps{})
	require.NoError(t, err)

	_, _, err = reg.Execute(context.Background(), "fertilizer")
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.ErrorIs(t, err, boom)
}

func TestExecute_HandlerPanicIsExecutionError(t *testing.T) {
	t.Parallel()

	dir := writeCharts(t, map[string]string{
		"Fertilizer.hcl": `chart { handler = "Render" }`,
	})

	handlers := NewHandlers()
	handlers.RegisterChart("Render", func(ctx context.Context, deps *Deps) (cty.Value, error) {
		panic("index out of range")
	})

	reg, err := Load(context.Background(), dir, handlers, &Deps{})
	require.NoError(t, err)

	_, _, err = reg.Execute(context.Background(), "fertilizer")
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Contains(t, err.Error(), "panicked")
}

func TestExecute_ManifestTimeoutCancelsHandler(t *testing.T) {
	t.Parallel()

	dir := writeCharts(t, map[string]string{
		"Slow.hcl": `chart {
  handler = "Render"
  timeout = "50ms"
}`,
	})

	handlers := NewHandlers()
	handlers.RegisterChart("Render", func(ctx context.Context, deps *Deps) (cty.Value, error) {
		select {
		case <-ctx.Done():
			return cty.NilVal, ctx.Err()
		case <-time.After(10 * time.Second):
			return cty.EmptyObjectVal, nil
		}
	})

	reg, err := Load(context.Background(), dir, handlers, &Deps{})
	require.NoError(t, err)

	start := time.Now()
	_, elapsed, err := reg.Execute(context.Background(), "slow")
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, elapsed, time.Second, "handler must stop at the manifest timeout")
	require.Less(t, time.Since(start), time.Second)
}

func TestExecute_NullDocumentIsExecutionError(t *testing.T) {
	t.Parallel()

	dir := writeCharts(t, map[string]string{
		"Fertilizer.hcl": `chart { handler = "Render" }`,
	})

	handlers := NewHandlers()
	handlers.RegisterChart("Render", func(ctx context.Context, deps *Deps) (cty.Value, error) {
		return cty.NullVal(cty.EmptyObject), nil
	})

	reg, err := Load(context.Background(), dir, handlers, &Deps{})
	require.NoError(t, err)

	_, _, err = reg.Execute(context.Background(), "fertilizer")
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Contains(t, err.Error(), "no document")
}
