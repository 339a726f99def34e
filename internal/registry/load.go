package registry

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/beancharts/internal/ctxlog"
)

// manifestFile is the HCL shape of one chart manifest.
type manifestFile struct {
	Chart *chartBlock `hcl:"chart,block"`
}

type chartBlock struct {
	Description string `hcl:"description,optional"`
	Handler     string `hcl:"handler"`
	Timeout     string `hcl:"timeout,optional"`
}

// Load scans chartsPath recursively for .hcl manifests and builds the
// registry. The chart name is the manifest's filename stem, lowercased, so
// request matching is case insensitive regardless of how the file is named.
func Load(ctx context.Context, chartsPath string, handlers *Handlers, deps *Deps) (*Registry, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Registry loading chart manifests...", "path", chartsPath)

	manifestPaths, err := findManifests(chartsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to walk charts directory %s: %w", chartsPath, err)
	}
	if len(manifestPaths) == 0 {
		logger.Warn("No chart manifests found in path.", "path", chartsPath)
	}

	parser := hclparse.NewParser()
	charts := make(map[string]*chart, len(manifestPaths))
	sources := make(map[string]string, len(manifestPaths))

	for _, manifestPath := range manifestPaths {
		name := strings.ToLower(strings.TrimSuffix(filepath.Base(manifestPath), ".hcl"))

		if prev, exists := sources[name]; exists {
			return nil, fmt.Errorf("chart name %q is defined by both %s and %s", name, prev, manifestPath)
		}

		hclFile, diags := parser.ParseHCLFile(manifestPath)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse chart manifest %s: %w", manifestPath, diags)
		}

		var manifest manifestFile
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &manifest); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode chart manifest %s: %w", manifestPath, diags)
		}
		if manifest.Chart == nil {
			return nil, fmt.Errorf("chart manifest %s has no chart block", manifestPath)
		}

		fn, ok := handlers.get(manifest.Chart.Handler)
		if !ok {
			return nil, fmt.Errorf("chart manifest %s references unknown handler %q", manifestPath, manifest.Chart.Handler)
		}

		timeout := DefaultTimeout
		if manifest.Chart.Timeout != "" {
			timeout, err = time.ParseDuration(manifest.Chart.Timeout)
			if err != nil {
				return nil, fmt.Errorf("chart manifest %s has invalid timeout: %w", manifestPath, err)
			}
		}

		charts[name] = &chart{
			name:        name,
			description: manifest.Chart.Description,
			handlerName: manifest.Chart.Handler,
			timeout:     timeout,
			fn:          fn,
		}
		sources[name] = manifestPath
		logger.Debug("Loaded chart manifest.", "chart", name, "handler", manifest.Chart.Handler, "file", manifestPath)
	}

	logger.Info("Chart registry loaded.", "charts_loaded", len(charts))
	return &Registry{charts: charts, deps: deps}, nil
}

func findManifests(rootPath string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".hcl") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
