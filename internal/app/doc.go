// Package app wires the chart-refresh service together: logger, chart
// registry, artifact store client and refresh orchestrator, plus the HTTP
// surface the frontend's deploy hook calls.
package app
