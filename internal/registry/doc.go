// Package registry binds chart names to the Go handlers that compute them.
//
// Every chart is declared by an HCL manifest in the charts directory; the
// manifest names a handler that must have been registered by one of the
// compiled-in chart modules. The registry is built once at startup and is
// read-only afterwards, so construction fails loudly on anything that would
// otherwise surface mid-request: duplicate chart names, references to
// handlers that don't exist, unparsable manifests.
package registry
