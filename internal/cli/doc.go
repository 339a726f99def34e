// Package cli parses the service's command-line interface into an app.Config.
package cli
