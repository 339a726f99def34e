package refresh

import (
	"fmt"
	"sort"
	"strings"
)

// Wildcard selects every registered chart.
const Wildcard = "*"

// ResolveError reports a selector that names no resolvable chart set. The
// whole request fails; no per-chart processing happens.
type ResolveError struct {
	Msg string
}

func (e *ResolveError) Error() string { return e.Msg }

// resolveNames maps the raw (already lowercased) selector to a deduplicated,
// sorted chart name set. Accepted forms: a single registered name, the
// wildcard, or a comma-separated list in which every token is registered.
// Anything else fails the whole request, enumerating the valid names.
func (o *Orchestrator) resolveNames(raw string) ([]string, error) {
	switch {
	case raw == "":
		return nil, &ResolveError{Msg: "No chart name(s) specified."}
	case raw == Wildcard:
		return o.catalog.Names(), nil
	case o.catalog.Exists(raw):
		return []string{raw}, nil
	case strings.Contains(raw, ","):
		tokens := strings.Split(raw, ",")
		seen := make(map[string]bool, len(tokens))
		names := make([]string, 0, len(tokens))
		for _, token := range tokens {
			token = strings.TrimSpace(token)
			if !o.catalog.Exists(token) {
				return nil, o.invalidSelector()
			}
			if seen[token] {
				continue
			}
			seen[token] = true
			names = append(names, token)
		}
		sort.Strings(names)
		return names, nil
	default:
		return nil, o.invalidSelector()
	}
}

func (o *Orchestrator) invalidSelector() *ResolveError {
	return &ResolveError{Msg: fmt.Sprintf(
		"Invalid value for query parameter 'data'. The value must be one of the following: "+
			"a single chart name, a comma-separated list of chart names, or the symbol '*'. "+
			"Valid names are %v.", o.catalog.Names(),
	)}
}
