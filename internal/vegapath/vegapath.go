// Package vegapath locates the properties of a compiled Vega-Lite document
// that control its rendered pixel width.
//
// The frontend renders cached chart documents into containers of unknown size
// and rewrites every returned path in proportion to the available width. The
// resolver is a pure function over the document; it never mutates it.
package vegapath

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Scale factors per path category. Width-controlling properties are rewritten
// one to one; arc radii shrink slower than the overall width.
const (
	widthFactor  = 1
	radiusFactor = 3.33
)

// WidthPath is one resizable location inside a chart document. Path holds the
// accessors from the document root (string attribute names and int element
// indexes, root excluded), Value the literal matched value.
type WidthPath struct {
	Path   []any   `json:"path"`
	Factor float64 `json:"factor"`
	Value  any     `json:"value"`
}

// ValidationError reports a document whose structure is incompatible with
// client-side width rewriting.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// fitModes are autosize types that delegate sizing to the renderer. Rewriting
// width values underneath them has no visual effect, so such documents are
// rejected outright.
var fitModes = map[string]bool{"fit": true, "fit-x": true, "fit-y": true}

// Resolve walks the document and returns every width-controlling location,
// deduplicated by exact path. Order of the result is not significant; it is
// sorted only to keep output stable.
func Resolve(doc cty.Value) ([]WidthPath, error) {
	if mode, ok := autosizeType(doc); ok && fitModes[mode] {
		return nil, &ValidationError{Msg: fmt.Sprintf("autosize type %q is not allowed", mode)}
	}

	all := collect(doc)
	byPath := map[string]WidthPath{}

	keep := func(m match, factor float64) {
		byPath[pathKey(m.path)] = WidthPath{
			Path:   flattenPath(m.path),
			Factor: factor,
			Value:  goValue(m.val),
		}
	}

	// Top-level view config: config.view.continuousWidth must be a number.
	for _, m := range matchExact(all, "config", "view", "continuousWidth") {
		if !isNumber(m.val) {
			return nil, &ValidationError{Msg: "config.view.continuousWidth must be a number"}
		}
		keep(m, widthFactor)
	}

	// config.view.discreteWidth appears either as a number or as an object
	// with a nested step. When both the object and its step match, the object
	// path is a prefix of the step path and only the deeper one is kept.
	dw := matchExact(all, "config", "view", "discreteWidth")
	dwStep := matchExact(all, "config", "view", "discreteWidth", "step")
	if len(dw) > 0 && len(dwStep) > 0 {
		dw = nil
	}
	for _, m := range dw {
		keep(m, widthFactor)
	}
	for _, m := range dwStep {
		keep(m, widthFactor)
	}

	for _, m := range matchExact(all, "config", "view", "step") {
		keep(m, widthFactor)
	}

	// View-level widths anywhere in the document. The "container" keyword
	// can't be scaled numerically; the object form is skipped here because
	// its nested step is matched below.
	for _, m := range matchSuffix(all, "width") {
		if isString(m.val, "container") {
			return nil, &ValidationError{Msg: fmt.Sprintf("width %q at %s cannot be rewritten", "container", pathKey(m.path))}
		}
		if !isNumber(m.val) {
			continue
		}
		keep(m, widthFactor)
	}
	for _, m := range matchSuffix(all, "width", "step") {
		if !isNumber(m.val) {
			continue
		}
		keep(m, widthFactor)
	}

	// Arc mark radii.
	for _, key := range []string{"innerRadius", "outerRadius"} {
		for _, m := range matchSuffix(all, key) {
			if !isNumber(m.val) {
				continue
			}
			keep(m, radiusFactor)
		}
	}

	out := make([]WidthPath, 0, len(byPath))
	keys := make([]string, 0, len(byPath))
	for k := range byPath {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, byPath[k])
	}
	return out, nil
}

// match pairs a document location with the value found there.
type match struct {
	path cty.Path
	val  cty.Value
}

// collect returns every non-root node of the document.
func collect(doc cty.Value) []match {
	var out []match
	walk(doc, nil, &out)
	return out
}

func walk(v cty.Value, path cty.Path, out *[]match) {
	if v.IsNull() || !v.IsKnown() {
		return
	}
	ty := v.Type()
	switch {
	case ty.IsObjectType() || ty.IsMapType():
		for name, el := range v.AsValueMap() {
			p := childPath(path, cty.GetAttrStep{Name: name})
			*out = append(*out, match{path: p, val: el})
			walk(el, p, out)
		}
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		i := 0
		for it := v.ElementIterator(); it.Next(); i++ {
			_, el := it.Element()
			p := childPath(path, cty.IndexStep{Key: cty.NumberIntVal(int64(i))})
			*out = append(*out, match{path: p, val: el})
			walk(el, p, out)
		}
	}
}

// childPath copies before appending; cty.Path appends alias their backing array.
func childPath(path cty.Path, step cty.PathStep) cty.Path {
	p := make(cty.Path, len(path), len(path)+1)
	copy(p, path)
	return append(p, step)
}

// matchExact keeps matches whose full path is exactly the given attribute chain.
func matchExact(all []match, attrs ...string) []match {
	var out []match
	for _, m := range all {
		if len(m.path) != len(attrs) {
			continue
		}
		if hasAttrSuffix(m.path, attrs) {
			out = append(out, m)
		}
	}
	return out
}

// matchSuffix keeps matches whose path ends in the given attribute chain.
func matchSuffix(all []match, attrs ...string) []match {
	var out []match
	for _, m := range all {
		if hasAttrSuffix(m.path, attrs) {
			out = append(out, m)
		}
	}
	return out
}

func hasAttrSuffix(path cty.Path, attrs []string) bool {
	if len(path) < len(attrs) {
		return false
	}
	tail := path[len(path)-len(attrs):]
	for i, step := range tail {
		attr, ok := step.(cty.GetAttrStep)
		if !ok || attr.Name != attrs[i] {
			return false
		}
	}
	return true
}

// autosizeType reads autosize.type from the document root, if present.
func autosizeType(doc cty.Value) (string, bool) {
	autosize, ok := attrValue(doc, "autosize")
	if !ok {
		return "", false
	}
	mode, ok := attrValue(autosize, "type")
	if !ok || mode.IsNull() || mode.Type() != cty.String {
		return "", false
	}
	return mode.AsString(), true
}

func attrValue(v cty.Value, name string) (cty.Value, bool) {
	if v.IsNull() || !v.IsKnown() {
		return cty.NilVal, false
	}
	ty := v.Type()
	switch {
	case ty.IsObjectType():
		if !ty.HasAttribute(name) {
			return cty.NilVal, false
		}
		return v.GetAttr(name), true
	case ty.IsMapType():
		key := cty.StringVal(name)
		if !v.HasIndex(key).True() {
			return cty.NilVal, false
		}
		return v.Index(key), true
	default:
		return cty.NilVal, false
	}
}

func isNumber(v cty.Value) bool {
	return !v.IsNull() && v.IsKnown() && v.Type() == cty.Number
}

func isString(v cty.Value, s string) bool {
	return !v.IsNull() && v.IsKnown() && v.Type() == cty.String && v.AsString() == s
}

// pathKey renders a path in a canonical bracketed form for deduplication.
func pathKey(path cty.Path) string {
	var b strings.Builder
	for _, tok := range flattenPath(path) {
		switch t := tok.(type) {
		case string:
			fmt.Fprintf(&b, "[%q]", t)
		case int:
			fmt.Fprintf(&b, "[%s]", strconv.Itoa(t))
		}
	}
	return b.String()
}

// flattenPath reduces a cty.Path to plain accessor tokens relative to the
// document root.
func flattenPath(path cty.Path) []any {
	out := make([]any, 0, len(path))
	for _, step := range path {
		switch s := step.(type) {
		case cty.GetAttrStep:
			out = append(out, s.Name)
		case cty.IndexStep:
			switch s.Key.Type() {
			case cty.Number:
				i, _ := s.Key.AsBigFloat().Int64()
				out = append(out, int(i))
			case cty.String:
				out = append(out, s.Key.AsString())
			}
		}
	}
	return out
}

// goValue converts a cty value to its plain Go representation for inclusion
// in the serialized width-path list.
func goValue(v cty.Value) any {
	if v.IsNull() || !v.IsKnown() {
		return nil
	}
	ty := v.Type()
	switch {
	case ty == cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return f
	case ty == cty.String:
		return v.AsString()
	case ty == cty.Bool:
		return v.True()
	case ty.IsObjectType() || ty.IsMapType():
		out := map[string]any{}
		for name, el := range v.AsValueMap() {
			out[name] = goValue(el)
		}
		return out
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		var out []any
		for it := v.ElementIterator(); it.Next(); {
			_, el := it.Element()
			out = append(out, goValue(el))
		}
		return out
	default:
		return nil
	}
}
