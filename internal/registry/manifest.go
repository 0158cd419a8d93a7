package registry

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/weft-ml/weft/internal/ir"
)

// Manifest is a declarative set of lowering rules. Manifests cover the
// common case of renaming a kind and its attributes; anything that
// restructures the graph is registered in code. The CUE shape is:
//
//	opset: 6
//	rule: {
//		"aten::lt": {to: "onnx::Less"}
//		"aten::slice": {
//			to: "onnx::Slice"
//			attrs: {begin: "starts", end: "ends"}
//		}
//	}
type Manifest struct {
	Opset int64
	Rules []ManifestRule
}

// ManifestRule is one kind rename with optional attribute renames.
type ManifestRule struct {
	From  ir.Symbol
	To    ir.Symbol
	Attrs map[ir.Symbol]ir.Symbol
}

// Install registers every manifest rule.
func (m *Manifest) Install(r *Registry) {
	for _, rule := range m.Rules {
		r.Register(rule.From, Rename(rule.To, rule.Attrs))
	}
}

// LoadManifest reads and compiles a CUE manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	ctx := cuecontext.New()
	return CompileManifest(ctx.CompileBytes(data, cue.Filename(path)))
}

// CompileManifest parses a CUE value into a Manifest. Uses the CUE
// SDK's Go API directly (not a CLI subprocess).
func CompileManifest(v cue.Value) (*Manifest, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	m := &Manifest{}

	opsetVal := v.LookupPath(cue.ParsePath("opset"))
	if !opsetVal.Exists() {
		return nil, &ManifestError{
			Field:   "opset",
			Message: "opset is required",
			Pos:     v.Pos(),
		}
	}
	opset, err := opsetVal.Int64()
	if err != nil {
		return nil, formatCUEError(err)
	}
	m.Opset = opset

	ruleVal := v.LookupPath(cue.ParsePath("rule"))
	if !ruleVal.Exists() {
		return nil, &ManifestError{
			Field:   "rule",
			Message: "at least one rule is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := ruleVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		rule, err := compileRule(ir.Symbol(iter.Label()), iter.Value())
		if err != nil {
			return nil, err
		}
		m.Rules = append(m.Rules, rule)
	}
	if len(m.Rules) == 0 {
		return nil, &ManifestError{
			Field:   "rule",
			Message: "at least one rule is required",
			Pos:     ruleVal.Pos(),
		}
	}
	return m, nil
}

func compileRule(from ir.Symbol, v cue.Value) (ManifestRule, error) {
	rule := ManifestRule{From: from}

	if from.Namespace() == "" {
		return rule, &ManifestError{
			Field:   "rule",
			Message: fmt.Sprintf("source kind %q must be namespace-qualified", from),
			Pos:     v.Pos(),
		}
	}

	toVal := v.LookupPath(cue.ParsePath("to"))
	if !toVal.Exists() {
		return rule, &ManifestError{
			Field:   fmt.Sprintf("rule.%q.to", from),
			Message: "target kind is required",
			Pos:     v.Pos(),
		}
	}
	to, err := toVal.String()
	if err != nil {
		return rule, formatCUEError(err)
	}
	rule.To = ir.Symbol(to)
	if rule.To.Namespace() == "" {
		return rule, &ManifestError{
			Field:   fmt.Sprintf("rule.%q.to", from),
			Message: fmt.Sprintf("target kind %q must be namespace-qualified", to),
			Pos:     toVal.Pos(),
		}
	}

	attrsVal := v.LookupPath(cue.ParsePath("attrs"))
	if attrsVal.Exists() {
		attrIter, err := attrsVal.Fields()
		if err != nil {
			return rule, formatCUEError(err)
		}
		for attrIter.Next() {
			renamed, err := attrIter.Value().String()
			if err != nil {
				return rule, formatCUEError(err)
			}
			if rule.Attrs == nil {
				rule.Attrs = make(map[ir.Symbol]ir.Symbol)
			}
			rule.Attrs[ir.Symbol(attrIter.Label())] = ir.Symbol(renamed)
		}
	}
	return rule, nil
}

// ManifestError is a manifest compilation error with source position.
type ManifestError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ManifestError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	positions := cueerrors.Positions(first)
	if len(positions) > 0 {
		return &ManifestError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
