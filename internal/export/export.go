package export

import (
	"encoding/json"

	"github.com/weft-ml/weft/internal/ir"
	"github.com/weft-ml/weft/internal/registry"
)

// Options parameterize an export.
type Options struct {
	GraphName       string
	ProducerName    string
	ProducerVersion string
	Opset           int64
}

// ExportGraph runs the full pipeline — lower, validate, encode — and
// returns the serialized model. The trailing len(initializers) inputs
// of src are exported as initializer payloads.
func ExportGraph(src *ir.Graph, reg *registry.Registry, initializers []*ir.Tensor, opts Options) ([]byte, error) {
	lowered, err := Lower(src, reg)
	if err != nil {
		return nil, err
	}
	if err := Validate(lowered); err != nil {
		return nil, err
	}
	model, err := Encode(lowered, initializers, opts)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(model, "", "  ")
}
