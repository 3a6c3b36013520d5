package tools

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"

	appErrors "github.com/unclebandit/customer-support-mcp/internal/errors"
	"github.com/unclebandit/customer-support-mcp/internal/service"
)

var _ Tool[GetCustomerArgs, service.CustomerResult] = (*typedTool[GetCustomerArgs, service.CustomerResult])(nil)

// typedTool adapts a typed run function to ITool.
type typedTool[I any, O any] struct {
	name        ToolName
	description string
	schema      *jsonschema.Schema
	run         func(context.Context, *I) (*O, error)
}

func newTool[I any, O any](name ToolName, description string, run func(context.Context, *I) (*O, error)) *typedTool[I, O] {
	return &typedTool[I, O]{
		name:        name,
		description: description,
		schema:      schemaFor(new(I)),
		run:         run,
	}
}

func (t *typedTool[I, O]) Name() ToolName {
	return t.name
}

func (t *typedTool[I, O]) Description() string {
	return t.description
}

func (t *typedTool[I, O]) InputSchema() *jsonschema.Schema {
	return t.schema
}

func (t *typedTool[I, O]) Run(ctx context.Context, in *I) (*O, error) {
	return t.run(ctx, in)
}

func (t *typedTool[I, O]) Call(ctx context.Context, args json.RawMessage) (Result, error) {
	in := new(I)
	if err := decodeArgs(t.name, args, in); err != nil {
		return nil, appErrors.NewExecutionError(t.name.String(), err)
	}

	out, err := t.Run(ctx, in)
	if err != nil {
		return nil, appErrors.NewExecutionError(t.name.String(), err)
	}
	if out == nil {
		return nil, appErrors.NewExecutionError(t.name.String(), errors.Newf("%s returned no result", t.name))
	}
	res, ok := any(out).(Result)
	if !ok {
		return nil, appErrors.NewExecutionError(t.name.String(), errors.Newf("%s returned unsupported result %T", t.name, out))
	}
	return res, nil
}

// schemaFor reflects the input schema of an argument struct. Properties
// are inlined and only fields tagged required are listed as required.
func schemaFor(v any) *jsonschema.Schema {
	r := &jsonschema.Reflector{
		Anonymous:                  true,
		DoNotReference:             true,
		ExpandedStruct:             true,
		RequiredFromJSONSchemaTags: true,
	}
	s := r.Reflect(v)
	s.Version = ""
	// everything is inlined
	s.Definitions = nil
	return s
}
