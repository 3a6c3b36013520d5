package tools

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"

	"github.com/unclebandit/customer-support-mcp/internal/service"
)

// ToolName identifies one of the tools exposed over tools/call.
type ToolName string

const (
	GetCustomer        ToolName = "get_customer"
	ListCustomers      ToolName = "list_customers"
	UpdateCustomer     ToolName = "update_customer"
	CreateTicket       ToolName = "create_ticket"
	GetCustomerHistory ToolName = "get_customer_history"
)

// Catalog lists every tool in the order tools/list reports them.
var Catalog = []ToolName{
	GetCustomer,
	ListCustomers,
	UpdateCustomer,
	CreateTicket,
	GetCustomerHistory,
}

// Valid reports whether n is a known tool.
func (n ToolName) Valid() bool {
	for _, c := range Catalog {
		if c == n {
			return true
		}
	}
	return false
}

func (n ToolName) String() string {
	return string(n)
}

// Result is the value returned by a tool. A result whose outcome is not
// successful is a domain failure, not a fault.
type Result interface {
	GetOutcome() service.Outcome
}

// ITool is a named operation with a declared input schema.
type ITool interface {
	Name() ToolName
	// Description is a one line summary reported by tools/list.
	Description() string
	InputSchema() *jsonschema.Schema
	// Call decodes args and runs the tool. Any returned error is an
	// execution fault.
	Call(ctx context.Context, args json.RawMessage) (Result, error)
}

// Tool is an ITool with typed input and output.
type Tool[I any, O any] interface {
	ITool
	Run(context.Context, *I) (*O, error)
}

// Text renders a result as the indented JSON carried in a text content
// block. Unsuccessful results carry only success and error.
func Text(r Result) (string, error) {
	var v any = r
	if o := r.GetOutcome(); !o.Success {
		v = o
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to encode tool result")
	}
	return string(b), nil
}
