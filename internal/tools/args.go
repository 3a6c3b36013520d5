package tools

import (
	"bytes"
	"encoding/json"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	appErrors "github.com/unclebandit/customer-support-mcp/internal/errors"
	"github.com/unclebandit/customer-support-mcp/internal/model"
)

// GetCustomerArgs is the input of get_customer.
type GetCustomerArgs struct {
	CustomerID *int64 `json:"customer_id" validate:"required" jsonschema:"required,description=Customer ID"`
}

// ListCustomersArgs is the input of list_customers.
type ListCustomersArgs struct {
	Status *string `json:"status,omitempty" jsonschema:"description=Only return customers with exactly this status"`
	Limit  *int    `json:"limit,omitempty" validate:"omitempty,min=0" jsonschema:"description=Maximum number of customers to return,default=10,minimum=0"`
}

// UpdateCustomerArgs is the input of update_customer.
type UpdateCustomerArgs struct {
	CustomerID *int64 `json:"customer_id" validate:"required" jsonschema:"required,description=Customer ID"`
	// Data maps field names to new values. Null clears a field.
	Data map[string]FieldValue `json:"data" validate:"required" jsonschema:"required,description=New field values keyed by name; allowed keys are name email phone and status"`
}

// FieldValue is a raw update_customer value. It is decoded only when its key
// names an updatable field, so other keys are dropped whatever they hold.
type FieldValue json.RawMessage

func (v *FieldValue) UnmarshalJSON(b []byte) error {
	*v = append((*v)[:0], b...)
	return nil
}

func (FieldValue) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string"}
}

// Fields decodes Data for the service. Keys outside model.CustomerFields are
// kept with a nil value so the service can tell them apart from an empty map.
func (a *UpdateCustomerArgs) Fields() (map[string]*string, error) {
	fields := make(map[string]*string, len(a.Data))
	for k, raw := range a.Data {
		if !slices.Contains(model.CustomerFields, k) {
			fields[k] = nil
			continue
		}
		var v *string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, appErrors.NewInvalidArguments(UpdateCustomer.String(),
				"argument data.%s must be a string or null, got %s", k, rawKind(raw))
		}
		fields[k] = v
	}
	return fields, nil
}

// CreateTicketArgs is the input of create_ticket.
type CreateTicketArgs struct {
	CustomerID *int64      `json:"customer_id" validate:"required" jsonschema:"required,description=Customer ID"`
	Issue      *string     `json:"issue" validate:"required" jsonschema:"required,description=Description of the problem"`
	Priority   PriorityArg `json:"priority,omitempty" jsonschema:"description=Ticket priority: low or medium or high,default=medium"`
}

// PriorityArg is the create_ticket priority. It tells an absent priority
// from an explicit one: null and non-string values are kept as an invalid
// empty priority.
type PriorityArg struct {
	Set   bool
	Value model.Priority
}

func (p *PriorityArg) UnmarshalJSON(b []byte) error {
	p.Set = true
	p.Value = ""
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		p.Value = model.Priority(s)
	}
	return nil
}

func (PriorityArg) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:    "string",
		Enum:    []any{string(model.PriorityLow), string(model.PriorityMedium), string(model.PriorityHigh)},
		Default: string(model.PriorityMedium),
	}
}

// PriorityOrDefault returns the requested priority, medium when absent.
func (a *CreateTicketArgs) PriorityOrDefault() model.Priority {
	if !a.Priority.Set {
		return model.PriorityMedium
	}
	return a.Priority.Value
}

// GetCustomerHistoryArgs is the input of get_customer_history.
type GetCustomerHistoryArgs struct {
	CustomerID *int64 `json:"customer_id" validate:"required" jsonschema:"required,description=Customer ID"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report argument names as the caller sent them
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeArgs decodes the JSON object args into v and validates it. Absent or
// null arguments decode as an empty object.
func decodeArgs(tool ToolName, args json.RawMessage, v any) error {
	raw := bytes.TrimSpace(args)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return appErrors.NewInvalidArguments(tool.String(), "%s", decodeReason(err))
	}
	if dec.More() {
		return appErrors.NewInvalidArguments(tool.String(), "arguments must be a single JSON object")
	}

	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return appErrors.NewInvalidArguments(tool.String(), "%s", validationReason(verrs[0]))
		}
		return errors.Wrapf(err, "failed to validate %s arguments", tool)
	}
	return nil
}

func decodeReason(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			return "arguments must be a JSON object"
		}
		return "argument " + typeErr.Field + " must be " + jsonKind(typeErr.Type) + ", got " + typeErr.Value
	}

	msg := err.Error()
	if field, ok := strings.CutPrefix(msg, "json: unknown field "); ok {
		if unq, uerr := strconv.Unquote(field); uerr == nil {
			field = unq
		}
		return "unexpected argument: " + field
	}
	return "malformed arguments: " + msg
}

func validationReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "missing required argument: " + fe.Field()
	case "min":
		return "argument " + fe.Field() + " must be at least " + fe.Param()
	}
	return "invalid argument: " + fe.Field()
}

// rawKind names the JSON type of a raw value.
func rawKind(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "nothing"
	}
	switch raw[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "bool"
	case 'n':
		return "null"
	}
	return "number"
}

// jsonKind names the JSON type expected for t.
func jsonKind(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "an integer"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	case reflect.Map, reflect.Struct:
		return "an object"
	case reflect.Slice, reflect.Array:
		return "an array"
	}
	return t.String()
}
