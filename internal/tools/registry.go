package tools

import (
	"context"

	"github.com/unclebandit/customer-support-mcp/internal/service"
)

// Registry maps tool names to tools. It is immutable once built.
type Registry struct {
	tools map[ToolName]ITool
	list  []ITool
}

// NewRegistry builds the tool catalog over svc.
func NewRegistry(svc Service) *Registry {
	list := []ITool{
		newTool(GetCustomer, "Get customer by ID",
			func(ctx context.Context, in *GetCustomerArgs) (*service.CustomerResult, error) {
				return svc.GetCustomer(ctx, *in.CustomerID)
			}),
		newTool(ListCustomers, "List customers",
			func(ctx context.Context, in *ListCustomersArgs) (*service.CustomerListResult, error) {
				status := ""
				if in.Status != nil {
					status = *in.Status
				}
				limit := service.DefaultListLimit
				if in.Limit != nil {
					limit = *in.Limit
				}
				return svc.ListCustomers(ctx, status, limit)
			}),
		newTool(UpdateCustomer, "Update a customer's fields",
			func(ctx context.Context, in *UpdateCustomerArgs) (*service.CustomerResult, error) {
				fields, err := in.Fields()
				if err != nil {
					return nil, err
				}
				return svc.UpdateCustomer(ctx, *in.CustomerID, fields)
			}),
		newTool(CreateTicket, "Create a support ticket",
			func(ctx context.Context, in *CreateTicketArgs) (*service.TicketResult, error) {
				return svc.CreateTicket(ctx, *in.CustomerID, *in.Issue, in.PriorityOrDefault())
			}),
		newTool(GetCustomerHistory, "Return customer + all tickets",
			func(ctx context.Context, in *GetCustomerHistoryArgs) (*service.HistoryResult, error) {
				return svc.GetCustomerHistory(ctx, *in.CustomerID)
			}),
	}

	r := &Registry{
		tools: make(map[ToolName]ITool, len(list)),
		list:  list,
	}
	for _, t := range list {
		r.tools[t.Name()] = t
	}
	return r
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (ITool, bool) {
	t, ok := r.tools[ToolName(name)]
	return t, ok
}

// List returns the tools in catalog order.
func (r *Registry) List() []ITool {
	return append([]ITool(nil), r.list...)
}
