package tools

import (
	"context"

	"github.com/unclebandit/customer-support-mcp/internal/model"
	"github.com/unclebandit/customer-support-mcp/internal/service"
)

//go:generate mockgen -source=service.go -destination=../mocks/mocktools/service_mock.gen.go -package mocktools

// Service is the set of support operations the tools are built on.
type Service interface {
	GetCustomer(ctx context.Context, customerID int64) (*service.CustomerResult, error)
	ListCustomers(ctx context.Context, status string, limit int) (*service.CustomerListResult, error)
	UpdateCustomer(ctx context.Context, customerID int64, data map[string]*string) (*service.CustomerResult, error)
	CreateTicket(ctx context.Context, customerID int64, issue string, priority model.Priority) (*service.TicketResult, error)
	GetCustomerHistory(ctx context.Context, customerID int64) (*service.HistoryResult, error)
}

var _ Service = (*service.SupportService)(nil)
