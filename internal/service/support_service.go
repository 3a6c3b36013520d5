package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"

	appErrors "github.com/unclebandit/customer-support-mcp/internal/errors"
	"github.com/unclebandit/customer-support-mcp/internal/model"
	"github.com/unclebandit/customer-support-mcp/internal/queue"
	"github.com/unclebandit/customer-support-mcp/internal/repository"
)

var logger = xlog.NewPackageLogger("github.com/unclebandit/customer-support-mcp/internal", "service")

// DefaultListLimit is used by list_customers when no limit is given.
const DefaultListLimit = 10

// SupportService implements the customer support operations over the store.
// Recognized business-rule failures are returned as an unsuccessful Outcome;
// any returned error is an execution fault.
type SupportService struct {
	CustomerRepo repository.CustomerRepositoryInterface
	TicketRepo   repository.TicketRepositoryInterface
	// Queue is optional. When set, successful writes are published as events.
	Queue queue.Queue
}

// Outcome is the common part of every operation result.
type Outcome struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// GetOutcome returns the outcome of the result.
func (o Outcome) GetOutcome() Outcome {
	return o
}

// Failed reports an unsuccessful outcome with a message.
func Failed(format string, args ...any) Outcome {
	return Outcome{Error: fmt.Sprintf(format, args...)}
}

var succeeded = Outcome{Success: true}

type CustomerResult struct {
	Outcome
	Customer *model.Customer `json:"customer"`
}

type CustomerListResult struct {
	Outcome
	Customers []model.Customer `json:"customers"`
}

type TicketResult struct {
	Outcome
	Ticket *model.Ticket `json:"ticket"`
}

type HistoryResult struct {
	Outcome
	Customer *model.Customer `json:"customer"`
	Tickets  []model.Ticket  `json:"tickets"`
}

// CustomerUpdatedEvent is published on queue.TopicCustomerUpdated.
type CustomerUpdatedEvent struct {
	Fields   []string       `json:"fields"`
	Customer model.Customer `json:"customer"`
}

// TicketCreatedEvent is published on queue.TopicTicketCreated.
type TicketCreatedEvent struct {
	Ticket model.Ticket `json:"ticket"`
}

// GetCustomer returns a customer by id.
func (s *SupportService) GetCustomer(ctx context.Context, customerID int64) (*CustomerResult, error) {
	c, err := s.CustomerRepo.GetByID(ctx, customerID)
	if err != nil {
		if appErrors.IsCustomerNotFound(err) {
			return &CustomerResult{Outcome: Failed("Customer %d not found", customerID)}, nil
		}
		return nil, err
	}
	return &CustomerResult{Outcome: succeeded, Customer: c}, nil
}

// ListCustomers returns up to limit customers ordered by id. An empty status
// matches every customer.
func (s *SupportService) ListCustomers(ctx context.Context, status string, limit int) (*CustomerListResult, error) {
	if limit < 0 {
		return nil, errors.Errorf("limit must not be negative: %d", limit)
	}
	list, err := s.CustomerRepo.List(ctx, status, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Customer{}
	}
	return &CustomerListResult{Outcome: succeeded, Customers: list}, nil
}

// UpdateCustomer applies the allowed subset of data and returns the updated
// row. Keys other than name, email, phone and status are ignored. A nil value
// clears the column.
func (s *SupportService) UpdateCustomer(ctx context.Context, customerID int64, data map[string]*string) (*CustomerResult, error) {
	if len(data) == 0 {
		return &CustomerResult{Outcome: Failed("No fields provided to update")}, nil
	}

	fields := make(map[string]*string, len(data))
	for _, name := range model.CustomerFields {
		if v, ok := data[name]; ok {
			fields[name] = v
		}
	}
	if len(fields) == 0 {
		return &CustomerResult{Outcome: Failed("No valid fields to update")}, nil
	}

	if err := s.CustomerRepo.Update(ctx, customerID, fields); err != nil {
		if appErrors.IsCustomerNotFound(err) {
			return &CustomerResult{Outcome: Failed("Customer %d not found", customerID)}, nil
		}
		return nil, err
	}

	c, err := s.CustomerRepo.GetByID(ctx, customerID)
	if err != nil {
		if appErrors.IsCustomerNotFound(err) {
			return &CustomerResult{Outcome: Failed("Customer not found after update")}, nil
		}
		return nil, err
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	s.publish(ctx, queue.TopicCustomerUpdated, &CustomerUpdatedEvent{Fields: names, Customer: *c})

	return &CustomerResult{Outcome: succeeded, Customer: c}, nil
}

// CreateTicket opens a ticket for an existing customer. The priority is
// checked before the customer.
func (s *SupportService) CreateTicket(ctx context.Context, customerID int64, issue string, priority model.Priority) (*TicketResult, error) {
	if !priority.Valid() {
		return &TicketResult{Outcome: Failed("Invalid priority")}, nil
	}

	ok, err := s.CustomerRepo.Exists(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &TicketResult{Outcome: Failed("Customer does not exist")}, nil
	}

	t := &model.Ticket{
		CustomerID: customerID,
		Issue:      issue,
		Status:     model.TicketStatusOpen,
		Priority:   priority,
	}
	if err := s.TicketRepo.Create(ctx, t); err != nil {
		return nil, err
	}

	s.publish(ctx, queue.TopicTicketCreated, &TicketCreatedEvent{Ticket: *t})

	return &TicketResult{Outcome: succeeded, Ticket: t}, nil
}

// GetCustomerHistory returns the customer and all its tickets, newest first.
func (s *SupportService) GetCustomerHistory(ctx context.Context, customerID int64) (*HistoryResult, error) {
	h, err := s.CustomerRepo.History(ctx, customerID)
	if err != nil {
		if appErrors.IsCustomerNotFound(err) {
			return &HistoryResult{Outcome: Failed("Customer not found")}, nil
		}
		return nil, err
	}
	tickets := h.Tickets
	if tickets == nil {
		tickets = []model.Ticket{}
	}
	return &HistoryResult{Outcome: succeeded, Customer: &h.Customer, Tickets: tickets}, nil
}

// publish never fails the caller: the write is already committed.
func (s *SupportService) publish(ctx context.Context, topic string, payload any) {
	if s.Queue == nil {
		return
	}
	if err := s.Queue.Publish(ctx, topic, payload); err != nil {
		logger.ContextKV(ctx, xlog.WARNING,
			"reason", "publish",
			"topic", topic,
			"err", err.Error())
	}
}
