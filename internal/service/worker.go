package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/effective-security/xlog"

	appErrors "github.com/unclebandit/customer-support-mcp/internal/errors"
	"github.com/unclebandit/customer-support-mcp/internal/model"
	"github.com/unclebandit/customer-support-mcp/internal/queue"
	"github.com/unclebandit/customer-support-mcp/internal/repository"
)

// EventWorker turns support events into notification lines
type EventWorker struct {
	CustomerRepo repository.CustomerRepositoryInterface
	TicketRepo   repository.TicketRepositoryInterface
	// Notify delivers a rendered line. A returned error asks for redelivery.
	Notify func(msg string) error
}

// NewEventWorker creates a worker
func NewEventWorker(customers repository.CustomerRepositoryInterface, tickets repository.TicketRepositoryInterface, notify func(msg string) error) *EventWorker {
	return &EventWorker{
		CustomerRepo: customers,
		TicketRepo:   tickets,
		Notify:       notify,
	}
}

// SubscribeAll registers the worker for every support topic on q.
func (w *EventWorker) SubscribeAll(q queue.Queue) error {
	for _, topic := range []string{queue.TopicCustomerUpdated, queue.TopicTicketCreated} {
		if err := q.Subscribe(topic, w.Handle); err != nil {
			return err
		}
	}
	return nil
}

// Handle processes one event. Events for unknown topics or customers that no
// longer exist are dropped.
func (w *EventWorker) Handle(e *queue.Event) error {
	ctx := context.Background()

	var msg string
	switch e.Topic {
	case queue.TopicTicketCreated:
		var p TicketCreatedEvent
		if err := e.Decode(&p); err != nil {
			logger.KV(xlog.ERROR, "reason", "decode", "event", e.ID, "err", err.Error())
			return nil
		}
		c, err := w.CustomerRepo.GetByID(ctx, p.Ticket.CustomerID)
		if err != nil {
			if appErrors.IsCustomerNotFound(err) {
				logger.KV(xlog.WARNING, "reason", "customer_gone", "event", e.ID, "customer", p.Ticket.CustomerID)
				return nil
			}
			return err
		}
		tickets, err := w.TicketRepo.ListByCustomer(ctx, c.ID)
		if err != nil {
			return err
		}
		open := 0
		for _, t := range tickets {
			if t.Status == model.TicketStatusOpen {
				open++
			}
		}
		msg = RenderTemplate(TicketCreatedTemplate, map[string]string{
			"priority":     string(p.Ticket.Priority),
			"ticket_id":    strconv.FormatInt(p.Ticket.ID, 10),
			"name":         c.Name,
			"issue":        p.Ticket.Issue,
			"open_tickets": strconv.Itoa(open),
		})

	case queue.TopicCustomerUpdated:
		var p CustomerUpdatedEvent
		if err := e.Decode(&p); err != nil {
			logger.KV(xlog.ERROR, "reason", "decode", "event", e.ID, "err", err.Error())
			return nil
		}
		msg = RenderTemplate(CustomerUpdatedTemplate, map[string]string{
			"customer_id": strconv.FormatInt(p.Customer.ID, 10),
			"name":        p.Customer.Name,
			"fields":      strings.Join(p.Fields, ", "),
		})

	default:
		logger.KV(xlog.DEBUG, "reason", "unknown_topic", "topic", e.Topic, "event", e.ID)
		return nil
	}

	return w.Notify(msg)
}
