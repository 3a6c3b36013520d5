package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	appErrors "github.com/unclebandit/customer-support-mcp/internal/errors"
	"github.com/unclebandit/customer-support-mcp/internal/mocks/mockrepository"
	"github.com/unclebandit/customer-support-mcp/internal/model"
	"github.com/unclebandit/customer-support-mcp/internal/queue"
	"github.com/unclebandit/customer-support-mcp/internal/service"
)

type notifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *notifier) Notify(msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return nil
}

func (n *notifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

func mustEvent(t *testing.T, topic string, payload any) *queue.Event {
	e, err := queue.NewEvent(topic, payload)
	require.NoError(t, err)
	return e
}

func TestEventWorker_TicketCreated(t *testing.T) {
	ctrl := gomock.NewController(t)
	customers := mockrepository.NewMockCustomerRepositoryInterface(ctrl)
	tickets := mockrepository.NewMockTicketRepositoryInterface(ctrl)
	n := &notifier{}
	w := service.NewEventWorker(customers, tickets, n.Notify)

	customers.EXPECT().GetByID(gomock.Any(), int64(1)).Return(&model.Customer{ID: 1, Name: "Alice"}, nil)
	tickets.EXPECT().ListByCustomer(gomock.Any(), int64(1)).Return([]model.Ticket{
		{ID: 8, Status: model.TicketStatusOpen},
		{ID: 7, Status: "closed"},
		{ID: 6, Status: model.TicketStatusOpen},
	}, nil)

	e := mustEvent(t, queue.TopicTicketCreated, &service.TicketCreatedEvent{Ticket: model.Ticket{
		ID: 8, CustomerID: 1, Issue: "billing", Priority: model.PriorityHigh, Status: model.TicketStatusOpen,
	}})
	require.NoError(t, w.Handle(e))
	assert.Equal(t, []string{"New high priority ticket #8 for Alice: billing (2 open)"}, n.Messages())
}

func TestEventWorker_CustomerUpdated(t *testing.T) {
	n := &notifier{}
	w := service.NewEventWorker(nil, nil, n.Notify)

	e := mustEvent(t, queue.TopicCustomerUpdated, &service.CustomerUpdatedEvent{
		Fields:   []string{"email", "status"},
		Customer: model.Customer{ID: 3, Name: "Bob"},
	})
	require.NoError(t, w.Handle(e))
	assert.Equal(t, []string{"Customer #3 Bob updated: email, status"}, n.Messages())
}

func TestEventWorker_Drops(t *testing.T) {
	ctrl := gomock.NewController(t)
	customers := mockrepository.NewMockCustomerRepositoryInterface(ctrl)
	n := &notifier{}
	w := service.NewEventWorker(customers, nil, n.Notify)

	customers.EXPECT().GetByID(gomock.Any(), int64(9)).Return(nil, appErrors.NewCustomerNotFound(9))
	e := mustEvent(t, queue.TopicTicketCreated, &service.TicketCreatedEvent{Ticket: model.Ticket{ID: 1, CustomerID: 9}})
	assert.NoError(t, w.Handle(e))

	assert.NoError(t, w.Handle(&queue.Event{ID: "x", Topic: "unknown", Payload: []byte(`{}`)}))
	assert.NoError(t, w.Handle(&queue.Event{ID: "y", Topic: queue.TopicCustomerUpdated, Payload: []byte(`[]`)}))
	assert.Empty(t, n.Messages())
}

func TestEventWorker_StoreFaultRetries(t *testing.T) {
	ctrl := gomock.NewController(t)
	customers := mockrepository.NewMockCustomerRepositoryInterface(ctrl)
	w := service.NewEventWorker(customers, nil, func(string) error { return nil })

	fault := errors.New("connection reset")
	customers.EXPECT().GetByID(gomock.Any(), int64(2)).Return(nil, fault)
	e := mustEvent(t, queue.TopicTicketCreated, &service.TicketCreatedEvent{Ticket: model.Ticket{ID: 1, CustomerID: 2}})
	assert.ErrorIs(t, w.Handle(e), fault)
}

func TestEventWorker_InMemoryQueue(t *testing.T) {
	n := &notifier{}
	w := service.NewEventWorker(nil, nil, n.Notify)

	q := queue.NewInMemoryQueue()
	q.Backoff = time.Millisecond
	require.NoError(t, w.SubscribeAll(q))

	require.NoError(t, q.Publish(context.Background(), queue.TopicCustomerUpdated,
		&service.CustomerUpdatedEvent{Fields: []string{"status"}, Customer: model.Customer{ID: 4, Name: "Dana"}}))
	require.NoError(t, q.Close())

	assert.Equal(t, []string{"Customer #4 Dana updated: status"}, n.Messages())
}

func TestRenderTemplate(t *testing.T) {
	out := service.RenderTemplate("Hi {name}, ticket {id} is {status}", map[string]string{
		"name":   "Alice",
		"id":     "12",
		"status": "",
	})
	assert.Equal(t, "Hi Alice, ticket 12 is N/A", out)
	assert.Equal(t, "no placeholders", service.RenderTemplate("no placeholders", nil))
}

func TestRenderTemplate_ValuesAreNotExpanded(t *testing.T) {
	data := map[string]string{
		"priority":     "high",
		"ticket_id":    "3",
		"name":         "Alice",
		"issue":        "card for {name} shows {priority}",
		"open_tickets": "1",
	}
	exp := "New high priority ticket #3 for Alice: card for {name} shows {priority} (1 open)"
	for i := 0; i < 20; i++ {
		assert.Equal(t, exp, service.RenderTemplate(service.TicketCreatedTemplate, data))
	}
}
