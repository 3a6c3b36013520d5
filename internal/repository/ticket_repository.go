package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/unclebandit/customer-support-mcp/internal/db"
	"github.com/unclebandit/customer-support-mcp/internal/model"
)

//go:generate mockgen -source=ticket_repository.go -destination=../mocks/mockrepository/ticket_repository_mock.gen.go -package mockrepository

// TicketRepositoryInterface defines methods used by service
type TicketRepositoryInterface interface {
	Create(ctx context.Context, t *model.Ticket) error
	ListByCustomer(ctx context.Context, customerID int64) ([]model.Ticket, error)
}

type TicketRepository struct {
	DB      *sql.DB
	Dialect db.Dialect
}

// Create inserts a new ticket and fills in its ID and creation time.
// The caller is responsible for checking that the customer exists.
func (r *TicketRepository) Create(ctx context.Context, t *model.Ticket) error {
	t.CreatedAt = time.Now().UTC()
	if t.Status == "" {
		t.Status = model.TicketStatusOpen
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}

	query := r.Dialect.Rebind(`
		INSERT INTO tickets (customer_id, issue, status, priority, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := r.DB.QueryRowContext(ctx, query, t.CustomerID, t.Issue, t.Status, string(t.Priority), t.CreatedAt).Scan(&t.ID)
	if err != nil {
		return errors.Wrapf(err, "failed to create ticket for customer %d", t.CustomerID)
	}
	return nil
}

// ListByCustomer returns the customer's tickets, newest first.
func (r *TicketRepository) ListByCustomer(ctx context.Context, customerID int64) ([]model.Ticket, error) {
	query := r.Dialect.Rebind(`
		SELECT id, customer_id, issue, status, priority, created_at
		FROM tickets
		WHERE customer_id = ?
		ORDER BY created_at DESC, id DESC
	`)
	rows, err := r.DB.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list tickets for customer %d", customerID)
	}
	defer rows.Close()

	tickets := []model.Ticket{}
	for rows.Next() {
		var (
			t        model.Ticket
			priority string
		)
		if err := rows.Scan(&t.ID, &t.CustomerID, &t.Issue, &t.Status, &priority, timeScanner{&t.CreatedAt}); err != nil {
			return nil, errors.Wrap(err, "failed to read ticket")
		}
		t.Priority = model.Priority(priority)
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to list tickets for customer %d", customerID)
	}
	return tickets, nil
}
