package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/unclebandit/customer-support-mcp/internal/db"
	appErrors "github.com/unclebandit/customer-support-mcp/internal/errors"
	"github.com/unclebandit/customer-support-mcp/internal/model"
)

//go:generate mockgen -source=customer_repository.go -destination=../mocks/mockrepository/customer_repository_mock.gen.go -package mockrepository

// CustomerRepositoryInterface defines methods used by service
type CustomerRepositoryInterface interface {
	GetByID(ctx context.Context, id int64) (*model.Customer, error)
	List(ctx context.Context, status string, limit int) ([]model.Customer, error)
	Update(ctx context.Context, id int64, fields map[string]*string) error
	Exists(ctx context.Context, id int64) (bool, error)
	Create(ctx context.Context, c *model.Customer) error
	History(ctx context.Context, id int64) (*model.CustomerHistory, error)
}

// CustomerRepository is the concrete implementation
type CustomerRepository struct {
	DB      *sql.DB
	Dialect db.Dialect
}

const customerColumns = `id, name, email, phone, status, created_at, updated_at`

// updatable maps the fields a caller may change to their column.
var updatable = map[string]string{
	"name":   "name",
	"email":  "email",
	"phone":  "phone",
	"status": "status",
}

// GetByID fetches a customer by ID
func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*model.Customer, error) {
	query := r.Dialect.Rebind(`SELECT ` + customerColumns + ` FROM customers WHERE id = ?`)

	c, err := scanCustomer(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCustomerNotFound(id)
		}
		return nil, errors.Wrapf(err, "failed to get customer %d", id)
	}
	return c, nil
}

// List returns customers ordered by id, optionally filtered by exact status.
func (r *CustomerRepository) List(ctx context.Context, status string, limit int) ([]model.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id LIMIT ?`
	args = append(args, limit)

	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list customers")
	}
	defer rows.Close()

	customers := []model.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read customer")
		}
		customers = append(customers, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to list customers")
	}
	return customers, nil
}

// Update sets the given fields and refreshes updated_at. Keys outside of
// name, email, phone and status are rejected.
func (r *CustomerRepository) Update(ctx context.Context, id int64, fields map[string]*string) error {
	if len(fields) == 0 {
		return errors.New("no fields to update")
	}

	sets := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)
	// iterate in a fixed order so the statement text is stable
	for _, name := range model.CustomerFields {
		v, ok := fields[name]
		if !ok {
			continue
		}
		sets = append(sets, updatable[name]+" = ?")
		args = append(args, v)
	}
	if len(sets) != len(fields) {
		return errors.Errorf("unsupported customer field in %v", keys(fields))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	query := r.Dialect.Rebind(`UPDATE customers SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`)
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrapf(err, "failed to update customer %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "failed to update customer %d", id)
	}
	if n == 0 {
		return appErrors.NewCustomerNotFound(id)
	}
	return nil
}

// Exists checks if a customer with the id exists
func (r *CustomerRepository) Exists(ctx context.Context, id int64) (bool, error) {
	query := r.Dialect.Rebind(`SELECT 1 FROM customers WHERE id = ? LIMIT 1`)
	var tmp int
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&tmp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to check customer %d", id)
	}
	return true, nil
}

// Create inserts a new customer and sets its ID and timestamps
func (r *CustomerRepository) Create(ctx context.Context, c *model.Customer) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = model.CustomerStatusActive
	}

	query := r.Dialect.Rebind(`
		INSERT INTO customers (name, email, phone, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := r.DB.QueryRowContext(ctx, query, c.Name, c.Email, c.Phone, c.Status, c.CreatedAt, c.UpdatedAt).Scan(&c.ID)
	if err != nil {
		return errors.Wrap(err, "failed to create customer")
	}
	return nil
}

// History returns the customer and all of its tickets, most recent first,
// in a single statement.
func (r *CustomerRepository) History(ctx context.Context, id int64) (*model.CustomerHistory, error) {
	query := r.Dialect.Rebind(`
		SELECT c.id, c.name, c.email, c.phone, c.status, c.created_at, c.updated_at,
		       t.id, t.customer_id, t.issue, t.status, t.priority, t.created_at
		FROM customers c
		LEFT JOIN tickets t ON t.customer_id = c.id
		WHERE c.id = ?
		ORDER BY t.created_at DESC, t.id DESC
	`)
	rows, err := r.DB.QueryContext(ctx, query, id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get history for customer %d", id)
	}
	defer rows.Close()

	var h *model.CustomerHistory
	for rows.Next() {
		var (
			c        model.Customer
			email    sql.NullString
			phone    sql.NullString
			ticketID sql.NullInt64
			ownerID  sql.NullInt64
			issue    sql.NullString
			tStatus  sql.NullString
			priority sql.NullString
			tCreated time.Time
		)
		err := rows.Scan(
			&c.ID, &c.Name, &email, &phone, &c.Status, timeScanner{&c.CreatedAt}, timeScanner{&c.UpdatedAt},
			&ticketID, &ownerID, &issue, &tStatus, &priority, timeScanner{&tCreated},
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read customer history")
		}
		if h == nil {
			c.Email = nullString(email)
			c.Phone = nullString(phone)
			h = &model.CustomerHistory{Customer: c, Tickets: []model.Ticket{}}
		}
		if !ticketID.Valid {
			continue
		}
		h.Tickets = append(h.Tickets, model.Ticket{
			ID:         ticketID.Int64,
			CustomerID: ownerID.Int64,
			Issue:      issue.String,
			Status:     tStatus.String,
			Priority:   model.Priority(priority.String),
			CreatedAt:  tCreated,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to get history for customer %d", id)
	}
	if h == nil {
		return nil, appErrors.NewCustomerNotFound(id)
	}
	return h, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (*model.Customer, error) {
	var (
		c     model.Customer
		email sql.NullString
		phone sql.NullString
	)
	err := row.Scan(&c.ID, &c.Name, &email, &phone, &c.Status, timeScanner{&c.CreatedAt}, timeScanner{&c.UpdatedAt})
	if err != nil {
		return nil, err
	}
	c.Email = nullString(email)
	c.Phone = nullString(phone)
	return &c, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func keys(m map[string]*string) []string {
	list := make([]string, 0, len(m))
	for k := range m {
		list = append(list, k)
	}
	return list
}
