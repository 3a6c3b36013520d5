package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/customer-support-mcp/internal/db"
	"github.com/unclebandit/customer-support-mcp/internal/db/dbtest"
	appErrors "github.com/unclebandit/customer-support-mcp/internal/errors"
	"github.com/unclebandit/customer-support-mcp/internal/model"
	"github.com/unclebandit/customer-support-mcp/internal/repository"
)

func strPtr(s string) *string { return &s }

func newRepos(t *testing.T) (*sql.DB, *repository.CustomerRepository, *repository.TicketRepository) {
	conn := dbtest.Open(t)
	return conn,
		&repository.CustomerRepository{DB: conn, Dialect: db.SQLite},
		&repository.TicketRepository{DB: conn, Dialect: db.SQLite}
}

func seedCustomers(t *testing.T, repo *repository.CustomerRepository, list ...model.Customer) []model.Customer {
	ctx := context.Background()
	out := make([]model.Customer, 0, len(list))
	for _, c := range list {
		c := c
		require.NoError(t, repo.Create(ctx, &c))
		out = append(out, c)
	}
	return out
}

func TestCustomerRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	_, repo, _ := newRepos(t)

	c := &model.Customer{Name: "Alice Smith", Email: strPtr("alice@example.com")}
	require.NoError(t, repo.Create(ctx, c))
	assert.NotZero(t, c.ID)
	assert.Equal(t, model.CustomerStatusActive, c.Status)

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, "Alice Smith", got.Name)
	require.NotNil(t, got.Email)
	assert.Equal(t, "alice@example.com", *got.Email)
	assert.Nil(t, got.Phone)
	assert.WithinDuration(t, c.CreatedAt, got.CreatedAt, time.Millisecond)

	_, err = repo.GetByID(ctx, 999)
	assert.True(t, appErrors.IsCustomerNotFound(err))
	assert.EqualError(t, err, "customer with ID 999 not found")
}

func TestCustomerRepository_List(t *testing.T) {
	ctx := context.Background()
	_, repo, _ := newRepos(t)

	seedCustomers(t, repo,
		model.Customer{Name: "A", Status: "active"},
		model.Customer{Name: "B", Status: "inactive"},
		model.Customer{Name: "C", Status: "active"},
		model.Customer{Name: "D", Status: "disabled"},
	)

	all, err := repo.List(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID, "ordered by id")
	}

	active, err := repo.List(ctx, "active", 10)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "A", active[0].Name)
	assert.Equal(t, "C", active[1].Name)

	limited, err := repo.List(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := repo.List(ctx, "", 0)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	unknown, err := repo.List(ctx, "Active", 10)
	require.NoError(t, err)
	assert.Empty(t, unknown, "status match is exact")
}

func TestCustomerRepository_Update(t *testing.T) {
	ctx := context.Background()
	_, repo, _ := newRepos(t)

	c := seedCustomers(t, repo, model.Customer{Name: "Alice", Phone: strPtr("555-0100")})[0]
	time.Sleep(2 * time.Millisecond)

	err := repo.Update(ctx, c.ID, map[string]*string{
		"email":  strPtr("new@example.com"),
		"phone":  nil,
		"status": strPtr("inactive"),
	})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	require.NotNil(t, got.Email)
	assert.Equal(t, "new@example.com", *got.Email)
	assert.Nil(t, got.Phone)
	assert.Equal(t, "inactive", got.Status)
	assert.True(t, got.UpdatedAt.After(c.UpdatedAt), "updated_at refreshed")
	assert.WithinDuration(t, c.CreatedAt, got.CreatedAt, time.Millisecond)

	err = repo.Update(ctx, 404, map[string]*string{"name": strPtr("x")})
	assert.True(t, appErrors.IsCustomerNotFound(err))

	assert.Error(t, repo.Update(ctx, c.ID, map[string]*string{}))
	assert.Error(t, repo.Update(ctx, c.ID, map[string]*string{"id": strPtr("7")}))
}

func TestCustomerRepository_Exists(t *testing.T) {
	ctx := context.Background()
	_, repo, _ := newRepos(t)

	c := seedCustomers(t, repo, model.Customer{Name: "Alice"})[0]

	ok, err := repo.Exists(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(ctx, c.ID+100)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCustomerRepository_History(t *testing.T) {
	ctx := context.Background()
	_, repo, tickets := newRepos(t)

	list := seedCustomers(t, repo, model.Customer{Name: "Alice"}, model.Customer{Name: "Bob"})
	alice, bob := list[0], list[1]

	h, err := repo.History(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, h.Customer.ID)
	assert.NotNil(t, h.Tickets)
	assert.Empty(t, h.Tickets)

	issues := []string{"login", "billing", "shipping"}
	for _, issue := range issues {
		require.NoError(t, tickets.Create(ctx, &model.Ticket{CustomerID: alice.ID, Issue: issue, Priority: model.PriorityHigh}))
	}
	require.NoError(t, tickets.Create(ctx, &model.Ticket{CustomerID: bob.ID, Issue: "other"}))

	h, err = repo.History(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, h.Tickets, 3)
	assert.Equal(t, "shipping", h.Tickets[0].Issue)
	assert.Equal(t, "billing", h.Tickets[1].Issue)
	assert.Equal(t, "login", h.Tickets[2].Issue)
	for i := 1; i < len(h.Tickets); i++ {
		assert.False(t, h.Tickets[i].CreatedAt.After(h.Tickets[i-1].CreatedAt), "newest first")
	}
	for _, tk := range h.Tickets {
		assert.Equal(t, alice.ID, tk.CustomerID)
		assert.Equal(t, model.TicketStatusOpen, tk.Status)
		assert.Equal(t, model.PriorityHigh, tk.Priority)
	}

	_, err = repo.History(ctx, 12345)
	assert.True(t, appErrors.IsCustomerNotFound(err))
}
