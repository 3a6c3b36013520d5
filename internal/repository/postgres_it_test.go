package repository_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcon "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/unclebandit/customer-support-mcp/internal/db"
	appErrors "github.com/unclebandit/customer-support-mcp/internal/errors"
	"github.com/unclebandit/customer-support-mcp/internal/model"
	"github.com/unclebandit/customer-support-mcp/internal/repository"
)

// Test_Postgres runs the repositories against a disposable Postgres.
// Set SUPPORT_IT_POSTGRES=1 with a reachable Docker daemon to enable.
func Test_Postgres(t *testing.T) {
	if os.Getenv("SUPPORT_IT_POSTGRES") == "" {
		t.Skip("SUPPORT_IT_POSTGRES is not set")
	}

	ctx := context.Background()
	pg, err := pgcon.Run(ctx, "postgres:16-alpine",
		pgcon.WithDatabase("support"),
		pgcon.WithUsername("support"),
		pgcon.WithPassword("support"),
		pgcon.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(pg))
	})

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := db.Open(ctx, db.Config{Dialect: db.Postgres, DSN: dsn})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, db.Migrate(ctx, conn, db.Postgres))
	require.NoError(t, db.Migrate(ctx, conn, db.Postgres), "migrations are idempotent")

	customers := &repository.CustomerRepository{DB: conn, Dialect: db.Postgres}
	tickets := &repository.TicketRepository{DB: conn, Dialect: db.Postgres}

	c := &model.Customer{Name: "Alice", Email: strPtr("alice@example.com")}
	require.NoError(t, customers.Create(ctx, c))
	require.NoError(t, customers.Update(ctx, c.ID, map[string]*string{"status": strPtr("inactive"), "email": nil}))

	got, err := customers.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "inactive", got.Status)
	assert.Nil(t, got.Email)

	list, err := customers.List(ctx, "inactive", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	for _, issue := range []string{"first", "second"} {
		require.NoError(t, tickets.Create(ctx, &model.Ticket{CustomerID: c.ID, Issue: issue}))
	}
	h, err := customers.History(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, h.Tickets, 2)
	assert.Equal(t, "second", h.Tickets[0].Issue)

	_, err = customers.GetByID(ctx, c.ID+1)
	assert.True(t, appErrors.IsCustomerNotFound(err))
}
