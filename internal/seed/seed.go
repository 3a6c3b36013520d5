// Package seed loads customers and tickets into a store from YAML fixtures
// or generated fake data.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"io"
	"os"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"gopkg.in/yaml.v3"

	"github.com/unclebandit/customer-support-mcp/internal/model"
	"github.com/unclebandit/customer-support-mcp/internal/repository"
)

var logger = xlog.NewPackageLogger("github.com/unclebandit/customer-support-mcp/internal", "seed")

//go:embed sample.yaml
var sample []byte

// Fixture is a set of customers with their tickets.
type Fixture struct {
	Customers []Customer `yaml:"customers"`
}

// Customer is a customer row in a fixture.
type Customer struct {
	Name    string   `yaml:"name"`
	Email   *string  `yaml:"email,omitempty"`
	Phone   *string  `yaml:"phone,omitempty"`
	Status  string   `yaml:"status,omitempty"`
	Tickets []Ticket `yaml:"tickets,omitempty"`
}

// Ticket is a ticket row in a fixture.
type Ticket struct {
	Issue    string `yaml:"issue"`
	Priority string `yaml:"priority,omitempty"`
}

// Summary counts the rows created by Apply.
type Summary struct {
	Customers int
	Tickets   int
}

// Sample returns the built-in fixture.
func Sample() *Fixture {
	f, err := Decode(bytes.NewReader(sample))
	if err != nil {
		panic(err)
	}
	return f
}

// LoadFile reads a YAML fixture from path.
func LoadFile(path string) (*Fixture, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open fixture %s", path)
	}
	defer fh.Close()
	return Decode(fh)
}

// Decode reads a YAML fixture. Unknown keys are rejected.
func Decode(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	f := new(Fixture)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "failed to decode fixture")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks that every customer has a name and every ticket an issue
// and a known priority.
func (f *Fixture) Validate() error {
	for i, c := range f.Customers {
		if c.Name == "" {
			return errors.Errorf("customer %d: name is required", i)
		}
		for j, t := range c.Tickets {
			if t.Issue == "" {
				return errors.Errorf("customer %q ticket %d: issue is required", c.Name, j)
			}
			if t.Priority != "" && !model.Priority(t.Priority).Valid() {
				return errors.Errorf("customer %q ticket %d: invalid priority %q", c.Name, j, t.Priority)
			}
		}
	}
	return nil
}

var fakeIssues = []string{
	"Unable to login to account",
	"Billing charged twice",
	"Refund not received",
	"Order arrived damaged",
	"Cannot update payment method",
	"Two-factor code not delivered",
	"Subscription renewal failed",
	"Shipping address is wrong",
}

// Fake generates n customers with up to maxTickets tickets each. The same
// seed yields the same fixture.
func Fake(n, maxTickets int, seed uint64) *Fixture {
	faker := gofakeit.New(seed)
	priorities := []string{string(model.PriorityLow), string(model.PriorityMedium), string(model.PriorityHigh)}
	statuses := []string{model.CustomerStatusActive, model.CustomerStatusActive, model.CustomerStatusInactive}

	f := &Fixture{Customers: make([]Customer, 0, n)}
	for i := 0; i < n; i++ {
		email := faker.Email()
		phone := faker.Phone()
		c := Customer{
			Name:   faker.Name(),
			Email:  &email,
			Phone:  &phone,
			Status: faker.RandomString(statuses),
		}
		if maxTickets > 0 {
			for j := faker.Number(0, maxTickets); j > 0; j-- {
				c.Tickets = append(c.Tickets, Ticket{
					Issue:    faker.RandomString(fakeIssues),
					Priority: faker.RandomString(priorities),
				})
			}
		}
		f.Customers = append(f.Customers, c)
	}
	return f
}

// Apply inserts the fixture into the store.
func Apply(ctx context.Context, customers repository.CustomerRepositoryInterface, tickets repository.TicketRepositoryInterface, f *Fixture) (*Summary, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	s := new(Summary)
	for _, fc := range f.Customers {
		c := &model.Customer{
			Name:   fc.Name,
			Email:  fc.Email,
			Phone:  fc.Phone,
			Status: fc.Status,
		}
		if err := customers.Create(ctx, c); err != nil {
			return s, err
		}
		s.Customers++

		for _, ft := range fc.Tickets {
			t := &model.Ticket{
				CustomerID: c.ID,
				Issue:      ft.Issue,
				Priority:   model.Priority(ft.Priority),
			}
			if err := tickets.Create(ctx, t); err != nil {
				return s, err
			}
			s.Tickets++
		}
		logger.ContextKV(ctx, xlog.DEBUG, "customer", c.ID, "tickets", len(fc.Tickets))
	}
	return s, nil
}
