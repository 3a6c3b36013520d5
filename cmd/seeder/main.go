package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	flag "github.com/spf13/pflag"

	"github.com/unclebandit/customer-support-mcp/internal/config"
	"github.com/unclebandit/customer-support-mcp/internal/db"
	"github.com/unclebandit/customer-support-mcp/internal/repository"
	"github.com/unclebandit/customer-support-mcp/internal/seed"
)

type options struct {
	cfg        *config.Config
	file       string
	fake       int
	maxTickets int
	seed       uint64
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	if err := run(context.Background(), opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "seeding failed:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("seeder", flag.ContinueOnError)
	cfgFile := fs.String("config", "", "path to YAML or JSON config file")
	driver := fs.String("db-driver", "", "store driver: sqlite or postgres")
	dsn := fs.String("db-dsn", "", "store DSN or SQLite file path")
	file := fs.String("file", "", "YAML fixture to load instead of the built-in sample")
	fake := fs.Int("fake", 0, "generate this many random customers instead of the sample")
	maxTickets := fs.Int("max-tickets", 3, "upper bound of tickets per generated customer")
	seedVal := fs.Uint64("seed", uint64(time.Now().UnixNano()), "random seed for --fake")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *file != "" && *fake > 0 {
		return nil, errors.New("--file and --fake are mutually exclusive")
	}
	if *fake < 0 || *maxTickets < 0 {
		return nil, errors.New("--fake and --max-tickets must not be negative")
	}

	cfg, err := config.Resolve(*cfgFile)
	if err != nil {
		return nil, err
	}
	if fs.Changed("db-driver") {
		cfg.Store.Driver = *driver
	}
	if fs.Changed("db-dsn") {
		cfg.Store.DSN = *dsn
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	return &options{
		cfg:        cfg,
		file:       *file,
		fake:       *fake,
		maxTickets: *maxTickets,
		seed:       *seedVal,
	}, nil
}

func (o *options) fixture() (*seed.Fixture, error) {
	switch {
	case o.file != "":
		return seed.LoadFile(o.file)
	case o.fake > 0:
		return seed.Fake(o.fake, o.maxTickets, o.seed), nil
	default:
		return seed.Sample(), nil
	}
}

func run(ctx context.Context, o *options, out io.Writer) error {
	f, err := o.fixture()
	if err != nil {
		return err
	}

	dbc := o.cfg.DBConfig()
	conn, err := db.Open(ctx, dbc)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err = db.Migrate(ctx, conn, dbc.Dialect); err != nil {
		return err
	}

	s, err := seed.Apply(ctx,
		&repository.CustomerRepository{DB: conn, Dialect: dbc.Dialect},
		&repository.TicketRepository{DB: conn, Dialect: dbc.Dialect},
		f)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Seeded %d customers and %d tickets into %s\n", s.Customers, s.Tickets, dbc.DSN)
	return nil
}
