package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	flag "github.com/spf13/pflag"

	"github.com/unclebandit/customer-support-mcp/internal/config"
	"github.com/unclebandit/customer-support-mcp/internal/db"
	"github.com/unclebandit/customer-support-mcp/internal/queue"
	"github.com/unclebandit/customer-support-mcp/internal/repository"
	"github.com/unclebandit/customer-support-mcp/internal/service"
)

var logger = xlog.NewPackageLogger("github.com/unclebandit/customer-support-mcp/cmd", "worker")

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		logger.KV(xlog.ERROR, "reason", "exit", "err", err.Error())
		os.Exit(1)
	}
}

func parseFlags(args []string) (*config.Config, error) {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	cfgFile := fs.String("config", "", "path to YAML or JSON config file")
	amqpURL := fs.String("amqp-url", "", "RabbitMQ broker URL")
	driver := fs.String("db-driver", "", "store driver: sqlite or postgres")
	dsn := fs.String("db-dsn", "", "store DSN or SQLite file path")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := config.Resolve(*cfgFile)
	if err != nil {
		return nil, err
	}
	if fs.Changed("amqp-url") {
		cfg.Events.AMQPURL = *amqpURL
	}
	if fs.Changed("db-driver") {
		cfg.Store.Driver = *driver
	}
	if fs.Changed("db-dsn") {
		cfg.Store.DSN = *dsn
	}
	if cfg.Events.AMQPURL == "" {
		return nil, errors.Errorf("worker requires an AMQP broker: set --amqp-url or %s", config.EnvAMQPURL)
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// lineNotifier writes one rendered notification per line.
type lineNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

func (n *lineNotifier) Notify(msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, err := fmt.Fprintln(n.out, msg)
	return err
}

func run(ctx context.Context, cfg *config.Config, out io.Writer) error {
	level, _ := cfg.XLogLevel()
	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	xlog.SetGlobalLogLevel(level)

	dbc := cfg.DBConfig()
	conn, err := db.Open(ctx, dbc)
	if err != nil {
		return err
	}
	defer conn.Close()

	q, err := queue.DialAMQP(cfg.Events.AMQPURL, cfg.Events.Exchange, cfg.Events.Queue)
	if err != nil {
		return err
	}
	defer q.Close()

	return consume(ctx, q, &repository.CustomerRepository{DB: conn, Dialect: dbc.Dialect},
		&repository.TicketRepository{DB: conn, Dialect: dbc.Dialect}, out)
}

// consume renders events from q until ctx is done.
func consume(ctx context.Context, q queue.Queue, customers repository.CustomerRepositoryInterface, tickets repository.TicketRepositoryInterface, out io.Writer) error {
	n := &lineNotifier{out: out}
	w := service.NewEventWorker(customers, tickets, n.Notify)
	if err := w.SubscribeAll(q); err != nil {
		return err
	}

	logger.KV(xlog.INFO, "status", "waiting_for_events")
	<-ctx.Done()
	logger.KV(xlog.INFO, "status", "stopping")
	return nil
}
