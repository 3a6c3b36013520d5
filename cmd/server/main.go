package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	flag "github.com/spf13/pflag"

	"github.com/unclebandit/customer-support-mcp/internal/config"
	"github.com/unclebandit/customer-support-mcp/internal/controller"
	"github.com/unclebandit/customer-support-mcp/internal/db"
	"github.com/unclebandit/customer-support-mcp/internal/handler"
	"github.com/unclebandit/customer-support-mcp/internal/queue"
	"github.com/unclebandit/customer-support-mcp/internal/repository"
	"github.com/unclebandit/customer-support-mcp/internal/service"
	"github.com/unclebandit/customer-support-mcp/internal/tools"
)

var logger = xlog.NewPackageLogger("github.com/unclebandit/customer-support-mcp/cmd", "server")

const shutdownTimeout = 10 * time.Second

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

	if err := run(ctx, cfg); err != nil {
		logger.KV(xlog.ERROR, "reason", "exit", "err", err.Error())
		os.Exit(1)
	}
}

// parseFlags resolves the configuration; flags override file and environment.
func parseFlags(args []string) (*config.Config, error) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfgFile := fs.String("config", "", "path to YAML or JSON config file")
	host := fs.String("host", "", "listen host")
	port := fs.Int("port", 0, "listen port")
	driver := fs.String("db-driver", "", "store driver: sqlite or postgres")
	dsn := fs.String("db-dsn", "", "store DSN or SQLite file path")
	logLevel := fs.String("log-level", "", "log level: trace, debug, info, notice, warning, error")
	migrate := fs.Bool("migrate", true, "create missing tables on start")
	amqpURL := fs.String("amqp-url", "", "publish events to this RabbitMQ broker")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := config.Resolve(*cfgFile)
	if err != nil {
		return nil, err
	}
	if fs.Changed("host") {
		cfg.Host = *host
	}
	if fs.Changed("port") {
		cfg.Port = *port
	}
	if fs.Changed("db-driver") {
		cfg.Store.Driver = *driver
	}
	if fs.Changed("db-dsn") {
		cfg.Store.DSN = *dsn
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = *logLevel
	}
	if fs.Changed("migrate") {
		cfg.Store.Migrate = *migrate
	}
	if fs.Changed("amqp-url") {
		cfg.Events.AMQPURL = *amqpURL
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	level, _ := cfg.XLogLevel()
	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	xlog.SetGlobalLogLevel(level)
}

// openQueue connects to the broker when configured. Otherwise events stay
// in-process and are rendered by an EventWorker.
func openQueue(cfg *config.Config, customers *repository.CustomerRepository, tickets *repository.TicketRepository) (queue.Queue, error) {
	if cfg.Events.AMQPURL != "" {
		return queue.DialAMQP(cfg.Events.AMQPURL, cfg.Events.Exchange, cfg.Events.Queue)
	}

	q := queue.NewInMemoryQueue()
	w := service.NewEventWorker(customers, tickets, func(msg string) error {
		logger.KV(xlog.INFO, "notification", msg)
		return nil
	})
	if err := w.SubscribeAll(q); err != nil {
		return nil, err
	}
	return q, nil
}

// newHandler builds the HTTP surface over an open store.
func newHandler(cfg *config.Config, customers *repository.CustomerRepository, tickets *repository.TicketRepository, q queue.Queue) http.Handler {
	svc := &service.SupportService{
		CustomerRepo: customers,
		TicketRepo:   tickets,
		Queue:        q,
	}
	mcpController := &controller.McpController{
		Registry:      tools.NewRegistry(svc),
		ServerName:    cfg.ServerName,
		ServerVersion: cfg.ServerVersion,
	}
	mcpHandler := &handler.McpHandler{
		Controller: mcpController,
		ServerName: cfg.ServerName,
	}
	return handler.NewRouter(mcpHandler, cfg.CORS.AllowedOrigins)
}

func run(ctx context.Context, cfg *config.Config) error {
	setupLogging(cfg)

	dbc := cfg.DBConfig()
	conn, err := db.Open(ctx, dbc)
	if err != nil {
		return err
	}
	defer conn.Close()

	if cfg.Store.Migrate {
		if err = db.Migrate(ctx, conn, dbc.Dialect); err != nil {
			return err
		}
	}

	customers := &repository.CustomerRepository{DB: conn, Dialect: dbc.Dialect}
	tickets := &repository.TicketRepository{DB: conn, Dialect: dbc.Dialect}

	q, err := openQueue(cfg, customers, tickets)
	if err != nil {
		return err
	}
	defer func() {
		if err := q.Close(); err != nil {
			logger.KV(xlog.WARNING, "reason", "queue_close", "err", err.Error())
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newHandler(cfg, customers, tickets, q),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.KV(xlog.INFO, "status", "listening", "addr", srv.Addr, "server", cfg.ServerName)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err = <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server failed")
		}
		return nil
	case <-ctx.Done():
	}

	logger.KV(xlog.INFO, "status", "shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shut down")
	}
	return nil
}
