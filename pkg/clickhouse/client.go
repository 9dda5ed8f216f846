package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
)

type ClientOption func(*clientConfig)

type clientConfig struct {
	host            string
	port            int
	database        string
	user            string
	password        string
	maxOpen         int
	maxIdle         int
	connMaxLifetime time.Duration
	dialTimeout     time.Duration
	readTimeout     time.Duration
	useHTTP         bool
	maxExecTime     time.Duration
}

func WithHost(host string) ClientOption  { return func(c *clientConfig) { c.host = host } }
func WithPort(port int) ClientOption     { return func(c *clientConfig) { c.port = port } }
func WithDatabase(db string) ClientOption { return func(c *clientConfig) { c.database = db } }

func WithCredentials(user, password string) ClientOption {
	return func(c *clientConfig) {
		c.user = user
		c.password = password
	}
}

func WithMaxConnections(maxOpen, maxIdle int) ClientOption {
	return func(c *clientConfig) {
		c.maxOpen = maxOpen
		c.maxIdle = maxIdle
	}
}

// WithTimeouts sets dial and read timeouts. Zero keeps the default.
func WithTimeouts(dial, read time.Duration) ClientOption {
	return func(c *clientConfig) {
		if dial > 0 {
			c.dialTimeout = dial
		}
		if read > 0 {
			c.readTimeout = read
		}
	}
}

// WithHTTP switches from the native protocol to HTTP (port 8123 usually).
func WithHTTP(useHTTP bool) ClientOption { return func(c *clientConfig) { c.useHTTP = useHTTP } }

// WithMaxExecutionTime caps server-side query time for history reads.
func WithMaxExecutionTime(d time.Duration) ClientOption {
	return func(c *clientConfig) { c.maxExecTime = d }
}

// Client owns the ClickHouse pool used for raw bar history.
type Client struct {
	db       *sql.DB
	database string
}

// NewClient opens the pool and pings it within the dial timeout.
func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := clientConfig{
		port:            9000,
		database:        "default",
		maxOpen:         10,
		maxIdle:         5,
		connMaxLifetime: 5 * time.Minute,
		dialTimeout:     5 * time.Second,
		readTimeout:     10 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.host == "" {
		return nil, fmt.Errorf("host is required")
	}

	db := ch.OpenDB(cfg.options())
	db.SetMaxIdleConns(cfg.maxIdle)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.dialTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &Client{db: db, database: cfg.database}, nil
}

func (cfg clientConfig) options() *ch.Options {
	opts := &ch.Options{
		Addr: []string{net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port))},
		Auth: ch.Auth{
			Database: cfg.database,
			Username: cfg.user,
			Password: cfg.password,
		},
		Protocol:        ch.Native,
		DialTimeout:     cfg.dialTimeout,
		ReadTimeout:     cfg.readTimeout,
		MaxOpenConns:    cfg.maxOpen,
		ConnMaxLifetime: cfg.connMaxLifetime,
	}
	if cfg.useHTTP {
		opts.Protocol = ch.HTTP
	}
	if cfg.maxExecTime > 0 {
		opts.Settings = ch.Settings{"max_execution_time": int(cfg.maxExecTime.Seconds())}
	}
	return opts
}

func (c *Client) DB() *sql.DB { return c.db }

func (c *Client) Database() string { return c.database }

func (c *Client) Health(ctx context.Context) error { return c.db.PingContext(ctx) }

func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// InitSchema runs idempotent DDL statements in order.
func (c *Client) InitSchema(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
