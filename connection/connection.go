// Package connection resolves the database connection a compiled query
// should run against (spec §4.8: "the resolver derives and exposes the
// chosen connection"). Views declare a connection name; this package
// turns that name plus the project's dialect into a lazily-opened
// *sql.DB, the way the teacher's database package wraps each backend
// behind a small per-driver constructor.
package connection

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"github.com/metricdef/metricdef/dialect"
	"github.com/metricdef/metricdef/model"
)

// Info names one declared connection: its dialect and the DSN a
// Provider needs to open it. The *sql.DB is opened lazily and cached,
// so resolving a query never opens a connection that's only used to
// print SQL.
type Info struct {
	Name    string
	Dialect dialect.Dialect
	DSN     string

	mu       sync.Mutex
	db       *sql.DB
	provider Provider
}

// Open returns this connection's *sql.DB, opening it on first use.
func (i *Info) Open() (*sql.DB, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.db != nil {
		return i.db, nil
	}
	if i.provider == nil {
		return nil, fmt.Errorf("connection %q has no provider bound", i.Name)
	}
	db, err := i.provider.Open(i.DSN)
	if err != nil {
		return nil, err
	}
	i.db = db
	return db, nil
}

// Provider opens a *sql.DB for a dialect-specific DSN.
type Provider interface {
	Open(dsn string) (*sql.DB, error)
}

// Registry maps declared connection names to their Info, and binds each
// one to the Provider implementing its dialect.
type Registry struct {
	connections map[string]*Info
	providers   map[dialect.Dialect]Provider
}

// NewRegistry builds a registry wired to every driver this module
// carries a real dependency for. Snowflake, BigQuery, and Druid have no
// driver in this module's dependency set, so Open on those dialects
// raises NotImplementedError instead of silently failing a type
// assertion.
func NewRegistry() *Registry {
	return &Registry{
		connections: map[string]*Info{},
		providers: map[dialect.Dialect]Provider{
			dialect.Postgres:  postgresProvider{},
			dialect.Redshift:  redshiftProvider{},
			dialect.Snowflake: notImplementedProvider{dlct: dialect.Snowflake},
			dialect.BigQuery:  notImplementedProvider{dlct: dialect.BigQuery},
			dialect.Druid:     notImplementedProvider{dlct: dialect.Druid},
		},
	}
}

// Register declares a named connection, binding it to this registry's
// provider for its dialect.
func (r *Registry) Register(name string, dlct dialect.Dialect, dsn string) *Info {
	info := &Info{Name: name, Dialect: dlct, DSN: dsn, provider: r.providers[dlct]}
	r.connections[name] = info
	return info
}

// Resolve returns the named connection, the way the resolver exposes
// the connection a compiled query should run against.
func (r *Registry) Resolve(name string) (*Info, error) {
	info, ok := r.connections[name]
	if !ok {
		return nil, model.NewQueryError(name, "connection not registered")
	}
	return info, nil
}

type postgresProvider struct{}

func (postgresProvider) Open(dsn string) (*sql.DB, error) {
	return sql.Open("postgres", dsn)
}

// redshiftProvider uses pgx's database/sql driver rather than lib/pq:
// Redshift's wire protocol diverges from Postgres's in ways pgx's
// simple-query fallback tolerates better than lib/pq's extended
// protocol assumptions.
type redshiftProvider struct{}

func (redshiftProvider) Open(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

type notImplementedProvider struct {
	dlct dialect.Dialect
}

func (p notImplementedProvider) Open(string) (*sql.DB, error) {
	return nil, model.NewNotImplementedError(p.dlct.String(), "no driver is wired for this dialect")
}
