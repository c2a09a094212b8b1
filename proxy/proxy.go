package proxy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgproto3"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rs/zerolog"

	"rowbridge/config"
	"rowbridge/storage"
)

// DuckDBProxy serves DuckDB query results to Postgres clients using the
// simple query protocol.
type DuckDBProxy struct {
	config   *config.Config
	db       *sql.DB
	store    storage.Storage
	listener net.Listener
	log      zerolog.Logger
}

func NewDuckDBProxy(cfg *config.Config, store storage.Storage, log zerolog.Logger) (*DuckDBProxy, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}

	p := &DuckDBProxy{
		config: cfg,
		db:     db,
		store:  store,
		log:    log.With().Str("component", "proxy").Logger(),
	}
	p.loadExtensions()

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Proxy.Port))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating listener: %w", err)
	}
	p.listener = listener

	return p, nil
}

// loadExtensions loads optional DuckDB extensions; a missing one only limits
// what clients can query.
func (p *DuckDBProxy) loadExtensions() {
	for _, ext := range []string{"parquet", "iceberg"} {
		if _, err := p.db.Exec(fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			p.log.Warn().Err(err).Str("extension", ext).Msg("extension unavailable")
		}
	}
}

func (p *DuckDBProxy) Addr() net.Addr {
	return p.listener.Addr()
}

func (p *DuckDBProxy) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		p.listener.Close()
	}()
	defer p.db.Close()

	p.log.Info().Str("addr", p.listener.Addr().String()).Msg("proxy listening")
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			p.log.Warn().Err(err).Msg("accept failed")
			continue
		}

		go p.handleConnection(ctx, conn)
	}
}

// refreshViews exposes every committed table of local storage as a view over
// its data files.
func (p *DuckDBProxy) refreshViews(ctx context.Context) error {
	if p.config.Storage.Type != config.StorageLocal {
		return nil
	}
	for _, t := range p.config.Tables {
		dir := fmt.Sprintf("%s/%s/data", t.Schema, t.Name)
		files, err := p.store.List(ctx, dir)
		if err != nil {
			return fmt.Errorf("listing %s: %w", t.QualifiedName(), err)
		}
		if len(files) == 0 {
			continue
		}

		glob := filepath.Join(p.config.Iceberg.Path, t.Schema, t.Name, "data", "*.parquet")
		stmt := fmt.Sprintf(
			`CREATE SCHEMA IF NOT EXISTS %s; CREATE OR REPLACE VIEW %s.%s AS SELECT * FROM read_parquet(%s, union_by_name = true)`,
			quoteIdent(t.Schema), quoteIdent(t.Schema), quoteIdent(t.Name), quoteLiteral(glob),
		)
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating view for %s: %w", t.QualifiedName(), err)
		}
	}
	return nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `''`) + `'`
}

func (p *DuckDBProxy) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	log := p.log.With().Str("remote", conn.RemoteAddr().String()).Logger()

	backend := pgproto3.NewBackend(conn, conn)

	startup, err := backend.ReceiveStartupMessage()
	if err != nil {
		log.Debug().Err(err).Msg("reading startup message")
		return
	}
	if _, ok := startup.(*pgproto3.SSLRequest); ok {
		if _, err := conn.Write([]byte("N")); err != nil {
			return
		}
		if _, err := backend.ReceiveStartupMessage(); err != nil {
			log.Debug().Err(err).Msg("reading startup message")
			return
		}
	}

	if err := p.refreshViews(ctx); err != nil {
		log.Warn().Err(err).Msg("refreshing table views")
	}

	backend.Send(&pgproto3.AuthenticationOk{})
	backend.Send(&pgproto3.ParameterStatus{Name: "server_version", Value: "14.0"})
	backend.Send(&pgproto3.ParameterStatus{Name: "client_encoding", Value: "UTF8"})
	backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})
	if err := backend.Flush(); err != nil {
		return
	}

	for {
		msg, err := backend.Receive()
		if err != nil {
			return
		}

		switch msg := msg.(type) {
		case *pgproto3.Query:
			if err := p.handleQuery(ctx, backend, msg.String); err != nil {
				log.Debug().Err(err).Str("query", msg.String).Msg("query failed")
				p.sendError(backend, err)
			}

		case *pgproto3.Terminate:
			return
		}
	}
}

func (p *DuckDBProxy) handleQuery(ctx context.Context, backend *pgproto3.Backend, query string) error {
	if strings.TrimSpace(query) == "" {
		backend.Send(&pgproto3.EmptyQueryResponse{})
		backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})
		return backend.Flush()
	}

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return err
	}

	names := make([]string, len(columnTypes))
	dbTypes := make([]string, len(columnTypes))
	for i, col := range columnTypes {
		names[i] = col.Name()
		dbTypes[i] = col.DatabaseTypeName()
	}
	enc, err := newResultEncoder(names, dbTypes)
	if err != nil {
		return err
	}

	backend.Send(enc.rowDescription())

	values := make([]any, len(columnTypes))
	scanArgs := make([]any, len(columnTypes))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	count := 0
	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return err
		}
		dataRow, err := enc.dataRow(values)
		if err != nil {
			return fmt.Errorf("encoding row %d: %w", count, err)
		}
		backend.Send(dataRow)
		count++
	}

	if err := rows.Err(); err != nil {
		return err
	}

	backend.Send(&pgproto3.CommandComplete{CommandTag: []byte(fmt.Sprintf("SELECT %d", count))})
	backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})

	return backend.Flush()
}

func (p *DuckDBProxy) sendError(backend *pgproto3.Backend, err error) {
	backend.Send(&pgproto3.ErrorResponse{
		Severity: "ERROR",
		Code:     "XX000",
		Message:  err.Error(),
	})
	backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})
	_ = backend.Flush()
}
