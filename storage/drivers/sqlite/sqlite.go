// Package sqlite implements a relational driver. Every scope instance
// is one row of the documents table holding the instance document as
// JSON text.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/jrife/confdb/storage/driver"
	"github.com/jrife/confdb/storage/identifier"
	"github.com/jrife/confdb/storage/keys"
	"github.com/jrife/confdb/utils/log"
	"github.com/jrife/confdb/utils/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	DriverName = "sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	owner TEXT NOT NULL,
	unique_id TEXT NOT NULL,
	category TEXT NOT NULL,
	pk BLOB NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (owner, unique_id, category, pk)
) WITHOUT ROWID;
`

func Plugins() []driver.Plugin {
	return []driver.Plugin{
		&SQLitePlugin{},
	}
}

type SQLitePlugin struct {
}

func (plugin *SQLitePlugin) Name() string {
	return DriverName
}

func (plugin *SQLitePlugin) Settings() []driver.Setting {
	return []driver.Setting{
		{Name: "path", Description: "path of the SQLite database file, or :memory:", Required: true},
	}
}

func (plugin *SQLitePlugin) NewDriver(options driver.PluginOptions) (driver.Driver, error) {
	var config Config

	if path, ok := options["path"]; !ok {
		return nil, fmt.Errorf("\"path\" is required")
	} else if pathString, ok := path.(string); !ok {
		return nil, fmt.Errorf("\"path\" must be a string")
	} else {
		config.Path = pathString
	}

	return New(config)
}

func (plugin *SQLitePlugin) NewTempDriver() (driver.Driver, error) {
	return plugin.NewDriver(driver.PluginOptions{
		"path": uuid.TempPath("confdb-sqlite") + ".db",
	})
}

// Config configures a SQLite driver
type Config struct {
	Path   string
	Logger *zap.Logger
}

// New opens the database at config.Path and returns a driver for it
func New(config Config) (*driver.RowDriver, error) {
	backend, err := Open(config)

	if err != nil {
		return nil, err
	}

	return driver.NewRowDriver(DriverName, backend, config.Logger), nil
}

var _ driver.RowBackend = (*Backend)(nil)

// Backend is a driver.RowBackend stored in SQLite
type Backend struct {
	db     *sql.DB
	closed atomic.Bool
	logger *zap.Logger
}

// Open opens the database at config.Path and creates the schema
func Open(config Config) (*Backend, error) {
	db, err := sql.Open("sqlite", config.Path)

	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", config.Path, err)
	}

	// Transactions are serialized on a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()

		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create schema: %w", err)
	}

	logger := log.OrDefault(config.Logger).With(zap.String("path", config.Path))
	logger.Debug("opened sqlite store")

	return &Backend{db: db, logger: logger}, nil
}

func (backend *Backend) transact(ctx context.Context, fn func(txn driver.RowTxn) error) error {
	if backend.closed.Load() {
		return driver.ErrClosed
	}

	tx, err := backend.db.BeginTx(ctx, nil)

	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	if err := fn(&Txn{ctx: ctx, tx: tx}); err != nil {
		_ = tx.Rollback()

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (backend *Backend) View(ctx context.Context, fn func(txn driver.RowTxn) error) error {
	return backend.transact(ctx, fn)
}

func (backend *Backend) Update(ctx context.Context, fn func(txn driver.RowTxn) error) error {
	return backend.transact(ctx, fn)
}

func (backend *Backend) Owners(ctx context.Context) ([]identifier.Owner, error) {
	if backend.closed.Load() {
		return nil, driver.ErrClosed
	}

	rows, err := backend.db.QueryContext(ctx, "SELECT DISTINCT owner, unique_id FROM documents ORDER BY owner, unique_id")

	if err != nil {
		return nil, fmt.Errorf("query owners: %w", err)
	}

	defer rows.Close()

	owners := []identifier.Owner{}

	for rows.Next() {
		var owner identifier.Owner

		if err := rows.Scan(&owner.Name, &owner.UniqueID); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}

		owners = append(owners, owner)
	}

	return owners, rows.Err()
}

func (backend *Backend) Close() error {
	if backend.closed.Swap(true) {
		return nil
	}

	return backend.db.Close()
}

var _ driver.RowTxn = (*Txn)(nil)

// Txn is a driver.RowTxn for a SQLite transaction
type Txn struct {
	ctx context.Context
	tx  *sql.Tx
}

func (txn *Txn) Row(owner identifier.Owner, category string, pk []string) ([]byte, error) {
	var data string

	err := txn.tx.QueryRowContext(txn.ctx,
		"SELECT data FROM documents WHERE owner = ? AND unique_id = ? AND category = ? AND pk = ?",
		owner.Name, owner.UniqueID, category, []byte(keys.Encode(pk)),
	).Scan(&data)

	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("select row: %w", err)
	}

	return []byte(data), nil
}

// rangeClause restricts pk to the keys prefixed by prefix
func rangeClause(prefix []string) (string, []interface{}) {
	r := keys.Prefix(prefix)

	if r.Max == nil {
		return "pk >= ?", []interface{}{[]byte(r.Min)}
	}

	return "pk >= ? AND pk < ?", []interface{}{[]byte(r.Min), []byte(r.Max)}
}

func (txn *Txn) Scan(owner identifier.Owner, category string, prefix []string, fn func(pk []string, data []byte) error) error {
	clause, args := rangeClause(prefix)
	rows, err := txn.tx.QueryContext(txn.ctx,
		"SELECT pk, data FROM documents WHERE owner = ? AND unique_id = ? AND category = ? AND "+clause+" ORDER BY pk",
		append([]interface{}{owner.Name, owner.UniqueID, category}, args...)...,
	)

	if err != nil {
		return fmt.Errorf("select rows: %w", err)
	}

	type row struct {
		pk   []string
		data []byte
	}

	matches := []row{}

	for rows.Next() {
		var encoded []byte
		var data string

		if err := rows.Scan(&encoded, &data); err != nil {
			rows.Close()

			return fmt.Errorf("scan row: %w", err)
		}

		pk, err := keys.Decode(encoded)

		if err != nil {
			rows.Close()

			return err
		}

		matches = append(matches, row{pk: pk, data: []byte(data)})
	}

	if err := rows.Close(); err != nil {
		return err
	}

	if err := rows.Err(); err != nil {
		return err
	}

	// The cursor must be closed before fn issues statements of its own
	for _, match := range matches {
		if err := fn(match.pk, match.data); err != nil {
			return err
		}
	}

	return nil
}

func (txn *Txn) Put(owner identifier.Owner, category string, pk []string, data []byte) error {
	_, err := txn.tx.ExecContext(txn.ctx,
		"INSERT OR REPLACE INTO documents (owner, unique_id, category, pk, data) VALUES (?, ?, ?, ?, ?)",
		owner.Name, owner.UniqueID, category, []byte(keys.Encode(pk)), string(data),
	)

	if err != nil {
		return fmt.Errorf("insert row: %w", err)
	}

	return nil
}

func (txn *Txn) Delete(owner identifier.Owner, category string, pk []string) error {
	_, err := txn.tx.ExecContext(txn.ctx,
		"DELETE FROM documents WHERE owner = ? AND unique_id = ? AND category = ? AND pk = ?",
		owner.Name, owner.UniqueID, category, []byte(keys.Encode(pk)),
	)

	if err != nil {
		return fmt.Errorf("delete row: %w", err)
	}

	return nil
}

func (txn *Txn) DeletePrefix(owner identifier.Owner, category string, prefix []string) error {
	clause, args := rangeClause(prefix)
	_, err := txn.tx.ExecContext(txn.ctx,
		"DELETE FROM documents WHERE owner = ? AND unique_id = ? AND category = ? AND "+clause,
		append([]interface{}{owner.Name, owner.UniqueID, category}, args...)...,
	)

	if err != nil {
		return fmt.Errorf("delete rows: %w", err)
	}

	return nil
}

func (txn *Txn) DeleteOwner(owner identifier.Owner) error {
	_, err := txn.tx.ExecContext(txn.ctx,
		"DELETE FROM documents WHERE owner = ? AND unique_id = ?",
		owner.Name, owner.UniqueID,
	)

	if err != nil {
		return fmt.Errorf("delete owner: %w", err)
	}

	return nil
}
