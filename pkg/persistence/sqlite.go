package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const cellsSchema = `CREATE TABLE IF NOT EXISTS cells (
	addr  INTEGER PRIMARY KEY,
	value INTEGER NOT NULL
)`

// SQLiteMemory is a Memory kept in a SQLite database, one row per written
// cell. A WriteAt is a single transaction, so a multi-byte write is never
// partially applied.
type SQLiteMemory struct {
	db   *sql.DB
	size int64
}

// OpenSQLiteMemory opens or creates the database at path.
func OpenSQLiteMemory(path string, size int) (*SQLiteMemory, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("persistence: sqlite path is required")
	}
	if size <= 0 {
		size = DefaultSize
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(cellsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cells table: %w", err)
	}
	return &SQLiteMemory{db: db, size: int64(size)}, nil
}

// Size returns the capacity.
func (m *SQLiteMemory) Size() int64 {
	return m.size
}

// ReadAt implements io.ReaderAt. Cells without a row read as ErasedByte.
func (m *SQLiteMemory) ReadAt(p []byte, off int64) (int, error) {
	if err := checkRange(off, len(p), m.size); err != nil {
		return 0, err
	}
	for i := range p {
		p[i] = ErasedByte
	}

	rows, err := m.db.QueryContext(context.Background(),
		`SELECT addr, value FROM cells WHERE addr >= ? AND addr < ?`, off, off+int64(len(p)))
	if err != nil {
		return 0, fmt.Errorf("query cells: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var addr int64
		var value int
		if err := rows.Scan(&addr, &value); err != nil {
			return 0, fmt.Errorf("scan cell: %w", err)
		}
		p[addr-off] = byte(value)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("read cells: %w", err)
	}
	return len(p), nil
}

// WriteAt implements io.WriterAt.
func (m *SQLiteMemory) WriteAt(p []byte, off int64) (int, error) {
	if err := checkRange(off, len(p), m.size); err != nil {
		return 0, err
	}

	ctx := context.Background()
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cells (addr, value) VALUES (?, ?)
		 ON CONFLICT(addr) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return 0, fmt.Errorf("prepare write: %w", err)
	}
	defer stmt.Close()

	for i, b := range p {
		if _, err := stmt.ExecContext(ctx, off+int64(i), int(b)); err != nil {
			return 0, fmt.Errorf("write cell %#04x: %w", off+int64(i), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit cells: %w", err)
	}
	return len(p), nil
}

// Close closes the database.
func (m *SQLiteMemory) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

var _ Memory = (*SQLiteMemory)(nil)
