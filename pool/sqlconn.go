package pool

import (
	"context"
	"database/sql"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLConn adapts a database/sql.Conn to RawConnection. database/sql pools connections
// on its own terms, which is exactly what this package replaces, so SQLConn is used
// only to drive one physical connection per PooledConnection — SQLConnFactory opens
// the database through gorm's sqlite driver and immediately detaches the *sql.Conn
// from gorm's pool management via (*sql.DB).Conn.
type SQLConn struct {
	conn *sql.Conn
}

func (c *SQLConn) Ping(ctx context.Context) error { return c.conn.PingContext(ctx) }

func (c *SQLConn) Rollback() error {
	_, err := c.conn.ExecContext(context.Background(), "ROLLBACK")
	// sqlite (and most drivers) error when no transaction is open; that is not a
	// failure worth propagating since "roll back if not auto-commit" is a no-op when
	// there was nothing to roll back.
	if err != nil {
		return nil
	}
	return nil
}

func (c *SQLConn) Close() error { return c.conn.Close() }

// SQLConnFactory opens SQLConn values against a single shared *sql.DB obtained via
// gorm.Open(sqlite.Open(dsn)). One *sql.DB per factory keeps the underlying database
// file handle shared while still handing the pool a distinct *sql.Conn (and therefore
// a distinct RawConnection) per PooledConnection.
type SQLConnFactory struct {
	dsn      string
	user     string
	password string
	db       *sql.DB
}

// NewSQLConnFactory opens dsn once via gorm/sqlite and returns a factory the pool can
// call Open on repeatedly.
func NewSQLConnFactory(dsn, user, password string) (*SQLConnFactory, error) {
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	return &SQLConnFactory{dsn: dsn, user: user, password: password, db: sqlDB}, nil
}

func (f *SQLConnFactory) Open(ctx context.Context) (RawConnection, error) {
	conn, err := f.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &SQLConn{conn: conn}, nil
}

func (f *SQLConnFactory) TypeCode() string {
	return TypeCode(f.dsn, f.user, f.password)
}

// Close releases the shared *sql.DB. Call after ForceCloseAll/discarding the DataSource.
func (f *SQLConnFactory) Close() error { return f.db.Close() }
