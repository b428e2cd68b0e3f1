package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// txLog counts transaction lifecycle calls observed at the driver level.
type txLog struct {
	begins    int
	commits   int
	rollbacks int
}

// fakeConnector hands out fakeConns without touching a real database.
// sql.OpenDB accepts it directly, so tests need no driver registration.
type fakeConnector struct {
	log        *txLog
	connectErr error
}

func (c *fakeConnector) Connect(ctx context.Context) (driver.Conn, error) {
	if c.connectErr != nil {
		return nil, c.connectErr
	}
	return &fakeConn{log: c.log}, nil
}

func (c *fakeConnector) Driver() driver.Driver { return nil }

type fakeConn struct {
	log *txLog
}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Begin() (driver.Tx, error) {
	c.log.begins++
	return &fakeTx{log: c.log}, nil
}

type fakeTx struct {
	log *txLog
}

func (t *fakeTx) Commit() error {
	t.log.commits++
	return nil
}

func (t *fakeTx) Rollback() error {
	t.log.rollbacks++
	return nil
}

// TestRunInTransaction verifies the ownership contract at the driver
// level: exactly one commit on success, exactly one rollback on error or
// panic, never both.
func TestRunInTransaction(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		log := &txLog{}
		db := sql.OpenDB(&fakeConnector{log: log})
		defer func() { _ = db.Close() }()

		err := RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, log.begins)
		assert.Equal(t, 1, log.commits)
		assert.Equal(t, 0, log.rollbacks)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		log := &txLog{}
		db := sql.OpenDB(&fakeConnector{log: log})
		defer func() { _ = db.Close() }()

		sentinel := errors.New("mid-batch failure")
		err := RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
			return sentinel
		})

		assert.ErrorIs(t, err, sentinel, "the callback's error must propagate unchanged")
		assert.Equal(t, 1, log.rollbacks)
		assert.Equal(t, 0, log.commits)
	})

	t.Run("rolls back on panic and repanics", func(t *testing.T) {
		log := &txLog{}
		db := sql.OpenDB(&fakeConnector{log: log})
		defer func() { _ = db.Close() }()

		require.Panics(t, func() {
			_ = RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
				panic("boom")
			})
		})

		assert.Equal(t, 1, log.rollbacks)
		assert.Equal(t, 0, log.commits)
	})

	t.Run("begin failure is reported", func(t *testing.T) {
		db := sql.OpenDB(&fakeConnector{log: &txLog{}, connectErr: errors.New("no connection")})
		defer func() { _ = db.Close() }()

		err := RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
			t.Fatal("callback must not run without a transaction")
			return nil
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to begin transaction")
	})
}
