package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// SessionProvider hands out request-scoped sessions from the process pool.
type SessionProvider struct {
	db *gorm.DB
}

// Session is one dedicated pooled connection plus a gorm handle bound to it
// and to the caller's context. It belongs to a single request.
type Session struct {
	DB   *gorm.DB
	conn *sql.Conn
}

func NewSessionProvider(gdb *gorm.DB) *SessionProvider {
	return &SessionProvider{db: gdb}
}

// Acquire reserves a connection for the caller. Every successful Acquire
// must be paired with Release.
func (p *SessionProvider) Acquire(ctx context.Context) (*Session, error) {
	if p == nil || p.db == nil {
		return nil, errors.New("session acquire: no pool")
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return nil, fmt.Errorf("session acquire: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("session acquire: %w", err)
	}

	tx := p.db.Session(&gorm.Session{NewDB: true, Context: ctx})
	tx.Statement.ConnPool = conn

	return &Session{DB: tx, conn: conn}, nil
}

// With runs fn on a fresh session and releases it on every exit path.
func (p *SessionProvider) With(ctx context.Context, fn func(*Session) error) (err error) {
	sess, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := sess.Release(); relErr != nil && err == nil {
			err = relErr
		}
	}()
	return fn(sess)
}

// Release returns the connection to the pool. It is a no-op on a nil
// session and on a session that was already released.
func (s *Session) Release() error {
	if s == nil || s.conn == nil {
		return nil
	}
	conn := s.conn
	s.conn = nil
	if err := conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("session release: %w", err)
	}
	return nil
}

// Active reports whether the session still holds its connection.
func (s *Session) Active() bool {
	return s != nil && s.conn != nil
}
