package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/invorya-gst/internal/application/recurring"
)

// BatchLockKey clave de pg_advisory_lock del lote de facturas recurrentes.
const BatchLockKey int64 = 0x1E_C0_4217

var _ recurring.BatchLock = (*AdvisoryLock)(nil)

// AdvisoryLock candado de sesión entre instancias. El candado pertenece a la conexión,
// por eso se reserva una conexión del pool mientras está tomado.
type AdvisoryLock struct {
	pool *pgxpool.Pool
	key  int64

	mu   sync.Mutex
	conn *pgxpool.Conn
}

// NewAdvisoryLock construye el candado para key.
func NewAdvisoryLock(pool *pgxpool.Pool, key int64) *AdvisoryLock {
	return &AdvisoryLock{pool: pool, key: key}
}

// TryAcquire intenta tomar el candado sin bloquear.
func (l *AdvisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to acquire connection: %w", err)
	}
	var ok bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&ok); err != nil {
		conn.Release()
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		conn.Release()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release libera el candado y devuelve la conexión al pool.
func (l *AdvisoryLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return errors.New("lock not held")
	}
	conn := l.conn
	l.conn = nil

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var released bool
	err := conn.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", l.key).Scan(&released)
	if err != nil {
		// Sin unlock confirmado: cerrar la conexión libera el candado de sesión.
		_ = conn.Conn().Close(ctx)
		conn.Release()
		return fmt.Errorf("failed to release lock: %w", err)
	}
	conn.Release()
	if !released {
		return errors.New("lock was not held by this session")
	}
	return nil
}
