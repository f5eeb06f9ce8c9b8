package db

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/vvka-141/geoload/pkg/geoload"
)

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},

		{"connection_exception (08000)", &pgconn.PgError{Code: "08000"}, true},
		{"connection_failure (08006)", &pgconn.PgError{Code: "08006"}, true},
		{"protocol_violation (08P01)", &pgconn.PgError{Code: "08P01"}, true},
		{"too_many_connections (53300)", &pgconn.PgError{Code: "53300"}, true},
		{"admin_shutdown (57P01)", &pgconn.PgError{Code: "57P01"}, true},
		{"cannot_connect_now (57P03)", &pgconn.PgError{Code: "57P03"}, true},

		{"syntax_error (42601)", &pgconn.PgError{Code: "42601", Message: "syntax error"}, false},
		{"not_null_violation (23502)", &pgconn.PgError{Code: "23502"}, false},
		{"lock_not_available (55P03)", &pgconn.PgError{Code: "55P03"}, false},
		{"invalid_text_representation (22P02)", &pgconn.PgError{Code: "22P02"}, false},
		{"pg error mentioning connection text", &pgconn.PgError{Code: "42501", Message: "connection refused for role"}, false},

		{"op error", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, true},
		{"dns error", &net.DNSError{Err: "no such host", Name: "db.invalid"}, true},
		{"wrapped reset", fmt.Errorf("batch: %w", syscall.ECONNRESET), true},
		{"broken pipe", fmt.Errorf("write: %w", syscall.EPIPE), true},

		{"message: conn closed", errors.New("conn closed"), true},
		{"message: unexpected EOF", errors.New("receive message failed: unexpected EOF"), true},
		{"message: failed to connect", errors.New("failed to connect to `host=x`: dial error"), true},

		{"plain error", errors.New("value out of range"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsConnectionError(tt.err))
		})
	}
}

func TestWrapConnectionError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, WrapConnectionError(nil))
	})

	t.Run("connectivity is wrapped", func(t *testing.T) {
		cause := &pgconn.PgError{Code: "57P01", Message: "terminating connection"}
		err := WrapConnectionError(cause)

		var connErr *geoload.ConnectionError
		assert.True(t, errors.As(err, &connErr))
		assert.ErrorIs(t, err, geoload.ErrConnectionFailed)
		assert.Equal(t, geoload.ExitConnectionError, geoload.ExitCodeForError(err))

		var pgErr *pgconn.PgError
		assert.True(t, errors.As(err, &pgErr))
	})

	t.Run("statement errors pass through", func(t *testing.T) {
		cause := &pgconn.PgError{Code: "23502"}
		assert.Same(t, error(cause), WrapConnectionError(cause))
	})

	t.Run("already wrapped is not wrapped twice", func(t *testing.T) {
		wrapped := &geoload.ConnectionError{Err: errors.New("conn closed")}
		assert.Same(t, error(wrapped), WrapConnectionError(wrapped))
	})
}
