package db

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vvka-141/geoload/pkg/geoload"
)

// PostgreSQL error codes that mean the session is gone or cannot be established.
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	// Class 08 - Connection Exception
	pgCodeConnectionException                        = "08000"
	pgCodeConnectionDoesNotExist                     = "08003"
	pgCodeConnectionFailure                          = "08006"
	pgCodeSQLClientUnableToEstablishConnection       = "08001"
	pgCodeSQLServerRejectedEstablishmentOfConnection = "08004"

	// Class 53 - Insufficient Resources
	pgCodeTooManyConnections = "53300"

	// Class 57 - Operator Intervention
	pgCodeAdminShutdown    = "57P01"
	pgCodeCrashShutdown    = "57P02"
	pgCodeCannotConnectNow = "57P03"
)

// IsConnectionError reports whether err means database connectivity is
// unavailable or was lost, as opposed to a statement the server rejected.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return isConnectionPgError(pgErr)
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	if isNetworkError(err) {
		return true
	}

	return hasConnectionMessage(err)
}

// WrapConnectionError returns err as a geoload.ConnectionError when it is a
// connectivity failure, and err unchanged otherwise.
func WrapConnectionError(err error) error {
	if err == nil || errors.Is(err, geoload.ErrConnectionFailed) {
		return err
	}
	if IsConnectionError(err) {
		return &geoload.ConnectionError{Err: err}
	}
	return err
}

func isConnectionPgError(pgErr *pgconn.PgError) bool {
	switch pgErr.Code {
	case pgCodeConnectionException,
		pgCodeConnectionDoesNotExist,
		pgCodeConnectionFailure,
		pgCodeSQLClientUnableToEstablishConnection,
		pgCodeSQLServerRejectedEstablishmentOfConnection,
		pgCodeTooManyConnections,
		pgCodeAdminShutdown,
		pgCodeCrashShutdown,
		pgCodeCannotConnectNow:
		return true
	}
	return strings.HasPrefix(pgErr.Code, "08")
}

func isNetworkError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH)
}

func hasConnectionMessage(err error) bool {
	msg := strings.ToLower(err.Error())

	patterns := []string{
		"connection refused",
		"connection reset",
		"connection timeout",
		"connection failure",
		"no such host",
		"network is unreachable",
		"broken pipe",
		"too many connections",
		"server closed the connection",
		"unexpected eof",
		"conn closed",
		"failed to connect",
	}

	for _, pattern := range patterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
