package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"

	"github.com/stuartshay/geostore/internal/geo"
)

// SQLite primary result codes
const (
	sqliteBusy       = 5
	sqliteLocked     = 6
	sqliteConstraint = 19
)

// MySQL server error numbers
const (
	mysqlDuplicateEntry   = 1062
	mysqlLockWaitTimeout  = 1205
	mysqlDeadlock         = 1213
	mysqlTooManyConns     = 1040
	mysqlServerGoneAway   = 2006
	mysqlServerLostQuery  = 2013
	mysqlNoReferencedRow  = 1452
	mysqlNoReferencedRow2 = 1216
)

// Classify wraps driver errors with the geo error taxonomy:
// unique/foreign-key violations become ErrConstraintViolation, and
// connectivity, timeout and lock contention failures become
// ErrStorageUnavailable. Other errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, geo.ErrStorageUnavailable) ||
		errors.Is(err, geo.ErrConstraintViolation) ||
		errors.Is(err, geo.ErrInvalidArgument) ||
		errors.Is(err, geo.ErrNotFound) ||
		errors.Is(err, sql.ErrNoRows) {
		return err
	}

	switch {
	case isConstraint(err):
		return fmt.Errorf("%w: %w", geo.ErrConstraintViolation, err)
	case isUnavailable(err):
		return fmt.Errorf("%w: %w", geo.ErrStorageUnavailable, err)
	}
	return err
}

func isConstraint(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "23"
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry, mysqlNoReferencedRow, mysqlNoReferencedRow2:
			return true
		}
		return false
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()&0xff == sqliteConstraint
	}

	return false
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57", "40":
			// connection exception, insufficient resources,
			// operator intervention, transaction rollback
			return true
		}
		return false
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlLockWaitTimeout, mysqlDeadlock, mysqlTooManyConns, mysqlServerGoneAway, mysqlServerLostQuery:
			return true
		}
		return false
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code() & 0xff
		return code == sqliteBusy || code == sqliteLocked
	}

	return false
}
