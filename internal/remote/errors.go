package remote

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/joseph-ayodele/expense-sync/internal/common"
)

// SQLSTATE values and classes the classifier cares about.
const (
	pgUniqueViolation       = "23505"
	pgInsufficientPrivilege = "42501"
	pgClassAuth             = "28"
	pgClassConnection       = "08"
	pgClassIntegrity        = "23"
	pgClassData             = "22"
	pgClassOperatorAction   = "57"
)

// classify maps a pgx error onto the sync error taxonomy:
// connectivity, authorization, conflict, validation, not-found.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return common.NotFound(op)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation:
			return common.ConflictError(op, err)
		case pgErr.Code == pgInsufficientPrivilege, strings.HasPrefix(pgErr.Code, pgClassAuth):
			return common.UnauthorizedError(op, err)
		case strings.HasPrefix(pgErr.Code, pgClassIntegrity), strings.HasPrefix(pgErr.Code, pgClassData):
			return common.ValidationFailed(op, err)
		case strings.HasPrefix(pgErr.Code, pgClassConnection), strings.HasPrefix(pgErr.Code, pgClassOperatorAction):
			return common.ConnectivityError(op, err)
		}
		return common.NewAppError("REMOTE", op, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return common.ConnectivityError(op+": timed out", err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return common.ConnectivityError(op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return common.ConnectivityError(op, err)
	}
	return common.NewAppError("REMOTE", op, err)
}
