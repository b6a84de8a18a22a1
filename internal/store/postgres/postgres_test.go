package postgres

import (
	"errors"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"shopkhata/backend/internal/apperr"
)

func TestConnErrClassifiesNetworkFailures(t *testing.T) {
	netErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

	wrapped := connErr(netErr)
	if !apperr.IsUnavailable(wrapped) {
		t.Fatalf("expected network error to classify as unavailable, got %v", wrapped)
	}
	if !errors.Is(wrapped, netErr) {
		t.Fatalf("expected the original error to stay reachable via errors.Is")
	}
}

func TestConnErrPassesServerErrorsThrough(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", Message: "duplicate key"}

	wrapped := connErr(pgErr)
	if apperr.IsUnavailable(wrapped) {
		t.Fatalf("expected a server-reported error to pass through, got %v", wrapped)
	}
	if !isUniqueViolation(wrapped) {
		t.Fatalf("expected unique violation to survive classification")
	}
}

func TestConnErrNilStaysNil(t *testing.T) {
	if got := connErr(nil); got != nil {
		t.Fatalf("expected nil to stay nil, got %v", got)
	}
}
