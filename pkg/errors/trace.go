package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// DBFailure carries the Postgres diagnostics attached to a failed statement.
type DBFailure struct {
	SQLState   string `json:"sqlstate"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// Trace is the loggable view of an error chain.
type Trace struct {
	Message string     `json:"message"`
	Code    Code       `json:"code,omitempty"`
	Chain   []string   `json:"chain,omitempty"`
	DB      *DBFailure `json:"db,omitempty"`
}

// Describe walks err and collects its typed code, every wrapped layer and
// any Postgres failure from either driver.
func Describe(err error) Trace {
	if err == nil {
		return Trace{}
	}
	t := Trace{Message: err.Error(), Code: CodeOf(err), DB: dbFailure(err)}
	for e := err; e != nil; e = errors.Unwrap(e) {
		t.Chain = append(t.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	return t
}

func dbFailure(err error) *DBFailure {
	if pgErr := (*pgconn.PgError)(nil); errors.As(err, &pgErr) {
		return &DBFailure{SQLState: pgErr.Code, Constraint: pgErr.ConstraintName, Table: pgErr.TableName, Detail: pgErr.Detail}
	}
	if pqErr := (*pq.Error)(nil); errors.As(err, &pqErr) {
		return &DBFailure{SQLState: string(pqErr.Code), Constraint: pqErr.Constraint, Table: pqErr.Table, Detail: pqErr.Detail}
	}
	return nil
}
