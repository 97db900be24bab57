package sqlxrepos

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core"
)

// Postgres error codes
const (
	uniqueViolation = "23505"
	fkViolation     = "23503"
)

// whereClause accumulates AND-ed conditions written with `?` bind vars.
type whereClause struct {
	conds []string
	args  []interface{}
}

func (w *whereClause) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func likePattern(s string) string {
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return "%" + s + "%"
}

// validIDs drops the ids that are not UUIDs, they cannot match any row.
func validIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			out = append(out, id)
		}
	}
	return out
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func isPQError(err error, code string) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && string(pqErr.Code) == code
}

// isTransient reports errors worth retrying later: lost connections, timeouts, serialization failures,
// server shutdowns and connection limits.
func isTransient(err error) bool {
	cause := errors.Cause(err)
	if cause == driver.ErrBadConn || cause == context.DeadlineExceeded || cause == sql.ErrConnDone {
		return true
	}
	if pqErr, ok := cause.(*pq.Error); ok {
		switch pqErr.Code.Class() {
		case "08", "40", "53", "57":
			return true
		}
	}
	return false
}

// trapErr maps "no rows" to notFound, flags transient failures and wraps the rest with msg.
func trapErr(err error, notFound error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Cause(err) == sql.ErrNoRows && notFound != nil:
		return notFound
	case isTransient(err):
		return core.NewTransientError(errors.Wrap(err, msg))
	}
	return errors.Wrap(err, msg)
}

// mustAffect returns notFound when res did not touch any row.
func mustAffect(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// inTx runs fn in a transaction, rolled back when fn fails.
func inTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return trapErr(err, nil, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return trapErr(tx.Commit(), nil, "committing transaction")
}

func count(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, q, &n, query, args...); err != nil {
		return 0, trapErr(err, nil, "counting rows")
	}
	return n, nil
}

func newID() string {
	return uuid.New().String()
}
