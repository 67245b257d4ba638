// Package sqlstore implements store.Store over database/sql. The SQLite and
// Postgres packages supply a Dialect with their schema, placeholder style and
// track locking.
package sqlstore

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/kilianp07/ttms/core/store"
)

// Dialect captures the engine specific parts of the store.
type Dialect interface {
	Name() string
	// Schema returns idempotent DDL statements.
	Schema() []string
	// Rebind rewrites '?' placeholders into the engine's style.
	Rebind(query string) string
	TxOptions() *sql.TxOptions
	// LockTracks acquires exclusive locks on keys, already sorted and
	// de-duplicated, for the rest of tx.
	LockTracks(ctx context.Context, tx *sql.Tx, keys []store.TrackKey) error
}

// QuestionMarks leaves queries untouched.
func QuestionMarks(q string) string { return q }

// DollarNumbers rewrites '?' placeholders into $1, $2, ...
func DollarNumbers(q string) string {
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}
