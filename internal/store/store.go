// Package store bulk-loads extracted tabular records into a
// relational store. The pipeline only produces CSV; loading is a
// single COPY of that stream, with no schema management or queries.
package store

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
)

// Loader ingests one CSV stream of (time, x, y, value) rows.
type Loader interface {
	Load(ctx context.Context, r io.Reader) (int64, error)
}

// Postgres loads via COPY ... FROM STDIN over a single connection.
type Postgres struct {
	DSN   string
	Table string
}

// Load copies the CSV stream into the configured table and returns the
// number of rows ingested.
func (p *Postgres) Load(ctx context.Context, r io.Reader) (int64, error) {
	conn, err := pgx.Connect(ctx, p.DSN)
	if err != nil {
		return 0, errors.Wrap(err, "connecting to postgres")
	}
	defer conn.Close(ctx)

	sql := fmt.Sprintf("COPY %s FROM STDIN WITH (FORMAT csv)", tableIdent(p.Table))
	tag, err := conn.PgConn().CopyFrom(ctx, r, sql)
	if err != nil {
		return 0, errors.Wrapf(err, "bulk copy into %s", p.Table)
	}
	return tag.RowsAffected(), nil
}

func tableIdent(table string) string {
	return pgx.Identifier(strings.Split(table, ".")).Sanitize()
}
