package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// PopulationUpdate is one (city id, population) pair to apply.
type PopulationUpdate struct {
	ID         string
	Population int64
}

// UpdatePopulations applies a chunk of population updates to the given
// table in a single transaction:
//  1. Creates a temp table dropped on commit
//  2. COPYs the (id, population) pairs into it
//  3. UPDATE target SET population FROM temp, keyed by id
//
// The whole chunk commits or none of it does. Re-applying the same chunk
// is idempotent since the update sets an absolute value per id.
func UpdatePopulations(ctx context.Context, pool Pool, table string, updates []PopulationUpdate) (int64, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: population update: begin tx")
	}
	defer tx.Rollback(ctx)

	tempTable := fmt.Sprintf("_tmp_pop_%s", strings.ReplaceAll(table, ".", "_"))

	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (id TEXT PRIMARY KEY, population BIGINT NOT NULL) ON COMMIT DROP",
		pgx.Identifier{tempTable}.Sanitize(),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: population update: create temp table for %s", table)
	}

	rows := make([][]any, len(updates))
	for i, u := range updates {
		rows[i] = []any{u.ID, u.Population}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tempTable}, []string{"id", "population"}, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: population update: COPY into temp table for %s", table)
	}

	updateSQL := fmt.Sprintf(
		"UPDATE %s c SET population = t.population FROM %s t WHERE c.id = t.id",
		sanitizeTable(table),
		pgx.Identifier{tempTable}.Sanitize(),
	)
	tag, err := tx.Exec(ctx, updateSQL)
	if err != nil {
		return 0, eris.Wrapf(err, "db: population update: UPDATE %s", table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: population update: commit tx")
	}

	return tag.RowsAffected(), nil
}

// sanitizeTable handles schema-qualified table names like "public.cities".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}
