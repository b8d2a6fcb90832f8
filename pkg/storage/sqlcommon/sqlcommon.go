// Package sqlcommon implements the DocumentStore contract over database/sql.
// The sqlite and postgres packages wrap it with driver-specific setup; the
// SQL itself is shared and built with squirrel.
package sqlcommon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/kunthar/zops-audience/pkg/logger"
	"github.com/kunthar/zops-audience/pkg/storage"
	"github.com/kunthar/zops-audience/pkg/types"
)

// Datastore is a DocumentStore over a SQL database with a documents table
// and a document_index posting table.
type Datastore struct {
	db     *sql.DB
	stbl   sq.StatementBuilderType
	logger logger.Logger
}

var _ storage.DocumentStore = (*Datastore)(nil)

// New wraps an open database handle. placeholder selects the dialect's
// parameter style (sq.Question for sqlite, sq.Dollar for postgres).
func New(db *sql.DB, placeholder sq.PlaceholderFormat, log logger.Logger) *Datastore {
	return &Datastore{
		db:     db,
		stbl:   sq.StatementBuilder.PlaceholderFormat(placeholder).RunWith(db),
		logger: log,
	}
}

func (d *Datastore) Get(ctx context.Context, project, bucket, key string) ([]byte, error) {
	row := d.stbl.
		Select("data").
		From("documents").
		Where(sq.Eq{"project": project, "bucket": bucket, "doc_key": key}).
		QueryRowContext(ctx)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (d *Datastore) Put(ctx context.Context, project, bucket, key string, data []byte, index []storage.IndexEntry) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stbl := d.stbl.RunWith(tx)

	_, err = stbl.
		Insert("documents").
		Columns("project", "bucket", "doc_key", "data").
		Values(project, bucket, key, data).
		Suffix("ON CONFLICT (project, bucket, doc_key) DO UPDATE SET data = excluded.data").
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("write document: %w", err)
	}

	_, err = stbl.
		Delete("document_index").
		Where(sq.Eq{"project": project, "bucket": bucket, "doc_key": key}).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("retract postings: %w", err)
	}

	for _, entry := range index {
		var valueNum sql.NullInt64
		if entry.Kind == types.IndexKindInt {
			if n, err := strconv.ParseInt(entry.Value, 10, 64); err == nil {
				valueNum = sql.NullInt64{Int64: n, Valid: true}
			}
		}
		_, err = stbl.
			Insert("document_index").
			Columns("project", "bucket", "index_name", "value_text", "value_num", "doc_key").
			Values(project, bucket, entry.Name, entry.Value, valueNum, key).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("write posting %q: %w", entry.Name, err)
		}
	}

	return tx.Commit()
}

func (d *Datastore) Delete(ctx context.Context, project, bucket, key string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stbl := d.stbl.RunWith(tx)

	if _, err := stbl.Delete("documents").
		Where(sq.Eq{"project": project, "bucket": bucket, "doc_key": key}).
		ExecContext(ctx); err != nil {
		return err
	}
	if _, err := stbl.Delete("document_index").
		Where(sq.Eq{"project": project, "bucket": bucket, "doc_key": key}).
		ExecContext(ctx); err != nil {
		return err
	}

	return tx.Commit()
}

func (d *Datastore) GetIndex(ctx context.Context, project, bucket, index string, kind types.IndexKind, start, end string, opts storage.IndexScanOptions) ([]string, string, error) {
	pageSize := opts.MaxResults
	if pageSize <= 0 {
		pageSize = storage.DefaultPageSize
	}

	valueColumn := "value_text"
	var startValue, endValue any = start, end
	if kind == types.IndexKindInt {
		valueColumn = "value_num"
		n, err := strconv.ParseInt(start, 10, 64)
		if err != nil {
			return nil, "", fmt.Errorf("numeric index scan with non-numeric bound %q", start)
		}
		startValue = n
		if end != "" {
			m, err := strconv.ParseInt(end, 10, 64)
			if err != nil {
				return nil, "", fmt.Errorf("numeric index scan with non-numeric bound %q", end)
			}
			endValue = m
		}
	}

	sb := d.stbl.
		Select(valueColumn, "doc_key").
		From("document_index").
		Where(sq.Eq{"project": project, "bucket": bucket, "index_name": index})

	if end == "" {
		sb = sb.Where(sq.Eq{valueColumn: startValue})
	} else {
		sb = sb.Where(sq.GtOrEq{valueColumn: startValue}).Where(sq.LtOrEq{valueColumn: endValue})
	}

	if opts.Continuation != "" {
		value, key, ok := strings.Cut(opts.Continuation, "\x00")
		if ok {
			var contValue any = value
			if kind == types.IndexKindInt {
				if n, err := strconv.ParseInt(value, 10, 64); err == nil {
					contValue = n
				}
			}
			sb = sb.Where(sq.Or{
				sq.Gt{valueColumn: contValue},
				sq.And{sq.Eq{valueColumn: contValue}, sq.Gt{"doc_key": key}},
			})
		}
	}

	rows, err := sb.
		OrderBy(valueColumn, "doc_key").
		Limit(uint64(pageSize) + 1).
		QueryContext(ctx)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	type scanned struct {
		value string
		key   string
	}
	var results []scanned
	for rows.Next() {
		var entry scanned
		if kind == types.IndexKindInt {
			var n int64
			if err := rows.Scan(&n, &entry.key); err != nil {
				return nil, "", err
			}
			entry.value = strconv.FormatInt(n, 10)
		} else {
			if err := rows.Scan(&entry.value, &entry.key); err != nil {
				return nil, "", err
			}
		}
		results = append(results, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	continuation := ""
	if len(results) > pageSize {
		results = results[:pageSize]
		last := results[len(results)-1]
		continuation = last.value + "\x00" + last.key
	}

	keys := make([]string, 0, len(results))
	for _, entry := range results {
		keys = append(keys, entry.key)
	}
	return keys, continuation, nil
}

func (d *Datastore) Ready(ctx context.Context) (bool, error) {
	if err := d.db.PingContext(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (d *Datastore) Close() {
	if err := d.db.Close(); err != nil && d.logger != nil {
		d.logger.Error("closing document store: " + err.Error())
	}
}
