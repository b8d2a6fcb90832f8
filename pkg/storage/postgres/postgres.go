// Package postgres provides a Postgres based implementation of
// [storage.DocumentStore] over the pgx stdlib driver.
package postgres

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kunthar/zops-audience/pkg/logger"
	"github.com/kunthar/zops-audience/pkg/storage"
	"github.com/kunthar/zops-audience/pkg/storage/sqlcommon"
)

// Datastore is the postgres-backed document store.
type Datastore struct {
	*sqlcommon.Datastore
}

var _ storage.DocumentStore = (*Datastore)(nil)

// New opens a postgres document store at the given connection URI.
func New(uri string, log logger.Logger) (*Datastore, error) {
	db, err := sql.Open("pgx", uri)
	if err != nil {
		return nil, fmt.Errorf("initialize postgres connection: %w", err)
	}

	return &Datastore{sqlcommon.New(db, sq.Dollar, log)}, nil
}
