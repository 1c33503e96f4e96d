package postgres

import (
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"tokopos/internal/store"
)

func TestMapWriteError(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "products_barcode_key"}
	if err := mapWriteError(unique); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	check := &pgconn.PgError{Code: "23514", Message: "violates check constraint"}
	if err := mapWriteError(check); !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	other := errors.New("connection reset")
	if err := mapWriteError(other); err != other {
		t.Fatalf("expected unrelated error to pass through, got %v", err)
	}
}

func TestSchemaSplitsIntoStatements(t *testing.T) {
	count := 0
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stripComments(stmt)) == "" {
			continue
		}
		count++
	}
	// 7 tables and 4 indexes.
	if count != 11 {
		t.Fatalf("expected 11 schema statements, got %d", count)
	}
}

func TestSalesRangeQuery(t *testing.T) {
	query, args, err := psql.Select(saleColumns...).
		From("sales").
		Where("sale_date >= ?", 1).
		Where("sale_date < ?", 2).
		ToSql()
	if err != nil {
		t.Fatalf("build query: %v", err)
	}
	if !strings.Contains(query, "sale_date >= $1") || !strings.Contains(query, "sale_date < $2") {
		t.Fatalf("expected dollar placeholders, got %s", query)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
}
