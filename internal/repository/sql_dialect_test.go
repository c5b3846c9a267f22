package repository

import (
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"
)

func TestDBDialectNameDefaultsToSQLite(t *testing.T) {
	if got := dbDialectName(nil); got != "sqlite" {
		t.Fatalf("nil db should default to sqlite, got %s", got)
	}
	db := setupRepositoryTestDB(t)
	if got := dbDialectName(db); got != "sqlite" {
		t.Fatalf("expected sqlite dialect, got %s", got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "translated", err: fmt.Errorf("create: %w", gorm.ErrDuplicatedKey), want: true},
		{name: "sqlite message", err: errors.New("UNIQUE constraint failed: sub_orders.order_number, sub_orders.vendor_id"), want: true},
		{name: "postgres message", err: errors.New(`ERROR: duplicate key value violates unique constraint "idx_sub_orders_order_vendor" (SQLSTATE 23505)`), want: true},
		{name: "sqlite extended code", err: errors.New("constraint failed (2067)"), want: true},
		{name: "other", err: errors.New("database is locked"), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsUniqueViolation(tc.err); got != tc.want {
				t.Fatalf("IsUniqueViolation(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
