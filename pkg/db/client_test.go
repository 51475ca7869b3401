package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/horologe/storefront-backend/pkg/config"
	"github.com/horologe/storefront-backend/pkg/logger"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}
	ctx := context.Background()

	var before int64
	db.Model(&testModel{}).Count(&before)

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = client.WithTx(ctx, func(tx *gorm.DB) error {
			tx.Create(&testModel{Name: "panicky"})
			panic("boom")
		})
	}()

	var after int64
	db.Model(&testModel{}).Count(&after)
	if after != before {
		t.Fatalf("expected rollback after panic, before=%d after=%d", before, after)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "coupons_code_key"}
	if !IsUniqueViolation(fmt.Errorf("insert: %w", pgErr), "") {
		t.Fatal("expected pg unique violation")
	}
	if !IsUniqueViolation(pgErr, "coupons_code_key") {
		t.Fatal("expected constraint match")
	}
	if IsUniqueViolation(pgErr, "orders_pkey") {
		t.Fatal("unexpected constraint match")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Fatal("foreign key violation is not unique violation")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: coupons.code"), "") {
		t.Fatal("expected sqlite unique violation")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil is not a violation")
	}
	if !IsUniqueViolation(&pq.Error{Code: "23505", Constraint: "ux_outbox_events_type_aggregate"}, "ux_outbox_events_type_aggregate") {
		t.Fatal("expected lib/pq unique violation")
	}
	if IsUniqueViolation(errors.New("coupons_code_key is broken"), "coupons_code_key") {
		t.Fatal("a bare mention of the constraint is not a violation")
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{DSN: "x", Driver: "mysql"}, nil)
	if err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestQueryLoggerReportsFailuresAndSlowQueries(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	ql := newQueryLogger(logg, 100*time.Millisecond)
	stmt := func() (string, int64) { return "SELECT * FROM orders", 0 }

	ql.Trace(context.Background(), time.Now(), stmt, gorm.ErrRecordNotFound)
	ql.Trace(context.Background(), time.Now(), stmt, nil)
	if buf.Len() != 0 {
		t.Fatalf("expected fast and not-found queries to stay quiet, got %s", buf.String())
	}

	ql.Trace(context.Background(), time.Now().Add(-time.Second), stmt, nil)
	if !strings.Contains(buf.String(), "slow query") || !strings.Contains(buf.String(), "SELECT * FROM orders") {
		t.Fatalf("expected slow query entry, got %s", buf.String())
	}

	buf.Reset()
	ql.Trace(context.Background(), time.Now(), stmt, errors.New("connection reset"))
	if !strings.Contains(buf.String(), "query failed") {
		t.Fatalf("expected failure entry, got %s", buf.String())
	}
}

func TestNewOpensSQLite(t *testing.T) {
	client, err := New(context.Background(), config.DBConfig{DSN: "file::memory:", Driver: DriverSQLite}, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer client.Close()
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestRegisterMetricsExportsPoolStats(t *testing.T) {
	client, err := New(context.Background(), config.DBConfig{DSN: "file::memory:", Driver: DriverSQLite, MaxOpenConns: 4}, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer client.Close()

	reg := prometheus.NewRegistry()
	if err := client.RegisterMetrics(reg, "storefront"); err != nil {
		t.Fatalf("register: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "go_sql_max_open_connections" {
			continue
		}
		if got := mf.GetMetric()[0].GetGauge().GetValue(); got != 4 {
			t.Fatalf("expected max open connections 4, got %v", got)
		}
		return
	}
	t.Fatal("go_sql_max_open_connections not exported")
}
