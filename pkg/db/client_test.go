package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sudhir1041/nursery-orders/pkg/config"
	"github.com/sudhir1041/nursery-orders/pkg/logger"
)

type txRow struct {
	ID    int
	Email string
}

func (txRow) TableName() string { return "tx_rows" }

func newTestDB(t *testing.T, cfg *gorm.Config) *gorm.DB {
	t.Helper()
	if cfg == nil {
		cfg = &gorm.Config{SkipDefaultTransaction: true}
	}
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), cfg)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&txRow{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func countRows(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&txRow{}).Count(&n).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return n
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	db := newTestDB(t, nil)
	client := Wrap(db)
	ctx := context.Background()

	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&txRow{Email: "asha@example.in"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}
	if n := countRows(t, db); n != 1 {
		t.Fatalf("expected 1 record, got %d", n)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&txRow{Email: "ravi@example.in"}).Error; err != nil {
			return err
		}
		return errors.New("invoice number taken")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if n := countRows(t, db); n != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", n)
	}
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	db := newTestDB(t, nil)
	client := Wrap(db)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			tx.Create(&txRow{Email: "lost@example.in"})
			panic("mapper bug")
		})
	}()
	if n := countRows(t, db); n != 0 {
		t.Fatalf("expected panic to roll back, got %d rows", n)
	}
}

func TestPing(t *testing.T) {
	client := Wrap(newTestDB(t, nil))
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestNewRequiresDSN(t *testing.T) {
	if _, err := New(context.Background(), config.DBConfig{}, nil); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestGormLoggerReportsFailuresWithoutParams(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: &buf})
	db := newTestDB(t, &gorm.Config{Logger: newGormLogger(logg, time.Hour)})

	err := db.Exec("INSERT INTO missing_table (email) VALUES (?)", "secret@example.in").Error
	if err == nil {
		t.Fatal("expected insert into a missing table to fail")
	}
	out := buf.String()
	if !strings.Contains(out, "sql statement failed") {
		t.Fatalf("expected failure entry, got %s", out)
	}
	if strings.Contains(out, "secret@example.in") {
		t.Fatalf("bound parameters leaked into log: %s", out)
	}
}

func TestGormLoggerQuietOnNotFoundAndFastQueries(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: &buf})
	db := newTestDB(t, &gorm.Config{Logger: newGormLogger(logg, time.Hour)})

	var row txRow
	if err := db.First(&row).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no log output, got %s", buf.String())
	}
}

func TestGormLoggerFlagsSlowStatements(t *testing.T) {
	var buf bytes.Buffer
	l := newGormLogger(logger.New(logger.Options{ServiceName: "db-test", Output: &buf}), time.Millisecond)
	l.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
		return "SELECT * FROM shopify_orders", 3
	}, nil)
	if !strings.Contains(buf.String(), "slow sql statement") {
		t.Fatalf("expected slow entry, got %s", buf.String())
	}

	buf.Reset()
	l.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
		return "SELECT 1", 1
	}, nil)
	if buf.Len() != 0 {
		t.Fatalf("silent mode should log nothing, got %s", buf.String())
	}
}
