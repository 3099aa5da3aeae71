package monitoring

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/acmehealth/claimsight/internal/config"
	"github.com/acmehealth/claimsight/pkg/db"
)

func TestProbeHealthyDatabase(t *testing.T) {
	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	m := New(Params{DB: dbConn, Log: zap.NewNop(), Config: config.Config{}})
	status := m.Probe(context.Background())

	if !status.Healthy {
		t.Fatalf("expected healthy probe, got %+v", status)
	}
	if status.ProbedAt.IsZero() {
		t.Fatal("expected probe timestamp")
	}
	if got := m.Status(); got != status {
		t.Fatalf("Status() should return last probe: %+v vs %+v", got, status)
	}
}

func TestProbeUnreachableDatabase(t *testing.T) {
	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := dbConn.DB()
	if err != nil {
		t.Fatalf("unwrap db: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}

	m := New(Params{DB: dbConn, Log: zap.NewNop(), Config: config.Config{}})
	status := m.Probe(context.Background())

	if status.Healthy {
		t.Fatal("expected unhealthy probe after closing the database")
	}
	if status.LastError == "" {
		t.Fatal("expected probe error to be recorded")
	}
}
