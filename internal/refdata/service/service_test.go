package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/acmehealth/claimsight/internal/refdata/domain"
	"github.com/acmehealth/claimsight/pkg/db"
)

func setupRefdata(t *testing.T) domain.Service {
	t.Helper()
	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := dbConn.AutoMigrate(&domain.ReferenceItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return NewService(Params{DB: dbConn, Log: zap.NewNop(), GenID: node})
}

func TestResolveUnknownCodeFallsBack(t *testing.T) {
	svc := setupRefdata(t)
	item, err := svc.Resolve(context.Background(), domain.KindFacility, "FAC-MISSING")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if item.Name != "Unknown" || item.Code != "FAC-MISSING" {
		t.Fatalf("expected Unknown placeholder, got %+v", item)
	}
}

func TestResolveKnownCode(t *testing.T) {
	svc := setupRefdata(t)
	ctx := context.Background()

	err := svc.Upsert(ctx, domain.Item{Kind: domain.KindPayer, Code: "PAYER-A", Name: "Acme Insurance"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	item, err := svc.Resolve(ctx, domain.KindPayer, "PAYER-A")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if item.Name != "Acme Insurance" {
		t.Fatalf("expected Acme Insurance, got %+v", item)
	}

	// Second resolve is served from the cache.
	again, err := svc.Resolve(ctx, domain.KindPayer, "PAYER-A")
	if err != nil {
		t.Fatalf("cached resolve: %v", err)
	}
	if again != item {
		t.Fatalf("cache returned a different item: %+v vs %+v", again, item)
	}
}

func TestUpsertInvalidatesCachedEntry(t *testing.T) {
	svc := setupRefdata(t)
	ctx := context.Background()

	if err := svc.Upsert(ctx, domain.Item{Kind: domain.KindClinician, Code: "DOC-1", Name: "Dr. One"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := svc.Resolve(ctx, domain.KindClinician, "DOC-1"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	if err := svc.Upsert(ctx, domain.Item{Kind: domain.KindClinician, Code: "DOC-1", Name: "Dr. Renamed"}); err != nil {
		t.Fatalf("rename: %v", err)
	}
	item, err := svc.Resolve(ctx, domain.KindClinician, "DOC-1")
	if err != nil {
		t.Fatalf("resolve after rename: %v", err)
	}
	if item.Name != "Dr. Renamed" {
		t.Fatalf("expected renamed entry, got %+v", item)
	}
}

func TestInvalidateClearsMemory(t *testing.T) {
	svc := setupRefdata(t)
	ctx := context.Background()

	if _, err := svc.Resolve(ctx, domain.KindDenialCode, "CO-97"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := svc.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	// The placeholder was cached; after invalidation a real row wins.
	if err := svc.Upsert(ctx, domain.Item{Kind: domain.KindDenialCode, Code: "CO-97", Name: "Payment adjusted"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	item, err := svc.Resolve(ctx, domain.KindDenialCode, "CO-97")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if item.Name != "Payment adjusted" {
		t.Fatalf("expected real entry after invalidate, got %+v", item)
	}
}
