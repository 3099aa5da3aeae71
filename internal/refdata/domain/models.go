package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Kind is a reference-data namespace.
type Kind string

const (
	KindFacility   Kind = "facility"
	KindPayer      Kind = "payer"
	KindClinician  Kind = "clinician"
	KindDenialCode Kind = "denial_code"
)

// Item is one reference entry. UnknownItem is returned for codes the
// tables do not know; lookups never fail into the aggregation path.
type Item struct {
	Kind Kind   `json:"kind"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Unknown returns the placeholder item for a missing code.
func Unknown(kind Kind, code string) Item {
	return Item{Kind: kind, Code: code, Name: "Unknown"}
}

// ReferenceItem is the backing lookup row.
type ReferenceItem struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Kind      Kind         `gorm:"size:32;uniqueIndex:ux_ref_items_kind_code;not null"`
	Code      string       `gorm:"size:64;uniqueIndex:ux_ref_items_kind_code;not null"`
	Name      string       `gorm:"size:255;not null"`
	UpdatedAt time.Time
}

func (ReferenceItem) TableName() string { return "reference_items" }

// Service resolves reference codes to display names.
type Service interface {
	// Resolve returns the item for (kind, code), or the Unknown
	// placeholder when the code is absent. It never returns an error
	// for a missing code; only infrastructure failures surface.
	Resolve(ctx context.Context, kind Kind, code string) (Item, error)

	// Upsert creates or updates a reference entry and drops any cached
	// copy.
	Upsert(ctx context.Context, item Item) error

	// Invalidate drops every cached entry so the next lookups re-read
	// the tables.
	Invalidate(ctx context.Context) error
}
