package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrSnapshotNotFound is returned when a product has no current snapshot.
	ErrSnapshotNotFound = errors.New("product snapshot not found")
)

// Kind discriminates what a product sells.
type Kind string

const (
	KindCourse Kind = "course"
	KindEbook  Kind = "ebook"
)

// Product links a sellable identity to a course or ebook. Immutable once
// created; all mutable sales data lives in snapshots.
type Product struct {
	ID       string
	Kind     Kind
	CourseID string
	EbookID  string

	// TeacherID and CategoryID come from the linked course/ebook and feed
	// coupon eligibility checks.
	TeacherID  string
	CategoryID string
}

// Snapshot is an immutable, timestamped version of a product's sellable
// content and pricing. A product "edit" creates a new snapshot row; prior
// snapshots are never updated in place.
type Snapshot struct {
	ID          string
	ProductID   string
	Title       string
	Description string
	Pricing     Pricing
	Discount    *Discount
	Contents    []Content
	CreatedAt   time.Time
	DeletedAt   *time.Time
}

// Pricing is the base price of a snapshot before any discount.
type Pricing struct {
	Amount decimal.Decimal
}

// DiscountType enumerates the supported snapshot discount strategies.
type DiscountType string

const (
	DiscountFixedAmount DiscountType = "fixed_amount"
	DiscountPercent     DiscountType = "percent"
)

// Discount is an optional time-bounded price reduction attached to a
// snapshot. Both validity bounds are inclusive.
type Discount struct {
	Type      DiscountType
	Value     decimal.Decimal
	Enabled   bool
	ValidFrom *time.Time
	ValidTo   *time.Time
}

// Content is one block of a snapshot's descriptive content.
type Content struct {
	ID       string
	Position int
	Body     string
}

// SnapshotInput carries the data for a new snapshot version.
type SnapshotInput struct {
	Title       string
	Description string
	Pricing     Pricing
	Discount    *Discount
	Contents    []Content
}

// Repository defines persistence operations for products and their snapshots.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)

	// CreateSnapshot inserts a new snapshot with its pricing, discount, and
	// content rows in one transaction. Prior snapshots are not touched.
	CreateSnapshot(ctx context.Context, productID string, in SnapshotInput) (*Snapshot, error)

	// CurrentSnapshot returns the non-deleted snapshot with the greatest
	// (createdAt, id) tuple, or ErrSnapshotNotFound.
	CurrentSnapshot(ctx context.Context, productID string) (*Snapshot, error)
}
