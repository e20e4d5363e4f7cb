package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/edukit/commerce/internal/domain/product"
)

const (
	getProductByIDSQL = `SELECT p.id, p.kind,
			COALESCE(p.course_id::text, ''), COALESCE(p.ebook_id::text, ''),
			COALESCE(c.teacher_id::text, e.teacher_id::text, ''),
			COALESCE(c.category_id::text, e.category_id::text, '')
		FROM products p
		LEFT JOIN courses c ON c.id = p.course_id
		LEFT JOIN ebooks e ON e.id = p.ebook_id
		WHERE p.id = $1`

	productExistsSQL = `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`

	insertSnapshotSQL = `INSERT INTO product_snapshots (id, product_id, title, description, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	insertSnapshotPricingSQL = `INSERT INTO snapshot_pricings (snapshot_id, amount)
		VALUES ($1, $2)`

	insertSnapshotDiscountSQL = `INSERT INTO snapshot_discounts (snapshot_id, discount_type, value, enabled, valid_from, valid_to)
		VALUES ($1, $2, $3, $4, $5, $6)`

	insertSnapshotContentSQL = `INSERT INTO snapshot_contents (id, snapshot_id, position, body)
		VALUES ($1, $2, $3, $4)`

	currentSnapshotSQL = `SELECT s.id, s.product_id, s.title, s.description, s.created_at,
			pr.amount,
			d.discount_type, d.value, d.enabled, d.valid_from, d.valid_to
		FROM product_snapshots s
		JOIN snapshot_pricings pr ON pr.snapshot_id = s.id
		LEFT JOIN snapshot_discounts d ON d.snapshot_id = s.id
		WHERE s.product_id = $1 AND s.deleted_at IS NULL
		ORDER BY s.created_at DESC, s.id DESC
		LIMIT 1`

	snapshotContentsSQL = `SELECT id, position, body
		FROM snapshot_contents WHERE snapshot_id = $1 ORDER BY position`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID returns a product with the teacher and category of its linked
// course or ebook resolved.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// CreateSnapshot appends a new snapshot with its pricing, discount, and
// content rows in one transaction. Prior snapshots are never modified.
func (r *ProductRepository) CreateSnapshot(ctx context.Context, productID string, in product.SnapshotInput) (*product.Snapshot, error) {
	snap := &product.Snapshot{
		ID:          uuid.New().String(),
		ProductID:   productID,
		Title:       in.Title,
		Description: in.Description,
		Pricing:     in.Pricing,
		Discount:    in.Discount,
		CreatedAt:   time.Now(),
	}

	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, productExistsSQL, productID).Scan(&exists); err != nil {
			return fmt.Errorf("checking product %q: %w", productID, err)
		}
		if !exists {
			return product.ErrNotFound
		}

		_, err := tx.Exec(ctx, insertSnapshotSQL,
			snap.ID, productID, snap.Title, snap.Description, snap.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting snapshot: %w", err)
		}

		_, err = tx.Exec(ctx, insertSnapshotPricingSQL, snap.ID, in.Pricing.Amount)
		if err != nil {
			return fmt.Errorf("inserting snapshot pricing: %w", err)
		}

		if d := in.Discount; d != nil {
			_, err = tx.Exec(ctx, insertSnapshotDiscountSQL,
				snap.ID, string(d.Type), d.Value, d.Enabled, d.ValidFrom, d.ValidTo,
			)
			if err != nil {
				return fmt.Errorf("inserting snapshot discount: %w", err)
			}
		}

		for _, c := range in.Contents {
			content := product.Content{
				ID:       uuid.New().String(),
				Position: c.Position,
				Body:     c.Body,
			}
			_, err = tx.Exec(ctx, insertSnapshotContentSQL,
				content.ID, snap.ID, content.Position, content.Body,
			)
			if err != nil {
				return fmt.Errorf("inserting snapshot content: %w", err)
			}
			snap.Contents = append(snap.Contents, content)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// CurrentSnapshot returns the non-deleted snapshot with the greatest
// (created_at, id) tuple, or product.ErrSnapshotNotFound.
func (r *ProductRepository) CurrentSnapshot(ctx context.Context, productID string) (*product.Snapshot, error) {
	rows, err := r.pool.Query(ctx, currentSnapshotSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("getting current snapshot of %q: %w", productID, err)
	}

	snap, err := pgx.CollectExactlyOneRow(rows, scanSnapshot)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("getting current snapshot of %q: %w", productID, err)
	}

	contentRows, err := r.pool.Query(ctx, snapshotContentsSQL, snap.ID)
	if err != nil {
		return nil, fmt.Errorf("getting snapshot contents: %w", err)
	}
	snap.Contents, err = pgx.CollectRows(contentRows, scanContent)
	if err != nil {
		return nil, fmt.Errorf("getting snapshot contents: %w", err)
	}
	return &snap, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p    product.Product
		kind string
	)
	err := row.Scan(&p.ID, &kind, &p.CourseID, &p.EbookID, &p.TeacherID, &p.CategoryID)
	p.Kind = product.Kind(kind)
	return p, err
}

func scanSnapshot(row pgx.CollectableRow) (product.Snapshot, error) {
	var (
		s            product.Snapshot
		amount       decimal.Decimal
		discountType *string
		value        decimal.NullDecimal
		enabled      *bool
		validFrom    *time.Time
		validTo      *time.Time
	)
	err := row.Scan(
		&s.ID, &s.ProductID, &s.Title, &s.Description, &s.CreatedAt,
		&amount,
		&discountType, &value, &enabled, &validFrom, &validTo,
	)
	s.Pricing = product.Pricing{Amount: amount}
	if discountType != nil {
		s.Discount = &product.Discount{
			Type:      product.DiscountType(*discountType),
			Value:     value.Decimal,
			Enabled:   enabled != nil && *enabled,
			ValidFrom: validFrom,
			ValidTo:   validTo,
		}
	}
	return s, err
}

func scanContent(row pgx.CollectableRow) (product.Content, error) {
	var c product.Content
	var position int32
	err := row.Scan(&c.ID, &position, &c.Body)
	c.Position = int(position)
	return c, err
}
