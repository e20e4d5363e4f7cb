// seed-db loads a development dataset: users, courses, ebooks, products with
// their first snapshot, and a sample coupon with criteria.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/edukit/commerce/internal/domain/product"
	"github.com/edukit/commerce/internal/repository"
)

type seedFile struct {
	Users    []userJSON    `json:"users"`
	Courses  []catalogJSON `json:"courses"`
	Ebooks   []catalogJSON `json:"ebooks"`
	Products []productJSON `json:"products"`
	Coupons  []couponJSON  `json:"coupons"`
}

type userJSON struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type catalogJSON struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	TeacherID  string `json:"teacherId"`
	CategoryID string `json:"categoryId"`
}

type productJSON struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	CourseID    string          `json:"courseId"`
	EbookID     string          `json:"ebookId"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

type couponJSON struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	DiscountType string           `json:"discountType"`
	Value        decimal.Decimal  `json:"value"`
	Volume       int              `json:"volume"`
	PerCitizen   int              `json:"volumePerCitizen"`
	Criteria     []criterionJSON  `json:"criteria"`
	Disposables  []disposableJSON `json:"disposables"`
}

type criterionJSON struct {
	Kind      string `json:"kind"`
	Direction string `json:"direction"`
	TargetID  string `json:"targetId"`
}

type disposableJSON struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

func main() {
	var (
		databaseURL string
		seedPath    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/seed.json", "path to seed JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath string) error {
	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed JSON")
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, pool, seed); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	if err := seedProducts(ctx, pool, seed.Products); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCoupons(ctx, pool, seed.Coupons); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	return nil
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool, seed seedFile) error {
	for _, u := range seed.Users {
		_, err := pool.Exec(ctx,
			`INSERT INTO users (id, name, email) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET name = $2, email = $3`,
			u.ID, u.Name, u.Email,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert user %s", u.ID)
		}
	}
	slog.Info("upserted users", slog.Int("count", len(seed.Users)))

	for _, c := range seed.Courses {
		_, err := pool.Exec(ctx,
			`INSERT INTO courses (id, title, teacher_id, category_id)
			 VALUES ($1, $2, NULLIF($3, '')::uuid, NULLIF($4, '')::uuid)
			 ON CONFLICT (id) DO UPDATE SET title = $2`,
			c.ID, c.Title, c.TeacherID, c.CategoryID,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert course %s", c.ID)
		}
	}
	for _, e := range seed.Ebooks {
		_, err := pool.Exec(ctx,
			`INSERT INTO ebooks (id, title, teacher_id, category_id)
			 VALUES ($1, $2, NULLIF($3, '')::uuid, NULLIF($4, '')::uuid)
			 ON CONFLICT (id) DO UPDATE SET title = $2`,
			e.ID, e.Title, e.TeacherID, e.CategoryID,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert ebook %s", e.ID)
		}
	}
	slog.Info("upserted catalog",
		slog.Int("courses", len(seed.Courses)),
		slog.Int("ebooks", len(seed.Ebooks)),
	)
	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, products []productJSON) error {
	repo := repository.NewProductRepository(pool)

	for _, p := range products {
		_, err := pool.Exec(ctx,
			`INSERT INTO products (id, kind, course_id, ebook_id)
			 VALUES ($1, $2, NULLIF($3, '')::uuid, NULLIF($4, '')::uuid)
			 ON CONFLICT (id) DO NOTHING`,
			p.ID, p.Kind, p.CourseID, p.EbookID,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		// Give every fresh product an initial snapshot so it is purchasable.
		if _, err := repo.CurrentSnapshot(ctx, p.ID); err == nil {
			continue
		}
		_, err = repo.CreateSnapshot(ctx, p.ID, product.SnapshotInput{
			Title:       p.Title,
			Description: p.Description,
			Pricing:     product.Pricing{Amount: p.Amount},
		})
		if err != nil {
			return errors.Wrapf(err, "create snapshot for product %s", p.ID)
		}

		slog.Info("seeded product", slog.String("id", p.ID), slog.String("title", p.Title))
	}
	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool, coupons []couponJSON) error {
	for _, c := range coupons {
		_, err := pool.Exec(ctx,
			`INSERT INTO coupons (id, name, discount_type, value, volume, volume_per_citizen)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO UPDATE SET name = $2, discount_type = $3, value = $4`,
			c.ID, c.Name, c.DiscountType, c.Value, c.Volume, c.PerCitizen,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.ID)
		}

		// Criteria rows have no natural key, so replace them wholesale to
		// keep re-seeding idempotent.
		if _, err := pool.Exec(ctx,
			`DELETE FROM coupon_criteria WHERE coupon_id = $1`, c.ID,
		); err != nil {
			return errors.Wrapf(err, "clear criteria of coupon %s", c.ID)
		}
		for _, cr := range c.Criteria {
			_, err := pool.Exec(ctx,
				`INSERT INTO coupon_criteria (id, coupon_id, kind, direction, target_id)
				 VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid)`,
				uuid.New().String(), c.ID, cr.Kind, cr.Direction, cr.TargetID,
			)
			if err != nil {
				return errors.Wrapf(err, "insert criterion for coupon %s", c.ID)
			}
		}

		for _, d := range c.Disposables {
			_, err := pool.Exec(ctx,
				`INSERT INTO coupon_disposables (id, coupon_id, code)
				 VALUES ($1, $2, $3)
				 ON CONFLICT (id) DO NOTHING`,
				d.ID, c.ID, d.Code,
			)
			if err != nil {
				return errors.Wrapf(err, "insert disposable for coupon %s", c.ID)
			}
		}

		slog.Info("seeded coupon", slog.String("id", c.ID), slog.String("name", c.Name))
	}
	return nil
}
