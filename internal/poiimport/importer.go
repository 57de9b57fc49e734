package poiimport

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// TxBeginner starts a transaction; satisfied by pgxpool.Pool and pgx.Conn
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Summary reports the outcome of an import run
type Summary struct {
	Total    int
	Imported int
	Failed   int
}

const upsertPOI = `
	INSERT INTO pois (
		id, name, category, subcategory, casino_property,
		address, city, state, zip, level, area,
		location,
		phone, website, reservations_url,
		description, cuisine, features, tags, is_closed
	) VALUES (
		$1, $2, $3, NULLIF($4, ''), NULLIF($5, ''),
		NULLIF($6, ''), $7, $8, NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''),
		ST_SetSRID(ST_MakePoint($12, $13), 4326)::geography,
		NULLIF($14, ''), NULLIF($15, ''), NULLIF($16, ''),
		NULLIF($17, ''), $18, $19, $20, $21
	)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		category = EXCLUDED.category,
		subcategory = EXCLUDED.subcategory,
		casino_property = EXCLUDED.casino_property,
		address = EXCLUDED.address,
		level = EXCLUDED.level,
		area = EXCLUDED.area,
		location = EXCLUDED.location,
		phone = EXCLUDED.phone,
		website = EXCLUDED.website,
		description = EXCLUDED.description,
		tags = EXCLUDED.tags,
		is_closed = EXCLUDED.is_closed
`

// Importer upserts validated POI records into the pois table
type Importer struct {
	db  TxBeginner
	log *zap.Logger
}

// NewImporter creates an importer
func NewImporter(db TxBeginner, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{db: db, log: logger}
}

// Import writes records in a single transaction. Each record runs under its
// own savepoint so one rejected row does not abort the rest.
func (im *Importer) Import(ctx context.Context, records []Record) (Summary, error) {
	summary := Summary{Total: len(records)}

	tx, err := im.db.Begin(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, rec := range records {
		if err := im.importOne(ctx, tx, rec); err != nil {
			summary.Failed++
			im.log.Warn("failed to import POI",
				zap.String("id", rec.ID),
				zap.String("source", rec.Source),
				zap.Error(err),
			)
			continue
		}
		summary.Imported++
	}

	if err := tx.Commit(ctx); err != nil {
		return summary, fmt.Errorf("failed to commit transaction: %w", err)
	}

	im.log.Info("POI import finished",
		zap.Int("total", summary.Total),
		zap.Int("imported", summary.Imported),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

func (im *Importer) importOne(ctx context.Context, tx pgx.Tx, rec Record) error {
	lat, lng := rec.Location.Coordinates.Lat, rec.Location.Coordinates.Lng
	if lat == nil || lng == nil {
		return fmt.Errorf("missing coordinates")
	}

	// Begin on a pgx.Tx creates a savepoint
	sp, err := tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}
	defer sp.Rollback(ctx)

	_, err = sp.Exec(ctx, upsertPOI,
		rec.ID,
		rec.Name,
		rec.Category,
		rec.Subcategory,
		rec.CasinoProperty,
		rec.Location.Address,
		rec.Location.City,
		rec.Location.State,
		string(rec.Location.Zip),
		string(rec.Location.Level),
		rec.Location.Area,
		*lng, // PostGIS takes lng, lat
		*lat,
		rec.Contact.Phone,
		rec.Contact.Website,
		rec.Contact.Reservations,
		rec.Description,
		nonNil(rec.Cuisine),
		nonNil(rec.Features),
		nonNil(rec.Tags),
		rec.IsClosed,
	)
	if err != nil {
		return err
	}

	return sp.Commit(ctx)
}

// CategoryCount is one row of the post-import verification
type CategoryCount struct {
	Category string
	Count    int64
}

// Querier runs read queries
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// CountByCategory returns POI counts per category, largest first
func CountByCategory(ctx context.Context, db Querier) ([]CategoryCount, error) {
	rows, err := db.Query(ctx, `
		SELECT COALESCE(category::text, ''), COUNT(*)
		FROM pois
		GROUP BY category
		ORDER BY COUNT(*) DESC, category
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count POIs: %w", err)
	}
	defer rows.Close()

	var counts []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
