package repository

import (
	"context"
	stdsql "database/sql"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
)

var mappingColumns = []string{
	"id", "source", "key_type", "raw_value", "canonical_value", "priority", "active",
	"vendor", "description", "notes", "created_at", "updated_at",
}

const insertChunk = 400

// MappingRepository reads and seeds the identifier mapping table.
type MappingRepository interface {
	ActiveMappings(ctx context.Context, source constants.Source, keyTypes []constants.KeyType) ([]entity.MappingEntry, error)
	Insert(ctx context.Context, entries []entity.MappingEntry) (int, error)
	DeactivateSource(ctx context.Context, source constants.Source) (int64, error)
	ActiveCounts(ctx context.Context) ([]MappingCount, error)
}

// MappingCount is the number of active entries for one source and key type.
type MappingCount struct {
	Source  constants.Source
	KeyType constants.KeyType
	Count   int
}

type mappingRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewMappingRepository(db *DB, logger *slog.Logger) MappingRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &mappingRepo{db: db, logger: logger}
}

// ActiveMappings returns the active entries of source for keyTypes, best first within each key.
func (r *mappingRepo) ActiveMappings(ctx context.Context, source constants.Source, keyTypes []constants.KeyType) ([]entity.MappingEntry, error) {
	preds := []*entsql.Predicate{
		entsql.EQ("source", string(source)),
		entsql.EQ("active", true),
	}
	if len(keyTypes) > 0 {
		kts := make([]any, len(keyTypes))
		for i, k := range keyTypes {
			kts[i] = string(k)
		}
		preds = append(preds, entsql.In("key_type", kts...))
	}
	query, args := entsql.Dialect(r.db.Dialect()).
		Select(mappingColumns...).
		From(entsql.Table(mappingTable)).
		Where(entsql.And(preds...)).
		OrderBy("key_type", "raw_value", "priority", entsql.Desc("updated_at"), entsql.Desc("id")).
		Query()

	var rows entsql.Rows
	if err := r.db.drv.Query(ctx, query, args, &rows); err != nil {
		r.logger.Error("mapping query failed", "source", source, "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []entity.MappingEntry
	for rows.Next() {
		var (
			e                          entity.MappingEntry
			src, kt                    string
			vendor, description, notes stdsql.NullString
		)
		if err := rows.Scan(&e.ID, &src, &kt, &e.RawValue, &e.CanonicalValue, &e.Priority, &e.Active,
			&vendor, &description, &notes, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Source = constants.Source(src)
		e.KeyType = constants.KeyType(kt)
		e.Vendor, e.Description, e.Notes = vendor.String, description.String, notes.String
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	r.logger.Debug("mapping query", "source", source, "key_types", keyTypes, "rows", len(out))
	return out, nil
}

// Insert stores entries and returns how many were written.
func (r *mappingRepo) Insert(ctx context.Context, entries []entity.MappingEntry) (int, error) {
	now := time.Now().UTC()
	written := 0
	for start := 0; start < len(entries); start += insertChunk {
		end := min(start+insertChunk, len(entries))
		ins := entsql.Dialect(r.db.Dialect()).
			Insert(mappingTable).
			Columns(mappingColumns[1:]...)
		for _, e := range entries[start:end] {
			created, updated := e.CreatedAt, e.UpdatedAt
			if created.IsZero() {
				created = now
			}
			if updated.IsZero() {
				updated = created
			}
			ins.Values(string(e.Source), string(e.KeyType), e.RawValue, e.CanonicalValue, e.Priority, e.Active,
				nullString(e.Vendor), nullString(e.Description), nullString(e.Notes), created, updated)
		}
		query, args := ins.Query()
		var res stdsql.Result
		if err := r.db.drv.Exec(ctx, query, args, &res); err != nil {
			r.logger.Error("mapping insert failed", "rows", end-start, "error", err)
			return written, err
		}
		written += end - start
	}
	r.logger.Info("mappings inserted", "rows", written)
	return written, nil
}

// DeactivateSource marks every active entry of source inactive.
func (r *mappingRepo) DeactivateSource(ctx context.Context, source constants.Source) (int64, error) {
	query, args := entsql.Dialect(r.db.Dialect()).
		Update(mappingTable).
		Set("active", false).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.And(entsql.EQ("source", string(source)), entsql.EQ("active", true))).
		Query()
	var res stdsql.Result
	if err := r.db.drv.Exec(ctx, query, args, &res); err != nil {
		r.logger.Error("mapping deactivate failed", "source", source, "error", err)
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	r.logger.Info("mappings deactivated", "source", source, "rows", n)
	return n, nil
}

// ActiveCounts groups active entries by source and key type.
func (r *mappingRepo) ActiveCounts(ctx context.Context) ([]MappingCount, error) {
	query, args := entsql.Dialect(r.db.Dialect()).
		Select("source", "key_type", entsql.Count("*")).
		From(entsql.Table(mappingTable)).
		Where(entsql.EQ("active", true)).
		GroupBy("source", "key_type").
		OrderBy("source", "key_type").
		Query()

	var rows entsql.Rows
	if err := r.db.drv.Query(ctx, query, args, &rows); err != nil {
		r.logger.Error("mapping count failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []MappingCount
	for rows.Next() {
		var src, kt string
		var n int
		if err := rows.Scan(&src, &kt, &n); err != nil {
			return nil, err
		}
		out = append(out, MappingCount{Source: constants.Source(src), KeyType: constants.KeyType(kt), Count: n})
	}
	return out, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
