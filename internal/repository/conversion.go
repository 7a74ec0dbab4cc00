package repository

import (
	"context"
	stdsql "database/sql"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
)

var conversionColumns = []string{
	"id", "batch_id", "document_id", "filename", "source", "order_number", "status", "stage",
	"orders_count", "line_items_count", "unresolved_count", "error_message", "created_at",
}

// ConversionFilter narrows ListConversions. Zero values match everything.
type ConversionFilter struct {
	BatchID uuid.UUID
	Source  constants.Source
	Status  constants.ConversionStatus
	Limit   int
}

type ConversionRepository interface {
	Record(ctx context.Context, recs []entity.ConversionRecord) error
	List(ctx context.Context, f ConversionFilter) ([]entity.ConversionRecord, error)
}

type conversionRepo struct {
	db  *DB
	log *slog.Logger
}

func NewConversionRepository(db *DB, log *slog.Logger) ConversionRepository {
	if log == nil {
		log = slog.Default()
	}
	return &conversionRepo{db: db, log: log}
}

func (r *conversionRepo) Record(ctx context.Context, recs []entity.ConversionRecord) error {
	if len(recs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	ins := entsql.Dialect(r.db.Dialect()).
		Insert(conversionTable).
		Columns(conversionColumns[1:]...)
	for _, c := range recs {
		created := c.CreatedAt
		if created.IsZero() {
			created = now
		}
		ins.Values(c.BatchID.String(), c.DocumentID.String(), c.Filename, string(c.Source), nullString(c.OrderNumber),
			string(c.Status), nullString(string(c.Stage)), c.OrdersCount, c.LineItemsCount, c.Unresolved,
			nullString(c.ErrorMessage), created)
	}
	query, args := ins.Query()
	var res stdsql.Result
	if err := r.db.drv.Exec(ctx, query, args, &res); err != nil {
		r.log.Error("conversion history insert failed", "rows", len(recs), "error", err)
		return err
	}
	r.log.Debug("conversion history recorded", "rows", len(recs))
	return nil
}

func (r *conversionRepo) List(ctx context.Context, f ConversionFilter) ([]entity.ConversionRecord, error) {
	var preds []*entsql.Predicate
	if f.BatchID != uuid.Nil {
		preds = append(preds, entsql.EQ("batch_id", f.BatchID.String()))
	}
	if f.Source != "" {
		preds = append(preds, entsql.EQ("source", string(f.Source)))
	}
	if f.Status != "" {
		preds = append(preds, entsql.EQ("status", string(f.Status)))
	}
	sel := entsql.Dialect(r.db.Dialect()).
		Select(conversionColumns...).
		From(entsql.Table(conversionTable)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id"))
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	if f.Limit > 0 {
		sel.Limit(f.Limit)
	}
	query, args := sel.Query()

	var rows entsql.Rows
	if err := r.db.drv.Query(ctx, query, args, &rows); err != nil {
		r.log.Error("conversion history query failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []entity.ConversionRecord
	for rows.Next() {
		var (
			c                          entity.ConversionRecord
			batchID, docID, src, st    string
			orderNumber, stage, errMsg stdsql.NullString
		)
		if err := rows.Scan(&c.ID, &batchID, &docID, &c.Filename, &src, &orderNumber, &st, &stage,
			&c.OrdersCount, &c.LineItemsCount, &c.Unresolved, &errMsg, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.BatchID, _ = uuid.Parse(batchID)
		c.DocumentID, _ = uuid.Parse(docID)
		c.Source = constants.Source(src)
		c.Status = constants.ConversionStatus(st)
		c.OrderNumber = orderNumber.String
		c.Stage = constants.Stage(stage.String)
		c.ErrorMessage = errMsg.String
		out = append(out, c)
	}
	return out, rows.Err()
}
