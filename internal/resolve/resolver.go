// Package resolve maps raw partner identifiers to canonical identifiers
// through the active mapping table, with a batch-scoped cache.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/common"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
)

// MappingLookup is the read-only mapping store.
type MappingLookup interface {
	ActiveMappings(ctx context.Context, source constants.Source, keyTypes []constants.KeyType) ([]entity.MappingEntry, error)
}

// Result of one resolution. Unresolved results carry the sentinel as Value.
type Result struct {
	Value         string
	Raw           string
	KeyType       constants.KeyType
	EntryID       int64
	Unresolved    bool
	Normalization Normalization
}

// Resolver resolves identifiers against a MappingLookup using a Cache owned by the current batch.
type Resolver struct {
	lookup MappingLookup
	cache  *Cache
	logger *slog.Logger
}

func New(lookup MappingLookup, cache *Cache, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		cache = NewCache()
	}
	return &Resolver{lookup: lookup, cache: cache, logger: logger}
}

// Cache returns the batch cache in use.
func (r *Resolver) Cache() *Cache { return r.cache }

func unresolved(raw string, primary constants.KeyType) Result {
	return Result{Value: constants.Unresolved, Raw: raw, KeyType: primary, Unresolved: true}
}

// Resolve tries each candidate key type in order and returns the first match.
// A value found nowhere yields an Unresolved result, not an error; errors only
// come from the backing lookup.
func (r *Resolver) Resolve(ctx context.Context, source constants.Source, candidates []constants.KeyType, raw string) (Result, error) {
	res, err := r.chain(ctx, source, candidates, strings.TrimSpace(raw))
	if err != nil {
		return Result{}, err
	}
	r.record(source, candidates, res)
	return res, nil
}

func (r *Resolver) chain(ctx context.Context, source constants.Source, candidates []constants.KeyType, raw string) (Result, error) {
	var primary constants.KeyType
	if len(candidates) > 0 {
		primary = candidates[0]
	}
	if raw == "" {
		return unresolved(raw, primary), nil
	}
	for _, kt := range candidates {
		res, err := r.resolveOne(ctx, source, kt, raw)
		if err != nil {
			return Result{}, err
		}
		if !res.Unresolved {
			return res, nil
		}
	}
	return unresolved(raw, primary), nil
}

func (r *Resolver) record(source constants.Source, candidates []constants.KeyType, res Result) {
	r.cache.outcome(res, res.KeyType)
	if res.Unresolved {
		r.logger.Debug("resolve.unresolved", "source", source, "raw", res.Raw, "candidates", candidates)
	}
}

func (r *Resolver) resolveOne(ctx context.Context, source constants.Source, kt constants.KeyType, raw string) (Result, error) {
	rk := resultKey{source: source, keyType: kt, raw: raw}
	if res, ok := r.cache.result(rk); ok {
		r.cache.count(true)
		return res, nil
	}
	r.cache.count(false)

	tk := tableKey{source: source, keyType: kt}
	t, ok := r.cache.table(tk)
	if !ok {
		entries, err := r.lookup.ActiveMappings(ctx, source, []constants.KeyType{kt})
		if err != nil {
			r.logger.Error("resolve.lookup.failed", "source", source, "key_type", kt, "error", err)
			return Result{}, &common.Failure{
				Kind:   common.ErrDatabase,
				Stage:  constants.StageResolve,
				Detail: fmt.Sprintf("mapping lookup %s/%s", source, kt),
				Cause:  err,
			}
		}
		t = newTable(entries)
		r.cache.storeTable(tk, t)
		r.logger.Debug("resolve.cache.load", "source", source, "key_type", kt, "entries", len(entries))
	}

	res := unresolved(raw, kt)
	if e, norm, ok := t.match(raw); ok {
		res = Result{Value: e.CanonicalValue, Raw: raw, KeyType: kt, EntryID: e.ID, Normalization: norm}
	}
	r.cache.storeResult(rk, res)
	return res, nil
}

// ResolveItem resolves a line item, trying its primary code and then any alternate
// identifiers it carries under their own key types.
func (r *Resolver) ResolveItem(ctx context.Context, source constants.Source, candidates []constants.KeyType, li entity.RawLineItem) (Result, error) {
	res, err := r.chain(ctx, source, candidates, strings.TrimSpace(li.RawItemID))
	if err != nil {
		return Result{}, err
	}
	if res.Unresolved {
		for _, kt := range candidates {
			alt := strings.TrimSpace(li.AltIDs[kt])
			if alt == "" || alt == res.Raw {
				continue
			}
			altRes, err := r.chain(ctx, source, []constants.KeyType{kt}, alt)
			if err != nil {
				return Result{}, err
			}
			if !altRes.Unresolved {
				res = altRes
				break
			}
		}
	}
	r.record(source, candidates, res)
	return res, nil
}
