package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/common"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
)

// OrderExtractor turns a RawDocument into the orders it contains.
type OrderExtractor interface {
	Extract(ctx context.Context, doc *entity.RawDocument) ([]entity.RawOrder, error)
}

// Strategy is one way of finding a value. Fn returns an error describing why it declined.
type Strategy[T any] struct {
	Name       string
	Confidence constants.Confidence
	Fn         func(doc *entity.RawDocument) (T, error)
}

// Outcome is the result of running a chain.
type Outcome[T any] struct {
	Value      T
	Found      bool
	Strategy   string
	Confidence constants.Confidence
	Attempts   []common.StrategyAttempt
}

var errEmpty = errors.New("empty result")

func declined(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// RunChain invokes strategies in order and accepts the first non-empty value.
// Every strategy that declined is recorded with its reason.
func RunChain[T any](field string, doc *entity.RawDocument, strategies []Strategy[T]) Outcome[T] {
	var out Outcome[T]
	for _, s := range strategies {
		v, err := s.Fn(doc)
		if err == nil && isEmpty(v) {
			err = errEmpty
		}
		if err != nil {
			out.Attempts = append(out.Attempts, common.StrategyAttempt{Field: field, Strategy: s.Name, Reason: err.Error()})
			continue
		}
		out.Value = v
		out.Found = true
		out.Strategy = s.Name
		out.Confidence = s.Confidence
		return out
	}
	return out
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) == ""
	case time.Time:
		return t.IsZero()
	case []entity.RawLineItem:
		return len(t) == 0
	}
	return v == nil
}

// mapStrategies converts string strategies into strategies producing T through parse.
func mapStrategies[T any](in []Strategy[string], parse func(string) (T, error)) []Strategy[T] {
	out := make([]Strategy[T], 0, len(in))
	for _, s := range in {
		s := s
		out = append(out, Strategy[T]{
			Name:       s.Name,
			Confidence: s.Confidence,
			Fn: func(doc *entity.RawDocument) (T, error) {
				var zero T
				raw, err := s.Fn(doc)
				if err != nil {
					return zero, err
				}
				v, err := parse(raw)
				if err != nil {
					return zero, declined("%q: %v", raw, err)
				}
				return v, nil
			},
		})
	}
	return out
}
