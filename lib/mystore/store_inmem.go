package mystore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// inMemoryStore serializes transactions with a single lock. Coarser than
// the datastore implementation but preserves its atomicity guarantees,
// which the basket invariants rely on.
type inMemoryStore[T any] struct {
	sync.Mutex
	items map[string]T
}

func NewInMemoryStore[T any](c context.Context) (Store[T], func(), error) {
	return newInMemoryStore[T](c)
}

func newInMemoryStore[T any](_ context.Context) (*inMemoryStore[T], func(), error) {
	return &inMemoryStore[T]{
		items: make(map[string]T),
	}, func() {}, nil
}

func (s *inMemoryStore[T]) RunInTransaction(c context.Context, f func(c context.Context) error) error {
	// Start transaction
	s.Lock()
	defer s.Unlock()

	ctx := context.WithValue(c, ctxTransactionKey{}, true)

	// Within this block everything is transactional
	return f(ctx)
}

func (s *inMemoryStore[T]) Put(c context.Context, uid string, value T) error {
	nonTransactional := c.Value(ctxTransactionKey{}) == nil

	if nonTransactional {
		s.Lock()
		defer s.Unlock()
	}

	s.items[uid] = value

	return nil
}

func (s *inMemoryStore[T]) Get(c context.Context, uid string) (T, bool, error) {
	nonTransactional := c.Value(ctxTransactionKey{}) == nil

	if nonTransactional {
		s.Lock()
		defer s.Unlock()
	}

	result, exists := s.items[uid]

	return result, exists, nil
}

func (s *inMemoryStore[T]) List(c context.Context) ([]T, error) {
	nonTransactional := c.Value(ctxTransactionKey{}) == nil

	if nonTransactional {
		s.Lock()
		defer s.Unlock()
	}

	result := make([]T, 0, len(s.items))
	for _, v := range s.items {
		result = append(result, v)
	}

	return result, nil
}

func (s *inMemoryStore[T]) Query(c context.Context, filters []Filter, orderByField string) ([]T, error) {
	all, err := s.List(c)
	if err != nil {
		return nil, err
	}

	result := make([]T, 0, len(all))
	for _, item := range all {
		if matchesAll(item, filters) {
			result = append(result, item)
		}
	}

	if orderByField != "" {
		sort.SliceStable(result, func(i, j int) bool {
			return fmt.Sprintf("%v", fieldValue(result[i], orderByField)) <
				fmt.Sprintf("%v", fieldValue(result[j], orderByField))
		})
	}

	return result, nil
}

func matchesAll[T any](item T, filters []Filter) bool {
	for _, f := range filters {
		got := fieldValue(item, f.Field)
		switch f.Compare {
		case "=", "==":
			if !reflect.DeepEqual(got, f.Value) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func fieldValue[T any](item T, fieldName string) any {
	v := reflect.ValueOf(item)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	fv := v.FieldByName(fieldName)
	if !fv.IsValid() {
		return nil
	}
	return fv.Interface()
}
