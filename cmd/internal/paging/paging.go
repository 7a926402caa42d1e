// Package paging parses list query parameters and shapes paged responses.
package paging

import (
	"cmp"
	"context"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultPageNumber = 1
	DefaultPageSize   = 10
	MaxPageSize       = 100
	DefaultSortBy     = "createdAt"

	// MaxPageNumber keeps Skip inside int64 for page sizes up to MaxPageSize.
	MaxPageNumber = math.MaxInt32
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

type Query struct {
	PageNumber    int
	PageSize      int
	SortBy        string
	SortDirection Direction
}

// Default returns the first page sorted by newest first.
func Default() Query {
	return Query{
		PageNumber:    DefaultPageNumber,
		PageSize:      DefaultPageSize,
		SortBy:        DefaultSortBy,
		SortDirection: Desc,
	}
}

// ParseQuery reads pageNumber, pageSize, sortBy and sortDirection from v.
// Malformed values fall back to defaults and pageNumber is capped at
// MaxPageNumber. sortBy must be one of sortable, otherwise createdAt is used.
func ParseQuery(v url.Values, sortable ...string) Query {
	q := Default()

	if n, err := strconv.Atoi(strings.TrimSpace(v.Get("pageNumber"))); err == nil && n > 0 {
		q.PageNumber = min(n, MaxPageNumber)
	}
	if n, err := strconv.Atoi(strings.TrimSpace(v.Get("pageSize"))); err == nil && n > 0 {
		q.PageSize = min(n, MaxPageSize)
	}
	if s := strings.TrimSpace(v.Get("sortBy")); s != "" && slices.Contains(sortable, s) {
		q.SortBy = s
	}
	if strings.EqualFold(strings.TrimSpace(v.Get("sortDirection")), string(Asc)) {
		q.SortDirection = Asc
	}
	return q
}

func (q Query) Skip() int64 {
	page := min(max(q.PageNumber, 1), MaxPageNumber)
	return int64(page-1) * int64(max(q.PageSize, 0))
}

func (q Query) Limit() int64 { return int64(q.PageSize) }

// SortSign is 1 for ascending and -1 for descending, the form Mongo sort documents use.
func (q Query) SortSign() int {
	if q.SortDirection == Asc {
		return 1
	}
	return -1
}

// Page is the envelope every list endpoint returns.
type Page[T any] struct {
	PagesCount int   `json:"pagesCount"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalCount int64 `json:"totalCount"`
	Items      []T   `json:"items"`
}

func NewPage[T any](q Query, total int64, items []T) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if q.PageSize > 0 {
		pages = int((total + int64(q.PageSize) - 1) / int64(q.PageSize))
	}
	return Page[T]{
		PagesCount: pages,
		Page:       q.PageNumber,
		PageSize:   q.PageSize,
		TotalCount: total,
		Items:      items,
	}
}

// Map converts the items of p with f, keeping the envelope.
func Map[T, U any](p Page[T], f func(T) U) Page[U] {
	out := make([]U, 0, len(p.Items))
	for _, it := range p.Items {
		out = append(out, f(it))
	}
	return Page[U]{
		PagesCount: p.PagesCount,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalCount: p.TotalCount,
		Items:      out,
	}
}

// Fetch runs the item and count queries concurrently.
func Fetch[T any](
	ctx context.Context,
	find func(context.Context) ([]T, error),
	count func(context.Context) (int64, error),
) ([]T, int64, error) {
	var (
		items []T
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = find(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = count(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Comparators maps a sortBy field to an ascending comparison.
type Comparators[T any] map[string]func(a, b T) int

// Slice sorts and windows items in memory. It returns the page items and the total.
func Slice[T any](items []T, q Query, by Comparators[T]) ([]T, int64) {
	sorted := slices.Clone(items)
	cmpFn, ok := by[q.SortBy]
	if !ok {
		cmpFn = by[DefaultSortBy]
	}
	if cmpFn != nil {
		slices.SortStableFunc(sorted, func(a, b T) int {
			if q.SortDirection == Asc {
				return cmpFn(a, b)
			}
			return cmpFn(b, a)
		})
	}

	total := int64(len(sorted))
	start := min(q.Skip(), total)
	end := min(start+max(q.Limit(), 0), total)
	return sorted[start:end], total
}

// Compare is cmp.Compare over a projected key.
func Compare[T any, K cmp.Ordered](key func(T) K) func(a, b T) int {
	return func(a, b T) int { return cmp.Compare(key(a), key(b)) }
}
