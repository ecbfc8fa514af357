package wal

import (
	"context"
	"time"

	"github.com/data-tracks/DataTracks/pkg/log"
)

// queryHooks satisfies sqlhooks.Hooks, logging every offsets.db query and
// its elapsed time at debug level, the way the teacher's
// internal/repository.Hooks times every query against the primary job
// database.
type queryHooks struct{}

type queryStartKey struct{}

func (h *queryHooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	log.Debugf("offsets: query %s %q", query, args)
	return context.WithValue(ctx, queryStartKey{}, time.Now()), nil
}

func (h *queryHooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	if begin, ok := ctx.Value(queryStartKey{}).(time.Time); ok {
		log.Debugf("offsets: query took %s", time.Since(begin))
	}
	return ctx, nil
}
