// Package resolver computes which feed entries have not been relayed
// yet and commits them to the state store.
package resolver

import (
	"context"
	"log/slog"

	"github.com/scipunch/feedbot/fetcher"
	"github.com/scipunch/feedbot/store"
)

type Resolver struct {
	store   *store.Store
	fetcher *fetcher.Fetcher
}

func New(st *store.Store, f *fetcher.Fetcher) *Resolver {
	return &Resolver{store: st, fetcher: f}
}

// Resolve fetches the feed and returns the entries whose ids are not
// in the seen set, in fetch order. Returned ids are committed to the
// store before Resolve returns, so a crash between resolving and
// delivering loses those entries instead of duplicating them later.
//
// The store lock is never held across the network fetch; every store
// operation locks independently.
func (r *Resolver) Resolve(ctx context.Context, feedURL string) ([]fetcher.Entry, error) {
	if err := r.store.Init(); err != nil {
		return nil, err
	}

	etag, modified, err := r.store.FeedHeaders()
	if err != nil {
		return nil, err
	}

	entries, newEtag, newModified, err := r.fetcher.Fetch(ctx, feedURL, etag, modified)
	if err != nil {
		return nil, err
	}

	// Validators may change even when nothing new was published.
	if err := r.store.SaveFeedHeaders(newEtag, newModified); err != nil {
		return nil, err
	}

	seen, err := r.store.SeenIDs()
	if err != nil {
		return nil, err
	}

	var unseen []fetcher.Entry
	for _, entry := range entries {
		if _, ok := seen[entry.ID]; !ok {
			unseen = append(unseen, entry)
		}
	}
	if len(unseen) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(unseen))
	for _, entry := range unseen {
		ids = append(ids, entry.ID)
	}
	if err := r.store.AppendSeenIDs(ids); err != nil {
		return nil, err
	}

	slog.Info("resolved unseen entries", "url", feedURL, "fetched", len(entries), "unseen", len(unseen))
	return unseen, nil
}
