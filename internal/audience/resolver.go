// Package audience resolves a segment residency definition into the concrete
// client identifiers a push message should reach.
package audience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Yiling-J/theine-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	interrors "github.com/kunthar/zops-audience/internal/errors"
	"github.com/kunthar/zops-audience/internal/expression"
	"github.com/kunthar/zops-audience/internal/keys"
	"github.com/kunthar/zops-audience/pkg/logger"
	"github.com/kunthar/zops-audience/pkg/setstore"
	"github.com/kunthar/zops-audience/pkg/storage"
	"github.com/kunthar/zops-audience/pkg/types"
)

var (
	// ErrInvalidResidency is returned when a residency definition parses but
	// fails structural validation. No evaluation is attempted.
	ErrInvalidResidency = errors.New("invalid residency definition")

	// ErrMissingTagMetadata is returned when an open-ended relation has no
	// prior tag record to derive its scan bound from.
	ErrMissingTagMetadata = errors.New("no tag metadata to derive scan bounds from")
)

const (
	// DefaultCacheTTL bounds the staleness of a cached per-filter member
	// set.
	DefaultCacheTTL = 3 * time.Hour

	tagMetaCacheSize = 4096
	tagMetaCacheTTL  = time.Minute
)

type mode int

const (
	modeSingleTarget mode = iota
	modeSingleClient
	modeMix
)

// Resolver turns residency definitions into client identifier lists. It is
// safe for concurrent use.
type Resolver struct {
	sets     setstore.SetStore
	docs     storage.DocumentStore
	logger   logger.Logger
	cacheTTL time.Duration
	tagMeta  *theine.Cache[string, *types.TagMetadata]

	// scanPage is overridable in tests to exercise continuation handling.
	scanPage int
}

type ResolverOpt func(*Resolver)

// WithCacheTTL overrides the per-filter cache entry lifetime.
func WithCacheTTL(ttl time.Duration) ResolverOpt {
	return func(r *Resolver) {
		r.cacheTTL = ttl
	}
}

func WithScanPageSize(size int) ResolverOpt {
	return func(r *Resolver) {
		r.scanPage = size
	}
}

func NewResolver(sets setstore.SetStore, docs storage.DocumentStore, log logger.Logger, opts ...ResolverOpt) *Resolver {
	r := &Resolver{
		sets:     sets,
		docs:     docs,
		logger:   log,
		cacheTTL: DefaultCacheTTL,
		scanPage: storage.DefaultPageSize,
	}
	for _, opt := range opts {
		opt(r)
	}

	// The builder only fails on a non-positive size.
	cache, err := theine.NewBuilder[string, *types.TagMetadata](tagMetaCacheSize).Build()
	if err != nil {
		panic(err)
	}
	r.tagMeta = cache

	return r
}

// Close releases the resolver's in-process caches.
func (r *Resolver) Close() {
	r.tagMeta.Close()
}

// Resolve maps a residency definition to the client ids it currently
// matches.
func (r *Resolver) Resolve(ctx context.Context, project string, residency *types.Residency) ([]string, error) {
	if len(residency.Sets) == 0 {
		return nil, interrors.With(fmt.Errorf("no sets declared"), ErrInvalidResidency)
	}

	names := make([]string, 0, len(residency.Sets))
	for name, filter := range residency.Sets {
		if err := filter.Validate(); err != nil {
			return nil, interrors.With(fmt.Errorf("set %q: %w", name, err), ErrInvalidResidency)
		}
		names = append(names, name)
	}

	parsed, err := expression.Parse(residency.Expression)
	if err != nil {
		return nil, err
	}
	if !expression.Validate(names, parsed) {
		return nil, interrors.With(fmt.Errorf("expression %q does not fit its declared sets", residency.Expression), ErrInvalidResidency)
	}

	m := classify(residency.Sets)

	// Leaf sets resolve independently; the only shared state is the
	// content-addressed cache, where concurrent writes of equal values are
	// idempotent.
	keyMap := make(map[string]string, len(residency.Sets))
	var keyMapMu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	for name, filter := range residency.Sets {
		group.Go(func() error {
			key, err := r.resolveSet(groupCtx, project, filter, m == modeMix)
			if err != nil {
				return fmt.Errorf("set %q: %w", name, err)
			}
			keyMapMu.Lock()
			keyMap[name] = key
			keyMapMu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	finalKey, err := expression.Evaluate(ctx, r.sets, parsed.Postfix, keyMap)
	if err != nil {
		return nil, err
	}

	members, err := r.sets.Members(ctx, finalKey)
	if err != nil {
		return nil, err
	}

	// In single-target mode the leaves hold target ids, so translation
	// happens once over the combined result instead of once per leaf.
	if m == modeSingleTarget {
		return r.Translate(ctx, project, members), nil
	}
	return members, nil
}

func classify(sets map[string]types.SetFilter) mode {
	var first types.Intention
	for _, filter := range sets {
		if first == "" {
			first = filter.Intention
			continue
		}
		if filter.Intention != first {
			return modeMix
		}
	}
	if first == types.IntentionTarget {
		return modeSingleTarget
	}
	return modeSingleClient
}

// resolveSet returns the set-store key holding the members matching one
// filter, reusing a live cache entry when one exists.
func (r *Resolver) resolveSet(ctx context.Context, project string, filter types.SetFilter, translateTargets bool) (string, error) {
	translate := translateTargets && filter.Intention == types.IntentionTarget
	cacheKey := keys.FilterCacheKey(project, filter, translate)

	exists, err := r.sets.Exists(ctx, cacheKey)
	if err != nil {
		return "", err
	}
	if exists {
		return cacheKey, nil
	}

	matches, err := r.scan(ctx, project, filter)
	if err != nil {
		return "", err
	}

	if translate {
		matches = r.Translate(ctx, project, matches)
	}

	if len(matches) > 0 {
		if _, err := r.sets.Add(ctx, cacheKey, matches...); err != nil {
			return "", err
		}
		if _, err := r.sets.Expire(ctx, cacheKey, r.cacheTTL); err != nil {
			return "", err
		}
	}

	return cacheKey, nil
}

// scan runs the filter's secondary-index range scan to completion.
func (r *Resolver) scan(ctx context.Context, project string, filter types.SetFilter) ([]string, error) {
	meta, err := r.tagMetadata(ctx, project, filter.Intention, filter.Key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	kind := types.IndexKindBin
	if meta != nil {
		kind = meta.Kind
	}

	var start, end string
	switch filter.Relation {
	case types.RelationEqual:
		start = filter.Values[0]
	case types.RelationLessThan:
		if meta == nil {
			return nil, interrors.With(fmt.Errorf("tag %q", filter.Key), ErrMissingTagMetadata)
		}
		start, end = meta.Min, filter.Values[0]
	case types.RelationGreaterThan:
		if meta == nil {
			return nil, interrors.With(fmt.Errorf("tag %q", filter.Key), ErrMissingTagMetadata)
		}
		start, end = filter.Values[0], meta.Max
	case types.RelationRange:
		start, end = filter.Values[0], filter.Values[1]
	}

	bucket := storage.BucketClients
	if filter.Intention == types.IntentionTarget {
		bucket = storage.BucketTargets
	}
	index := storage.TagIndexName(filter.Key, kind)

	var matches []string
	continuation := ""
	for {
		page, next, err := r.docs.GetIndex(ctx, project, bucket, index, kind, start, end, storage.IndexScanOptions{
			MaxResults:   r.scanPage,
			Continuation: continuation,
		})
		if err != nil {
			return nil, err
		}
		matches = append(matches, page...)
		if next == "" {
			return matches, nil
		}
		continuation = next
	}
}

func (r *Resolver) tagMetadata(ctx context.Context, project string, intention types.Intention, key string) (*types.TagMetadata, error) {
	cacheKey := project + "/" + storage.TagMetadataKey(intention, key)
	if meta, ok := r.tagMeta.Get(cacheKey); ok {
		return meta, nil
	}

	meta, err := storage.GetTagMetadata(ctx, r.docs, project, intention, key)
	if err != nil {
		return nil, err
	}
	r.tagMeta.SetWithTTL(cacheKey, meta, 1, tagMetaCacheTTL)
	return meta, nil
}

// Translate flattens target ids into the client ids they own. A target that
// cannot be fetched is logged and skipped; a best-effort audience beats an
// all-or-nothing failure for a broadcast.
func (r *Resolver) Translate(ctx context.Context, project string, targetIDs []string) []string {
	var clientIDs []string
	for _, id := range targetIDs {
		target, err := storage.GetTarget(ctx, r.docs, project, id)
		if err != nil {
			r.logger.Warn("skipping unresolvable target",
				zap.String("project", project),
				zap.String("target_id", id),
				zap.Error(err))
			continue
		}
		clientIDs = append(clientIDs, target.ClientIDs...)
	}
	return clientIDs
}

// GroupByDevice buckets each client's delivery token under its device type.
// A missing client record fails the whole call.
func (r *Resolver) GroupByDevice(ctx context.Context, project string, clientIDs []string) (map[string][]string, error) {
	groups := make(map[string][]string)
	for _, id := range clientIDs {
		client, err := storage.GetClient(ctx, r.docs, project, id)
		if err != nil {
			return nil, fmt.Errorf("client %q: %w", id, err)
		}
		groups[client.DeviceType] = append(groups[client.DeviceType], client.Token)
	}
	return groups, nil
}
