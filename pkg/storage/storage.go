// Package storage contains the document store interface the audience
// resolver scans against, and the typed record helpers shared by the
// backends.
package storage

import (
	"context"
	"errors"

	"github.com/kunthar/zops-audience/pkg/types"
)

var (
	// ErrNotFound is returned when a bucket/key pair holds no record.
	ErrNotFound = errors.New("record not found")

	// ErrCollision is returned when a Put would overwrite a record and the
	// caller asked for create-only semantics.
	ErrCollision = errors.New("record already exists")
)

// Buckets owned by the audience engine.
const (
	BucketTargets = "targets"
	BucketClients = "clients"
	BucketTags    = "tags"
)

const DefaultPageSize = 1000

// IndexEntry is one secondary-index posting attached to a record: the
// record becomes reachable through a range scan over (Name, Value).
type IndexEntry struct {
	Name  string
	Kind  types.IndexKind
	Value string
}

// IndexScanOptions bounds one GetIndex call. A zero MaxResults means the
// default page size; Continuation resumes a prior scan.
type IndexScanOptions struct {
	MaxResults   int
	Continuation string
}

// DocumentStore is a key/value document store with secondary-index range
// scans, scoped by project. Records are opaque JSON payloads; the typed
// helpers in this package decode them.
type DocumentStore interface {
	// Get returns the record at (project, bucket, key) or ErrNotFound.
	Get(ctx context.Context, project, bucket, key string) ([]byte, error)

	// Put writes the record and replaces its secondary-index postings.
	Put(ctx context.Context, project, bucket, key string, data []byte, index []IndexEntry) error

	// Delete removes the record and its index postings. Deleting a missing
	// record is not an error.
	Delete(ctx context.Context, project, bucket, key string) error

	// GetIndex scans the named secondary index. With end == "" it matches
	// start exactly; otherwise it returns keys whose indexed value lies in
	// the inclusive range [start, end]. Values compare numerically for
	// IndexKindInt indexes and lexicographically for IndexKindBin. It
	// returns the matching record keys, ordered by indexed value then key,
	// and a continuation token ("" when the scan is complete).
	GetIndex(ctx context.Context, project, bucket, index string, kind types.IndexKind, start, end string, opts IndexScanOptions) ([]string, string, error)

	// Ready reports whether the backing store is reachable.
	Ready(ctx context.Context) (bool, error)

	// Close releases the backing connections.
	Close()
}

// TagIndexName returns the secondary-index name a tag's values are posted
// under, riak-style: tag_<key>_bin or tag_<key>_int.
func TagIndexName(key string, kind types.IndexKind) string {
	return "tag_" + key + "_" + string(kind)
}

// TagMetadataKey is the bucket key a tag's metadata record lives under.
// Metadata is kept per intention because target and client tags index
// disjoint collections.
func TagMetadataKey(intention types.Intention, key string) string {
	return string(intention) + ":" + key
}
