// Package memory provides an in-process DocumentStore used by tests and the
// memory engine. Secondary indexes are kept in red-black trees so range
// scans run in sorted order, the same contract the SQL backends provide.
package memory

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"

	"github.com/kunthar/zops-audience/pkg/storage"
	"github.com/kunthar/zops-audience/pkg/types"
)

type indexKey struct {
	value  string
	docKey string
}

func compareValues(a, b string, kind types.IndexKind) int {
	if kind == types.IndexKindInt {
		ai, errA := strconv.ParseInt(a, 10, 64)
		bi, errB := strconv.ParseInt(b, 10, 64)
		if errA == nil && errB == nil {
			switch {
			case ai < bi:
				return -1
			case ai > bi:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(a, b)
}

func indexComparator(kind types.IndexKind) utils.Comparator {
	return func(a, b interface{}) int {
		ka := a.(indexKey)
		kb := b.(indexKey)
		if c := compareValues(ka.value, kb.value, kind); c != 0 {
			return c
		}
		return strings.Compare(ka.docKey, kb.docKey)
	}
}

type Datastore struct {
	mu sync.RWMutex

	// documents maps project/bucket to key to payload.
	documents map[string]map[string][]byte

	// indexes maps project/bucket/index-name to an ordered posting tree.
	indexes map[string]*redblacktree.Tree

	// postings remembers, per record, which index entries it produced so a
	// rewrite or delete can retract them.
	postings map[string]map[string][]storage.IndexEntry
}

var _ storage.DocumentStore = (*Datastore)(nil)

func New() *Datastore {
	return &Datastore{
		documents: make(map[string]map[string][]byte),
		indexes:   make(map[string]*redblacktree.Tree),
		postings:  make(map[string]map[string][]storage.IndexEntry),
	}
}

func scopeKey(project, bucket string) string {
	return project + "/" + bucket
}

func (d *Datastore) Get(_ context.Context, project, bucket, key string) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	bucketDocs, ok := d.documents[scopeKey(project, bucket)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	data, ok := bucketDocs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (d *Datastore) Put(_ context.Context, project, bucket, key string, data []byte, index []storage.IndexEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	scope := scopeKey(project, bucket)
	bucketDocs, ok := d.documents[scope]
	if !ok {
		bucketDocs = make(map[string][]byte)
		d.documents[scope] = bucketDocs
	}

	d.retract(scope, key)

	stored := make([]byte, len(data))
	copy(stored, data)
	bucketDocs[key] = stored

	for _, entry := range index {
		tree := d.tree(scope, entry)
		tree.Put(indexKey{value: entry.Value, docKey: key}, struct{}{})
	}
	if len(index) > 0 {
		if _, ok := d.postings[scope]; !ok {
			d.postings[scope] = make(map[string][]storage.IndexEntry)
		}
		d.postings[scope][key] = append([]storage.IndexEntry(nil), index...)
	}

	return nil
}

func (d *Datastore) Delete(_ context.Context, project, bucket, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	scope := scopeKey(project, bucket)
	d.retract(scope, key)
	if bucketDocs, ok := d.documents[scope]; ok {
		delete(bucketDocs, key)
	}
	return nil
}

// retract removes a record's index postings. Callers hold the write lock.
func (d *Datastore) retract(scope, key string) {
	entries, ok := d.postings[scope][key]
	if !ok {
		return
	}
	for _, entry := range entries {
		if tree, ok := d.indexes[scope+"/"+entry.Name]; ok {
			tree.Remove(indexKey{value: entry.Value, docKey: key})
		}
	}
	delete(d.postings[scope], key)
}

func (d *Datastore) tree(scope string, entry storage.IndexEntry) *redblacktree.Tree {
	name := scope + "/" + entry.Name
	tree, ok := d.indexes[name]
	if !ok {
		tree = redblacktree.NewWith(indexComparator(entry.Kind))
		d.indexes[name] = tree
	}
	return tree
}

func (d *Datastore) GetIndex(_ context.Context, project, bucket, index string, kind types.IndexKind, start, end string, opts storage.IndexScanOptions) ([]string, string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	pageSize := opts.MaxResults
	if pageSize <= 0 {
		pageSize = storage.DefaultPageSize
	}

	exact := end == ""
	var afterValue, afterKey string
	resuming := false
	if opts.Continuation != "" {
		if value, key, ok := strings.Cut(opts.Continuation, "\x00"); ok {
			afterValue, afterKey = value, key
			resuming = true
		}
	}

	tree, ok := d.indexes[scopeKey(project, bucket)+"/"+index]
	if !ok {
		return nil, "", nil
	}

	var keys []string
	var last indexKey
	it := tree.Iterator()
	for it.Next() {
		entry := it.Key().(indexKey)

		if exact {
			if compareValues(entry.value, start, kind) != 0 {
				continue
			}
		} else {
			if compareValues(entry.value, start, kind) < 0 {
				continue
			}
			if compareValues(entry.value, end, kind) > 0 {
				break
			}
		}

		if resuming {
			if c := compareValues(entry.value, afterValue, kind); c < 0 || (c == 0 && entry.docKey <= afterKey) {
				continue
			}
		}

		if len(keys) == pageSize {
			// Another entry exists past the page; hand back a resumable
			// token for the last returned one.
			return keys, last.value + "\x00" + last.docKey, nil
		}
		keys = append(keys, entry.docKey)
		last = entry
	}

	return keys, "", nil
}

func (d *Datastore) Ready(_ context.Context) (bool, error) {
	return true, nil
}

func (d *Datastore) Close() {}
