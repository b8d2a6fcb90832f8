// Package keys computes the stable content hash a resolved set filter is
// cached under. Identical filters hash to the same set-store key, making
// concurrent cache writes idempotent.
package keys

import (
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/kunthar/zops-audience/pkg/types"
)

const filterKeyPrefix = "zops:audience:filter:"

// FilterCacheKey returns the set-store key that caches the members matching
// the given filter within a project. The key is derived from every field
// that affects the cached members, so two filters share a key only when
// their results are guaranteed equal. translated marks entries whose target
// matches were already flattened to client ids (mix-mode leaves), which hold
// different members than the raw scan for the same filter.
func FilterCacheKey(project string, filter types.SetFilter, translated bool) string {
	digest := xxhash.New()

	// WriteString on xxhash never returns an error.
	_, _ = digest.WriteString(project)
	_, _ = digest.WriteString("/")
	_, _ = digest.WriteString(filter.Key)
	_, _ = digest.WriteString("/")
	_, _ = digest.WriteString(string(filter.Relation))
	_, _ = digest.WriteString("/")
	_, _ = digest.WriteString(string(filter.Intention))
	for _, value := range filter.Values {
		_, _ = digest.WriteString("/")
		_, _ = digest.WriteString(value)
	}
	if translated {
		_, _ = digest.WriteString("/translated")
	}

	return filterKeyPrefix + strconv.FormatUint(digest.Sum64(), 16)
}
