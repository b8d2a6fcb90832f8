package keys

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kunthar/zops-audience/pkg/types"
)

func TestFilterCacheKeyIsStable(t *testing.T) {
	filter := types.SetFilter{
		Key:       "city",
		Relation:  types.RelationEqual,
		Values:    []string{"istanbul"},
		Intention: types.IntentionClient,
	}

	require.Equal(t, FilterCacheKey("p1", filter, false), FilterCacheKey("p1", filter, false))
}

func TestFilterCacheKeyDistinguishesEveryField(t *testing.T) {
	base := types.SetFilter{
		Key:       "city",
		Relation:  types.RelationEqual,
		Values:    []string{"istanbul"},
		Intention: types.IntentionClient,
	}
	baseKey := FilterCacheKey("p1", base, false)

	otherProject := FilterCacheKey("p2", base, false)
	require.NotEqual(t, baseKey, otherProject)

	changed := base
	changed.Key = "country"
	require.NotEqual(t, baseKey, FilterCacheKey("p1", changed, false))

	changed = base
	changed.Relation = types.RelationGreaterThan
	require.NotEqual(t, baseKey, FilterCacheKey("p1", changed, false))

	changed = base
	changed.Values = []string{"ankara"}
	require.NotEqual(t, baseKey, FilterCacheKey("p1", changed, false))

	changed = base
	changed.Intention = types.IntentionTarget
	require.NotEqual(t, baseKey, FilterCacheKey("p1", changed, false))
}

func TestFilterCacheKeySeparatesTranslatedEntries(t *testing.T) {
	filter := types.SetFilter{
		Key:       "city",
		Relation:  types.RelationEqual,
		Values:    []string{"istanbul"},
		Intention: types.IntentionTarget,
	}

	require.NotEqual(t, FilterCacheKey("p1", filter, false), FilterCacheKey("p1", filter, true))
}
