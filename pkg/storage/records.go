package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/kunthar/zops-audience/pkg/types"
)

// GetTarget decodes the target record with the given id.
func GetTarget(ctx context.Context, ds DocumentStore, project, id string) (*types.Target, error) {
	data, err := ds.Get(ctx, project, BucketTargets, id)
	if err != nil {
		return nil, err
	}
	var target types.Target
	if err := json.Unmarshal(data, &target); err != nil {
		return nil, fmt.Errorf("decode target %q: %w", id, err)
	}
	return &target, nil
}

// GetClient decodes the client record with the given id.
func GetClient(ctx context.Context, ds DocumentStore, project, id string) (*types.Client, error) {
	data, err := ds.Get(ctx, project, BucketClients, id)
	if err != nil {
		return nil, err
	}
	var client types.Client
	if err := json.Unmarshal(data, &client); err != nil {
		return nil, fmt.Errorf("decode client %q: %w", id, err)
	}
	return &client, nil
}

// GetTagMetadata decodes the metadata record for a tag, or ErrNotFound when
// the tag has never been written under that intention.
func GetTagMetadata(ctx context.Context, ds DocumentStore, project string, intention types.Intention, key string) (*types.TagMetadata, error) {
	data, err := ds.Get(ctx, project, BucketTags, TagMetadataKey(intention, key))
	if err != nil {
		return nil, err
	}
	var meta types.TagMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode tag metadata %q: %w", key, err)
	}
	return &meta, nil
}

// WriteTarget stores a target record, posts its tags to the secondary index
// and folds each tag value into the tag's running min/max metadata.
func WriteTarget(ctx context.Context, ds DocumentStore, project string, target *types.Target, tags map[string]string) error {
	data, err := json.Marshal(target)
	if err != nil {
		return err
	}
	index, err := updateTagMetadata(ctx, ds, project, types.IntentionTarget, tags)
	if err != nil {
		return err
	}
	return ds.Put(ctx, project, BucketTargets, target.ID, data, index)
}

// WriteClient stores a client record the same way WriteTarget stores a
// target.
func WriteClient(ctx context.Context, ds DocumentStore, project string, client *types.Client, tags map[string]string) error {
	data, err := json.Marshal(client)
	if err != nil {
		return err
	}
	index, err := updateTagMetadata(ctx, ds, project, types.IntentionClient, tags)
	if err != nil {
		return err
	}
	return ds.Put(ctx, project, BucketClients, client.ID, data, index)
}

// updateTagMetadata builds the index postings for a tag map and widens each
// tag's observed min/max. The bounds only ever widen; a later deletion may
// leave them stale, which widens a scan but never narrows one.
func updateTagMetadata(ctx context.Context, ds DocumentStore, project string, intention types.Intention, tags map[string]string) ([]IndexEntry, error) {
	index := make([]IndexEntry, 0, len(tags))

	for key, value := range tags {
		kind := types.IndexKindBin
		if _, err := strconv.ParseInt(value, 10, 64); err == nil {
			kind = types.IndexKindInt
		}

		meta, err := GetTagMetadata(ctx, ds, project, intention, key)
		switch {
		case errors.Is(err, ErrNotFound):
			meta = &types.TagMetadata{
				Key:       key,
				Intention: intention,
				Kind:      kind,
				Min:       value,
				Max:       value,
			}
		case err != nil:
			return nil, err
		default:
			// A single non-numeric value demotes the whole tag to a
			// lexicographic index.
			if kind == types.IndexKindBin {
				meta.Kind = types.IndexKindBin
			}
			if less(value, meta.Min, meta.Kind) {
				meta.Min = value
			}
			if less(meta.Max, value, meta.Kind) {
				meta.Max = value
			}
		}

		data, err := json.Marshal(meta)
		if err != nil {
			return nil, err
		}
		if err := ds.Put(ctx, project, BucketTags, TagMetadataKey(intention, key), data, nil); err != nil {
			return nil, err
		}

		index = append(index, IndexEntry{
			Name:  TagIndexName(key, meta.Kind),
			Kind:  meta.Kind,
			Value: value,
		})
	}

	return index, nil
}

func less(a, b string, kind types.IndexKind) bool {
	if kind == types.IndexKindInt {
		ai, errA := strconv.ParseInt(a, 10, 64)
		bi, errB := strconv.ParseInt(b, 10, 64)
		if errA == nil && errB == nil {
			return ai < bi
		}
	}
	return a < b
}
