package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// NatsStore keeps assets in a NATS JetStream object store bucket. JetStream has no
// public HTTP access, so PublicURL points at the API's asset proxy.
type NatsStore struct {
	bucket    string
	store     nats.ObjectStore
	publicURL string
}

// NewNatsStore creates the bucket, or binds to it when it already exists.
func NewNatsStore(js nats.JetStreamContext, bucket, publicURL string) (*NatsStore, error) {
	store, err := js.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucket,
		Description: fmt.Sprintf("Story assets for the %s bucket.", bucket),
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucket, err)
		}
		store, err = js.ObjectStore(bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucket, err)
		}
	}

	log.Info().Str("bucket", bucket).Msg("NATS object store initialized")

	return &NatsStore{bucket: bucket, store: store, publicURL: publicURL}, nil
}

// Put saves an object, replacing any previous version.
func (n *NatsStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	_, err := n.store.Put(&nats.ObjectMeta{
		Name:    key,
		Headers: nats.Header{"Content-Type": []string{contentType}},
	}, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, n.bucket, err)
	}
	return nil
}

// Get retrieves an object.
func (n *NatsStore) Get(_ context.Context, key string) ([]byte, error) {
	obj, err := n.store.Get(key)
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, n.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()
	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, readErr)
	}
	if closeErr != nil {
		return data, fmt.Errorf("failed to close object '%s': %w", key, closeErr)
	}
	return data, nil
}

// List returns the names of live objects under prefix.
func (n *NatsStore) List(_ context.Context, prefix string) ([]string, error) {
	infos, err := n.store.List()
	if err != nil {
		if errors.Is(err, nats.ErrNoObjectsFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list bucket '%s': %w", n.bucket, err)
	}
	var keys []string
	for _, info := range infos {
		if info.Deleted || !strings.HasPrefix(info.Name, prefix) {
			continue
		}
		keys = append(keys, info.Name)
	}
	sort.Strings(keys)
	return keys, nil
}

// PublicURL returns the proxy URL of key.
func (n *NatsStore) PublicURL(key string) string {
	return joinURL(n.publicURL, key)
}
