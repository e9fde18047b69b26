package rating

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// observeRetries bounds the compare-and-swap retry loop for contended
// counter updates.
const observeRetries = 8

// EtcdConfig configures the etcd-backed rating store.
type EtcdConfig struct {
	// Endpoints are the etcd cluster endpoints.
	Endpoints []string

	// Namespace prefixes every rating key. Defaults to "provenance".
	Namespace string

	// DialTimeout is the maximum time to wait for the initial connection.
	// Defaults to 5s.
	DialTimeout time.Duration
}

// EtcdStore persists per-tool counters in etcd so rating state is shared
// across pipeline workers. Counter updates are applied with
// compare-and-swap transactions on the key's mod revision: concurrent
// observers retry instead of losing updates, which satisfies the
// single-writer-at-a-time rule per tool without any process-local locking.
//
// Key schema: <ns>/rating/<toolID> holding the Counters JSON.
type EtcdStore struct {
	client    *clientv3.Client
	namespace string
}

// NewEtcdStore connects to etcd and creates a store.
func NewEtcdStore(cfg EtcdConfig) (*EtcdStore, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("rating: etcd endpoints cannot be empty")
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("rating: failed to create etcd client: %w", err)
	}
	return NewEtcdStoreWithClient(cli, cfg.Namespace), nil
}

// NewEtcdStoreWithClient wraps an existing etcd client.
func NewEtcdStoreWithClient(cli *clientv3.Client, namespace string) *EtcdStore {
	if namespace == "" {
		namespace = "provenance"
	}
	return &EtcdStore{client: cli, namespace: namespace}
}

// Close closes the underlying etcd client.
func (s *EtcdStore) Close() error {
	return s.client.Close()
}

func (s *EtcdStore) key(toolID string) string {
	return s.namespace + "/rating/" + toolID
}

// Observe atomically records one outcome via compare-and-swap.
func (s *EtcdStore) Observe(ctx context.Context, toolID string, success bool) (Counters, error) {
	key := s.key(toolID)

	for i := 0; i < observeRetries; i++ {
		resp, err := s.client.Get(ctx, key)
		if err != nil {
			return Counters{}, fmt.Errorf("rating: etcd get %s: %w", key, err)
		}

		var c Counters
		var modRevision int64
		if len(resp.Kvs) > 0 {
			if err := json.Unmarshal(resp.Kvs[0].Value, &c); err != nil {
				return Counters{}, fmt.Errorf("rating: unmarshal counters for %s: %w", toolID, err)
			}
			modRevision = resp.Kvs[0].ModRevision
		}

		c.Observations++
		if success {
			c.Successes++
		}
		c.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(c)
		if err != nil {
			return Counters{}, fmt.Errorf("rating: marshal counters for %s: %w", toolID, err)
		}

		// Guard the put on the revision we read. A concurrent observer
		// advances the revision and fails the comparison; we retry with
		// fresh counters instead of losing their update.
		var cmp clientv3.Cmp
		if modRevision == 0 {
			cmp = clientv3.Compare(clientv3.CreateRevision(key), "=", 0)
		} else {
			cmp = clientv3.Compare(clientv3.ModRevision(key), "=", modRevision)
		}
		txn, err := s.client.Txn(ctx).If(cmp).Then(clientv3.OpPut(key, string(data))).Commit()
		if err != nil {
			return Counters{}, fmt.Errorf("rating: etcd txn for %s: %w", toolID, err)
		}
		if txn.Succeeded {
			return c, nil
		}
	}
	return Counters{}, fmt.Errorf("rating: observe for %s kept conflicting after %d attempts", toolID, observeRetries)
}

// Counters returns the current counters for a tool.
func (s *EtcdStore) Counters(ctx context.Context, toolID string) (Counters, error) {
	resp, err := s.client.Get(ctx, s.key(toolID))
	if err != nil {
		return Counters{}, fmt.Errorf("rating: etcd get %s: %w", s.key(toolID), err)
	}
	if len(resp.Kvs) == 0 {
		return Counters{}, fmt.Errorf("%w: %s", ErrUnknownTool, toolID)
	}
	var c Counters
	if err := json.Unmarshal(resp.Kvs[0].Value, &c); err != nil {
		return Counters{}, fmt.Errorf("rating: unmarshal counters for %s: %w", toolID, err)
	}
	return c, nil
}
