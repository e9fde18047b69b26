package ledger

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chainscore-ai/provenance/aggregate"
	"github.com/chainscore-ai/provenance/assessment"
)

// appendRetries bounds the optimistic-transaction retry loop on contended
// appends. Contention on a single lineage is expected to be rare because
// parent-before-child ordering already serializes it at the caller.
const appendRetries = 5

// RedisOptions configures the Redis connection for a shared ledger.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379").
	URL string

	// Namespace prefixes every ledger key. Defaults to "provenance".
	Namespace string

	// TLS configuration for secure connections.
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment.
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations.
	WriteTimeout time.Duration
}

// RedisLedger implements Ledger on Redis so independent pipeline workers can
// share one provenance ledger. Appends run as optimistic transactions
// (WATCH/MULTI) keyed on the record being inserted, so integrity checks and
// writes cannot interleave with a concurrent append of the same IDs.
//
// Key schema:
//
//	<ns>:assessment:<id>  - assessment record JSON
//	<ns>:op:<opID>        - assessment ID produced by the operation
//	<ns>:children:<id>    - list of direct child assessment IDs
//	<ns>:aggregate:<id>   - aggregated assessment record JSON
type RedisLedger struct {
	client    *redis.Client
	namespace string
}

// NewRedis creates a Redis-backed ledger and verifies connectivity.
func NewRedis(opts RedisOptions) (*RedisLedger, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisWithClient(client, opts.Namespace), nil
}

// NewRedisWithClient wraps an existing Redis client. Useful for tests and
// for sharing a connection pool with other components.
func NewRedisWithClient(client *redis.Client, namespace string) *RedisLedger {
	if namespace == "" {
		namespace = "provenance"
	}
	return &RedisLedger{client: client, namespace: namespace}
}

// Close closes the underlying Redis connection.
func (l *RedisLedger) Close() error {
	return l.client.Close()
}

func (l *RedisLedger) assessmentKey(id string) string {
	return l.namespace + ":assessment:" + id
}

func (l *RedisLedger) operationKey(opID string) string {
	return l.namespace + ":op:" + opID
}

func (l *RedisLedger) childrenKey(id string) string {
	return l.namespace + ":children:" + id
}

func (l *RedisLedger) aggregateKey(id string) string {
	return l.namespace + ":aggregate:" + id
}

// Append records an assessment. Integrity checks and writes run inside one
// optimistic transaction; on conflict the transaction retries with fresh
// reads, so a failed append never leaves partial state behind.
func (l *RedisLedger) Append(ctx context.Context, a *assessment.Assessment) error {
	if a == nil {
		return fmt.Errorf("%w: nil assessment", assessment.ErrValidation)
	}
	if err := a.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("%w: marshal assessment: %v", ErrStorageFailed, err)
	}

	txn := func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, l.assessmentKey(a.ID), l.operationKey(a.OperationID), l.aggregateKey(a.ID)).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorageFailed, err)
		}
		if exists > 0 {
			return fmt.Errorf("%w: assessment %s / operation %s", ErrDuplicateID, a.ID, a.OperationID)
		}
		for _, pid := range a.ParentIDs {
			ok, err := tx.Exists(ctx, l.assessmentKey(pid)).Result()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrStorageFailed, err)
			}
			if ok == 0 {
				return fmt.Errorf("%w: %s", ErrUnknownParent, pid)
			}
		}
		if err := l.checkAcyclic(ctx, a); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, l.assessmentKey(a.ID), data, 0)
			pipe.Set(ctx, l.operationKey(a.OperationID), a.ID, 0)
			for _, pid := range a.ParentIDs {
				pipe.RPush(ctx, l.childrenKey(pid), a.ID)
			}
			return nil
		})
		if err != nil {
			return err
		}
		return nil
	}

	for i := 0; i < appendRetries; i++ {
		err := l.client.Watch(ctx, txn, l.assessmentKey(a.ID), l.operationKey(a.OperationID), l.aggregateKey(a.ID))
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: append of %s kept conflicting after %d attempts", ErrStorageFailed, a.ID, appendRetries)
}

// checkAcyclic walks the ancestor graph looking for a path back to the new
// assessment ID.
func (l *RedisLedger) checkAcyclic(ctx context.Context, a *assessment.Assessment) error {
	visited := make(map[string]struct{})
	stack := append([]string(nil), a.ParentIDs...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == a.ID {
			return fmt.Errorf("%w: assessment %s is its own ancestor", ErrCyclicDependency, a.ID)
		}
		if _, ok := visited[id]; ok {
			continue
		}
		visited[id] = struct{}{}
		ancestor, err := l.fetch(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return err
		}
		stack = append(stack, ancestor.ParentIDs...)
	}
	return nil
}

// fetch loads and unmarshals one assessment record.
func (l *RedisLedger) fetch(ctx context.Context, id string) (*assessment.Assessment, error) {
	data, err := l.client.Get(ctx, l.assessmentKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	var a assessment.Assessment
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: unmarshal assessment %s: %v", ErrStorageFailed, id, err)
	}
	return &a, nil
}

// AppendAggregate records an aggregated assessment. IDs share one namespace
// with plain assessments, so the transaction checks both keyspaces before
// writing.
func (l *RedisLedger) AppendAggregate(ctx context.Context, g *aggregate.Aggregated) error {
	if g == nil {
		return fmt.Errorf("%w: nil aggregated assessment", assessment.ErrValidation)
	}
	if err := g.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("%w: marshal aggregate: %v", ErrStorageFailed, err)
	}

	txn := func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, l.aggregateKey(g.ID), l.assessmentKey(g.ID)).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorageFailed, err)
		}
		if exists > 0 {
			return fmt.Errorf("%w: aggregate %s", ErrDuplicateID, g.ID)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, l.aggregateKey(g.ID), data, 0)
			return nil
		})
		return err
	}

	for i := 0; i < appendRetries; i++ {
		err := l.client.Watch(ctx, txn, l.aggregateKey(g.ID), l.assessmentKey(g.ID))
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: append of aggregate %s kept conflicting after %d attempts", ErrStorageFailed, g.ID, appendRetries)
}

// Get returns the assessment with the given ID.
func (l *RedisLedger) Get(ctx context.Context, id string) (*assessment.Assessment, error) {
	return l.fetch(ctx, id)
}

// GetAggregate returns the aggregated assessment with the given ID.
func (l *RedisLedger) GetAggregate(ctx context.Context, id string) (*aggregate.Aggregated, error) {
	data, err := l.client.Get(ctx, l.aggregateKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	var g aggregate.Aggregated
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: unmarshal aggregate %s: %v", ErrStorageFailed, id, err)
	}
	return &g, nil
}

// GetByOperation returns the assessment produced by the operation instance.
func (l *RedisLedger) GetByOperation(ctx context.Context, operationID string) (*assessment.Assessment, error) {
	id, err := l.client.Get(ctx, l.operationKey(operationID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: operation %s", ErrNotFound, operationID)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	return l.fetch(ctx, id)
}

// GetChildren returns the direct children of the given assessment, ordered
// by assessment time.
func (l *RedisLedger) GetChildren(ctx context.Context, id string) ([]*assessment.Assessment, error) {
	ids, err := l.client.LRange(ctx, l.childrenKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	out := make([]*assessment.Assessment, 0, len(ids))
	for _, cid := range ids {
		child, err := l.fetch(ctx, cid)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, child)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AssessedAt.Equal(out[j].AssessedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].AssessedAt.Before(out[j].AssessedAt)
	})
	return out, nil
}

// Lineage returns the bounded ancestor subgraph of the given assessment.
func (l *RedisLedger) Lineage(ctx context.Context, id string, maxDepth int) (*Lineage, error) {
	target, err := l.fetch(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &Lineage{Found: false}, nil
		}
		return nil, err
	}
	return walkAncestors(ctx, target, maxDepth, l.fetch)
}

// BindPropagated late-binds the propagated confidence onto an assessment.
// Runs as an optimistic transaction so concurrent binds observe each other.
func (l *RedisLedger) BindPropagated(ctx context.Context, id string, value float64) error {
	key := l.assessmentKey(id)
	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			return fmt.Errorf("%w: %v", ErrStorageFailed, err)
		}
		var a assessment.Assessment
		if err := json.Unmarshal(data, &a); err != nil {
			return fmt.Errorf("%w: unmarshal assessment %s: %v", ErrStorageFailed, id, err)
		}
		if a.PropagatedConfidence != nil {
			if *a.PropagatedConfidence == value {
				return nil
			}
			return fmt.Errorf("%w: %s has %v, refusing %v",
				assessment.ErrPropagatedSet, id, *a.PropagatedConfidence, value)
		}
		if err := a.SetPropagated(value); err != nil {
			return err
		}
		updated, err := json.Marshal(&a)
		if err != nil {
			return fmt.Errorf("%w: marshal assessment: %v", ErrStorageFailed, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}

	for i := 0; i < appendRetries; i++ {
		err := l.client.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: bind on %s kept conflicting after %d attempts", ErrStorageFailed, id, appendRetries)
}
