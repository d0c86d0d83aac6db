// Package kv provides a permanent statement repository backed by NATS KV.
//
// Each named graph is stored under its own key as a JSON array of
// statements. Commits write changed graphs with compare-and-swap on the
// revision read during the transaction, so a concurrent writer touching the
// same graph makes the commit fail with store.ErrConflict. Graphs whose
// names start with the WithCommitPrefix prefix are commit points: they are
// written last, and readers treat them as the source of truth for which
// other graphs are live. Writers holding distinct commit points never
// contend on a shared key.
package kv

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/semvault/statement"
	"github.com/c360studio/semvault/store"
)

// DefaultBucket is the KV bucket used when none is configured.
const DefaultBucket = "SEMVAULT_STATEMENTS"

const keyPrefix = "ctx."

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

// WithCommitPrefix marks every graph named with prefix as a commit point,
// written after all other graphs of a commit.
func WithCommitPrefix(prefix string) Option {
	return func(r *Repository) { r.commitPrefix = prefix }
}

// WithHistory sets how many revisions the bucket keeps per key.
func WithHistory(n uint8) Option {
	return func(r *Repository) { r.history = n }
}

// Repository is a store.Repository over a JetStream key-value bucket.
type Repository struct {
	kv           jetstream.KeyValue
	logger       *slog.Logger
	commitPrefix string
	history      uint8
}

// New opens the bucket, creating it if it does not exist.
func New(ctx context.Context, js jetstream.JetStream, bucket string, opts ...Option) (*Repository, error) {
	r := &Repository{logger: slog.Default(), history: 5}
	for _, opt := range opts {
		opt(r)
	}
	if bucket == "" {
		bucket = DefaultBucket
	}
	kv, err := getOrCreateBucket(ctx, js, bucket, r.history)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucket, err)
	}
	r.kv = kv
	return r, nil
}

func (r *Repository) isCommitPoint(context string) bool {
	return r.commitPrefix != "" && strings.HasPrefix(context, r.commitPrefix)
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string, history uint8) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("Semvault %s statement storage", strings.ToLower(name)),
		History:     history,
	})
}

// Connect opens a connection.
func (r *Repository) Connect(_ context.Context) (store.Connection, error) {
	return &conn{repo: r}, nil
}

// keyFor encodes a context IRI into a valid KV key.
func keyFor(context string) string {
	return keyPrefix + base64.RawURLEncoding.EncodeToString([]byte(context))
}

func contextFor(key string) (string, bool) {
	enc, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return "", false
	}
	raw, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

// graph is one named graph as read from the bucket.
type graph struct {
	set      *statement.Set
	revision uint64
	dirty    bool
}

func (r *Repository) load(ctx context.Context, context string) (*graph, error) {
	entry, err := r.kv.Get(ctx, keyFor(context))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return &graph{set: statement.NewSet()}, nil
		}
		return nil, fmt.Errorf("get graph %s: %w", context, err)
	}

	var stmts []statement.Statement
	if err := json.Unmarshal(entry.Value(), &stmts); err != nil {
		return nil, fmt.Errorf("unmarshal graph %s: %w", context, err)
	}
	for i := range stmts {
		stmts[i].Context = context
	}
	return &graph{set: statement.NewSet(stmts...), revision: entry.Revision()}, nil
}

func (r *Repository) contexts(ctx context.Context) ([]string, error) {
	keys, err := r.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list graph keys: %w", err)
	}
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if c, ok := contextFor(key); ok {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *Repository) save(ctx context.Context, context string, g *graph) error {
	key := keyFor(context)
	if g.set.Len() == 0 {
		if g.revision == 0 {
			return nil
		}
		if err := r.kv.Delete(ctx, key, jetstream.LastRevision(g.revision)); err != nil {
			return conflictOr(err, "delete graph %s", context)
		}
		return nil
	}

	stmts := g.set.All()
	for i := range stmts {
		stmts[i].Context = ""
	}
	data, err := json.Marshal(stmts)
	if err != nil {
		return fmt.Errorf("marshal graph %s: %w", context, err)
	}

	if g.revision == 0 {
		if _, err := r.kv.Create(ctx, key, data); err != nil {
			return conflictOr(err, "create graph %s", context)
		}
		return nil
	}
	if _, err := r.kv.Update(ctx, key, data, g.revision); err != nil {
		return conflictOr(err, "update graph %s", context)
	}
	return nil
}

func conflictOr(err error, format string, args ...any) error {
	if isConflict(err) {
		return fmt.Errorf(format+": %w", append(args, store.ErrConflict)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// isConflict checks whether a write lost a compare-and-swap race.
func isConflict(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}
