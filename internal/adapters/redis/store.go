package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	backend "github.com/redis/go-redis/v9"

	"github.com/roach88/nimbus/internal/entity"
	"github.com/roach88/nimbus/internal/ir"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "nimbus:"

// Store implements entity.Store and entity.ActivationStore on Redis.
//
// Each entity is one JSON value, so a read always sees a whole own
// parameter set. Writes are optimistic: the keys a write depends on are
// WATCHed and the update is applied in MULTI/EXEC. A write that loses
// against a concurrent one fails with CONFLICT rather than retrying.
type Store struct {
	client *backend.Client
	prefix string

	// beforeExec runs between the WATCHed reads and EXEC. Tests use it to
	// inject a concurrent write.
	beforeExec func(ctx context.Context)
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Redis store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ entity.Store           = (*Store)(nil)
	_ entity.ActivationStore = (*Store)(nil)
)

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// CheckSchema records ir.SchemaVersion on first use and refuses a keyspace
// written with a different layout version.
func (s *Store) CheckSchema(ctx context.Context) error {
	key := s.prefix + "schema"
	if err := s.client.SetNX(ctx, key, ir.SchemaVersion, 0).Err(); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	version, err := s.client.Get(ctx, key).Int()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version != ir.SchemaVersion {
		return fmt.Errorf("redis keyspace %q has schema version %d, want %d", s.prefix, version, ir.SchemaVersion)
	}
	return nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Key layout:
//
//	{prefix}schema                   ir.SchemaVersion the keys were written with
//	{prefix}pkg:{ns}/{name}          packageRecord (package or binding)
//	{prefix}packages:{ns}            SET of package and binding names
//	{prefix}action:{ns}/[{pkg}/]{n}  ir.Action
//	{prefix}actions:{ns}             SET of action paths
//	{prefix}members:{ns}/{pkg}       SET of action names owned by a package
//	{prefix}activation:{ns}/{id}     ir.Activation
//	{prefix}activations:{ns}         ZSET of activation IDs scored by start

func (s *Store) packageKey(ref ir.EntityRef) string {
	return s.prefix + "pkg:" + ref.String()
}

func (s *Store) packagesIndex(namespace string) string {
	return s.prefix + "packages:" + namespace
}

func (s *Store) actionKey(ref ir.ActionRef) string {
	return s.prefix + "action:" + ref.String()
}

func (s *Store) actionsIndex(namespace string) string {
	return s.prefix + "actions:" + namespace
}

func (s *Store) membersKey(ref ir.EntityRef) string {
	return s.prefix + "members:" + ref.String()
}

// packageRecord stores both kinds under one key so the name space is shared.
type packageRecord struct {
	Namespace   string          `json:"namespace"`
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Target      *ir.EntityRef   `json:"binding,omitempty"`
	Parameters  ir.ParameterSet `json:"parameters"`
	Annotations ir.ParameterSet `json:"annotations"`
}

func (r packageRecord) isBinding() bool {
	return r.Target != nil
}

func (r packageRecord) toPackage() ir.Package {
	return ir.Package{
		Namespace:   r.Namespace,
		Name:        r.Name,
		Version:     r.Version,
		Parameters:  r.Parameters,
		Annotations: r.Annotations,
	}
}

func (r packageRecord) toBinding() ir.Binding {
	return ir.Binding{
		Namespace:   r.Namespace,
		Name:        r.Name,
		Version:     r.Version,
		Target:      *r.Target,
		Parameters:  r.Parameters,
		Annotations: r.Annotations,
	}
}

// getter is satisfied by *backend.Client and *backend.Tx.
type getter interface {
	Get(ctx context.Context, key string) *backend.StringCmd
}

func getJSON(ctx context.Context, g getter, key string, v any) (bool, error) {
	data, err := g.Get(ctx, key).Bytes()
	if errors.Is(err, backend.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s from redis: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) packageRecordFor(ctx context.Context, g getter, ref ir.EntityRef) (packageRecord, bool, error) {
	var rec packageRecord
	found, err := getJSON(ctx, g, s.packageKey(ref), &rec)
	return rec, found, err
}

// LookupPackage returns a literal package.
func (s *Store) LookupPackage(ctx context.Context, ref ir.EntityRef) (ir.Package, error) {
	rec, found, err := s.packageRecordFor(ctx, s.client, ref)
	if err != nil {
		return ir.Package{}, err
	}
	if !found || rec.isBinding() {
		return ir.Package{}, ir.NewNotFoundError(ir.KindPackage, ref.String())
	}
	return rec.toPackage(), nil
}

// LookupBinding returns a binding.
func (s *Store) LookupBinding(ctx context.Context, ref ir.EntityRef) (ir.Binding, error) {
	rec, found, err := s.packageRecordFor(ctx, s.client, ref)
	if err != nil {
		return ir.Binding{}, err
	}
	if !found || !rec.isBinding() {
		return ir.Binding{}, ir.NewNotFoundError(ir.KindBinding, ref.String())
	}
	return rec.toBinding(), nil
}

// LookupAction returns an action.
func (s *Store) LookupAction(ctx context.Context, ref ir.ActionRef) (ir.Action, error) {
	var a ir.Action
	found, err := getJSON(ctx, s.client, s.actionKey(ref), &a)
	if err != nil {
		return ir.Action{}, err
	}
	if !found {
		return ir.Action{}, ir.NewNotFoundError(ir.KindAction, ref.String())
	}
	return a, nil
}

// watch runs fn under WATCH keys and maps a lost race to CONFLICT.
func (s *Store) watch(ctx context.Context, kind, name string, fn func(*backend.Tx) error, keys ...string) error {
	err := s.client.Watch(ctx, fn, keys...)
	if errors.Is(err, backend.TxFailedErr) {
		return entity.ErrConcurrentUpdate(kind, name)
	}
	return err
}

func (s *Store) exec(ctx context.Context, tx *backend.Tx, fn func(backend.Pipeliner) error) error {
	if s.beforeExec != nil {
		s.beforeExec(ctx)
	}
	_, err := tx.TxPipelined(ctx, fn)
	return err
}

func (s *Store) putPackageRecord(ctx context.Context, rec packageRecord, overwrite bool) (packageRecord, error) {
	kind, other := ir.KindPackage, ir.KindBinding
	if rec.isBinding() {
		kind, other = ir.KindBinding, ir.KindPackage
	}
	ref := ir.EntityRef{Namespace: rec.Namespace, Name: rec.Name}
	key := s.packageKey(ref)
	keys := []string{key}
	if rec.isBinding() {
		keys = append(keys, s.packageKey(*rec.Target))
	}

	err := s.watch(ctx, kind, ref.String(), func(tx *backend.Tx) error {
		existing, found, err := s.packageRecordFor(ctx, tx, ref)
		if err != nil {
			return err
		}
		rec.Version = ir.InitialEntityVersion
		if found {
			if existing.isBinding() != rec.isBinding() {
				return entity.ErrNameTaken(kind, ref.String(), other)
			}
			if !overwrite {
				return entity.ErrExists(kind, ref.String())
			}
			rec.Version = ir.NextVersion(existing.Version)
		}
		if rec.isBinding() {
			target, found, err := s.packageRecordFor(ctx, tx, *rec.Target)
			if err != nil {
				return err
			}
			if found && target.isBinding() {
				return entity.ErrBindingToBinding(ref.String(), rec.Target.String())
			}
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", kind, err)
		}
		return s.exec(ctx, tx, func(pipe backend.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, s.packagesIndex(ref.Namespace), ref.Name)
			return nil
		})
	}, keys...)
	return rec, err
}

// PutPackage creates or overwrites a literal package.
func (s *Store) PutPackage(ctx context.Context, p ir.Package, overwrite bool) (ir.Package, error) {
	rec, err := s.putPackageRecord(ctx, packageRecord{
		Namespace:   p.Namespace,
		Name:        p.Name,
		Parameters:  p.Parameters.Clone(),
		Annotations: p.Annotations.Clone(),
	}, overwrite)
	if err != nil {
		return ir.Package{}, err
	}
	return rec.toPackage(), nil
}

// PutBinding creates or overwrites a binding. The target key is WATCHed
// so it cannot turn into a binding before EXEC.
func (s *Store) PutBinding(ctx context.Context, b ir.Binding, overwrite bool) (ir.Binding, error) {
	target := b.Target
	rec, err := s.putPackageRecord(ctx, packageRecord{
		Namespace:   b.Namespace,
		Name:        b.Name,
		Target:      &target,
		Parameters:  b.Parameters.Clone(),
		Annotations: b.Annotations.Clone(),
	}, overwrite)
	if err != nil {
		return ir.Binding{}, err
	}
	return rec.toBinding(), nil
}

// PutAction creates or overwrites an action. The owning package key is
// WATCHed so a concurrent package delete cannot strand the action.
func (s *Store) PutAction(ctx context.Context, a ir.Action, overwrite bool) (ir.Action, error) {
	a.Parameters = a.Parameters.Clone()
	a.Annotations = a.Annotations.Clone()
	ref := a.Ref()
	key := s.actionKey(ref)
	keys := []string{key}
	pkgRef, packaged := ref.PackageRef()
	if packaged {
		keys = append(keys, s.packageKey(pkgRef))
	}

	err := s.watch(ctx, ir.KindAction, ref.String(), func(tx *backend.Tx) error {
		if packaged {
			owner, found, err := s.packageRecordFor(ctx, tx, pkgRef)
			if err != nil {
				return err
			}
			if !found {
				return ir.NewNotFoundError(ir.KindPackage, pkgRef.String())
			}
			if owner.isBinding() {
				return entity.ErrActionInBinding(ref.String())
			}
		}

		var existing ir.Action
		found, err := getJSON(ctx, tx, key, &existing)
		if err != nil {
			return err
		}
		a.Version = ir.InitialEntityVersion
		if found {
			if !overwrite {
				return entity.ErrExists(ir.KindAction, ref.String())
			}
			a.Version = ir.NextVersion(existing.Version)
		}

		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to marshal action: %w", err)
		}
		return s.exec(ctx, tx, func(pipe backend.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, s.actionsIndex(ref.Namespace), ref.String())
			if packaged {
				pipe.SAdd(ctx, s.membersKey(pkgRef), ref.Name)
			}
			return nil
		})
	}, keys...)
	if err != nil {
		return ir.Action{}, err
	}
	return a, nil
}

// DeletePackage removes a literal package that owns no actions.
func (s *Store) DeletePackage(ctx context.Context, ref ir.EntityRef) error {
	key := s.packageKey(ref)
	members := s.membersKey(ref)

	return s.watch(ctx, ir.KindPackage, ref.String(), func(tx *backend.Tx) error {
		rec, found, err := s.packageRecordFor(ctx, tx, ref)
		if err != nil {
			return err
		}
		if !found || rec.isBinding() {
			return ir.NewNotFoundError(ir.KindPackage, ref.String())
		}
		n, err := tx.SCard(ctx, members).Result()
		if err != nil {
			return fmt.Errorf("failed to count package actions: %w", err)
		}
		if n > 0 {
			return entity.ErrPackageNotEmpty(ref.String(), int(n))
		}
		return s.exec(ctx, tx, func(pipe backend.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, s.packagesIndex(ref.Namespace), ref.Name)
			return nil
		})
	}, key, members)
}

// DeleteBinding removes a binding.
func (s *Store) DeleteBinding(ctx context.Context, ref ir.EntityRef) error {
	key := s.packageKey(ref)

	return s.watch(ctx, ir.KindBinding, ref.String(), func(tx *backend.Tx) error {
		rec, found, err := s.packageRecordFor(ctx, tx, ref)
		if err != nil {
			return err
		}
		if !found || !rec.isBinding() {
			return ir.NewNotFoundError(ir.KindBinding, ref.String())
		}
		return s.exec(ctx, tx, func(pipe backend.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, s.packagesIndex(ref.Namespace), ref.Name)
			return nil
		})
	}, key)
}

// DeleteAction removes an action.
func (s *Store) DeleteAction(ctx context.Context, ref ir.ActionRef) error {
	key := s.actionKey(ref)

	return s.watch(ctx, ir.KindAction, ref.String(), func(tx *backend.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to check action: %w", err)
		}
		if n == 0 {
			return ir.NewNotFoundError(ir.KindAction, ref.String())
		}
		return s.exec(ctx, tx, func(pipe backend.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, s.actionsIndex(ref.Namespace), ref.String())
			if pkgRef, ok := ref.PackageRef(); ok {
				pipe.SRem(ctx, s.membersKey(pkgRef), ref.Name)
			}
			return nil
		})
	}, key)
}

// ListPackages returns the namespace's literal packages ordered by name.
func (s *Store) ListPackages(ctx context.Context, namespace string) ([]ir.Package, error) {
	recs, err := s.packageRecords(ctx, namespace)
	if err != nil {
		return nil, err
	}
	out := []ir.Package{}
	for _, rec := range recs {
		if !rec.isBinding() {
			out = append(out, rec.toPackage())
		}
	}
	return out, nil
}

// ListBindings returns the namespace's bindings ordered by name.
func (s *Store) ListBindings(ctx context.Context, namespace string) ([]ir.Binding, error) {
	recs, err := s.packageRecords(ctx, namespace)
	if err != nil {
		return nil, err
	}
	out := []ir.Binding{}
	for _, rec := range recs {
		if rec.isBinding() {
			out = append(out, rec.toBinding())
		}
	}
	return out, nil
}

func (s *Store) packageRecords(ctx context.Context, namespace string) ([]packageRecord, error) {
	names, err := s.client.SMembers(ctx, s.packagesIndex(namespace)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	sort.Strings(names)

	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = s.packageKey(ir.EntityRef{Namespace: namespace, Name: name})
	}
	var recs []packageRecord
	if err := s.mgetJSON(ctx, keys, func(data []byte) error {
		var rec packageRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		recs = append(recs, rec)
		return nil
	}); err != nil {
		return nil, err
	}
	return recs, nil
}

// ListActions returns actions ordered by package then name.
func (s *Store) ListActions(ctx context.Context, namespace, pkg string) ([]ir.Action, error) {
	paths, err := s.client.SMembers(ctx, s.actionsIndex(namespace)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = s.prefix + "action:" + p
	}

	out := []ir.Action{}
	if err := s.mgetJSON(ctx, keys, func(data []byte) error {
		var a ir.Action
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		if pkg == "" || a.Package == pkg {
			out = append(out, a)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Package != out[j].Package {
			return out[i].Package < out[j].Package
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// mgetJSON fetches keys in one round trip and calls fn for each value that
// still exists. Index entries can briefly outlive their key.
func (s *Store) mgetJSON(ctx context.Context, keys []string, fn func([]byte) error) error {
	if len(keys) == 0 {
		return nil
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("failed to get from redis: %w", err)
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		if err := fn([]byte(str)); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", keys[i], err)
		}
	}
	return nil
}
