package memory

import (
	"context"
	"sort"

	"github.com/roach88/nimbus/internal/ir"
)

// PutActivation stores a new activation record.
func (s *Store) PutActivation(_ context.Context, a ir.Activation) error {
	key := activationKey{namespace: a.Namespace, id: a.ActivationID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.activations[key]; ok {
		return ir.NewConflictError(ir.KindActivation, a.ActivationID, "already exists")
	}
	s.activations[key] = cloneActivation(a)
	return nil
}

// GetActivation returns one activation record.
func (s *Store) GetActivation(_ context.Context, namespace, id string) (ir.Activation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.activations[activationKey{namespace: namespace, id: id}]
	if !ok {
		return ir.Activation{}, ir.NewNotFoundError(ir.KindActivation, id)
	}
	return cloneActivation(a), nil
}

// ListActivations returns the namespace's records, newest first.
func (s *Store) ListActivations(_ context.Context, namespace string, limit int) ([]ir.Activation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ir.Activation, 0)
	for key, a := range s.activations {
		if key.namespace == namespace {
			out = append(out, cloneActivation(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start > out[j].Start
		}
		return out[i].Seq > out[j].Seq
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneActivation(a ir.Activation) ir.Activation {
	a.Annotations = a.Annotations.Clone()
	a.Logs = append([]string(nil), a.Logs...)
	return a
}
