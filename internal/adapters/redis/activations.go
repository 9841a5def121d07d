package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	backend "github.com/redis/go-redis/v9"

	"github.com/roach88/nimbus/internal/ir"
)

func (s *Store) activationKey(namespace, id string) string {
	return s.prefix + "activation:" + namespace + "/" + id
}

func (s *Store) activationsIndex(namespace string) string {
	return s.prefix + "activations:" + namespace
}

// PutActivation writes a new activation record with SET NX.
func (s *Store) PutActivation(ctx context.Context, a ir.Activation) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal activation: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.activationKey(a.Namespace, a.ActivationID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to save activation: %w", err)
	}
	if !ok {
		return ir.NewConflictError(ir.KindActivation, a.ActivationID, "already exists")
	}

	err = s.client.ZAdd(ctx, s.activationsIndex(a.Namespace), backend.Z{
		Score:  float64(a.Start),
		Member: a.ActivationID,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to index activation: %w", err)
	}
	return nil
}

// GetActivation returns one activation record.
func (s *Store) GetActivation(ctx context.Context, namespace, id string) (ir.Activation, error) {
	var a ir.Activation
	found, err := getJSON(ctx, s.client, s.activationKey(namespace, id), &a)
	if err != nil {
		return ir.Activation{}, err
	}
	if !found {
		return ir.Activation{}, ir.NewNotFoundError(ir.KindActivation, id)
	}
	return a, nil
}

// ListActivations returns the namespace's records, newest first. The index
// orders by start; ties are broken by seq after loading.
func (s *Store) ListActivations(ctx context.Context, namespace string, limit int) ([]ir.Activation, error) {
	ids, err := s.client.ZRevRange(ctx, s.activationsIndex(namespace), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list activations: %w", err)
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.activationKey(namespace, id)
	}

	out := []ir.Activation{}
	if err := s.mgetJSON(ctx, keys, func(data []byte) error {
		var a ir.Activation
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		out = append(out, a)
		return nil
	}); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
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
