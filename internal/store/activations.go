package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/nimbus/internal/ir"
)

const activationColumns = `activation_id, namespace, name, version, seq, start_ms, end_ms,
	status, success, result, logs, annotations, digest`

// PutActivation inserts an activation record.
// Uses ON CONFLICT DO NOTHING and reports a duplicate ID as CONFLICT.
func (s *Store) PutActivation(ctx context.Context, a ir.Activation) error {
	result, err := marshalResult(a.Response.Result)
	if err != nil {
		return fmt.Errorf("put activation: %w", err)
	}
	logs, err := marshalLogs(a.Logs)
	if err != nil {
		return fmt.Errorf("put activation: %w", err)
	}
	annotations, err := marshalParams(a.Annotations)
	if err != nil {
		return fmt.Errorf("put activation: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO activations
		(`+activationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(namespace, activation_id) DO NOTHING
	`,
		a.ActivationID,
		a.Namespace,
		a.Name,
		a.Version,
		a.Seq,
		a.Start,
		a.End,
		a.Response.Status,
		a.Response.Success,
		result,
		logs,
		annotations,
		a.Digest,
	)
	if err != nil {
		return fmt.Errorf("put activation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("put activation: rows affected: %w", err)
	}
	if n == 0 {
		return ir.NewConflictError(ir.KindActivation, a.ActivationID, "already exists")
	}
	return nil
}

// GetActivation retrieves a single activation.
func (s *Store) GetActivation(ctx context.Context, namespace, id string) (ir.Activation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+activationColumns+`
		FROM activations
		WHERE namespace = ? AND activation_id = ?
	`, namespace, id)

	a, err := scanActivation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Activation{}, ir.NewNotFoundError(ir.KindActivation, id)
	}
	if err != nil {
		return ir.Activation{}, fmt.Errorf("get activation: %w", err)
	}
	return a, nil
}

// ListActivations returns the namespace's activations, newest first.
// Ties on start time are broken by seq, then ID for determinism.
func (s *Store) ListActivations(ctx context.Context, namespace string, limit int) ([]ir.Activation, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+activationColumns+`
		FROM activations
		WHERE namespace = ?
		ORDER BY start_ms DESC, seq DESC, activation_id COLLATE BINARY ASC
		LIMIT ?
	`, namespace, limit)
	if err != nil {
		return nil, fmt.Errorf("query activations: %w", err)
	}
	defer rows.Close()

	out := []ir.Activation{}
	for rows.Next() {
		a, err := scanActivation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activation: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activations: %w", err)
	}
	return out, nil
}

func scanActivation(s scanner) (ir.Activation, error) {
	var (
		a                         ir.Activation
		result, logs, annotations string
	)
	if err := s.Scan(
		&a.ActivationID,
		&a.Namespace,
		&a.Name,
		&a.Version,
		&a.Seq,
		&a.Start,
		&a.End,
		&a.Response.Status,
		&a.Response.Success,
		&result,
		&logs,
		&annotations,
		&a.Digest,
	); err != nil {
		return ir.Activation{}, err
	}

	var err error
	if a.Response.Result, err = unmarshalResult(result); err != nil {
		return ir.Activation{}, err
	}
	if a.Logs, err = unmarshalLogs(logs); err != nil {
		return ir.Activation{}, err
	}
	if a.Annotations, err = unmarshalParams(annotations); err != nil {
		return ir.Activation{}, err
	}
	return a, nil
}
