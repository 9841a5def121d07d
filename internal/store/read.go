package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/nimbus/internal/ir"
	"github.com/roach88/nimbus/internal/resolve"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// reader implements resolve.Lookup over a querier, so the same code serves
// plain reads and snapshot transactions.
type reader struct {
	q querier
}

var _ resolve.Lookup = reader{}

const packageColumns = `namespace, name, version, binding_namespace, binding_name, parameters, annotations`

const actionColumns = `namespace, package, name, version, exec_kind, exec_code, parameters, annotations`

// packageRow is one row of the packages table, either kind.
type packageRow struct {
	namespace   string
	name        string
	version     string
	bindingNS   sql.NullString
	bindingName sql.NullString
	parameters  string
	annotations string
}

func (r packageRow) isBinding() bool {
	return r.bindingName.Valid
}

func (r packageRow) toPackage() (ir.Package, error) {
	params, err := unmarshalParams(r.parameters)
	if err != nil {
		return ir.Package{}, err
	}
	annotations, err := unmarshalParams(r.annotations)
	if err != nil {
		return ir.Package{}, err
	}
	return ir.Package{
		Namespace:   r.namespace,
		Name:        r.name,
		Version:     r.version,
		Parameters:  params,
		Annotations: annotations,
	}, nil
}

func (r packageRow) toBinding() (ir.Binding, error) {
	params, err := unmarshalParams(r.parameters)
	if err != nil {
		return ir.Binding{}, err
	}
	annotations, err := unmarshalParams(r.annotations)
	if err != nil {
		return ir.Binding{}, err
	}
	return ir.Binding{
		Namespace:   r.namespace,
		Name:        r.name,
		Version:     r.version,
		Target:      ir.EntityRef{Namespace: r.bindingNS.String, Name: r.bindingName.String},
		Parameters:  params,
		Annotations: annotations,
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPackageRow(s scanner) (packageRow, error) {
	var r packageRow
	err := s.Scan(&r.namespace, &r.name, &r.version, &r.bindingNS, &r.bindingName, &r.parameters, &r.annotations)
	return r, err
}

func scanAction(s scanner) (ir.Action, error) {
	var (
		a                       ir.Action
		parameters, annotations string
	)
	if err := s.Scan(&a.Namespace, &a.Package, &a.Name, &a.Version, &a.Exec.Kind, &a.Exec.Code, &parameters, &annotations); err != nil {
		return ir.Action{}, err
	}
	var err error
	if a.Parameters, err = unmarshalParams(parameters); err != nil {
		return ir.Action{}, err
	}
	if a.Annotations, err = unmarshalParams(annotations); err != nil {
		return ir.Action{}, err
	}
	return a, nil
}

// packageRowFor returns the row holding ref's name, of either kind.
// found is false when the name is free.
func packageRowFor(ctx context.Context, q querier, ref ir.EntityRef) (packageRow, bool, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+packageColumns+`
		FROM packages
		WHERE namespace = ? AND name = ?
	`, ref.Namespace, ref.Name)

	r, err := scanPackageRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return packageRow{}, false, nil
	}
	if err != nil {
		return packageRow{}, false, fmt.Errorf("query package %s: %w", ref, err)
	}
	return r, true, nil
}

func (r reader) LookupPackage(ctx context.Context, ref ir.EntityRef) (ir.Package, error) {
	row, found, err := packageRowFor(ctx, r.q, ref)
	if err != nil {
		return ir.Package{}, err
	}
	if !found || row.isBinding() {
		return ir.Package{}, ir.NewNotFoundError(ir.KindPackage, ref.String())
	}
	return row.toPackage()
}

func (r reader) LookupBinding(ctx context.Context, ref ir.EntityRef) (ir.Binding, error) {
	row, found, err := packageRowFor(ctx, r.q, ref)
	if err != nil {
		return ir.Binding{}, err
	}
	if !found || !row.isBinding() {
		return ir.Binding{}, ir.NewNotFoundError(ir.KindBinding, ref.String())
	}
	return row.toBinding()
}

func (r reader) LookupAction(ctx context.Context, ref ir.ActionRef) (ir.Action, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+actionColumns+`
		FROM actions
		WHERE namespace = ? AND package = ? AND name = ?
	`, ref.Namespace, ref.Package, ref.Name)

	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Action{}, ir.NewNotFoundError(ir.KindAction, ref.String())
	}
	if err != nil {
		return ir.Action{}, fmt.Errorf("query action %s: %w", ref, err)
	}
	return a, nil
}

// LookupPackage returns a literal package.
func (s *Store) LookupPackage(ctx context.Context, ref ir.EntityRef) (ir.Package, error) {
	return reader{q: s.db}.LookupPackage(ctx, ref)
}

// LookupBinding returns a binding.
func (s *Store) LookupBinding(ctx context.Context, ref ir.EntityRef) (ir.Binding, error) {
	return reader{q: s.db}.LookupBinding(ctx, ref)
}

// LookupAction returns an action.
func (s *Store) LookupAction(ctx context.Context, ref ir.ActionRef) (ir.Action, error) {
	return reader{q: s.db}.LookupAction(ctx, ref)
}

// ListPackages returns the namespace's literal packages ordered by name.
// Returns an empty slice (not nil) when there are none.
func (s *Store) ListPackages(ctx context.Context, namespace string) ([]ir.Package, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+packageColumns+`
		FROM packages
		WHERE namespace = ? AND binding_name IS NULL
		ORDER BY name COLLATE BINARY ASC
	`, namespace)
	if err != nil {
		return nil, fmt.Errorf("query packages: %w", err)
	}
	defer rows.Close()

	out := []ir.Package{}
	for rows.Next() {
		r, err := scanPackageRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		p, err := r.toPackage()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate packages: %w", err)
	}
	return out, nil
}

// ListBindings returns the namespace's bindings ordered by name.
func (s *Store) ListBindings(ctx context.Context, namespace string) ([]ir.Binding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+packageColumns+`
		FROM packages
		WHERE namespace = ? AND binding_name IS NOT NULL
		ORDER BY name COLLATE BINARY ASC
	`, namespace)
	if err != nil {
		return nil, fmt.Errorf("query bindings: %w", err)
	}
	defer rows.Close()

	out := []ir.Binding{}
	for rows.Next() {
		r, err := scanPackageRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan binding: %w", err)
		}
		b, err := r.toBinding()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bindings: %w", err)
	}
	return out, nil
}

// ListActions returns actions ordered by package then name. An empty pkg
// lists the whole namespace.
func (s *Store) ListActions(ctx context.Context, namespace, pkg string) ([]ir.Action, error) {
	query := `
		SELECT ` + actionColumns + `
		FROM actions
		WHERE namespace = ?`
	args := []any{namespace}
	if pkg != "" {
		query += ` AND package = ?`
		args = append(args, pkg)
	}
	query += `
		ORDER BY package COLLATE BINARY ASC, name COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	out := []ir.Action{}
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return out, nil
}
