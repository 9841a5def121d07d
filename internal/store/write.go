package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/nimbus/internal/entity"
	"github.com/roach88/nimbus/internal/ir"
)

// PutPackage creates or overwrites a literal package. The existence check
// and the upsert share one transaction.
func (s *Store) PutPackage(ctx context.Context, p ir.Package, overwrite bool) (ir.Package, error) {
	params, err := marshalParams(p.Parameters)
	if err != nil {
		return ir.Package{}, fmt.Errorf("put package: %w", err)
	}
	annotations, err := marshalParams(p.Annotations)
	if err != nil {
		return ir.Package{}, fmt.Errorf("put package: %w", err)
	}
	ref := p.Ref()

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		existing, found, err := packageRowFor(ctx, tx, ref)
		if err != nil {
			return err
		}
		p.Version = ir.InitialEntityVersion
		if found {
			if existing.isBinding() {
				return entity.ErrNameTaken(ir.KindPackage, ref.String(), ir.KindBinding)
			}
			if !overwrite {
				return entity.ErrExists(ir.KindPackage, ref.String())
			}
			p.Version = ir.NextVersion(existing.version)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO packages (namespace, name, version, binding_namespace, binding_name, parameters, annotations)
			VALUES (?, ?, ?, NULL, NULL, ?, ?)
			ON CONFLICT(namespace, name) DO UPDATE SET
				version = excluded.version,
				parameters = excluded.parameters,
				annotations = excluded.annotations
		`, p.Namespace, p.Name, p.Version, params, annotations)
		if err != nil {
			return fmt.Errorf("upsert package: %w", err)
		}
		return nil
	})
	if err != nil {
		return ir.Package{}, err
	}

	p.Parameters = p.Parameters.Clone()
	p.Annotations = p.Annotations.Clone()
	return p, nil
}

// PutBinding creates or overwrites a binding. The target is checked in
// the same transaction, so a binding never targets another binding.
func (s *Store) PutBinding(ctx context.Context, b ir.Binding, overwrite bool) (ir.Binding, error) {
	params, err := marshalParams(b.Parameters)
	if err != nil {
		return ir.Binding{}, fmt.Errorf("put binding: %w", err)
	}
	annotations, err := marshalParams(b.Annotations)
	if err != nil {
		return ir.Binding{}, fmt.Errorf("put binding: %w", err)
	}
	ref := b.Ref()

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		existing, found, err := packageRowFor(ctx, tx, ref)
		if err != nil {
			return err
		}
		b.Version = ir.InitialEntityVersion
		if found {
			if !existing.isBinding() {
				return entity.ErrNameTaken(ir.KindBinding, ref.String(), ir.KindPackage)
			}
			if !overwrite {
				return entity.ErrExists(ir.KindBinding, ref.String())
			}
			b.Version = ir.NextVersion(existing.version)
		}
		target, found, err := packageRowFor(ctx, tx, b.Target)
		if err != nil {
			return err
		}
		if found && target.isBinding() {
			return entity.ErrBindingToBinding(ref.String(), b.Target.String())
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO packages (namespace, name, version, binding_namespace, binding_name, parameters, annotations)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(namespace, name) DO UPDATE SET
				version = excluded.version,
				binding_namespace = excluded.binding_namespace,
				binding_name = excluded.binding_name,
				parameters = excluded.parameters,
				annotations = excluded.annotations
		`, b.Namespace, b.Name, b.Version, b.Target.Namespace, b.Target.Name, params, annotations)
		if err != nil {
			return fmt.Errorf("upsert binding: %w", err)
		}
		return nil
	})
	if err != nil {
		return ir.Binding{}, err
	}

	b.Parameters = b.Parameters.Clone()
	b.Annotations = b.Annotations.Clone()
	return b, nil
}

// PutAction creates or overwrites an action. A packaged action requires
// its package to exist as a literal package in the same transaction.
func (s *Store) PutAction(ctx context.Context, a ir.Action, overwrite bool) (ir.Action, error) {
	params, err := marshalParams(a.Parameters)
	if err != nil {
		return ir.Action{}, fmt.Errorf("put action: %w", err)
	}
	annotations, err := marshalParams(a.Annotations)
	if err != nil {
		return ir.Action{}, fmt.Errorf("put action: %w", err)
	}
	ref := a.Ref()

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if pkgRef, ok := ref.PackageRef(); ok {
			owner, found, err := packageRowFor(ctx, tx, pkgRef)
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

		var version string
		err := tx.QueryRowContext(ctx, `
			SELECT version FROM actions
			WHERE namespace = ? AND package = ? AND name = ?
		`, ref.Namespace, ref.Package, ref.Name).Scan(&version)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			a.Version = ir.InitialEntityVersion
		case err != nil:
			return fmt.Errorf("query action %s: %w", ref, err)
		case !overwrite:
			return entity.ErrExists(ir.KindAction, ref.String())
		default:
			a.Version = ir.NextVersion(version)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO actions (namespace, package, name, version, exec_kind, exec_code, parameters, annotations)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(namespace, package, name) DO UPDATE SET
				version = excluded.version,
				exec_kind = excluded.exec_kind,
				exec_code = excluded.exec_code,
				parameters = excluded.parameters,
				annotations = excluded.annotations
		`, a.Namespace, a.Package, a.Name, a.Version, a.Exec.Kind, a.Exec.Code, params, annotations)
		if err != nil {
			return fmt.Errorf("upsert action: %w", err)
		}
		return nil
	})
	if err != nil {
		return ir.Action{}, err
	}

	a.Parameters = a.Parameters.Clone()
	a.Annotations = a.Annotations.Clone()
	return a, nil
}

// DeletePackage removes a literal package that owns no actions.
func (s *Store) DeletePackage(ctx context.Context, ref ir.EntityRef) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		row, found, err := packageRowFor(ctx, tx, ref)
		if err != nil {
			return err
		}
		if !found || row.isBinding() {
			return ir.NewNotFoundError(ir.KindPackage, ref.String())
		}

		var n int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM actions WHERE namespace = ? AND package = ?
		`, ref.Namespace, ref.Name).Scan(&n); err != nil {
			return fmt.Errorf("count actions: %w", err)
		}
		if n > 0 {
			return entity.ErrPackageNotEmpty(ref.String(), n)
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM packages WHERE namespace = ? AND name = ?
		`, ref.Namespace, ref.Name); err != nil {
			return fmt.Errorf("delete package: %w", err)
		}
		return nil
	})
}

// DeleteBinding removes a binding. Its target package is untouched.
func (s *Store) DeleteBinding(ctx context.Context, ref ir.EntityRef) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM packages
		WHERE namespace = ? AND name = ? AND binding_name IS NOT NULL
	`, ref.Namespace, ref.Name)
	if err != nil {
		return fmt.Errorf("delete binding: %w", err)
	}
	return notFoundIfNone(res, ir.KindBinding, ref.String())
}

// DeleteAction removes an action.
func (s *Store) DeleteAction(ctx context.Context, ref ir.ActionRef) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM actions
		WHERE namespace = ? AND package = ? AND name = ?
	`, ref.Namespace, ref.Package, ref.Name)
	if err != nil {
		return fmt.Errorf("delete action: %w", err)
	}
	return notFoundIfNone(res, ir.KindAction, ref.String())
}

func notFoundIfNone(res sql.Result, kind, name string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ir.NewNotFoundError(kind, name)
	}
	return nil
}
