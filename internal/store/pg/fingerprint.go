package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"octobre.org/internal/fingerprint"
)

var _ fingerprint.Store = (*Store)(nil)

func (s *Store) Upsert(ctx context.Context, f fingerprint.Fingerprint) (fingerprint.Fingerprint, error) {
	components := []byte("{}")
	if len(f.Components) > 0 {
		raw, err := json.Marshal(f.Components)
		if err != nil {
			return fingerprint.Fingerprint{}, fmt.Errorf("marshal components: %w", err)
		}
		components = raw
	}

	err := s.db.QueryRowContext(ctx, `
		insert into fingerprints (visitor_id, components)
		values ($1, $2)
		on conflict (visitor_id) do update
		set components = excluded.components,
		    updated_at = now()
		returning id, created_at, updated_at
	`, f.VisitorID, components).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return fingerprint.Fingerprint{}, err
	}
	return f, nil
}

func (s *Store) FindByVisitorID(ctx context.Context, visitorID string) (fingerprint.Fingerprint, error) {
	var (
		f   fingerprint.Fingerprint
		raw []byte
	)
	err := s.db.QueryRowContext(ctx, `
		select id, visitor_id, components, created_at, updated_at
		from fingerprints
		where visitor_id = $1
	`, visitorID).Scan(&f.ID, &f.VisitorID, &raw, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fingerprint.Fingerprint{}, fingerprint.ErrNotFound
	}
	if err != nil {
		return fingerprint.Fingerprint{}, err
	}
	f.Components = map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &f.Components); err != nil {
			return fingerprint.Fingerprint{}, fmt.Errorf("decode components: %w", err)
		}
	}
	return f, nil
}

func (s *Store) CreateReport(ctx context.Context, r fingerprint.Report) (fingerprint.Report, error) {
	err := s.db.QueryRowContext(ctx, `
		insert into fingerprint_reports (fingerprint_id, page)
		values ($1, $2)
		returning id, created_at
	`, r.FingerprintID, r.Page).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fingerprint.Report{}, fingerprint.ErrNotFound
		}
		return fingerprint.Report{}, err
	}
	return r, nil
}
