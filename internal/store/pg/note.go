package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"octobre.org/internal/note"
)

var _ note.Store = (*Store)(nil)

func (s *Store) FindReasonByName(ctx context.Context, name string) (note.Reason, error) {
	var r note.Reason
	err := s.db.QueryRowContext(ctx, `select id, name from note_reasons where name = $1`, name).
		Scan(&r.ID, &r.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return note.Reason{}, note.ErrReasonNotFound
	}
	if err != nil {
		return note.Reason{}, err
	}
	return r, nil
}

func (s *Store) FirstReason(ctx context.Context) (note.Reason, error) {
	var r note.Reason
	err := s.db.QueryRowContext(ctx, `select id, name from note_reasons order by id limit 1`).
		Scan(&r.ID, &r.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return note.Reason{}, note.ErrReasonNotFound
	}
	if err != nil {
		return note.Reason{}, err
	}
	return r, nil
}

func (s *Store) CreateReason(ctx context.Context, name string) (note.Reason, error) {
	var r note.Reason
	err := s.db.QueryRowContext(ctx, `
		insert into note_reasons (name)
		values ($1)
		on conflict (name) do update set name = excluded.name
		returning id, name
	`, name).Scan(&r.ID, &r.Name)
	if err != nil {
		return note.Reason{}, err
	}
	return r, nil
}

func (s *Store) CreateNote(ctx context.Context, n note.Note) (note.Note, error) {
	err := s.db.QueryRowContext(ctx, `
		insert into notes (lead_id, content, author, reason_id)
		values ($1, $2, $3, $4)
		returning id, created_at
	`, n.LeadID, n.Content, n.Author, n.Reason.ID).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		// Two FKs can fire here; the constraint name tells them apart.
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			if strings.Contains(pgErr.ConstraintName, "reason") {
				return note.Note{}, note.ErrReasonNotFound
			}
			return note.Note{}, note.ErrLeadNotFound
		}
		return note.Note{}, err
	}
	return n, nil
}

func (s *Store) NotesForLead(ctx context.Context, leadID int64) ([]note.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		select n.id, n.lead_id, n.content, n.author, n.created_at, r.id, r.name
		from notes n
		join note_reasons r on r.id = n.reason_id
		where n.lead_id = $1
		order by n.created_at, n.id
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []note.Note
	for rows.Next() {
		var n note.Note
		if err := rows.Scan(&n.ID, &n.LeadID, &n.Content, &n.Author, &n.CreatedAt, &n.Reason.ID, &n.Reason.Name); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notes, nil
}

func (s *Store) Reasons(ctx context.Context) ([]note.Reason, error) {
	rows, err := s.db.QueryContext(ctx, `select id, name from note_reasons order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reasons []note.Reason
	for rows.Next() {
		var r note.Reason
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, err
		}
		reasons = append(reasons, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reasons, nil
}
