package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"octobre.org/internal/calendar"
)

var _ calendar.Store = (*Store)(nil)

func (s *Store) CreateCalendarWithEvents(ctx context.Context, cal calendar.Calendar, events []calendar.Event) (calendar.Calendar, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return calendar.Calendar{}, err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		insert into calendars (name)
		values ($1)
		returning id, created_at
	`, cal.Name).Scan(&cal.ID, &cal.CreatedAt)
	if err != nil {
		return calendar.Calendar{}, err
	}

	for _, e := range events {
		if _, err := tx.ExecContext(ctx, `
			insert into calendar_events (calendar_id, uid, summary, description, starts_at, ends_at)
			values ($1, $2, $3, $4, $5, $6)
		`, cal.ID, e.UID, e.Summary, nullIfEmpty(e.Description),
			nullIfZeroTime(e.StartsAt), nullIfZeroTime(e.EndsAt)); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return calendar.Calendar{}, fmt.Errorf("duplicate event uid %q: %w", e.UID, calendar.ErrInvalidICS)
			}
			return calendar.Calendar{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return calendar.Calendar{}, err
	}
	return cal, nil
}

func (s *Store) GetCalendar(ctx context.Context, id int64) (calendar.Calendar, error) {
	var cal calendar.Calendar
	err := s.db.QueryRowContext(ctx, `
		select id, name, created_at from calendars where id = $1
	`, id).Scan(&cal.ID, &cal.Name, &cal.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return calendar.Calendar{}, calendar.ErrNotFound
	}
	if err != nil {
		return calendar.Calendar{}, err
	}
	return cal, nil
}

func (s *Store) CalendarsByIDs(ctx context.Context, ids []int64) ([]calendar.Calendar, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`
		select id, name, created_at
		from calendars
		where id in (%s)
		order by id
	`, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cals []calendar.Calendar
	for rows.Next() {
		var cal calendar.Calendar
		if err := rows.Scan(&cal.ID, &cal.Name, &cal.CreatedAt); err != nil {
			return nil, err
		}
		cals = append(cals, cal)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cals, nil
}

func (s *Store) EventsForCalendar(ctx context.Context, calendarID int64) ([]calendar.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, calendar_id, uid, summary, description, starts_at, ends_at
		from calendar_events
		where calendar_id = $1
		order by starts_at nulls last, id
	`, calendarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []calendar.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) GetEvent(ctx context.Context, calendarID int64, uid string) (calendar.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, calendar_id, uid, summary, description, starts_at, ends_at
		from calendar_events
		where calendar_id = $1 and uid = $2
	`, calendarID, uid)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return calendar.Event{}, calendar.ErrNotFound
	}
	if err != nil {
		return calendar.Event{}, err
	}
	return e, nil
}

func (s *Store) CreateEvent(ctx context.Context, e calendar.Event) (calendar.Event, error) {
	err := s.db.QueryRowContext(ctx, `
		insert into calendar_events (calendar_id, uid, summary, description, starts_at, ends_at)
		values ($1, $2, $3, $4, $5, $6)
		returning id
	`, e.CalendarID, e.UID, e.Summary, nullIfEmpty(e.Description),
		nullIfZeroTime(e.StartsAt), nullIfZeroTime(e.EndsAt)).Scan(&e.ID)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrForeignKeyViolation:
				return calendar.Event{}, calendar.ErrNotFound
			case pgErrUniqueViolation:
				return calendar.Event{}, fmt.Errorf("%w: uid %q already exists", calendar.ErrInvalidInput, e.UID)
			}
		}
		return calendar.Event{}, err
	}
	return e, nil
}

func (s *Store) UpdateEvent(ctx context.Context, e calendar.Event) (calendar.Event, error) {
	res, err := s.db.ExecContext(ctx, `
		update calendar_events
		set summary = $1, description = $2, starts_at = $3, ends_at = $4
		where calendar_id = $5 and uid = $6
	`, e.Summary, nullIfEmpty(e.Description), nullIfZeroTime(e.StartsAt),
		nullIfZeroTime(e.EndsAt), e.CalendarID, e.UID)
	if err != nil {
		return calendar.Event{}, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return calendar.Event{}, err
	}
	if aff == 0 {
		return calendar.Event{}, calendar.ErrNotFound
	}
	return s.GetEvent(ctx, e.CalendarID, e.UID)
}

func (s *Store) DeleteEvent(ctx context.Context, calendarID int64, uid string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from calendar_events where calendar_id = $1 and uid = $2
	`, calendarID, uid)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return calendar.ErrNotFound
	}
	return nil
}

func scanEvent(row rowScanner) (calendar.Event, error) {
	var (
		e        calendar.Event
		desc     sql.NullString
		startsAt sql.NullTime
		endsAt   sql.NullTime
	)
	if err := row.Scan(&e.ID, &e.CalendarID, &e.UID, &e.Summary, &desc, &startsAt, &endsAt); err != nil {
		return calendar.Event{}, err
	}
	if desc.Valid {
		e.Description = desc.String
	}
	if startsAt.Valid {
		e.StartsAt = startsAt.Time
	}
	if endsAt.Valid {
		e.EndsAt = endsAt.Time
	}
	return e, nil
}

func nullIfZeroTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
