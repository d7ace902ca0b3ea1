package pg

import (
	"context"
	"database/sql"
	"errors"

	"octobre.org/internal/email"
)

var _ email.Store = (*Store)(nil)

func (s *Store) CreateAccount(ctx context.Context, a email.Account) (email.Account, error) {
	err := s.db.QueryRowContext(ctx, `
		insert into email_accounts (name, host, port, username, password, mailbox)
		values ($1, $2, $3, $4, $5, $6)
		returning id, created_at
	`, a.Name, a.Host, a.Port, a.Username, a.Password, a.Mailbox).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return email.Account{}, email.ErrInvalidInput
		}
		return email.Account{}, err
	}
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]email.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, host, port, username, password, mailbox, created_at
		from email_accounts
		order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []email.Account
	for rows.Next() {
		var a email.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Host, &a.Port, &a.Username, &a.Password, &a.Mailbox, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *Store) DeleteAccount(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from email_accounts where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return email.ErrNotFound
	}
	return nil
}

func (s *Store) CreateEmail(ctx context.Context, e email.Email) (email.Email, error) {
	var accountID sql.NullInt64
	if e.AccountID != 0 {
		accountID = sql.NullInt64{Int64: e.AccountID, Valid: true}
	}
	err := s.db.QueryRowContext(ctx, `
		insert into classified_emails (
			account_id, message_id, sender, subject, received_at,
			classification, emergency_level, abstract
		)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning id, created_at, updated_at
	`, accountID, nullIfEmpty(e.MessageID), e.Sender, e.Subject, nullIfZeroTime(e.ReceivedAt),
		e.Classification.Label, e.Classification.EmergencyLevel, e.Classification.Abstract,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return email.Email{}, email.ErrNotFound
		}
		return email.Email{}, err
	}
	return e, nil
}

func (s *Store) GetEmail(ctx context.Context, id int64) (email.Email, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, account_id, message_id, sender, subject, received_at,
		       classification, emergency_level, abstract, created_at, updated_at
		from classified_emails
		where id = $1
	`, id)
	e, err := scanEmail(row)
	if errors.Is(err, sql.ErrNoRows) {
		return email.Email{}, email.ErrNotFound
	}
	if err != nil {
		return email.Email{}, err
	}
	return e, nil
}

func (s *Store) ListEmails(ctx context.Context, accountID int64) ([]email.Email, error) {
	query := `
		select id, account_id, message_id, sender, subject, received_at,
		       classification, emergency_level, abstract, created_at, updated_at
		from classified_emails
	`
	var (
		rows *sql.Rows
		err  error
	)
	if accountID != 0 {
		rows, err = s.db.QueryContext(ctx, query+` where account_id = $1 order by received_at desc nulls last, id desc`, accountID)
	} else {
		rows, err = s.db.QueryContext(ctx, query+` order by received_at desc nulls last, id desc`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []email.Email
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return emails, nil
}

// UpdateClassification swaps in the new verdict and appends the old one to
// the history in the same transaction.
func (s *Store) UpdateClassification(ctx context.Context, emailID int64, next email.Classification) (email.Email, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return email.Email{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var prev email.Classification
	err = tx.QueryRowContext(ctx, `
		select classification, emergency_level, abstract
		from classified_emails
		where id = $1
	`, emailID).Scan(&prev.Label, &prev.EmergencyLevel, &prev.Abstract)
	if errors.Is(err, sql.ErrNoRows) {
		return email.Email{}, email.ErrNotFound
	}
	if err != nil {
		return email.Email{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		insert into email_classification_history (email_id, classification, emergency_level, abstract)
		values ($1, $2, $3, $4)
	`, emailID, prev.Label, prev.EmergencyLevel, prev.Abstract); err != nil {
		return email.Email{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		update classified_emails
		set classification = $1, emergency_level = $2, abstract = $3, updated_at = now()
		where id = $4
	`, next.Label, next.EmergencyLevel, next.Abstract, emailID); err != nil {
		return email.Email{}, err
	}

	if err := tx.Commit(); err != nil {
		return email.Email{}, err
	}
	return s.GetEmail(ctx, emailID)
}

func (s *Store) DeleteEmail(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from classified_emails where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return email.ErrNotFound
	}
	return nil
}

func (s *Store) HistoryFor(ctx context.Context, emailID int64) ([]email.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, email_id, classification, emergency_level, abstract, recorded_at
		from email_classification_history
		where email_id = $1
		order by recorded_at, id
	`, emailID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []email.HistoryEntry
	for rows.Next() {
		var h email.HistoryEntry
		if err := rows.Scan(&h.ID, &h.EmailID, &h.Superseded.Label, &h.Superseded.EmergencyLevel, &h.Superseded.Abstract, &h.RecordedAt); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return history, nil
}

func scanEmail(row rowScanner) (email.Email, error) {
	var (
		e          email.Email
		accountID  sql.NullInt64
		messageID  sql.NullString
		receivedAt sql.NullTime
	)
	err := row.Scan(&e.ID, &accountID, &messageID, &e.Sender, &e.Subject, &receivedAt,
		&e.Classification.Label, &e.Classification.EmergencyLevel, &e.Classification.Abstract,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return email.Email{}, err
	}
	if accountID.Valid {
		e.AccountID = accountID.Int64
	}
	if messageID.Valid {
		e.MessageID = messageID.String
	}
	if receivedAt.Valid {
		e.ReceivedAt = receivedAt.Time
	}
	return e, nil
}
