package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"octobre.org/internal/lead"
)

var _ lead.Store = (*Store)(nil)

func (s *Store) UpsertContact(ctx context.Context, c lead.Contact) (lead.Contact, error) {
	err := s.db.QueryRowContext(ctx, `
		insert into contacts (name, email, phone, job_title, conscent)
		values ($1, $2, $3, $4, $5)
		on conflict (email) do update
		set name = excluded.name,
		    phone = excluded.phone,
		    job_title = excluded.job_title,
		    conscent = excluded.conscent,
		    updated_at = now()
		returning id
	`, c.Name, c.Email, c.Phone, c.JobTitle, c.Conscent).Scan(&c.ID)
	if err != nil {
		return lead.Contact{}, err
	}
	return c, nil
}

func (s *Store) UpsertCompany(ctx context.Context, c lead.Company) (lead.Company, error) {
	err := s.db.QueryRowContext(ctx, `
		insert into companies (name, size)
		values ($1, $2)
		on conflict (name) do update
		set size = excluded.size,
		    updated_at = now()
		returning id
	`, c.Name, c.Size).Scan(&c.ID)
	if err != nil {
		return lead.Company{}, err
	}
	return c, nil
}

func (s *Store) FindStatusByName(ctx context.Context, name string) (lead.Status, error) {
	var st lead.Status
	err := s.db.QueryRowContext(ctx, `select id, name from lead_statuses where name = $1`, name).
		Scan(&st.ID, &st.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return lead.Status{}, lead.ErrNotFound
	}
	if err != nil {
		return lead.Status{}, err
	}
	return st, nil
}

func (s *Store) FindUrgencyByName(ctx context.Context, name string) (lead.Urgency, error) {
	var u lead.Urgency
	err := s.db.QueryRowContext(ctx, `select id, name from lead_urgencies where name = $1`, name).
		Scan(&u.ID, &u.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return lead.Urgency{}, lead.ErrNotFound
	}
	if err != nil {
		return lead.Urgency{}, err
	}
	return u, nil
}

func (s *Store) FindPackByName(ctx context.Context, name string) (lead.Pack, error) {
	var p lead.Pack
	err := s.db.QueryRowContext(ctx, `select id, name from recommended_packs where name = $1`, name).
		Scan(&p.ID, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return lead.Pack{}, lead.ErrNotFound
	}
	if err != nil {
		return lead.Pack{}, err
	}
	return p, nil
}

func (s *Store) EnsurePositions(ctx context.Context, titles []string) ([]lead.Position, error) {
	out := make([]lead.Position, 0, len(titles))
	for _, title := range titles {
		title = strings.TrimSpace(title)
		if title == "" {
			continue
		}
		var p lead.Position
		err := s.db.QueryRowContext(ctx, `
			insert into positions (title)
			values ($1)
			on conflict (title) do update set title = excluded.title
			returning id, title
		`, title).Scan(&p.ID, &p.Title)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) EnsureConcerns(ctx context.Context, labels []string) ([]lead.Concern, error) {
	out := make([]lead.Concern, 0, len(labels))
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		var c lead.Concern
		err := s.db.QueryRowContext(ctx, `
			insert into concerns (label)
			values ($1)
			on conflict (label) do update set label = excluded.label
			returning id, label
		`, label).Scan(&c.ID, &c.Label)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) CreateLead(ctx context.Context, l lead.Lead) (lead.Lead, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return lead.Lead{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var urgencyID, packID sql.NullInt64
	if l.Urgency != nil {
		urgencyID = sql.NullInt64{Int64: l.Urgency.ID, Valid: true}
	}
	if l.RecommendedPack != nil {
		packID = sql.NullInt64{Int64: l.RecommendedPack.ID, Valid: true}
	}

	err = tx.QueryRowContext(ctx, `
		insert into leads (
			submitted_at, estimated_users, problem_summary, maturity_score,
			altcha_solution, visitor_id,
			contact_id, company_id, status_id, urgency_id, pack_id
		)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		returning id, created_at, updated_at
	`, l.SubmittedAt, l.EstimatedUsers, l.ProblemSummary, l.MaturityScore,
		l.AltchaSolution, l.VisitorID,
		l.Contact.ID, l.Company.ID, l.Status.ID, urgencyID, packID,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return lead.Lead{}, lead.ErrNotFound
		}
		return lead.Lead{}, err
	}

	for _, p := range l.Positions {
		if _, err := tx.ExecContext(ctx, `
			insert into lead_positions (lead_id, position_id) values ($1, $2)
		`, l.ID, p.ID); err != nil {
			return lead.Lead{}, err
		}
	}
	for _, c := range l.Concerns {
		if _, err := tx.ExecContext(ctx, `
			insert into lead_concerns (lead_id, concern_id) values ($1, $2)
		`, l.ID, c.ID); err != nil {
			return lead.Lead{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return lead.Lead{}, err
	}
	return l, nil
}

const leadSelect = `
	select l.id, l.submitted_at, l.estimated_users, l.problem_summary,
	       l.maturity_score, l.altcha_solution, l.visitor_id,
	       l.created_at, l.updated_at,
	       ct.id, ct.name, ct.email, ct.phone, ct.job_title, ct.conscent,
	       co.id, co.name, co.size,
	       st.id, st.name,
	       u.id, u.name,
	       pk.id, pk.name
	from leads l
	join contacts ct on ct.id = l.contact_id
	join companies co on co.id = l.company_id
	join lead_statuses st on st.id = l.status_id
	left join lead_urgencies u on u.id = l.urgency_id
	left join recommended_packs pk on pk.id = l.pack_id
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (lead.Lead, error) {
	var (
		l           lead.Lead
		urgencyID   sql.NullInt64
		urgencyName sql.NullString
		packID      sql.NullInt64
		packName    sql.NullString
	)
	err := row.Scan(
		&l.ID, &l.SubmittedAt, &l.EstimatedUsers, &l.ProblemSummary,
		&l.MaturityScore, &l.AltchaSolution, &l.VisitorID,
		&l.CreatedAt, &l.UpdatedAt,
		&l.Contact.ID, &l.Contact.Name, &l.Contact.Email, &l.Contact.Phone,
		&l.Contact.JobTitle, &l.Contact.Conscent,
		&l.Company.ID, &l.Company.Name, &l.Company.Size,
		&l.Status.ID, &l.Status.Name,
		&urgencyID, &urgencyName,
		&packID, &packName,
	)
	if err != nil {
		return lead.Lead{}, err
	}
	if urgencyID.Valid {
		l.Urgency = &lead.Urgency{ID: urgencyID.Int64, Name: urgencyName.String}
	}
	if packID.Valid {
		l.RecommendedPack = &lead.Pack{ID: packID.Int64, Name: packName.String}
	}
	return l, nil
}

func (s *Store) GetLead(ctx context.Context, id int64) (lead.Lead, error) {
	row := s.db.QueryRowContext(ctx, leadSelect+` where l.id = $1`, id)
	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return lead.Lead{}, lead.ErrNotFound
	}
	if err != nil {
		return lead.Lead{}, err
	}
	if err := s.loadLeadRelations(ctx, &l); err != nil {
		return lead.Lead{}, err
	}
	return l, nil
}

func (s *Store) ListLeads(ctx context.Context) ([]lead.Lead, error) {
	rows, err := s.db.QueryContext(ctx, leadSelect+` order by l.submitted_at desc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []lead.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range leads {
		if err := s.loadLeadRelations(ctx, &leads[i]); err != nil {
			return nil, err
		}
	}
	return leads, nil
}

func (s *Store) loadLeadRelations(ctx context.Context, l *lead.Lead) error {
	rows, err := s.db.QueryContext(ctx, `
		select p.id, p.title
		from lead_positions lp
		join positions p on p.id = lp.position_id
		where lp.lead_id = $1
		order by p.id
	`, l.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var p lead.Position
		if err := rows.Scan(&p.ID, &p.Title); err != nil {
			return err
		}
		l.Positions = append(l.Positions, p)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	crows, err := s.db.QueryContext(ctx, `
		select c.id, c.label
		from lead_concerns lc
		join concerns c on c.id = lc.concern_id
		where lc.lead_id = $1
		order by c.id
	`, l.ID)
	if err != nil {
		return err
	}
	defer crows.Close()
	for crows.Next() {
		var c lead.Concern
		if err := crows.Scan(&c.ID, &c.Label); err != nil {
			return err
		}
		l.Concerns = append(l.Concerns, c)
	}
	return crows.Err()
}

// ApplyUpdate commits a diffed update plan: the mutated rows, the replaced
// association sets and the audit rows all land in one transaction.
func (s *Store) ApplyUpdate(ctx context.Context, plan lead.UpdatePlan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if plan.Contact != nil {
		if _, err := tx.ExecContext(ctx, `
			update contacts
			set name = $1, email = $2, phone = $3, job_title = $4, conscent = $5, updated_at = now()
			where id = $6
		`, plan.Contact.Name, plan.Contact.Email, plan.Contact.Phone,
			plan.Contact.JobTitle, plan.Contact.Conscent, plan.Contact.ID); err != nil {
			return err
		}
	}
	if plan.Company != nil {
		if _, err := tx.ExecContext(ctx, `
			update companies
			set name = $1, size = $2, updated_at = now()
			where id = $3
		`, plan.Company.Name, plan.Company.Size, plan.Company.ID); err != nil {
			return err
		}
	}

	var (
		sets []string
		args []any
		idx  = 1
	)
	if plan.UrgencyID != nil {
		sets = append(sets, fmt.Sprintf("urgency_id = $%d", idx))
		args = append(args, *plan.UrgencyID)
		idx++
	}
	if plan.ProblemSummary != nil {
		sets = append(sets, fmt.Sprintf("problem_summary = $%d", idx))
		args = append(args, *plan.ProblemSummary)
		idx++
	}
	if plan.EstimatedUsers != nil {
		sets = append(sets, fmt.Sprintf("estimated_users = $%d", idx))
		args = append(args, *plan.EstimatedUsers)
		idx++
	}
	sets = append(sets, "updated_at = now()")
	query := fmt.Sprintf(`update leads set %s where id = $%d`, strings.Join(sets, ", "), idx)
	args = append(args, plan.LeadID)
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return lead.ErrNotFound
	}

	if plan.PositionIDs != nil {
		if _, err := tx.ExecContext(ctx, `delete from lead_positions where lead_id = $1`, plan.LeadID); err != nil {
			return err
		}
		for _, id := range *plan.PositionIDs {
			if _, err := tx.ExecContext(ctx, `
				insert into lead_positions (lead_id, position_id) values ($1, $2)
			`, plan.LeadID, id); err != nil {
				return err
			}
		}
	}
	if plan.ConcernIDs != nil {
		if _, err := tx.ExecContext(ctx, `delete from lead_concerns where lead_id = $1`, plan.LeadID); err != nil {
			return err
		}
		for _, id := range *plan.ConcernIDs {
			if _, err := tx.ExecContext(ctx, `
				insert into lead_concerns (lead_id, concern_id) values ($1, $2)
			`, plan.LeadID, id); err != nil {
				return err
			}
		}
	}

	for _, ch := range plan.Changes {
		if _, err := tx.ExecContext(ctx, `
			insert into lead_modification_logs (lead_id, field_name, old_value, new_value)
			values ($1, $2, $3, $4)
		`, plan.LeadID, ch.Field, ch.OldValue, ch.NewValue); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) ModificationsFor(ctx context.Context, leadID int64) ([]lead.ModificationLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, lead_id, field_name, old_value, new_value, changed_at
		from lead_modification_logs
		where lead_id = $1
		order by changed_at, id
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []lead.ModificationLog
	for rows.Next() {
		var row lead.ModificationLog
		if err := rows.Scan(&row.ID, &row.LeadID, &row.Field, &row.OldValue, &row.NewValue, &row.ChangedAt); err != nil {
			return nil, err
		}
		logs = append(logs, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}
