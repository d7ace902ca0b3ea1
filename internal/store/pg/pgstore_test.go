package pg

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"octobre.org/internal/email"
	"octobre.org/internal/lead"
	"octobre.org/internal/note"
	"octobre.org/internal/rbac"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func TestFindRoleByName(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`select id, name\s+from roles`).
		WithArgs("viewer").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(3, "viewer"))

	role, err := store.FindRoleByName(context.Background(), "viewer")
	require.NoError(t, err)
	assert.Equal(t, rbac.Role{ID: 3, Name: "viewer"}, role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindRoleByNameMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`select id, name\s+from roles`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := store.FindRoleByName(context.Background(), "ghost")
	assert.ErrorIs(t, err, rbac.ErrRoleNotFound)
}

func TestDeleteAssignmentMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`delete from role_assignments`).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteAssignment(context.Background(), 9)
	assert.ErrorIs(t, err, rbac.ErrNotFound)
}

func TestUpsertContactUsesOnConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`insert into contacts .+on conflict \(email\) do update`).
		WithArgs("Alice", "alice@example.org", "", "CTO", true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	c, err := store.UpsertContact(context.Background(), lead.Contact{
		Name: "Alice", Email: "alice@example.org", JobTitle: "CTO", Conscent: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyUpdateIsOneTransaction(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`update contacts`).
		WithArgs("Alice Durand", "alice@example.org", "", "CTO", true, int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`update leads set updated_at = now\(\)`).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`insert into lead_modification_logs`).
		WithArgs(int64(5), "name", "Alice", "Alice Durand").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.ApplyUpdate(context.Background(), lead.UpdatePlan{
		LeadID: 5,
		Contact: &lead.Contact{
			ID: 11, Name: "Alice Durand", Email: "alice@example.org",
			JobTitle: "CTO", Conscent: true,
		},
		Changes: []lead.FieldChange{{Field: "name", OldValue: "Alice", NewValue: "Alice Durand"}},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyUpdateRollsBackOnFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`update leads`).
		WithArgs("changed", int64(5)).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	summary := "changed"
	err := store.ApplyUpdate(context.Background(), lead.UpdatePlan{
		LeadID:         5,
		ProblemSummary: &summary,
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyUpdateMissingLead(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`update leads`).
		WithArgs(int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.ApplyUpdate(context.Background(), lead.UpdatePlan{LeadID: 404})
	assert.ErrorIs(t, err, lead.ErrNotFound)
}

func TestUpdateClassificationKeepsHistoryAtomic(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`select classification, emergency_level, abstract`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"classification", "emergency_level", "abstract"}).
			AddRow("support", 1, "old"))
	mock.ExpectExec(`insert into email_classification_history`).
		WithArgs(int64(7), "support", 1, "old").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`update classified_emails`).
		WithArgs("urgent", 3, "new", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`select id, account_id, message_id`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "account_id", "message_id", "sender", "subject", "received_at",
			"classification", "emergency_level", "abstract", "created_at", "updated_at",
		}).AddRow(7, nil, nil, "client@example.org", "incident", nil, "urgent", 3, "new", now, now))

	updated, err := store.UpdateClassification(context.Background(), 7, email.Classification{
		Label: "urgent", EmergencyLevel: 3, Abstract: "new",
	})
	require.NoError(t, err)
	assert.Equal(t, "urgent", updated.Classification.Label)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateClassificationMissingEmail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`select classification, emergency_level, abstract`).
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := store.UpdateClassification(context.Background(), 404, email.Classification{Label: "x"})
	assert.ErrorIs(t, err, email.ErrNotFound)
}

func TestCreateNoteMissingLead(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`insert into notes`).
		WithArgs(int64(404), "ping", "alice", int64(1)).
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation, ConstraintName: "notes_lead_id_fkey"})

	_, err := store.CreateNote(context.Background(), note.Note{
		LeadID: 404, Content: "ping", Author: "alice", Reason: note.Reason{ID: 1},
	})
	assert.ErrorIs(t, err, note.ErrLeadNotFound)
}

func TestCreateNoteMissingReason(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`insert into notes`).
		WithArgs(int64(7), "ping", "alice", int64(99)).
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation, ConstraintName: "notes_reason_id_fkey"})

	_, err := store.CreateNote(context.Background(), note.Note{
		LeadID: 7, Content: "ping", Author: "alice", Reason: note.Reason{ID: 99},
	})
	assert.ErrorIs(t, err, note.ErrReasonNotFound)
}

// tableColumns extracts the body of one create table statement from the
// initial migration.
func tableColumns(t *testing.T, table string) string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "..", "..", "migrations", "0001_init.up.sql"))
	require.NoError(t, err)
	re := regexp.MustCompile(`(?s)create table if not exists ` + table + ` \((.*?)\n\);`)
	m := re.FindSubmatch(raw)
	require.NotNil(t, m, "table %s not found in migration", table)
	return string(m[1])
}

func TestSchemaCarriesContactCompanyTimestamps(t *testing.T) {
	// UpsertContact/UpsertCompany and ApplyUpdate touch updated_at on
	// both tables; the schema has to define it.
	for _, table := range []string{"contacts", "companies"} {
		cols := tableColumns(t, table)
		assert.Contains(t, cols, "updated_at", "table %s", table)
		assert.Contains(t, cols, "created_at", "table %s", table)
	}
}
