package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AnshRaj112/lovedoctor-backend/internal/models"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	userCols  = []string{"id", "phone", "email", "country_code", "name", "age_range", "gender", "current_situation", "situations", "chat_user_id", "chat_member_id", "verifier_id", "last_login_at", "created_at", "updated_at"}
	coachCols = []string{"id", "phone", "email", "country_code", "name", "title", "specialty", "bio", "tags", "image_url", "chat_uid", "chat_member_id", "is_active", "verifier_id", "last_login_at", "created_at", "updated_at"}
)

func newRepoWithMock(t *testing.T) (*AccountRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAccountRepository(sqlx.NewDb(db, "postgres")), mock
}

func userRow(id, phone, email, name string) *sqlmock.Rows {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return sqlmock.NewRows(userCols).
		AddRow(id, phone, email, "+91", name, "", "", "", "{}", "", "", "", now, now, now)
}

func coachRow(id int64, phone, name, chatUID string) *sqlmock.Rows {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return sqlmock.NewRows(coachCols).
		AddRow(id, phone, "", "+91", name, models.DefaultCoachTitle, "", "", "{dating,trust}", "", chatUID, "", true, "", now, now, now)
}

func TestFindUserBy_Phone(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)SELECT .+ FROM users WHERE phone = \$1 LIMIT 1`).
		WithArgs("9999999999").
		WillReturnRows(userRow("u-1", "9999999999", "", "Alice"))

	got, err := repo.FindUserBy(context.Background(), models.LookupPhone, "9999999999")
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.ID)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, "+91", got.CountryCode)
	assert.Empty(t, got.Situations)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindUserBy_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)SELECT .+ FROM users WHERE email = \$1`).
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err := repo.FindUserBy(context.Background(), models.LookupEmail, "a@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindUserBy_RejectsUnknownField(t *testing.T) {
	repo, _ := newRepoWithMock(t)

	_, err := repo.FindUserBy(context.Background(), models.LookupField("name; DROP TABLE users"), "x")
	assert.Error(t, err)
}

func TestCreateUser_UniqueViolationIsConflict(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+users`).
		WithArgs("u-2", "9999999999", "", "+91", "", "").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_phone_key"})

	_, err := repo.CreateUser(context.Background(), &models.User{ID: "u-2", Phone: "9999999999", CountryCode: "+91"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "users_phone_key")
}

func TestCreateUser_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+users`).
		WillReturnError(errors.New("db down"))

	_, err := repo.CreateUser(context.Background(), &models.User{ID: "u-2", Phone: "1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "db error: db down")
}

func TestTouchUser_PassesBackfill(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)UPDATE users SET\s+phone = COALESCE\(NULLIF\(\$2, ''\), phone\).+last_login_at = NOW\(\).+WHERE id = \$1`).
		WithArgs("u-1", "", "alice@example.com", "", "", "otpless-1").
		WillReturnRows(userRow("u-1", "9999999999", "alice@example.com", "Alice"))

	got, err := repo.TouchUser(context.Background(), "u-1", models.Backfill{Email: "alice@example.com", VerifierID: "otpless-1"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, "alice@example.com", got.Email)
}

func TestGetUser_InvalidUUIDIsNotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)SELECT .+ FROM users WHERE id = \$1`).
		WithArgs("not-a-uuid").
		WillReturnError(&pq.Error{Code: "22P02"})

	_, err := repo.GetUser(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveIntake_AppendsSituation(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)UPDATE users SET.+current_situation = \$5.+situations = array_append\(situations, \$5::text\)`).
		WithArgs("u-1", "Alice", "25-34", "FEMALE", "It's complicated").
		WillReturnRows(userRow("u-1", "9999999999", "", "Alice"))

	_, err := repo.SaveIntake(context.Background(), "u-1", models.Intake{
		Name: "Alice", AgeRange: models.AgeRange25to34, Gender: models.GenderFemale, Situation: "It's complicated",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetUserChatIdentity(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)UPDATE users SET\s+chat_user_id = COALESCE\(chat_user_id, \$2\)`).
		WithArgs("u-1", "u-1", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)UPDATE users SET\s+chat_user_id`).
		WithArgs("missing", "missing", "").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.SetUserChatIdentity(context.Background(), "u-1", "u-1", ""))
	assert.ErrorIs(t, repo.SetUserChatIdentity(context.Background(), "missing", "missing", ""), ErrNotFound)
}

func TestCreateCoach(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+coaches`).
		WithArgs("9999999876", "", "+91", "Coach 9876", models.DefaultCoachTitle, "coach-01abc", "").
		WillReturnRows(coachRow(7, "9999999876", "Coach 9876", "coach-01abc"))

	got, err := repo.CreateCoach(context.Background(), &models.Coach{
		Phone: "9999999876", CountryCode: "+91", Name: "Coach 9876", Title: models.DefaultCoachTitle, ChatUID: "coach-01abc",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, "coach-01abc", got.ChatUID)
	assert.Equal(t, []string{"dating", "trust"}, []string(got.Tags))
	assert.True(t, got.IsActive)
}

func TestTouchCoach_VerifierIDReplacesStored(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)UPDATE coaches SET.+name = COALESCE\(NULLIF\(\$5, ''\), name\).+verifier_id = COALESCE\(NULLIF\(\$6, ''\), verifier_id\).+WHERE id = \$1`).
		WithArgs(int64(7), "9999999876", "", "", "", "otpless-new").
		WillReturnRows(coachRow(7, "9999999876", "Coach 9876", "coach-01abc"))

	got, err := repo.TouchCoach(context.Background(), 7, models.Backfill{Phone: "9999999876", VerifierID: "otpless-new"})
	require.NoError(t, err)
	assert.Equal(t, "coach-01abc", got.ChatUID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCoach_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)SELECT .+ FROM coaches WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(coachCols))

	_, err := repo.GetCoach(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateCoachProfile_OptionalFields(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	bio := ""
	mock.ExpectQuery(`(?s)UPDATE coaches SET.+bio = COALESCE\(\$5, bio\).+tags = COALESCE\(\$7::text\[\], tags\)`).
		WithArgs(int64(7), "", "Senior Coach", "", "", nil, nil).
		WillReturnRows(coachRow(7, "9999999876", "Coach 9876", "coach-01abc"))

	got, err := repo.UpdateCoachProfile(context.Background(), 7, models.CoachProfilePatch{Title: "Senior Coach", Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
