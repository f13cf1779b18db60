package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/AnshRaj112/lovedoctor-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeUploader struct {
	publicID string
	body     string
	err      error
}

func (u *fakeUploader) UploadImage(ctx context.Context, file io.Reader, publicID string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	b, _ := io.ReadAll(file)
	u.body, u.publicID = string(b), publicID
	return "https://img.example.com/" + publicID + ".jpg", nil
}

func coachClaims(id string) *SessionClaims {
	c := &SessionClaims{Role: models.RoleCoach}
	c.Subject = id
	return c
}

func TestProfileGet_MissingCoachIsEmpty(t *testing.T) {
	s := NewCoachProfileService(newMemStore(), nil, zap.NewNop())

	p, err := s.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, &models.CoachProfile{ID: 42, Tags: []string{}}, p)

	_, err = s.Get(context.Background(), 0)
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestProfileGet_StoreFailure(t *testing.T) {
	store := newMemStore()
	store.failGet = errors.New("db down")
	s := NewCoachProfileService(store, nil, zap.NewNop())

	_, err := s.Get(context.Background(), 1)
	assert.Equal(t, KindPersistence, KindOf(err))
}

func TestProfileUpdate(t *testing.T) {
	store := newMemStore()
	store.coaches[5] = &models.Coach{ID: 5, Name: "Old", Title: "Relationship Coach", Bio: "old bio"}
	s := NewCoachProfileService(store, nil, zap.NewNop())
	ctx := context.Background()

	empty := ""
	tags := []string{"Trust", " trust ", "", "Breakups"}
	p, err := s.Update(ctx, coachClaims("5"), 5, models.CoachProfilePatch{Name: "  ", Specialty: "Breakups", Bio: &empty, Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, "Old", p.Name)
	assert.Equal(t, "Breakups", p.Specialty)
	assert.Equal(t, "", p.Bio)
	assert.Equal(t, []string{"Trust", "Breakups"}, p.Tags)
}

func TestProfileUpdate_Authorization(t *testing.T) {
	store := newMemStore()
	store.coaches[5] = &models.Coach{ID: 5, Name: "Old"}
	s := NewCoachProfileService(store, nil, zap.NewNop())
	ctx := context.Background()

	_, err := s.Update(ctx, nil, 5, models.CoachProfilePatch{Name: "x"})
	assert.Equal(t, KindUnauthorized, KindOf(err))

	_, err = s.Update(ctx, coachClaims("6"), 5, models.CoachProfilePatch{Name: "x"})
	assert.Equal(t, KindForbidden, KindOf(err))

	user := &SessionClaims{Role: models.RoleUser}
	user.Subject = "5"
	_, err = s.Update(ctx, user, 5, models.CoachProfilePatch{Name: "x"})
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = s.Update(ctx, coachClaims("9"), 9, models.CoachProfilePatch{Name: "x"})
	assert.Equal(t, KindNotFound, KindOf(err))

	assert.Equal(t, "Old", store.coaches[5].Name)
}

func TestProfileUploadImage(t *testing.T) {
	store := newMemStore()
	store.coaches[5] = &models.Coach{ID: 5, Name: "Old"}
	up := &fakeUploader{}
	s := NewCoachProfileService(store, up, zap.NewNop())

	p, err := s.UploadImage(context.Background(), coachClaims("5"), 5, strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "coach-5", up.publicID)
	assert.Equal(t, "jpeg-bytes", up.body)
	assert.Equal(t, "https://img.example.com/coach-5.jpg", p.ImageURL)

	up.err = errors.New("cloudinary down")
	_, err = s.UploadImage(context.Background(), coachClaims("5"), 5, strings.NewReader("x"))
	assert.Equal(t, KindUpstream, KindOf(err))

	noUploads := NewCoachProfileService(store, nil, zap.NewNop())
	_, err = noUploads.UploadImage(context.Background(), coachClaims("5"), 5, strings.NewReader("x"))
	assert.Equal(t, KindUpstream, KindOf(err))
}

func TestAccountServiceCurrent(t *testing.T) {
	store := newMemStore()
	store.users["u1"] = &models.User{ID: "u1", Name: "Ann"}
	store.coaches[3] = &models.Coach{ID: 3, Name: "Priya"}
	s := NewAccountService(store)
	ctx := context.Background()

	user := &SessionClaims{Role: models.RoleUser}
	user.Subject = "u1"
	acct, err := s.Current(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "Ann", acct.DisplayName())

	acct, err = s.Current(ctx, coachClaims("3"))
	require.NoError(t, err)
	assert.Equal(t, models.RoleCoach, acct.Role)

	_, err = s.Current(ctx, coachClaims("4"))
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = s.Current(ctx, coachClaims("abc"))
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = s.Current(ctx, nil)
	assert.Equal(t, KindUnauthorized, KindOf(err))
}
