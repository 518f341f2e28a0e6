package service

import (
	"ai_tutor_backend/internal/config"
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/repository"
	"ai_tutor_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T) (*AuthService, *repository.UserRepository) {
	t.Helper()
	db := newTestDB(t)
	userRepo := repository.NewUserRepository(db)
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret-for-signing-tokens"
	cfg.JWT.ExpireTime = time.Hour
	return NewAuthService(userRepo, cfg), userRepo
}

func TestRegisterAssignsTeacherCode(t *testing.T) {
	svc, _ := newAuthService(t)

	first := &model.User{Name: "王老师", Email: "wang@example.com", Password: "password123", Role: model.Teacher}
	require.NoError(t, svc.Register(first))
	assert.Equal(t, "TEACH001", first.TeacherCode)

	second := &model.User{Name: "李老师", Email: "li@example.com", Password: "password123", Role: model.Teacher}
	require.NoError(t, svc.Register(second))
	assert.Equal(t, "TEACH002", second.TeacherCode)
}

func TestRegisterStudentHasNoTeacherCode(t *testing.T) {
	svc, _ := newAuthService(t)

	student := &model.User{Name: "小明", Email: "ming@example.com", Password: "password123", Role: model.Student}
	require.NoError(t, svc.Register(student))
	assert.Empty(t, student.TeacherCode)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newAuthService(t)

	user := &model.User{Name: "小明", Email: "ming@example.com", Password: "password123", Role: model.Student}
	require.NoError(t, svc.Register(user))

	dup := &model.User{Name: "小红", Email: "ming@example.com", Password: "password456", Role: model.Student}
	assert.ErrorIs(t, svc.Register(dup), util.ErrEmailRegistered)
}

func TestLoginRoundTrip(t *testing.T) {
	svc, _ := newAuthService(t)

	user := &model.User{Name: "小明", Email: "ming@example.com", Password: "password123", Role: model.Student}
	require.NoError(t, svc.Register(user))

	token, got, err := svc.Login("ming@example.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, got.ID)

	_, _, err = svc.Login("ming@example.com", "wrong-password")
	assert.ErrorIs(t, err, util.ErrUserNotFound)

	_, _, err = svc.Login("nobody@example.com", "password123")
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}

func TestLoginDisabledUser(t *testing.T) {
	svc, userRepo := newAuthService(t)

	user := &model.User{Name: "小明", Email: "ming@example.com", Password: "password123", Role: model.Student}
	require.NoError(t, svc.Register(user))
	require.NoError(t, userRepo.SetDisabled(user.ID, true))

	_, _, err := svc.Login("ming@example.com", "password123")
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
}
