package service

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/pkg/database"
	"ai_tutor_backend/pkg/logger"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB 每个测试一个独立的内存库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	logger.Log = zap.NewNop()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedTeacher(t *testing.T, db *gorm.DB, code string) *model.User {
	t.Helper()
	teacher := &model.User{
		Name:        "王老师",
		Email:       fmt.Sprintf("%s@example.com", strings.ToLower(code)),
		Password:    "hashed",
		Role:        model.Teacher,
		TeacherCode: code,
	}
	require.NoError(t, db.Create(teacher).Error)
	return teacher
}

func seedCourse(t *testing.T, db *gorm.DB, teacherID uint, code, name string) *model.Course {
	t.Helper()
	course := &model.Course{
		Code:      code,
		Name:      name,
		TeacherID: teacherID,
	}
	require.NoError(t, db.Create(course).Error)
	return course
}
