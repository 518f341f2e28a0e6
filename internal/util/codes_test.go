package util

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func never(string) (bool, error)  { return false, nil }
func always(string) (bool, error) { return true, nil }

func TestRandomCourseCodeFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z0-9]{7}$`)
	for i := 0; i < 100; i++ {
		assert.Regexp(t, pattern, RandomCourseCode())
	}
}

func TestGenerateUniqueCourseCodeGivesUp(t *testing.T) {
	_, err := GenerateUniqueCourseCode(always)
	assert.Error(t, err)
}

func TestFormatTeacherCode(t *testing.T) {
	assert.Equal(t, "TEACH001", FormatTeacherCode(1))
	assert.Equal(t, "TEACH042", FormatTeacherCode(42))
	assert.Equal(t, "TEACH1000", FormatTeacherCode(1000)) // 超过999后自然变长
}

func TestGenerateTeacherCodeSkipsTaken(t *testing.T) {
	taken := map[string]bool{"TEACH001": true, "TEACH002": true}
	code, err := GenerateTeacherCode(1, func(c string) (bool, error) {
		return taken[c], nil
	})
	require.NoError(t, err)
	assert.Equal(t, "TEACH003", code)
}

func TestGenerateLessonCode(t *testing.T) {
	code, err := GenerateLessonCode(7, never)
	require.NoError(t, err)
	assert.Equal(t, "LESSON007", code)
}

func TestGenerateLessonCodeSkipsCollisions(t *testing.T) {
	taken := map[string]bool{"LESSON001": true, "LESSON002": true}
	code, err := GenerateLessonCode(1, func(c string) (bool, error) {
		return taken[c], nil
	})
	require.NoError(t, err)
	assert.Equal(t, "LESSON003", code)
}

func TestGenerateLessonCodeTimestampFallback(t *testing.T) {
	calls := 0
	code, err := GenerateLessonCode(1, func(c string) (bool, error) {
		calls++
		// 前10次顺序尝试全部命中，触发时间戳退化
		return calls <= 10, nil
	})
	require.NoError(t, err)
	assert.Regexp(t, `^LESSON\d{6}$`, code)
}

func TestGenerateLessonCodeRandomSuffixFallback(t *testing.T) {
	code, err := GenerateLessonCode(1, always)
	require.NoError(t, err)
	assert.Regexp(t, `^LESSON\d{6}\d{2}$`, code)
}
