package util

import (
	"fmt"
	"math/rand"
	"time"
)

const courseCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const courseCodeLen = 7

// ExistsFunc 查询某个编码是否已被占用
type ExistsFunc func(code string) (bool, error)

// RandomCourseCode 生成7位 [A-Z0-9] 课程码（全局唯一性由调用方查重保证）
func RandomCourseCode() string {
	b := make([]byte, courseCodeLen)
	for i := range b {
		b[i] = courseCodeChars[rand.Intn(len(courseCodeChars))]
	}
	return string(b)
}

// GenerateUniqueCourseCode 生成未被占用的课程码，最多尝试10次
func GenerateUniqueCourseCode(exists ExistsFunc) (string, error) {
	for i := 0; i < 10; i++ {
		code := RandomCourseCode()
		taken, err := exists(code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate unique course code")
}

// FormatTeacherCode 教师码，格式 TEACH001
func FormatTeacherCode(seq int) string {
	return fmt.Sprintf("TEACH%03d", seq)
}

// GenerateTeacherCode 从给定序号起查找未被占用的教师码
func GenerateTeacherCode(startSeq int, exists ExistsFunc) (string, error) {
	for i := 0; i < 1000; i++ {
		code := FormatTeacherCode(startSeq + i)
		taken, err := exists(code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate unique teacher code")
}

// GenerateLessonCode 课时码，格式 LESSON007。
// 从 startSeq 起最多重试10次，仍冲突则退化为6位时间戳后缀，
// 再冲突则追加2位随机数。
func GenerateLessonCode(startSeq int, exists ExistsFunc) (string, error) {
	for i := 0; i < 10; i++ {
		code := fmt.Sprintf("LESSON%03d", startSeq+i)
		taken, err := exists(code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}

	code := fmt.Sprintf("LESSON%06d", time.Now().Unix()%1000000)
	taken, err := exists(code)
	if err != nil {
		return "", err
	}
	if !taken {
		return code, nil
	}

	return fmt.Sprintf("%s%02d", code, rand.Intn(100)), nil
}
