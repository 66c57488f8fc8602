package utils

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

const (
	GroupCodeLength   = 6
	groupCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var (
	userNamePattern  = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
	groupCodePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)
	timePattern      = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

	// 与 gin binding 标签同一套规则
	validate = validator.New()
)

// HashPassword 使用 bcrypt 对密码进行哈希
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// CheckPassword 验证密码
func CheckPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// ValidateUserName 3-20 个字符，字母数字下划线
func ValidateUserName(username string) bool {
	return userNamePattern.MatchString(username)
}

// ValidatePassword 至少 6 个字符
func ValidatePassword(password string) bool {
	return len(password) >= 6
}

func ValidateEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

// NormalizeEmail 去空白并转小写
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeGroupCode 用户输入的邀请码统一为大写
func NormalizeGroupCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func ValidGroupCode(code string) bool {
	return groupCodePattern.MatchString(code)
}

// GenerateGroupCode 6 位大写字母数字，来自 crypto/rand
func GenerateGroupCode() (string, error) {
	return RandomString(GroupCodeLength)
}

// RandomString 从大写字母数字表中均匀取 n 个字符
func RandomString(n int) (string, error) {
	limit := big.NewInt(int64(len(groupCodeAlphabet)))
	var b strings.Builder
	b.Grow(n)
	for range n {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(groupCodeAlphabet[idx.Int64()])
	}
	return b.String(), nil
}

// ValidDate 空值或真实存在的 YYYY-MM-DD 日期
func ValidDate(s string) bool {
	if s == "" {
		return true
	}
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

// ValidClock 空值或 HH:MM
func ValidClock(s string) bool {
	return s == "" || timePattern.MatchString(s)
}

// UserNameFromEmail 取邮箱 @ 前部分作为默认用户名
func UserNameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	var b strings.Builder
	for _, r := range local {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	name := b.String()
	for len(name) < 3 {
		name += "_"
	}
	if len(name) > 20 {
		name = name[:20]
	}
	return name
}
