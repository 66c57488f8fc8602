package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Gopher0727/Rally/internal/models"
	"github.com/Gopher0727/Rally/internal/repositories"
	"github.com/Gopher0727/Rally/internal/utils"
	"github.com/Gopher0727/Rally/middleware/jwt"
	"github.com/Gopher0727/Rally/utils/snowflake"
)

const (
	revokedKeyPrefix   = "rally:revoked:" // 已登出令牌的 jti，TTL 与令牌剩余有效期一致
	confirmTokenLength = 32
	nameSuffixLength   = 4
	maxNameAttempts    = 5
)

type AuthStatus string

const (
	StatusAuthenticated        AuthStatus = "authenticated"
	StatusAwaitingConfirmation AuthStatus = "awaiting_confirmation"
)

// ConfirmationSender 投递邮箱确认令牌
type ConfirmationSender interface {
	SendConfirmation(ctx context.Context, email, token string) error
}

// LogConfirmationSender 只把确认令牌写进日志，开发环境使用
type LogConfirmationSender struct {
	Log *zap.Logger
}

func (s LogConfirmationSender) SendConfirmation(_ context.Context, email, token string) error {
	s.Log.Info("email confirmation pending", zap.String("email", email), zap.String("token", token))
	return nil
}

type SignupRequest struct {
	UserName string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResult struct {
	Status    AuthStatus      `json:"status"`
	Token     string          `json:"token,omitempty"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	User      *models.Profile `json:"user"`
}

type AuthService struct {
	accounts       *repositories.AccountRepository
	profiles       *repositories.ProfileRepository
	tokens         *jwt.TokenManager
	redis          redis.Cmdable
	sender         ConfirmationSender
	ids            *snowflake.Generator
	requireConfirm bool
	log            *zap.Logger

	// 补建资料时的用户名后缀
	nameSuffix func() (string, error)
}

// NewAuthService redis 为 nil 时登出不会吊销令牌，只依赖过期
func NewAuthService(
	accounts *repositories.AccountRepository,
	profiles *repositories.ProfileRepository,
	tokens *jwt.TokenManager,
	rdb redis.Cmdable,
	sender ConfirmationSender,
	ids *snowflake.Generator,
	requireConfirm bool,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		accounts:       accounts,
		profiles:       profiles,
		tokens:         tokens,
		redis:          rdb,
		sender:         sender,
		ids:            ids,
		requireConfirm: requireConfirm,
		log:            log,
		nameSuffix:     randomSuffix,
	}
}

func randomSuffix() (string, error) {
	suffix, err := utils.RandomString(nameSuffixLength)
	return strings.ToLower(suffix), err
}

func (s *AuthService) Signup(ctx context.Context, req *SignupRequest) (*AuthResult, error) {
	username := strings.TrimSpace(req.UserName)
	email := utils.NormalizeEmail(req.Email)
	if !utils.ValidateUserName(username) {
		return nil, invalid("username", "must be 3-20 letters, digits or underscores")
	}
	if !utils.ValidateEmail(email) {
		return nil, invalid("email", "malformed address")
	}
	if !utils.ValidatePassword(req.Password) {
		return nil, invalid("password", "must be at least 6 characters")
	}

	taken, err := s.profiles.ExistsByUserName(ctx, username)
	if err != nil {
		return nil, readErr("signup", err)
	}
	if taken {
		return nil, ErrUsernameTaken
	}
	exists, err := s.accounts.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, readErr("signup", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	id, err := s.ids.NextID()
	if err != nil {
		return nil, writeErr("signup", err)
	}

	account := &models.Account{
		ID:             id,
		Email:          email,
		PasswordHash:   hash,
		EmailConfirmed: !s.requireConfirm,
	}
	if s.requireConfirm {
		if account.ConfirmToken, err = utils.RandomString(confirmTokenLength); err != nil {
			return nil, fmt.Errorf("confirm token: %w", err)
		}
	}
	profile := &models.Profile{ID: id, UserName: username}
	if err := s.accounts.CreateWithProfile(ctx, account, profile); err != nil {
		// 并发注册撞上唯一索引
		if again, cerr := s.accounts.ExistsByEmail(ctx, email); cerr == nil && again {
			return nil, ErrEmailTaken
		}
		if again, cerr := s.profiles.ExistsByUserName(ctx, username); cerr == nil && again {
			return nil, ErrUsernameTaken
		}
		return nil, writeErr("signup", err)
	}

	if s.requireConfirm {
		if err := s.sender.SendConfirmation(ctx, email, account.ConfirmToken); err != nil {
			s.log.Warn("send confirmation failed", zap.Int64("user_id", id), zap.Error(err))
		}
		return &AuthResult{Status: StatusAwaitingConfirmation, User: profile}, nil
	}
	return s.issue(account, profile)
}

func (s *AuthService) issue(account *models.Account, profile *models.Profile) (*AuthResult, error) {
	token, claims, err := s.tokens.GenerateToken(account.ID, profile.UserName, account.Email)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	exp := claims.ExpiresAt.Time
	return &AuthResult{Status: StatusAuthenticated, Token: token, ExpiresAt: &exp, User: profile}, nil
}

func (s *AuthService) ConfirmEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidConfirmToken
	}
	account, err := s.accounts.GetByConfirmToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidConfirmToken
		}
		return readErr("confirm email", err)
	}
	if err := s.accounts.MarkConfirmed(ctx, account.ID); err != nil {
		return writeErr("confirm email", err)
	}
	return nil
}

// Login 校验密码；账号缺少公开资料时按邮箱前缀补建
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResult, error) {
	email := utils.NormalizeEmail(req.Email)
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, readErr("login", err)
	}
	if !utils.CheckPassword(account.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}
	if !account.EmailConfirmed {
		return nil, ErrEmailNotConfirmed
	}

	profile, err := s.profiles.GetByID(ctx, account.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if profile, err = s.backfillProfile(ctx, account); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, readErr("login", err)
	}
	return s.issue(account, profile)
}

func (s *AuthService) backfillProfile(ctx context.Context, account *models.Account) (*models.Profile, error) {
	base := utils.UserNameFromEmail(account.Email)
	name := base
	for range maxNameAttempts {
		taken, err := s.profiles.ExistsByUserName(ctx, name)
		if err != nil {
			return nil, readErr("backfill profile", err)
		}
		if !taken {
			p := &models.Profile{ID: account.ID, UserName: name}
			if err := s.profiles.Create(ctx, p); err != nil {
				return nil, writeErr("backfill profile", err)
			}
			s.log.Info("profile backfilled", zap.Int64("user_id", account.ID), zap.String("username", name))
			return p, nil
		}
		suffix, err := s.nameSuffix()
		if err != nil {
			return nil, fmt.Errorf("backfill profile: %w", err)
		}
		name = suffixedName(base, suffix)
	}
	s.log.Error("profile backfill gave up", zap.Int64("user_id", account.ID), zap.String("base", base))
	return nil, ErrNameExhausted
}

// suffixedName 拼接随机后缀并保证不超过 20 个字符
func suffixedName(base, suffix string) string {
	const maxLen = 20
	if len(base)+1+len(suffix) > maxLen {
		base = base[:maxLen-1-len(suffix)]
	}
	return base + "_" + suffix
}

// Logout 把令牌 jti 记入 Redis 直到其过期
func (s *AuthService) Logout(ctx context.Context, claims *jwt.Claims) error {
	if s.redis == nil || claims.ID == "" {
		return nil
	}
	ttl := claims.TTL(time.Now())
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, revokedKeyPrefix+claims.ID, 1, ttl).Err(); err != nil {
		return writeErr("logout", err)
	}
	return nil
}

// IsRevoked Redis 不可用时视为未吊销
func (s *AuthService) IsRevoked(ctx context.Context, jti string) bool {
	if s.redis == nil || jti == "" {
		return false
	}
	n, err := s.redis.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		s.log.Warn("check token revocation failed", zap.Error(err))
		return false
	}
	return n > 0
}

// Refresh 换发新令牌，已吊销的令牌不可刷新
func (s *AuthService) Refresh(ctx context.Context, token string) (*AuthResult, error) {
	newToken, claims, err := s.tokens.RefreshToken(token)
	if err != nil {
		return nil, err
	}
	// 过期令牌的吊销记录已随 TTL 消失，只需检查仍有效的令牌
	old, _ := s.tokens.ParseToken(token)
	if old != nil && s.IsRevoked(ctx, old.ID) {
		return nil, jwt.ErrInvalidToken
	}
	uid, _ := claims.UID()
	profile, err := s.profiles.GetByID(ctx, uid)
	if err != nil {
		return nil, readErr("refresh", err)
	}
	exp := claims.ExpiresAt.Time
	return &AuthResult{Status: StatusAuthenticated, Token: newToken, ExpiresAt: &exp, User: profile}, nil
}

type Me struct {
	models.Profile
	Email          string `json:"email"`
	EmailConfirmed bool   `json:"email_confirmed"`
}

func (s *AuthService) Me(ctx context.Context, userID int64) (*Me, error) {
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return nil, readErr("me", err)
	}
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, readErr("me", err)
	}
	return &Me{Profile: *profile, Email: account.Email, EmailConfirmed: account.EmailConfirmed}, nil
}
