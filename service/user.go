package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"studyhub/model"
)

type UserService struct {
	db     *gorm.DB
	tokens *TokenService
}

func NewUserService(db *gorm.DB, tokens *TokenService) *UserService {
	return &UserService{db: db, tokens: tokens}
}

// SyncInput 来自外部身份提供方（Clerk）的用户资料
type SyncInput struct {
	ClerkID        string
	Email          string
	FirstName      string
	LastName       string
	ProfilePicture string
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Session 登录或同步成功后返回给客户端的用户和令牌
type Session struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// Sync 按 clerkId 或 email 查找用户，存在则更新，否则创建
func (s *UserService) Sync(ctx context.Context, in SyncInput) (*Session, error) {
	if strings.TrimSpace(in.ClerkID) == "" || strings.TrimSpace(in.Email) == "" {
		return nil, invalid("clerkId", "Clerk ID and email are required")
	}

	var user model.User
	err := s.db.WithContext(ctx).
		Where("clerk_id = ? OR email = ?", in.ClerkID, in.Email).
		First(&user).Error
	switch {
	case err == nil:
		clerkID := in.ClerkID
		user.ClerkID = &clerkID
		user.Email = in.Email
		if in.FirstName != "" {
			user.FirstName = in.FirstName
		}
		if in.LastName != "" {
			user.LastName = in.LastName
		}
		if in.ProfilePicture != "" {
			user.ProfilePicture = in.ProfilePicture
		}
		if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		clerkID := in.ClerkID
		user = model.User{
			ClerkID:        &clerkID,
			Email:          in.Email,
			FirstName:      in.FirstName,
			LastName:       in.LastName,
			ProfilePicture: in.ProfilePicture,
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
	default:
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	return s.session(&user)
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	// 唯一性检查
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", in.Email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check user existence: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("user %s already exists: %w", in.Email, ErrConflict)
	}

	// 密码加密
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Email:     in.Email,
		Password:  string(hashedPassword),
		FirstName: in.FirstName,
		LastName:  in.LastName,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("invalid credentials: %w", ErrUnauthorized)
		}
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	if user.Password == "" {
		return nil, fmt.Errorf("invalid credentials: %w", ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", ErrUnauthorized)
	}
	return s.session(&user)
}

func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user", id)
		}
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return &user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id, firstName, lastName string) (*model.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"first_name": firstName,
		"last_name":  lastName,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	user.FirstName = firstName
	user.LastName = lastName
	return user, nil
}

// Refresh 为仍然有效的用户签发新令牌
func (s *UserService) Refresh(ctx context.Context, id string) (*Session, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.session(user)
}

func (s *UserService) session(user *model.User) (*Session, error) {
	clerkID := ""
	if user.ClerkID != nil {
		clerkID = *user.ClerkID
	}
	td, err := s.tokens.CreateToken(user.ID, clerkID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &Session{User: user, Token: td.AccessToken}, nil
}
