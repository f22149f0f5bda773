package service

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v4"
	uuid "github.com/google/uuid"
)

// TokenDetails ...
type TokenDetails struct {
	AccessToken string
	AccessUUID  string
	AtExpires   int64
}

// AccessDetails ...
type AccessDetails struct {
	AccessUUID string
	UserID     string
	ClerkID    string
	Email      string
}

// TokenService 使用 HS256 签发和校验访问令牌
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// CreateToken ...
func (t *TokenService) CreateToken(userID, clerkID, email string) (*TokenDetails, error) {
	td := &TokenDetails{}
	td.AtExpires = t.now().Add(t.ttl).Unix()
	td.AccessUUID = uuid.New().String()

	var err error
	//Creating Access Token
	atClaims := jwt.MapClaims{}
	atClaims["authorized"] = true
	atClaims["access_uuid"] = td.AccessUUID
	atClaims["id"] = userID
	atClaims["clerkId"] = clerkID
	atClaims["email"] = email
	atClaims["exp"] = td.AtExpires

	at := jwt.NewWithClaims(jwt.SigningMethodHS256, atClaims)
	td.AccessToken, err = at.SignedString(t.secret)
	if err != nil {
		return nil, err
	}
	return td, nil
}

// ExtractToken 只接受 "Bearer <token>" 形式的 Authorization 头
func (t *TokenService) ExtractToken(r *http.Request) string {
	bearToken := r.Header.Get("Authorization")
	strArr := strings.Split(bearToken, " ")
	if len(strArr) == 2 && strings.EqualFold(strArr[0], "Bearer") {
		return strArr[1]
	}
	return ""
}

// VerifyToken ...
func (t *TokenService) VerifyToken(tokenString string) (*jwt.Token, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("missing token: %w", ErrUnauthorized)
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		//Make sure that the token method conform to "SigningMethodHMAC"
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrUnauthorized)
	}
	return token, nil
}

// ExtractTokenMetadata ...
func (t *TokenService) ExtractTokenMetadata(tokenString string) (*AccessDetails, error) {
	token, err := t.VerifyToken(tokenString)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", ErrUnauthorized)
	}
	userID, ok := claims["id"].(string)
	if !ok || userID == "" {
		return nil, fmt.Errorf("token has no user id: %w", ErrUnauthorized)
	}
	accessUUID, _ := claims["access_uuid"].(string)
	clerkID, _ := claims["clerkId"].(string)
	email, _ := claims["email"].(string)
	return &AccessDetails{
		AccessUUID: accessUUID,
		UserID:     userID,
		ClerkID:    clerkID,
		Email:      email,
	}, nil
}
