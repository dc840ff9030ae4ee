package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mold_monitor/internal/config"
	"mold_monitor/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultTokenTTL = time.Hour
	tokenIssuer     = "mold-monitor"
)

var (
	ErrBadCredentials = errors.New("unknown operator or wrong password")
	ErrInvalidToken   = errors.New("invalid token")
	ErrNoSigningKey   = errors.New("auth: signing key is not configured")
	errBlankUsername  = errors.New("username is empty")
	errBlankPassword  = errors.New("password is empty")
)

// Claims are the JWT claims of an operator token.
type Claims struct {
	jwt.RegisteredClaims
	OperatorID int `json:"operator_id"`
}

// AuthService manages operator accounts and the HS256 bearer tokens that
// guard session control and the live feed.
type AuthService struct {
	operators  repository.OperatorRepo
	signingKey []byte
	tokenTTL   time.Duration
}

func NewAuthService(repo repository.OperatorRepo, cfg config.AuthConfig) *AuthService {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &AuthService{operators: repo, signingKey: []byte(cfg.SigningKey), tokenTTL: ttl}
}

// SignUp stores a new operator with a bcrypt hash of password. A taken name
// yields repository.ErrUsernameTaken.
func (s *AuthService) SignUp(username, password string) (int, error) {
	if strings.TrimSpace(username) == "" {
		return 0, errBlankUsername
	}
	if strings.TrimSpace(password) == "" {
		return 0, errBlankPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	return s.operators.Create(username, string(hash))
}

// GenerateToken checks the credentials and issues a token. Unknown names and
// wrong passwords both yield ErrBadCredentials.
func (s *AuthService) GenerateToken(username, password string) (string, error) {
	op, err := s.operators.GetByUsername(username)
	if err != nil {
		return "", err
	}
	if op == nil || bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)) != nil {
		return "", ErrBadCredentials
	}
	return s.issueToken(op.ID)
}

func (s *AuthService) issueToken(operatorID int) (string, error) {
	if len(s.signingKey) == 0 {
		return "", ErrNoSigningKey
	}
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.Itoa(operatorID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
		OperatorID: operatorID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

func (s *AuthService) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	return s.signingKey, nil
}

// ParseToken verifies a token issued by GenerateToken and returns the operator id.
func (s *AuthService) ParseToken(accessToken string) (int, error) {
	if len(s.signingKey) == 0 {
		return 0, ErrNoSigningKey
	}
	var claims Claims
	token, err := jwt.ParseWithClaims(accessToken, &claims, s.keyFunc,
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return 0, err
	}
	if !token.Valid || claims.OperatorID <= 0 {
		return 0, ErrInvalidToken
	}
	return claims.OperatorID, nil
}
