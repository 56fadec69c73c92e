package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	secretSetting   = "jwt_secret"
	secretLen       = 32
	defaultTokenTTL = 24 * time.Hour
)

// ErrBadPassphrase is returned when a token is requested with the wrong passphrase
var ErrBadPassphrase = errors.New("invalid passphrase")

// Auth issues and checks spectator tokens. A token lets its holder watch one battle.
type Auth struct {
	jwtSecret    []byte
	passwordHash []byte
	ttl          time.Duration
}

// NewAuth creates the token issuer. An empty secret is loaded from, or
// generated into, the journal's settings so tokens survive restarts.
func NewAuth(db *DB, secret, passwordHash string, ttl time.Duration, log zerolog.Logger) *Auth {
	key := []byte(secret)
	if secret == "" {
		key = loadOrCreateSecret(db, log)
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	a := &Auth{jwtSecret: key, ttl: ttl}
	if passwordHash != "" {
		a.passwordHash = []byte(passwordHash)
	}
	return a
}

// loadOrCreateSecret loads the JWT secret from the database, or generates
// and persists a new one if none exists.
func loadOrCreateSecret(db *DB, log zerolog.Logger) []byte {
	if db != nil {
		if h := db.GetSetting(secretSetting); h != "" {
			if b, err := hex.DecodeString(h); err == nil && len(b) == secretLen {
				return b
			}
		}
	}
	secret := make([]byte, secretLen)
	if _, err := rand.Read(secret); err != nil {
		panic("failed to generate JWT secret: " + err.Error())
	}
	if db != nil {
		if err := db.SetSetting(secretSetting, hex.EncodeToString(secret)); err != nil {
			log.Warn().Err(err).Msg("could not persist JWT secret")
		}
	}
	return secret
}

// HashPassphrase produces a value for spectate.passwordHash
func HashPassphrase(passphrase string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// IssueToken returns a token for watching battleID
func (a *Auth) IssueToken(battleID, passphrase string) (string, error) {
	if a.passwordHash != nil {
		if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(passphrase)); err != nil {
			return "", ErrBadPassphrase
		}
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"bid": battleID,
		"exp": now.Add(a.ttl).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// ValidateToken checks a token and returns the battle it grants access to
func (a *Auth) ValidateToken(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	battleID, ok := claims["bid"].(string)
	if !ok || battleID == "" {
		return "", fmt.Errorf("invalid token claims")
	}
	return battleID, nil
}
