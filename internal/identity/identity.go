// Package identity resolves the requester id that owns persisted sessions.
package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bhandras/workout/pkg/logger"
)

// Source says where an owner id came from.
type Source string

const (
	SourceConfig Source = "config"
	SourceToken  Source = "token"
	SourceLocal  Source = "local"
)

// ErrNoSubject is returned for tokens that carry neither a user nor a
// subject claim.
var ErrNoSubject = errors.New("token has no user or subject claim")

// TokenClaims is the access token payload.
type TokenClaims struct {
	UserID string `json:"user"`
	jwt.RegisteredClaims
}

// Resolve picks the owner id: an explicit id wins, then the access token's
// user, then a locally generated id persisted at localPath.
func Resolve(explicit, accessToken, localPath string) (string, Source, error) {
	if id := strings.TrimSpace(explicit); id != "" {
		return id, SourceConfig, nil
	}
	if strings.TrimSpace(accessToken) != "" {
		id, err := OwnerFromToken(accessToken)
		if err == nil {
			return id, SourceToken, nil
		}
		logger.Warnf("identity: ignoring access token: %v", err)
	}
	id, err := LoadOrCreateLocalID(localPath)
	if err != nil {
		return "", "", err
	}
	return id, SourceLocal, nil
}

// OwnerFromToken extracts the owner from a JWT without verifying its
// signature. The token is only used to label local checkpoints; the server
// that issued it is the one that verifies it.
func OwnerFromToken(token string) (string, error) {
	var claims TokenClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(strings.TrimSpace(token), &claims); err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.UserID != "" {
		return claims.UserID, nil
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	return "", ErrNoSubject
}

// LoadOrCreateLocalID loads a stable id from path, generating and saving a
// new one when the file is missing or does not hold a UUID.
func LoadOrCreateLocalID(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if _, perr := uuid.Parse(id); perr == nil {
			return id, nil
		}
		logger.Warnf("identity: replacing malformed id in %s", path)
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read owner id: %w", err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(id), 0600); err != nil {
		return "", fmt.Errorf("failed to save owner id: %w", err)
	}
	return id, nil
}
