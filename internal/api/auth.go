package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Token errors.
var (
	errTokenMalformed = errors.New("malformed token")
	errTokenExpired   = errors.New("token expired")
	errTokenSignature = errors.New("bad token signature")
)

// IssueToken mints a bearer token for userID, valid for ttl. Format:
// "<user_id>:<expiry_unix>:<hex hmac-sha256>". The user id may itself
// contain colons; verification splits from the right.
func IssueToken(secret []byte, userID string, ttl time.Duration) string {
	expiry := time.Now().Add(ttl).Unix()
	return fmt.Sprintf("%s:%d:%s", userID, expiry, sign(secret, userID, expiry))
}

// verifyToken checks the token signature and expiry and returns the user id.
func verifyToken(secret []byte, token string) (string, error) {
	last := strings.LastIndexByte(token, ':')
	if last < 0 {
		return "", errTokenMalformed
	}
	sig := token[last+1:]
	rest := token[:last]

	mid := strings.LastIndexByte(rest, ':')
	if mid < 0 {
		return "", errTokenMalformed
	}
	userID := rest[:mid]
	expiry, err := strconv.ParseInt(rest[mid+1:], 10, 64)
	if err != nil || userID == "" {
		return "", errTokenMalformed
	}

	want := sign(secret, userID, expiry)
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return "", errTokenSignature
	}
	if time.Now().Unix() >= expiry {
		return "", errTokenExpired
	}
	return userID, nil
}

func sign(secret []byte, userID string, expiry int64) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%s\n%d", userID, expiry)
	return hex.EncodeToString(mac.Sum(nil))
}
