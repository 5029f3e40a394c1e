package jwt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidFormat is returned for any credential that is not three dot-separated
// segments with a base64url JSON payload.
var ErrInvalidFormat = errors.New("invalid credential format")

var defaultParser = jwt.NewParser(jwt.WithPaddingAllowed())

// Claims is the decoded payload of a credential.
type Claims struct {
	Username string   `json:"username,omitempty"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// UnmarshalJSON accepts sub as either a JSON string or a JSON number. A sub
// of any other type is left empty.
func (c *Claims) UnmarshalJSON(data []byte) error {
	type plain Claims
	var raw struct {
		plain
		Subject json.RawMessage `json:"sub,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*c = Claims(raw.plain)
	c.Subject = ""

	sub := bytes.TrimSpace(raw.Subject)
	switch {
	case len(sub) == 0:
	case sub[0] == '"':
		return json.Unmarshal(sub, &c.Subject)
	case sub[0] == '-' || (sub[0] >= '0' && sub[0] <= '9'):
		var n json.Number
		if err := json.Unmarshal(sub, &n); err != nil {
			return err
		}
		c.Subject = n.String()
	}
	return nil
}

// User is the identity portion of [Claims].
type User struct {
	ID       string
	Username string
	Email    string
	Roles    []string
}

// Codec decodes credentials without verifying them. The zero value is ready to use.
type Codec struct {
	parser *jwt.Parser
}

// NewCodec returns a codec that accepts both padded and unpadded base64url payloads.
func NewCodec() *Codec {
	return &Codec{parser: jwt.NewParser(jwt.WithPaddingAllowed())}
}

func (c *Codec) segmentParser() *jwt.Parser {
	if c == nil || c.parser == nil {
		return defaultParser
	}
	return c.parser
}

// Decode splits token into header, payload and signature and parses the payload
// segment only. Any failure wraps [ErrInvalidFormat] and returns nil claims.
func (c *Codec) Decode(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrInvalidFormat, len(parts))
	}

	payload, err := c.segmentParser().DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: payload encoding: %v", ErrInvalidFormat, err)
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("%w: payload json: %v", ErrInvalidFormat, err)
	}

	return &claims, nil
}

// IsExpired reports whether token is expired at now. Undecodable tokens and
// tokens without an exp claim are expired.
func (c *Codec) IsExpired(token string, now time.Time) bool {
	exp, ok := c.ExpiresAt(token)
	if !ok {
		return true
	}
	return exp.Unix() < now.Unix()
}

// ExpiresAt returns the exp claim of token, if it can be read.
func (c *Codec) ExpiresAt(token string) (time.Time, bool) {
	claims, err := c.Decode(token)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// TimeUntilExpiry returns the remaining lifetime of token at now, clamped at zero.
func (c *Codec) TimeUntilExpiry(token string, now time.Time) time.Duration {
	exp, ok := c.ExpiresAt(token)
	if !ok {
		return 0
	}
	remaining := exp.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ExtractUser reads the identity claims of token.
func (c *Codec) ExtractUser(token string) (User, bool) {
	claims, err := c.Decode(token)
	if err != nil {
		return User{}, false
	}
	if claims.Subject == "" && claims.Username == "" {
		return User{}, false
	}

	var roles []string
	if len(claims.Roles) > 0 {
		roles = append([]string(nil), claims.Roles...)
	}

	return User{
		ID:       claims.Subject,
		Username: claims.Username,
		Email:    claims.Email,
		Roles:    roles,
	}, true
}
