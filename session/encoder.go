package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrCorruptUser is returned when a persisted profile cannot be decoded.
var ErrCorruptUser = errors.New("corrupt user profile")

// EncodeUser serializes u for storage.
func EncodeUser(u *UserProfile) (string, error) {
	if u == nil {
		return "", errors.New("nil user profile")
	}
	data, err := json.Marshal(u)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeUser parses a stored profile. A profile without id and username is corrupt.
func DecodeUser(data string) (*UserProfile, error) {
	var u UserProfile
	if err := json.Unmarshal([]byte(data), &u); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptUser, err)
	}
	if u.ID == "" && u.Username == "" {
		return nil, fmt.Errorf("%w: missing identity", ErrCorruptUser)
	}
	return &u, nil
}
