package session

import (
	"bytes"
	"encoding/json"
	"slices"
	"strconv"
)

// UserProfile is the signed-in user as reported by the login and refresh endpoints.
type UserProfile struct {
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	Email     string   `json:"email,omitempty"`
	FirstName string   `json:"firstName,omitempty"`
	LastName  string   `json:"lastName,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}

// UnmarshalJSON accepts the id as either a JSON string or a JSON number.
func (u *UserProfile) UnmarshalJSON(data []byte) error {
	type plain UserProfile
	var raw struct {
		plain
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*u = UserProfile(raw.plain)
	u.ID = ""

	id := bytes.TrimSpace(raw.ID)
	if len(id) == 0 || bytes.Equal(id, []byte("null")) {
		return nil
	}
	if id[0] == '"' {
		return json.Unmarshal(id, &u.ID)
	}

	var n json.Number
	if err := json.Unmarshal(id, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return err
	}
	u.ID = n.String()
	return nil
}

// HasRole reports whether the profile carries role.
func (u *UserProfile) HasRole(role string) bool {
	if u == nil {
		return false
	}
	return slices.Contains(u.Roles, role)
}

// Clone returns a deep copy of u.
func (u *UserProfile) Clone() *UserProfile {
	if u == nil {
		return nil
	}
	out := *u
	if u.Roles != nil {
		out.Roles = slices.Clone(u.Roles)
	}
	return &out
}
