package users

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// User represents a stored user record
type User struct {
	ID        string    `json:"id"`
	Name      *string   `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateUserRequest represents the request to create a user.
// Name is nil when the field is missing or null.
type CreateUserRequest struct {
	Name *string `json:"name"`
}

// UnmarshalJSON applies the implicit coercion rules for name: strings are kept,
// numbers and booleans become their text form, null means no name, and
// objects or arrays are rejected.
func (r *CreateUserRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name json.RawMessage `json:"name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	name, err := coerceName(raw.Name)
	if err != nil {
		return err
	}
	r.Name = name
	return nil
}

func coerceName(raw json.RawMessage) (*string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}

	switch raw[0] {
	case 'n':
		return nil, nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return &s, nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		s := strconv.FormatBool(b)
		return &s, nil
	case '{', '[':
		return nil, NewValidationError("name", string(raw), "cannot be converted to a string")
	default:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, err
		}
		s := formatNumber(f)
		return &s, nil
	}
}

// formatNumber renders f the way JavaScript's String(number) does: plain
// decimal for 1e-6 <= |f| < 1e21, otherwise exponent form such as 1e+21 or 1.5e-7.
func formatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	if abs := math.Abs(f); abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	s := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	digits := strings.TrimLeft(exp[1:], "0")
	return mantissa + "e" + exp[:1] + digits
}

// NameOrEmpty is used by log fields
func (u *User) NameOrEmpty() string {
	if u.Name == nil {
		return ""
	}
	return *u.Name
}
