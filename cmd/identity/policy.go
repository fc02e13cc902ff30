package identity

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Field names reported in validation failures.
const (
	FieldName     = "name"
	FieldPassword = "password"
)

const allowedCharset = `A-Za-z\d#$@!%&*?`

// Policy is a named character-class-and-length rule for one credential field.
type Policy struct {
	Field   string
	Min     int
	Max     int
	Message string

	// RejectVeryWeak enables an extra minimal check for trivially guessable values.
	RejectVeryWeak bool

	re *regexp.Regexp
}

// NewCharsetPolicy builds a policy accepting min..max characters from the allowed charset.
func NewCharsetPolicy(field string, minLen, maxLen int) (Policy, error) {
	if minLen <= 0 || maxLen < minLen {
		return Policy{}, fmt.Errorf("identity: invalid %s policy bounds [%d..%d]", field, minLen, maxLen)
	}
	re, err := regexp.Compile(fmt.Sprintf(`^[%s]{%d,%d}$`, allowedCharset, minLen, maxLen))
	if err != nil {
		return Policy{}, err
	}
	return Policy{
		Field:   field,
		Min:     minLen,
		Max:     maxLen,
		Message: fmt.Sprintf("must be %d-%d characters in alphabet, numbers or symbols", minLen, maxLen),
		re:      re,
	}, nil
}

func mustCharsetPolicy(field string, minLen, maxLen int) Policy {
	p, err := NewCharsetPolicy(field, minLen, maxLen)
	if err != nil {
		panic(err)
	}
	return p
}

// Check returns the failure messages for v, or nil when v satisfies the policy.
func (p Policy) Check(v string) []string {
	if p.re == nil || !p.re.MatchString(v) {
		return []string{p.Message}
	}
	if p.RejectVeryWeak && looksVeryWeak(v) {
		return []string{"is too easy to guess"}
	}
	return nil
}

// Policies bundles the name and password policies applied before persistence.
type Policies struct {
	Name     Policy
	Password Policy
}

// DefaultPolicies returns the stock rules: names of 3-15 and passwords of 8-30 characters.
func DefaultPolicies() Policies {
	return Policies{
		Name:     mustCharsetPolicy(FieldName, 3, 15),
		Password: mustCharsetPolicy(FieldPassword, 8, 30),
	}
}

// Validate checks both fields and returns field -> messages for every failure.
// A nil map means the input is acceptable.
func (p Policies) Validate(name, password string) map[string][]string {
	var out map[string][]string
	add := func(field string, msgs []string) {
		if len(msgs) == 0 {
			return
		}
		if out == nil {
			out = make(map[string][]string, 2)
		}
		out[field] = msgs
	}
	add(p.Name.Field, p.Name.Check(name))
	add(p.Password.Field, p.Password.Check(password))
	return out
}

// PoliciesFromEnv loads policy bounds from the environment.
//
// Env surface:
//   - AUTHORITY_NAME_MIN_LEN, AUTHORITY_NAME_MAX_LEN
//   - AUTHORITY_PASSWORD_MIN_LEN, AUTHORITY_PASSWORD_MAX_LEN
//   - AUTHORITY_PASSWORD_REJECT_VERY_WEAK (true/false)
func PoliciesFromEnv() (Policies, error) {
	def := DefaultPolicies()

	nameMin, err := envIntInRange("AUTHORITY_NAME_MIN_LEN", def.Name.Min, 1, 64)
	if err != nil {
		return Policies{}, err
	}
	nameMax, err := envIntInRange("AUTHORITY_NAME_MAX_LEN", def.Name.Max, 1, 64)
	if err != nil {
		return Policies{}, err
	}
	pwMin, err := envIntInRange("AUTHORITY_PASSWORD_MIN_LEN", def.Password.Min, 1, 256)
	if err != nil {
		return Policies{}, err
	}
	pwMax, err := envIntInRange("AUTHORITY_PASSWORD_MAX_LEN", def.Password.Max, 1, 256)
	if err != nil {
		return Policies{}, err
	}

	name, err := NewCharsetPolicy(FieldName, nameMin, nameMax)
	if err != nil {
		return Policies{}, err
	}
	pw, err := NewCharsetPolicy(FieldPassword, pwMin, pwMax)
	if err != nil {
		return Policies{}, err
	}

	if v, ok := os.LookupEnv("AUTHORITY_PASSWORD_REJECT_VERY_WEAK"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return Policies{}, fmt.Errorf("AUTHORITY_PASSWORD_REJECT_VERY_WEAK: invalid boolean")
		}
		pw.RejectVeryWeak = b
	}

	return Policies{Name: name, Password: pw}, nil
}

func envIntInRange(key string, def, minVal, maxVal int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s: not an integer", key)
	}
	if n < minVal || n > maxVal {
		return 0, fmt.Errorf("%s: out of range [%d..%d]", key, minVal, maxVal)
	}
	return n, nil
}

// looksVeryWeak is minimal: repeated characters, short all-digit strings and a few classics.
func looksVeryWeak(pw string) bool {
	if pw == "" {
		return true
	}

	first, _ := utf8.DecodeRuneInString(pw)
	allSame := true
	onlyDigits := true
	for _, r := range pw {
		if r != first {
			allSame = false
		}
		if !unicode.IsDigit(r) {
			onlyDigits = false
		}
	}
	if allSame {
		return true
	}
	if onlyDigits && utf8.RuneCountInString(pw) < 12 {
		return true
	}

	switch strings.ToLower(pw) {
	case "password", "password1", "password123", "qwerty123", "letmein!", "iloveyou":
		return true
	}
	return false
}
