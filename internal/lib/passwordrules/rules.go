// Package passwordrules implements the structural password-strength policy.
// The individual checks are informational for clients; overall validity
// requires the minimum length, three of the four character classes, and no
// similarity to the account email.
package passwordrules

import "strings"

type Result struct {
	MinLength         bool `json:"min_length"`
	HasLowercase      bool `json:"has_lowercase"`
	HasUppercase      bool `json:"has_uppercase"`
	HasDigit          bool `json:"has_digit"`
	HasSymbol         bool `json:"has_symbol"`
	HasThreeTypes     bool `json:"has_three_types"`
	NotSimilarToEmail bool `json:"not_similar_to_email"`
	Valid             bool `json:"valid"`
}

// Validate checks the password against every rule and reports each check
// along with the combined verdict.
func Validate(password, email string, minLength int) Result {
	res := Result{
		MinLength:         len(password) >= minLength,
		NotSimilarToEmail: notSimilarToEmail(password, email),
	}

	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			res.HasLowercase = true
		case r >= 'A' && r <= 'Z':
			res.HasUppercase = true
		case r >= '0' && r <= '9':
			res.HasDigit = true
		default:
			res.HasSymbol = true
		}
	}

	types := 0
	for _, ok := range []bool{res.HasLowercase, res.HasUppercase, res.HasDigit, res.HasSymbol} {
		if ok {
			types++
		}
	}
	res.HasThreeTypes = types >= 3

	res.Valid = res.MinLength && res.HasThreeTypes && res.NotSimilarToEmail

	return res
}

// notSimilarToEmail rejects passwords containing the email's local part.
// Local parts shorter than 3 characters are too common to be a useful
// signal and are ignored.
func notSimilarToEmail(password, email string) bool {
	localPart, _, _ := strings.Cut(email, "@")
	localPart = strings.ToLower(localPart)

	if len(localPart) < 3 {
		return true
	}

	return !strings.Contains(strings.ToLower(password), localPart)
}
