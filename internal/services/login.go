package services

import (
	"strings"

	"stepflow/internal/models"
)

// LoginKeywords mark a step as part of a login sequence.
var LoginKeywords = []string{"login", "username", "password", "sign in", "log in", "auth"}

// IsLoginStep reports whether the step name, target or description contains a
// login keyword. Matching is a case-insensitive substring test.
func IsLoginStep(rec models.StepRecord) bool {
	return containsAny(rec.Name, LoginKeywords) ||
		containsAny(rec.Target, LoginKeywords) ||
		containsAny(rec.Description, LoginKeywords)
}

func ContainsLoginSteps(recs []models.StepRecord) bool {
	for _, r := range recs {
		if IsLoginStep(r) {
			return true
		}
	}
	return false
}

// FilterLoginSteps drops every login step, wherever it appears.
func FilterLoginSteps(recs []models.StepRecord) []models.StepRecord {
	out := make([]models.StepRecord, 0, len(recs))
	for _, r := range recs {
		if !IsLoginStep(r) {
			out = append(out, r)
		}
	}
	return out
}

// loginPrefixPattern lists the keywords expected at each of the first four positions.
var loginPrefixPattern = [][]string{
	{"url", "navigate", "login", "log in", "sign in"},
	{"username", "user", "email"},
	{"password"},
	{"login", "log in", "sign in", "submit", "auth"},
}

// HasLoginPrefix is the editor heuristic for "this scenario already starts
// with a login": at least 3 of the first 4 steps match the keyword set for
// their position. It is positional and easily fooled.
func HasLoginPrefix(recs []models.StepRecord) bool {
	if len(recs) < 3 {
		return false
	}
	matches := 0
	for i, keywords := range loginPrefixPattern {
		if i >= len(recs) {
			break
		}
		r := recs[i]
		if containsAny(r.Name, keywords) || containsAny(r.Target, keywords) || containsAny(r.Description, keywords) ||
			containsAny(string(r.Type), keywords) {
			matches++
		}
	}
	return matches >= 3
}

func containsAny(s string, keywords []string) bool {
	if s == "" {
		return false
	}
	s = strings.ToLower(s)
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
