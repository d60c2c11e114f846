package locator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Tier selects which timeout a strategy searches with.
type Tier int

const (
	TierPrimary Tier = iota
	TierFallback
	TierLastFallback
)

// Strategy derives the selectors to try for one locator expression.
// Candidates must be pure: the same expression always yields the same list.
type Strategy struct {
	Name       string
	Tier       Tier
	Candidates func(expr string) []Selector
}

// Strategy names, in resolution order.
const (
	StrategyPrimary           = "primary"
	StrategyIDPattern         = "id-pattern"
	StrategyXPathAlternatives = "xpath-alternatives"
	StrategyExactText         = "exact-text"
	StrategyPartialText       = "partial-text"
	StrategyClassPattern      = "class-pattern"
	StrategyTagType           = "tag-type"
)

// DefaultStrategies returns the fallback chain in the order it is evaluated.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: StrategyPrimary, Tier: TierPrimary, Candidates: primaryCandidates},
		{Name: StrategyIDPattern, Tier: TierFallback, Candidates: idPatternCandidates},
		{Name: StrategyXPathAlternatives, Tier: TierFallback, Candidates: xpathAlternativeCandidates},
		{Name: StrategyExactText, Tier: TierFallback, Candidates: exactTextCandidates},
		{Name: StrategyPartialText, Tier: TierFallback, Candidates: partialTextCandidates},
		{Name: StrategyClassPattern, Tier: TierFallback, Candidates: classPatternCandidates},
		{Name: StrategyTagType, Tier: TierLastFallback, Candidates: tagTypeCandidates},
	}
}

// ActionWords are the common control captions tried as exact text.
var ActionWords = []string{"Submit", "Login", "Save", "Cancel", "OK", "Next", "Previous", "Search"}

var (
	idNamePattern    = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
	classNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)
)

func primaryCandidates(expr string) []Selector {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	return []Selector{Primary(expr)}
}

// baseText strips the id/class prefix. Xpath and attribute forms have no usable base.
func baseText(expr string) (string, bool) {
	expr = strings.TrimSpace(expr)
	if expr == "" || strings.HasPrefix(expr, "//") || hasAttrMarker(expr) {
		return "", false
	}
	expr = strings.TrimPrefix(expr, "#")
	expr = strings.TrimPrefix(expr, ".")
	expr = strings.TrimSpace(expr)
	return expr, expr != ""
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

func idPatternCandidates(expr string) []Selector {
	base, ok := baseText(expr)
	if !ok {
		return nil
	}
	flat := strings.NewReplacer(" ", "", "-", "").Replace(strings.ToLower(base))

	var camel string
	for i, w := range words(base) {
		if i == 0 {
			camel = strings.ToLower(w)
			continue
		}
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		camel += string(r)
	}

	var ids []string
	for _, stem := range []string{flat, camel} {
		if stem == "" {
			continue
		}
		ids = append(ids, stem)
		for _, suffix := range []string{"Btn", "Button", "Input", "Field"} {
			ids = append(ids, stem+suffix)
		}
	}

	var out []Selector
	for _, id := range dedupe(ids) {
		if idNamePattern.MatchString(id) {
			out = append(out, ID(id))
		}
	}
	return out
}

func xpathAlternativeCandidates(expr string) []Selector {
	expr = strings.TrimSpace(expr)
	var forms []string
	switch {
	case strings.HasPrefix(expr, "#"):
		v := XPathLiteral(strings.TrimPrefix(expr, "#"))
		forms = []string{
			"//*[@id=%s]",
			"//input[@id=%s]",
			"//button[@id=%s]",
			"//*[@name=%s]",
		}
		return formatXPaths(forms, v)
	case strings.HasPrefix(expr, "."):
		v := XPathLiteral(strings.TrimPrefix(expr, "."))
		forms = []string{
			"//*[contains(@class,%s)]",
			"//button[contains(@class,%s)]",
			"//input[contains(@class,%s)]",
		}
		return formatXPaths(forms, v)
	case expr != "" && !hasSelectorSyntax(expr):
		v := XPathLiteral(expr)
		forms = []string{
			"//*[@id=%s]",
			"//*[@name=%s]",
			"//*[@placeholder=%s]",
			"//*[@aria-label=%s]",
			"//*[@title=%s]",
			"//*[contains(@class,%s)]",
		}
		return formatXPaths(forms, v)
	}
	return nil
}

func formatXPaths(forms []string, literal string) []Selector {
	out := make([]Selector, 0, len(forms))
	for _, f := range forms {
		out = append(out, XPath(fmt.Sprintf(f, literal)))
	}
	return out
}

func exactTextCandidates(expr string) []Selector {
	expr = strings.TrimSpace(expr)
	if expr == "" || hasSelectorSyntax(expr) {
		return nil
	}
	texts := []string{expr}
	lower := strings.ToLower(expr)
	for _, w := range ActionWords {
		if strings.Contains(lower, strings.ToLower(w)) {
			texts = append(texts, w)
		}
	}

	var out []Selector
	for _, text := range dedupe(texts) {
		lit := XPathLiteral(text)
		out = append(out,
			XPath("//button[text()="+lit+"]"),
			XPath("//input[@value="+lit+"]"),
			XPath("//*[text()="+lit+"]"),
			XPath("//a[text()="+lit+"]"),
		)
	}
	return out
}

func partialTextCandidates(expr string) []Selector {
	base, ok := baseText(expr)
	if !ok {
		return nil
	}
	var tokens []string
	for _, w := range words(base) {
		if len([]rune(w)) > 2 {
			tokens = append(tokens, w)
		}
	}

	var out []Selector
	for _, tok := range dedupe(tokens) {
		lit := XPathLiteral(tok)
		out = append(out,
			XPath("//button[contains(text(),"+lit+")]"),
			XPath("//input[contains(@value,"+lit+")]"),
			XPath("//*[contains(text(),"+lit+")]"),
			XPath("//a[contains(text(),"+lit+")]"),
		)
	}
	return out
}

func classPatternCandidates(expr string) []Selector {
	base, ok := baseText(expr)
	if !ok {
		return nil
	}
	parts := words(strings.ToLower(base))
	if len(parts) == 0 {
		return nil
	}
	stem := strings.Join(parts, "-")
	names := []string{stem, stem + "-btn", stem + "-button", "btn-" + stem, stem + "-input", stem + "-field"}

	var out []Selector
	for _, n := range dedupe(names) {
		if classNamePattern.MatchString(n) {
			out = append(out, Class(n))
		}
	}
	return out
}

var tagHints = []struct {
	hint      string
	selectors []string
}{
	{"button", []string{"button", "input[type='button']", "[role='button']"}},
	{"input", []string{"input", "textarea"}},
	{"link", []string{"a[href]", "[role='link']"}},
	{"submit", []string{"button[type='submit']", "input[type='submit']"}},
}

func tagTypeCandidates(expr string) []Selector {
	lower := strings.ToLower(expr)
	var out []Selector
	for _, h := range tagHints {
		if !strings.Contains(lower, h.hint) {
			continue
		}
		for _, s := range h.selectors {
			out = append(out, CSS(s))
		}
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
