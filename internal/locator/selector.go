package locator

import (
	"fmt"
	"regexp"
	"strings"
)

type Kind string

const (
	KindID    Kind = "id"
	KindClass Kind = "class"
	KindXPath Kind = "xpath"
	KindCSS   Kind = "css"
)

// Selector is a single concrete query against the page.
type Selector struct {
	Kind  Kind
	Value string
}

func (s Selector) String() string {
	return fmt.Sprintf("%s=%s", s.Kind, s.Value)
}

func ID(v string) Selector    { return Selector{Kind: KindID, Value: v} }
func Class(v string) Selector { return Selector{Kind: KindClass, Value: v} }
func XPath(v string) Selector { return Selector{Kind: KindXPath, Value: v} }
func CSS(v string) Selector   { return Selector{Kind: KindCSS, Value: v} }

var attrMarkers = []string{"[name=", "[id=", "[class="}

var attrPattern = regexp.MustCompile(`^\s*([A-Za-z][\w-]*|\*)?\[(name|id|class)=["']?([^"'\]]*)["']?\]\s*$`)

// Primary maps a locator expression to its selector using the target grammar:
// '#' id, '.' class, '//' xpath, an attribute form, otherwise CSS.
func Primary(expr string) Selector {
	switch {
	case strings.HasPrefix(expr, "#"):
		return ID(strings.TrimPrefix(expr, "#"))
	case strings.HasPrefix(expr, "."):
		return Class(strings.TrimPrefix(expr, "."))
	case strings.HasPrefix(expr, "//"):
		return XPath(expr)
	case hasAttrMarker(expr):
		if sel, ok := attributeXPath(expr); ok {
			return sel
		}
		return CSS(expr)
	default:
		return CSS(expr)
	}
}

func hasAttrMarker(expr string) bool {
	for _, m := range attrMarkers {
		if strings.Contains(expr, m) {
			return true
		}
	}
	return false
}

func attributeXPath(expr string) (Selector, bool) {
	m := attrPattern.FindStringSubmatch(expr)
	if m == nil {
		return Selector{}, false
	}
	tag := m[1]
	if tag == "" {
		tag = "*"
	}
	return XPath(fmt.Sprintf("//%s[@%s=%s]", tag, m[2], XPathLiteral(m[3]))), true
}

// hasSelectorSyntax reports whether expr looks like a selector rather than
// visible text. Only the target grammar prefixes and bracketed attribute
// predicates count; labels such as "Next >" or "Step 1: Submit" stay text.
func hasSelectorSyntax(expr string) bool {
	if strings.HasPrefix(expr, "#") || strings.HasPrefix(expr, ".") || strings.HasPrefix(expr, "//") {
		return true
	}
	open := strings.Index(expr, "[")
	return open >= 0 && strings.Contains(expr[open:], "]")
}

// XPathLiteral quotes s for use inside an xpath expression.
func XPathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ",") + ")"
}
