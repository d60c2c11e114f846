package locator

import "strings"

// ClickVariant is the mouse action remembered from a target's modifier suffix.
type ClickVariant string

const (
	ClickLeft   ClickVariant = "left"
	ClickRight  ClickVariant = "right"
	ClickDouble ClickVariant = "double"
)

// Modifier suffixes persisted as part of a step target. Matching is exact.
const (
	SuffixRightClick  = " [RIGHT-CLICK]"
	SuffixDoubleClick = " [DOUBLE-CLICK]"
	SuffixLeftClick   = " [LEFT-CLICK]"
)

var suffixes = []struct {
	suffix  string
	variant ClickVariant
}{
	{SuffixRightClick, ClickRight},
	{SuffixDoubleClick, ClickDouble},
	{SuffixLeftClick, ClickLeft},
}

// Target is a parsed step target.
type Target struct {
	Raw     string       // as stored, modifier included
	Expr    string       // locator expression with the modifier stripped
	Variant ClickVariant // ClickLeft when no modifier is present
}

// ParseTarget strips a trailing click modifier from raw.
func ParseTarget(raw string) Target {
	for _, s := range suffixes {
		if strings.HasSuffix(raw, s.suffix) {
			return Target{Raw: raw, Expr: strings.TrimSuffix(raw, s.suffix), Variant: s.variant}
		}
	}
	return Target{Raw: raw, Expr: raw, Variant: ClickLeft}
}

// WithVariant appends the modifier for v to expr. Left clicks are stored bare.
func WithVariant(expr string, v ClickVariant) string {
	switch v {
	case ClickRight:
		return expr + SuffixRightClick
	case ClickDouble:
		return expr + SuffixDoubleClick
	}
	return expr
}
