package types

import "strings"

// Descriptor is a declared type string split into its base name and the
// optional parenthesized argument list.
type Descriptor struct {
	Raw  string
	Base string
	// Args is nil when the declared type carries no well-formed argument list.
	Args []string
}

// Parse splits a declared type such as "decimal(10, 2)" into "DECIMAL" and
// ["10", "2"]. Unbalanced parentheses leave the whole string as the base name.
func Parse(raw string) Descriptor {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	d := Descriptor{Raw: raw, Base: upper}

	left := strings.Index(upper, "(")
	right := strings.LastIndex(upper, ")")
	if left <= 0 || right < 0 || left > right {
		return d
	}

	d.Base = strings.TrimSpace(upper[:left])
	parts := strings.Split(upper[left+1:right], ",")
	d.Args = make([]string, len(parts))
	for i, p := range parts {
		d.Args[i] = strings.TrimSpace(p)
	}
	return d
}
