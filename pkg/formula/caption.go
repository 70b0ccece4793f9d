package formula

import (
	"strings"
	"unicode"
)

// CaptionReferences extracts the field references embedded in a sheet
// caption or title. Captions wrap dynamic values in angle brackets, e.g.
// "Sales by <[federated.1x].[none:Region:nk]>"; plain placeholders such as
// "<Sheet Name>" carry no reference and are ignored.
//
// Column-instance names are unwrapped with [InstanceName].
func CaptionReferences(text string) []Reference {
	var refs []Reference
	seen := make(map[Reference]bool)
	for {
		open := strings.IndexByte(text, '<')
		if open < 0 {
			break
		}
		end := strings.IndexByte(text[open:], '>')
		if end < 0 {
			break
		}
		inner := text[open+1 : open+end]
		text = text[open+end+1:]

		for _, ref := range Scan(inner).References {
			ref.Name = InstanceName(ref.Name)
			if !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
		}
	}
	return refs
}

// InstanceName strips the derivation prefixes and type suffix from a
// column-instance name: "sum:Sales:qk" → "Sales", "pcto:sum:Sales:qk" →
// "Sales", "none:Order Date:ok" → "Order Date". Names that are not column
// instances are returned unchanged.
func InstanceName(name string) string {
	parts := strings.Split(name, ":")
	if len(parts) < 3 || !isDerivation(parts[len(parts)-1]) {
		return name
	}
	parts = parts[:len(parts)-1]
	for len(parts) > 1 && isDerivation(parts[0]) {
		parts = parts[1:]
	}
	return strings.Join(parts, ":")
}

// isDerivation reports whether s looks like a derivation or type token:
// a short run of lowercase ASCII letters and digits.
func isDerivation(s string) bool {
	if s == "" || len(s) > 12 {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !(unicode.IsLower(r) || unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}
