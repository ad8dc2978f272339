package wells

import "strings"

// DisplayToProductionID converts a well identifier from the drilling
// registry's display format to the form the production extract keys on:
//
//	"00/06-06-001-01W4/2" -> "100060600101W402"
//
// The conversion strips every non-alphanumeric character, prefixes "1", and
// left-pads the trailing event sequence to two digits. Identifiers already in
// the production form pass through unchanged, as do values too malformed to
// convert.
func DisplayToProductionID(uwi string) string {
	if uwi == "" {
		return uwi
	}

	var b strings.Builder
	b.Grow(len(uwi))
	for _, r := range uwi {
		if ('0' <= r && r <= '9') || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	stripped := b.String()
	if stripped == "" {
		return uwi
	}

	if strings.HasPrefix(stripped, "1") && strings.Contains(stripped, "W4") {
		return stripped
	}

	prefixed := "1" + stripped
	// The event sequence is the final character of the display form; it
	// needs a leading zero in the production form.
	return prefixed[:len(prefixed)-1] + "0" + prefixed[len(prefixed)-1:]
}
