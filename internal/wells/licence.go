// Package wells holds the domain-specific preparation steps that run before
// validation: licence number standardization, well identifier conversion, and
// the monthly production pivot.
package wells

import "strings"

// StandardizeLicensingLicence normalizes a licence number from the licensing
// registry, whose export prefixes every value with a two-character marker
// (e.g. "W 0123456" -> "0123456").
func StandardizeLicensingLicence(licence string) string {
	if len(licence) < 2 {
		return strings.TrimSpace(licence)
	}
	return strings.TrimSpace(licence[2:])
}

// StandardizeDrillingLicence normalizes a licence number from the drilling
// registry, which carries no prefix but pads with whitespace.
func StandardizeDrillingLicence(licence string) string {
	return strings.TrimSpace(licence)
}
