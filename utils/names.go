// utils/names.go
package utils

import "strings"

// agencyPrefixes are stripped from model names typed with their producer,
// e.g. "NCEP-GFS" or "noaa_gefs".
var agencyPrefixes = []string{"ncep-", "ncep_", "noaa-", "noaa_", "cmc-", "cmc_"}

// NormalizeModelName converts a user-supplied model name to its catalog form:
// lower case, trimmed, with a leading agency prefix removed.
func NormalizeModelName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, p := range agencyPrefixes {
		if strings.HasPrefix(n, p) && len(n) > len(p) {
			return n[len(p):]
		}
	}
	return n
}

// NormalizeCategory trims a category or directory name. Case is kept because
// some providers use upper-case variable names (GEM's TMP_TGL_2).
func NormalizeCategory(category string) string {
	return strings.Trim(strings.TrimSpace(category), "/")
}
