// ABOUTME: Trailing-character trim policy for classgrade values
// ABOUTME: One utility for both the FSI pipe/space filler and the Edumate IB suffix
package sync

import "strings"

// Filler character sets. A trim removes any run of characters from the set at
// the right end of the string only; characters inside the value are kept.
const (
	patronFillerPipe  = "|"
	patronFillerSpace = " "
	formSuffix        = "IB"
)

// TrimTrailing removes every trailing character that appears in set.
func TrimTrailing(s, set string) string {
	return strings.TrimRight(s, set)
}

// TrimPatronClassgrade cleans a classgrade read back from FSI: trailing pipes
// first, then trailing spaces. Each pass runs once, so "10| " keeps its pipe.
func TrimPatronClassgrade(s string) string {
	return TrimTrailing(TrimTrailing(s, patronFillerPipe), patronFillerSpace)
}

// TrimClassgrade turns an Edumate form short name into the classgrade FSI
// stores, e.g. "10IB" becomes "10".
func TrimClassgrade(formShortName string) string {
	return TrimTrailing(formShortName, formSuffix)
}
