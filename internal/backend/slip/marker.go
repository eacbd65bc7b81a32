package slip

import "strings"

const (
	markerAmount   = "300"
	markerCurrency = "บาท"
)

// HasPaymentMarker reports whether OCR output contains the expected payment
// amount. Both the amount and the currency word must appear as substrings,
// in any order and position. The check is deliberately the same two-substring
// contract the slips have always been matched against; OCR noise that breaks
// either substring yields false.
func HasPaymentMarker(text string) bool {
	return strings.Contains(text, markerAmount) && strings.Contains(text, markerCurrency)
}
