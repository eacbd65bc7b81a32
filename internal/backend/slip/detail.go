package slip

import "regexp"

// detailPattern matches "<house>/<unit> <thai-month> <year>" anywhere in the
// message, e.g. "39/50 พค 68".
var detailPattern = regexp.MustCompile(`(\d+/\d+)\s+([ก-๙]+)\s+(\d+)`)

// RecordDetail is the free-text record a sender submits after a slip image.
type RecordDetail struct {
	HouseNo string
	Month   string
	Year    string
}

// ParseRecordDetail extracts a record detail from a text message. The match
// is not anchored; surrounding text is ignored. ok is false when the message
// does not contain the pattern.
func ParseRecordDetail(text string) (detail RecordDetail, ok bool) {
	match := detailPattern.FindStringSubmatch(text)
	if match == nil {
		return RecordDetail{}, false
	}
	return RecordDetail{
		HouseNo: match[1],
		Month:   match[2],
		Year:    match[3],
	}, true
}
