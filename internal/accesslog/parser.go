package accesslog

import "regexp"

// combinedPattern matches the combined log format:
//
//	<ip> <ident> <user> [<time>] "<request>" <status> <size> ["<referrer>" "<agent>"]
//
// The search is deliberately unanchored: a well-formed entry preceded by
// unrelated text (a syslog prefix, a concatenated rotation fragment) is still
// accepted, starting at the leftmost position where the grammar matches.
// Trailing text after <size> or after the agent quote is ignored.
// \S and \d are ASCII classes.
var combinedPattern = regexp.MustCompile(
	`(?P<ip>\S+) ` +
		`\S+ \S+ ` +
		`\[(?P<time>.*?)\] ` +
		`"(?P<request>.*?)" ` +
		`(?P<status>\d{3}) ` +
		`(?P<size>\S+)` +
		`(?: "(?P<referrer>.*?)" "(?P<agent>.*?)")?`,
)

var (
	groupIP       = combinedPattern.SubexpIndex("ip")
	groupTime     = combinedPattern.SubexpIndex("time")
	groupRequest  = combinedPattern.SubexpIndex("request")
	groupStatus   = combinedPattern.SubexpIndex("status")
	groupSize     = combinedPattern.SubexpIndex("size")
	groupReferrer = combinedPattern.SubexpIndex("referrer")
	groupAgent    = combinedPattern.SubexpIndex("agent")
)

// ParseLine applies the combined grammar to a single trimmed line.
// It returns false when the line does not match; malformed lines are
// expected input, not errors.
func ParseLine(line string) (LogRecord, bool) {
	loc := combinedPattern.FindStringSubmatchIndex(line)
	if loc == nil {
		return LogRecord{}, false
	}

	group := func(i int) string {
		return line[loc[2*i]:loc[2*i+1]]
	}

	rec := LogRecord{
		ClientAddress: group(groupIP),
		Timestamp:     group(groupTime),
		RequestLine:   group(groupRequest),
		StatusCode:    group(groupStatus),
		ResponseSize:  group(groupSize),
	}

	// The optional pair participates as a unit; checking one index is enough.
	if loc[2*groupAgent] >= 0 {
		rec.Referral = &Referral{
			Referrer:  group(groupReferrer),
			UserAgent: group(groupAgent),
		}
	}

	return rec, true
}
