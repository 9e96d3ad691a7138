// Package accesslog parses Apache/Nginx combined access logs and aggregates
// them into frequency summaries with top-N rankings.
//
// The pipeline is strictly sequential and single-pass:
// LineSource -> ParseLine -> ParseRequestLine -> Aggregator -> Summary.
package accesslog

// Dash is the key used when a field is absent or empty.
const Dash = "-"

// LogRecord is one matched access log line. It is produced per line and
// consumed immediately by the Aggregator.
type LogRecord struct {
	ClientAddress string
	Timestamp     string // raw text between the brackets
	RequestLine   string // raw text between the request quotes
	StatusCode    string // exactly three digits
	ResponseSize  string // may be "-"

	// Referral is nil when the trailing quoted pair is not present.
	Referral *Referral
}

// Referral holds the optional trailing referrer/user-agent pair. Both are
// present or the whole pair is absent.
type Referral struct {
	Referrer  string
	UserAgent string
}

// UserAgent returns the user agent, or "-" when the trailing pair is absent
// or the agent is empty.
func (r LogRecord) UserAgent() string {
	if r.Referral == nil || r.Referral.UserAgent == "" {
		return Dash
	}
	return r.Referral.UserAgent
}

// RequestTarget is the method and path extracted from a request line.
type RequestTarget struct {
	Method string
	Path   string // empty when the URL has no path or cannot be parsed
}
