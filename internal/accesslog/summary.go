package accesslog

const (
	// DefaultTopN is used when the caller passes a non-positive N.
	DefaultTopN = 10

	// UserAgentTopN is the fixed length of the user agent ranking.
	UserAgentTopN = 5

	// StatusNotFound is the status code reported separately.
	StatusNotFound = "404"
)

// Summary is the final result of an analysis. It is built once and must not
// be modified; slices returned by its methods are copies.
type Summary struct {
	TotalParsed   int     `json:"total_requests"`
	SkippedLines  int     `json:"skipped_lines"`
	StatusCounts  []Count `json:"status_counts"`
	NotFound      int     `json:"top_404"`
	TopPaths      []Count `json:"top_paths"`
	TopClients    []Count `json:"top_ips"`
	TopUserAgents []Count `json:"top_user_agents"`
	TopN          int     `json:"top_n"`
}

// BuildSummary ranks the aggregator's tables. topN bounds the path and client
// rankings; the user agent ranking is always UserAgentTopN long at most.
// StatusCounts holds the complete status table in ranked order.
func BuildSummary(agg *Aggregator, topN int) *Summary {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Summary{
		TotalParsed:   agg.total,
		SkippedLines:  agg.skipped,
		StatusCounts:  agg.statuses.Top(-1),
		NotFound:      agg.statuses.Count(StatusNotFound),
		TopPaths:      agg.paths.Top(topN),
		TopClients:    agg.clients.Top(topN),
		TopUserAgents: agg.agents.Top(UserAgentTopN),
		TopN:          topN,
	}
}

// Summary is shorthand for BuildSummary(a, topN).
func (a *Aggregator) Summary(topN int) *Summary {
	return BuildSummary(a, topN)
}

// StatusCount returns the number of requests with the given status code.
func (s *Summary) StatusCount(code string) int {
	for _, c := range s.StatusCounts {
		if c.Key == code {
			return c.Count
		}
	}
	return 0
}

// TopStatuses returns at most n status codes in ranked order.
func (s *Summary) TopStatuses(n int) []Count {
	if n < 0 || n > len(s.StatusCounts) {
		n = len(s.StatusCounts)
	}
	out := make([]Count, n)
	copy(out, s.StatusCounts[:n])
	return out
}

// DistinctStatuses returns the number of distinct status codes seen.
func (s *Summary) DistinctStatuses() int {
	return len(s.StatusCounts)
}
