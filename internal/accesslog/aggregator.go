package accesslog

// Aggregator folds parsed records into frequency tables. Memory grows with
// the number of distinct keys, never with the number of lines: records are
// not retained.
type Aggregator struct {
	statuses *FrequencyTable
	clients  *FrequencyTable
	paths    *FrequencyTable
	agents   *FrequencyTable
	total    int
	skipped  int
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		statuses: NewFrequencyTable(),
		clients:  NewFrequencyTable(),
		paths:    NewFrequencyTable(),
		agents:   NewFrequencyTable(),
	}
}

// AddLine parses one trimmed, non-blank line and records it, or counts it as
// skipped when it does not match the combined grammar.
func (a *Aggregator) AddLine(line string) {
	rec, ok := ParseLine(line)
	if !ok {
		a.Skip()
		return
	}
	a.Record(rec)
}

// Record counts a matched record.
func (a *Aggregator) Record(rec LogRecord) {
	a.total++
	a.statuses.Inc(rec.StatusCode)
	a.clients.Inc(rec.ClientAddress)
	a.paths.Inc(EffectivePath(rec.RequestLine))
	a.agents.Inc(rec.UserAgent())
}

// Skip counts a line that did not match.
func (a *Aggregator) Skip() {
	a.skipped++
}

// Total returns the number of recorded lines.
func (a *Aggregator) Total() int {
	return a.total
}

// Skipped returns the number of unmatched lines.
func (a *Aggregator) Skipped() int {
	return a.skipped
}

// Merge adds other's counters and tables into a. Keys first seen only in
// other rank after a's keys on ties.
func (a *Aggregator) Merge(other *Aggregator) {
	if other == nil {
		return
	}
	a.total += other.total
	a.skipped += other.skipped
	a.statuses.Merge(other.statuses)
	a.clients.Merge(other.clients)
	a.paths.Merge(other.paths)
	a.agents.Merge(other.agents)
}
