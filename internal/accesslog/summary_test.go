package accesslog

import (
	"fmt"
	"reflect"
	"testing"
)

func TestBuildSummary_TopN(t *testing.T) {
	agg := NewAggregator()
	agg.AddLine(logLine("1.1.1.1", "GET /a HTTP/1.1", "200", "ua"))
	agg.AddLine(logLine("1.1.1.1", "GET /a HTTP/1.1", "200", "ua"))
	agg.AddLine(logLine("2.2.2.2", "GET /b HTTP/1.1", "200", "ua"))

	s := BuildSummary(agg, 1)

	if want := []Count{{"/a", 2}}; !reflect.DeepEqual(s.TopPaths, want) {
		t.Errorf("Expected top paths %v, got %v", want, s.TopPaths)
	}
	if want := []Count{{"1.1.1.1", 2}}; !reflect.DeepEqual(s.TopClients, want) {
		t.Errorf("Expected top clients %v, got %v", want, s.TopClients)
	}
	if s.TopN != 1 {
		t.Errorf("Expected TopN 1, got %d", s.TopN)
	}
}

func TestBuildSummary_DefaultTopN(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < 15; i++ {
		agg.AddLine(logLine(fmt.Sprintf("10.0.0.%d", i), fmt.Sprintf("GET /p%d HTTP/1.1", i), "200", "ua"))
	}

	for _, n := range []int{0, -5} {
		s := BuildSummary(agg, n)
		if s.TopN != DefaultTopN {
			t.Errorf("BuildSummary(%d): expected TopN %d, got %d", n, DefaultTopN, s.TopN)
		}
		if len(s.TopPaths) != DefaultTopN || len(s.TopClients) != DefaultTopN {
			t.Errorf("BuildSummary(%d): expected %d entries, got %d paths and %d clients",
				n, DefaultTopN, len(s.TopPaths), len(s.TopClients))
		}
	}
}

func TestBuildSummary_UserAgentsFixedAtFive(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < 8; i++ {
		agg.AddLine(logLine("1.1.1.1", "GET / HTTP/1.1", "200", fmt.Sprintf("agent-%d", i)))
	}

	for _, n := range []int{1, 3, 20} {
		s := BuildSummary(agg, n)
		if len(s.TopUserAgents) != UserAgentTopN {
			t.Errorf("BuildSummary(%d): expected %d user agents, got %d", n, UserAgentTopN, len(s.TopUserAgents))
		}
		if s.TopUserAgents[0].Key != "agent-0" {
			t.Errorf("Expected first-seen agent first on ties, got %q", s.TopUserAgents[0].Key)
		}
	}
}

func TestBuildSummary_StatusTable(t *testing.T) {
	agg := NewAggregator()
	statuses := []string{"200", "404", "200", "500", "404", "404", "301"}
	for _, st := range statuses {
		agg.AddLine(logLine("1.1.1.1", "GET / HTTP/1.1", st, "ua"))
	}

	s := agg.Summary(10)

	want := []Count{{"404", 3}, {"200", 2}, {"500", 1}, {"301", 1}}
	if !reflect.DeepEqual(s.StatusCounts, want) {
		t.Errorf("Expected status counts %v, got %v", want, s.StatusCounts)
	}
	if s.NotFound != s.StatusCount("404") || s.NotFound != 3 {
		t.Errorf("Expected 404 count 3 consistent with the table, got %d (table %d)", s.NotFound, s.StatusCount("404"))
	}
	if s.StatusCount("418") != 0 {
		t.Errorf("Expected 0 for unseen status, got %d", s.StatusCount("418"))
	}
	if s.DistinctStatuses() != 4 {
		t.Errorf("Expected 4 distinct statuses, got %d", s.DistinctStatuses())
	}

	top := s.TopStatuses(2)
	if !reflect.DeepEqual(top, want[:2]) {
		t.Errorf("Expected top statuses %v, got %v", want[:2], top)
	}
	top[0].Count = 99
	if s.StatusCounts[0].Count != 3 {
		t.Error("Expected TopStatuses to return a copy")
	}
	if got := s.TopStatuses(100); len(got) != 4 {
		t.Errorf("Expected all 4 statuses, got %d", len(got))
	}
}

func TestBuildSummary_Empty(t *testing.T) {
	s := NewAggregator().Summary(10)

	if s.TotalParsed != 0 || s.SkippedLines != 0 || s.NotFound != 0 {
		t.Errorf("Expected zero counters, got %+v", s)
	}
	if len(s.TopPaths) != 0 || len(s.TopClients) != 0 || len(s.TopUserAgents) != 0 || len(s.StatusCounts) != 0 {
		t.Errorf("Expected empty rankings, got %+v", s)
	}
}
