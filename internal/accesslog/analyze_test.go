package accesslog

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// mixedLog has 8 non-blank lines: 6 parse, 2 do not.
var mixedLog = strings.Join([]string{
	logLine("10.0.0.1", "GET /index.html HTTP/1.1", "200", "Mozilla/5.0"),
	"",
	logLine("10.0.0.2", "GET /missing HTTP/1.1", "404", "curl/8.0"),
	"this line is not an access log entry",
	logLine("10.0.0.1", "GET /index.html?ref=home HTTP/1.1", "200", "Mozilla/5.0"),
	`10.0.0.3 - - [1/Jan/2024:00:00:00 +0000] "POST /api HTTP/1.1" 201 -`,
	"   ",
	"10.0.0.4 - - [1/Jan/2024:00:00:00 +0000] \"GET /bad\xffbyte HTTP/1.1\" 404 0 \"-\" \"bot\xfe\"",
	logLine("10.0.0.2", "GET /missing HTTP/1.1", "404", "curl/8.0"),
	"truncated 10.0.0.5 - - [1/Jan/2024:00:0",
}, "\n") + "\n"

func TestAnalyzeFile_Invariants(t *testing.T) {
	path := writeFile(t, t.TempDir(), "access.log", mixedLog)

	s, err := AnalyzeFile(context.Background(), path, 10)
	if err != nil {
		t.Fatalf("AnalyzeFile() error = %v", err)
	}

	if s.TotalParsed+s.SkippedLines != 8 {
		t.Errorf("Expected parsed+skipped == 8 non-blank lines, got %d+%d", s.TotalParsed, s.SkippedLines)
	}
	if s.TotalParsed != 6 {
		t.Errorf("Expected 6 parsed lines, got %d", s.TotalParsed)
	}

	sum := 0
	for _, c := range s.StatusCounts {
		sum += c.Count
	}
	if sum != s.TotalParsed {
		t.Errorf("Expected status table to sum to %d, got %d", s.TotalParsed, sum)
	}

	if s.NotFound != s.StatusCount(StatusNotFound) || s.NotFound != 3 {
		t.Errorf("Expected 3 not found consistent with status table, got %d", s.NotFound)
	}

	wantPaths := []Count{{"/index.html", 2}, {"/missing", 2}, {"/api", 1}, {"/bad\uFFFDbyte", 1}}
	if !reflect.DeepEqual(s.TopPaths, wantPaths) {
		t.Errorf("Expected top paths %v, got %v", wantPaths, s.TopPaths)
	}

	wantAgents := []Count{{"Mozilla/5.0", 2}, {"curl/8.0", 2}, {"-", 1}, {"bot\uFFFD", 1}}
	if !reflect.DeepEqual(s.TopUserAgents, wantAgents) {
		t.Errorf("Expected top user agents %v, got %v", wantAgents, s.TopUserAgents)
	}
}

func TestAnalyzeFile_Idempotent(t *testing.T) {
	path := writeFile(t, t.TempDir(), "access.log", mixedLog)

	first, err := AnalyzeFile(context.Background(), path, 3)
	if err != nil {
		t.Fatalf("AnalyzeFile() error = %v", err)
	}
	second, err := AnalyzeFile(context.Background(), path, 3)
	if err != nil {
		t.Fatalf("AnalyzeFile() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical summaries:\n%+v\n%+v", first, second)
	}
}

func TestAnalyzeFile_GzipMatchesPlain(t *testing.T) {
	dir := t.TempDir()
	plainPath := writeFile(t, dir, "access.log", mixedLog)
	gzPath := writeFile(t, dir, "access.log.gz", mixedLog)

	plain, err := AnalyzeFile(context.Background(), plainPath, 10)
	if err != nil {
		t.Fatalf("AnalyzeFile(plain) error = %v", err)
	}
	compressed, err := AnalyzeFile(context.Background(), gzPath, 10)
	if err != nil {
		t.Fatalf("AnalyzeFile(gzip) error = %v", err)
	}

	if !reflect.DeepEqual(plain, compressed) {
		t.Errorf("Expected gzip summary to equal plain summary:\n%+v\n%+v", plain, compressed)
	}
}

func TestAnalyzeFile_MixedInput(t *testing.T) {
	path := writeFile(t, t.TempDir(), "access.log", sampleLine+"\n")

	s, err := AnalyzeFile(context.Background(), path, 10)
	if err != nil {
		t.Fatalf("AnalyzeFile() error = %v", err)
	}

	if s.TotalParsed != 1 || s.SkippedLines != 0 || s.NotFound != 0 {
		t.Errorf("Unexpected counters: %+v", s)
	}
	if want := []Count{{"/index.html", 1}}; !reflect.DeepEqual(s.TopPaths, want) {
		t.Errorf("Expected top paths %v, got %v", want, s.TopPaths)
	}
	if want := []Count{{"10.0.0.1", 1}}; !reflect.DeepEqual(s.TopClients, want) {
		t.Errorf("Expected top clients %v, got %v", want, s.TopClients)
	}
}

func TestAnalyzeFile_NotFound(t *testing.T) {
	s, err := AnalyzeFile(context.Background(), filepath.Join(t.TempDir(), "nope.log"), 10)

	if err == nil {
		t.Fatal("Expected error for nonexistent file")
	}
	if s != nil {
		t.Error("Expected no partial summary on failure")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected fs.ErrNotExist, got: %v", err)
	}
}

func TestAnalyzeFiles(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "access.log.1", logLine("1.1.1.1", "GET /old HTTP/1.1", "200", "ua")+"\n")
	second := writeFile(t, dir, "access.log.gz", logLine("2.2.2.2", "GET /new HTTP/1.1", "200", "ua")+"\n")

	s, err := AnalyzeFiles(context.Background(), []string{first, second}, 10)
	if err != nil {
		t.Fatalf("AnalyzeFiles() error = %v", err)
	}

	want := []Count{{"/old", 1}, {"/new", 1}}
	if !reflect.DeepEqual(s.TopPaths, want) {
		t.Errorf("Expected paths in file order %v, got %v", want, s.TopPaths)
	}
}

func TestAnalyzeFiles_NoInput(t *testing.T) {
	_, err := AnalyzeFiles(context.Background(), nil, 10)

	if !errors.Is(err, ErrNoInput) {
		t.Errorf("Expected ErrNoInput, got: %v", err)
	}
}

func TestAnalyzeFiles_AbortsOnMissingFile(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "access.log", sampleLine+"\n")

	s, err := AnalyzeFiles(context.Background(), []string{good, filepath.Join(dir, "gone.log")}, 10)

	if err == nil {
		t.Fatal("Expected error when one input is missing")
	}
	if s != nil {
		t.Error("Expected no partial summary on failure")
	}
}

func TestAnalyzeFile_Cancelled(t *testing.T) {
	path := writeFile(t, t.TempDir(), "access.log", mixedLog)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := AnalyzeFile(ctx, path, 10)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}
