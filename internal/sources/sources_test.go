package sources

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// touch creates empty files under dir and returns their full paths.
func touch(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, len(names))
	for i, name := range names {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("Failed to create dir: %v", err)
		}
		if err := os.WriteFile(p, []byte("x\n"), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", p, err)
		}
		paths[i] = p
	}
	return paths
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name string
		arg  string
		want []string
	}{
		{"Single", "access.log", []string{"access.log"}},
		{"Comma separated", "a.log,b.log.gz", []string{"a.log", "b.log.gz"}},
		{"Whitespace and empties", " a.log , ,b.log, ", []string{"a.log", "b.log"}},
		{"Empty", "", nil},
		{"Brace alternation", "access.{log,log.1}", []string{"access.{log,log.1}"}},
		{"Brace then plain", "/logs/a.{log,gz}, b.log", []string{"/logs/a.{log,gz}", "b.log"}},
		{"Nested braces", "{a,{b,c}}.log,d.log", []string{"{a,{b,c}}.log", "d.log"}},
		{"Escaped brace", `a\{.log,b.log`, []string{`a\{.log`, "b.log"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SplitList(tt.arg); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitList(%q) = %v, want %v", tt.arg, got, tt.want)
			}
		})
	}
}

func TestIsPattern(t *testing.T) {
	tests := []struct {
		p    string
		want bool
	}{
		{"/var/log/nginx/access.log", false},
		{"/var/log/nginx/access.log*", true},
		{"/var/log/**/access.log", true},
		{"access.log.?", true},
		{"access.log.[0-9]", true},
		{"access.{log,log.1}", true},
	}

	for _, tt := range tests {
		if got := IsPattern(tt.p); got != tt.want {
			t.Errorf("IsPattern(%q) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestResolve_PlainPathsPassThrough(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.log")

	got, err := Resolve([]string{missing})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{missing}) {
		t.Errorf("Expected missing plain path to pass through, got %v", got)
	}
}

func TestResolve_GlobSortedFilesOnly(t *testing.T) {
	dir := t.TempDir()
	files := touch(t, dir, "access.log.2.gz", "access.log", "access.log.1")
	if err := os.Mkdir(filepath.Join(dir, "access.log.d"), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}

	got, err := Resolve([]string{filepath.Join(dir, "access.log*")})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	want := []string{files[1], files[2], files[0]}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestResolve_DoubleStar(t *testing.T) {
	dir := t.TempDir()
	files := touch(t, dir, "a/access.log", "b/c/access.log", "b/error.log")

	got, err := Resolve([]string{filepath.Join(dir, "**", "access.log")})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	want := []string{files[0], files[1]}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestResolve_DeduplicatesKeepingFirst(t *testing.T) {
	dir := t.TempDir()
	files := touch(t, dir, "access.log", "access.log.1")

	got, err := Resolve([]string{files[1], filepath.Join(dir, "access.log*"), files[1]})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	want := []string{files[1], files[0]}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestResolve_NoMatch(t *testing.T) {
	_, err := Resolve([]string{filepath.Join(t.TempDir(), "*.log")})

	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("Expected ErrNoMatch, got: %v", err)
	}
}

func TestResolve_BadPattern(t *testing.T) {
	_, err := Resolve([]string{filepath.Join(t.TempDir(), "access[.log")})

	if err == nil {
		t.Fatal("Expected error for malformed pattern")
	}
}

func TestDescribe(t *testing.T) {
	dir := t.TempDir()
	files := touch(t, dir, "access.log")
	missing := filepath.Join(dir, "missing.log")

	sizes := Describe([]string{files[0], missing})

	if sizes[files[0]] != 2 {
		t.Errorf("Expected size 2, got %d", sizes[files[0]])
	}
	if sizes[missing] != -1 {
		t.Errorf("Expected -1 for missing file, got %d", sizes[missing])
	}
}

func TestResolve_BraceAlternationFromList(t *testing.T) {
	dir := t.TempDir()
	want := touch(t, dir, "access.log", "access.log.1")
	touch(t, dir, "access.log.2")

	got, err := Resolve(SplitList(filepath.Join(dir, "access.{log,log.1}")))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve() = %v, want %v", got, want)
	}
}
