package test

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// TestEngine_DelegateMethodComplexity keeps Engine methods in the root
// engine*.go files short. A method over the limit likely holds business
// logic that belongs in internal/flows/*.
//
// Exceptions need a reason and the flow file the logic would move to.
func TestEngine_DelegateMethodComplexity(t *testing.T) {
	const maxLines = 50

	type delegateException struct {
		limit  int
		reason string
		target string
	}

	exceptions := map[string]delegateException{
		"passwordResetFlowDeps": {100, "wiring function with token store, mailer and limiter closures", "internal/flows/password_reset.go"},
	}

	for name, exc := range exceptions {
		if exc.reason == "" {
			t.Errorf("exception %q missing reason", name)
		}
		if exc.target == "" {
			t.Errorf("exception %q missing target flow file", name)
		}
	}

	files, err := filepath.Glob("../engine*.go")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no engine files found")
	}

	funcSig := regexp.MustCompile(`^func \(e \*Engine\) ([A-Za-z]\w*)\(`)
	var violations int

	for _, filename := range files {
		if strings.HasSuffix(filename, "_test.go") {
			continue
		}
		violations += scanEngineFile(t, filename, funcSig, func(name string) int {
			if exc, ok := exceptions[name]; ok {
				return exc.limit
			}
			return maxLines
		})
	}

	if violations > 0 {
		t.Logf("Detected %d method(s) exceeding their line budget. "+
			"Business logic should live in internal/flows/*, "+
			"root methods should be thin delegates.",
			violations)
	}
}

func scanEngineFile(t *testing.T, filename string, funcSig *regexp.Regexp, limitFor func(string) int) int {
	t.Helper()

	f, err := os.Open(filename)
	if err != nil {
		t.Fatalf("open %s: %v", filename, err)
	}
	defer f.Close()

	type methodInfo struct {
		name  string
		start int
		depth int
	}

	scanner := bufio.NewScanner(f)
	lineNum := 0
	violations := 0
	var current *methodInfo

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if current == nil {
			if m := funcSig.FindStringSubmatch(line); m != nil {
				current = &methodInfo{
					name:  m[1],
					start: lineNum,
					depth: strings.Count(line, "{") - strings.Count(line, "}"),
				}
				if current.depth <= 0 {
					current = nil
				}
			}
			continue
		}

		current.depth += strings.Count(line, "{") - strings.Count(line, "}")
		if current.depth <= 0 {
			length := lineNum - current.start + 1
			if limit := limitFor(current.name); length > limit {
				violations++
				t.Errorf("%s:%d: method %s is %d lines (limit %d); move business logic to internal/flows/",
					filename, current.start, current.name, length, limit)
			}
			current = nil
		}
	}

	if err := scanner.Err(); err != nil {
		t.Fatalf("scan %s: %v", filename, err)
	}
	return violations
}
