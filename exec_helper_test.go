package execenv

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func TestExecHelperBasic(t *testing.T) {
	cmd := exec.CommandContext(context.Background(), "/bin/sh", "-c", "echo hello")
	result, err := execHelper(cmd, 0, External)
	if err != nil {
		t.Fatalf("execHelper() error: %v", err)
	}
	if got := strings.TrimSpace(result.Stdout); got != "hello" {
		t.Errorf("Stdout = %q, want %q", got, "hello")
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}
	if result.Duration <= 0 {
		t.Errorf("Duration = %v, want > 0", result.Duration)
	}
	if result.Classification != External {
		t.Errorf("Classification = %v, want external", result.Classification)
	}
	if result.Truncated {
		t.Error("Truncated should be false without a limit")
	}
}

// TestExecHelperNonZeroExit verifies that non-zero exit codes are captured
// without returning a Go error.
func TestExecHelperNonZeroExit(t *testing.T) {
	cmd := exec.CommandContext(context.Background(), "/bin/sh", "-c", "exit 42")
	result, err := execHelper(cmd, 0, Internal)
	if err != nil {
		t.Fatalf("execHelper() error: %v", err)
	}
	if result.ExitCode != 42 {
		t.Errorf("ExitCode = %d, want 42", result.ExitCode)
	}
	if result.Classification != Internal {
		t.Errorf("Classification = %v, want internal", result.Classification)
	}
}

func TestExecHelperMaxOutput(t *testing.T) {
	tests := []struct {
		name          string
		script        string
		limit         int
		wantStdout    string
		wantTruncated bool
	}{
		{name: "over limit", script: "printf 'this output exceeds the limit'", limit: 10, wantStdout: "this outpu", wantTruncated: true},
		{name: "exactly at limit", script: "printf 0123456789", limit: 10, wantStdout: "0123456789"},
		{name: "under limit", script: "printf abc", limit: 10, wantStdout: "abc"},
		{name: "no limit", script: "printf 'this output exceeds the limit'", limit: 0, wantStdout: "this output exceeds the limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := exec.CommandContext(context.Background(), "/bin/sh", "-c", tt.script)
			result, err := execHelper(cmd, tt.limit, Internal)
			if err != nil {
				t.Fatalf("execHelper() error: %v", err)
			}
			if result.Stdout != tt.wantStdout {
				t.Errorf("Stdout = %q, want %q", result.Stdout, tt.wantStdout)
			}
			if result.Truncated != tt.wantTruncated {
				t.Errorf("Truncated = %v, want %v", result.Truncated, tt.wantTruncated)
			}
		})
	}
}

func TestExecHelperStderr(t *testing.T) {
	cmd := exec.CommandContext(context.Background(), "/bin/sh", "-c", "echo error >&2")
	result, err := execHelper(cmd, 0, Internal)
	if err != nil {
		t.Fatalf("execHelper() error: %v", err)
	}
	if got := strings.TrimSpace(result.Stderr); got != "error" {
		t.Errorf("Stderr = %q, want %q", got, "error")
	}
}

func TestExecHelperStartFailure(t *testing.T) {
	cmd := exec.CommandContext(context.Background(), "/nonexistent/binary/execenv-test")
	if _, err := execHelper(cmd, 0, Internal); err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestExecHelperContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", "sleep 10")
	start := time.Now()
	result, err := execHelper(cmd, 0, Internal)
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("execHelper took %v after cancellation", elapsed)
	}
	if err == nil && result.ExitCode == 0 {
		t.Error("expected a killed process to report failure")
	}
}

func TestCappedBuffer(t *testing.T) {
	tests := []struct {
		name        string
		limit       int
		writes      []string
		want        string
		wantDropped bool
	}{
		{name: "under limit", limit: 10, writes: []string{"abc"}, want: "abc"},
		{name: "exact limit", limit: 3, writes: []string{"abc"}, want: "abc"},
		{name: "split write", limit: 4, writes: []string{"abc", "def"}, want: "abcd", wantDropped: true},
		{name: "full buffer drops", limit: 2, writes: []string{"ab", "cd"}, want: "ab", wantDropped: true},
		{name: "no limit", limit: 0, writes: []string{"abc", "def"}, want: "abcdef"},
		{name: "empty write at limit", limit: 2, writes: []string{"ab", ""}, want: "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &cappedBuffer{limit: tt.limit}
			for _, s := range tt.writes {
				n, err := b.Write([]byte(s))
				if err != nil {
					t.Fatalf("Write(%q) error: %v", s, err)
				}
				if n != len(s) {
					t.Errorf("Write(%q) = %d, want %d", s, n, len(s))
				}
			}
			if got := b.String(); got != tt.want {
				t.Errorf("buffer = %q, want %q", got, tt.want)
			}
			if b.dropped != tt.wantDropped {
				t.Errorf("dropped = %v, want %v", b.dropped, tt.wantDropped)
			}
		})
	}
}
