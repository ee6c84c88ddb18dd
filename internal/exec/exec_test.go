package exec

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRealRunner_ExitCodes(t *testing.T) {
	r := NewRealRunner()
	ctx := context.Background()

	res, err := r.Run(ctx, "sh", []string{"-c", "echo out; echo err >&2; exit 3"}, RunOpts{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if strings.TrimSpace(res.Stdout) != "out" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "out\n")
	}
	if strings.TrimSpace(res.Stderr) != "err" {
		t.Errorf("Stderr = %q, want %q", res.Stderr, "err\n")
	}
}

func TestRealRunner_Dir(t *testing.T) {
	dir := t.TempDir()
	res, err := NewRealRunner().Run(context.Background(), "pwd", nil, RunOpts{Dir: dir})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(res.Stdout), strings.TrimPrefix(dir, "/private")) {
		t.Errorf("pwd = %q, want suffix %q", res.Stdout, dir)
	}
}

func TestRealRunner_MissingBinary(t *testing.T) {
	_, err := NewRealRunner().Run(context.Background(), "nodebuild-definitely-not-a-binary", nil, RunOpts{})
	if err == nil {
		t.Fatal("expected start error for missing binary")
	}
}

func TestRealRunner_ContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := NewRealRunner().Run(ctx, "sleep", []string{"10"}, RunOpts{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v, want context.DeadlineExceeded", err)
	}
}
