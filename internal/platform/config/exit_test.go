package config

import (
	"bytes"
	"testing"
)

func captureExit(t *testing.T) (*bytes.Buffer, *int) {
	t.Helper()
	var out bytes.Buffer
	code := -1
	prevStderr, prevExit := stderr, exit
	stderr = &out
	exit = func(c int) { code = c }
	t.Cleanup(func() {
		stderr, exit = prevStderr, prevExit
	})
	return &out, &code
}

func TestExitfWritesMessageAndExitsWithOne(t *testing.T) {
	out, code := captureExit(t)

	Exitf("load env file: %s", "permission denied")

	if *code != 1 {
		t.Fatalf("exit code = %d, want 1", *code)
	}
	if got := out.String(); got != "load env file: permission denied\n" {
		t.Fatalf("stderr = %q", got)
	}
}

func TestExitCodefClampsCode(t *testing.T) {
	tests := []struct {
		code int
		want int
	}{
		{code: 2, want: 2},
		{code: 0, want: 1},
		{code: -3, want: 1},
	}
	for _, tc := range tests {
		_, code := captureExit(t)
		ExitCodef(tc.code, "boom")
		if *code != tc.want {
			t.Fatalf("ExitCodef(%d) exit = %d, want %d", tc.code, *code, tc.want)
		}
	}
}
