package shared

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tc := []struct {
		name string
		in   string
		want string
	}{
		{name: "tilde prefix", in: "~/.spotx/refresh_token", want: filepath.Join(home, ".spotx/refresh_token")},
		{name: "bare tilde", in: "~", want: home},
		{name: "absolute", in: "/tmp/token", want: "/tmp/token"},
		{name: "relative", in: "./spotx.db", want: "./spotx.db"},
		{name: "tilde user form untouched", in: "~other/file", want: "~other/file"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandPath(tt.in); got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestErrors(t *testing.T) {
	t.Run("ResourceError unwraps", func(t *testing.T) {
		err := &ResourceError{Resource: "playlists", Err: fmt.Errorf("%w: offset 50", ErrPagination)}

		if !errors.Is(err, ErrPagination) {
			t.Error("expected ResourceError to unwrap to ErrPagination")
		}
		if !strings.HasPrefix(err.Error(), "playlists: ") {
			t.Errorf("unexpected message %q", err.Error())
		}
	})

	t.Run("IsAuthError", func(t *testing.T) {
		if !IsAuthError(fmt.Errorf("%w: %w", ErrRefreshFailed, ErrExchange)) {
			t.Error("refresh failure should abort")
		}
		if IsAuthError(fmt.Errorf("%w: 500", ErrAPIRequest)) {
			t.Error("API errors are per-resource")
		}
	})
}

func TestNewFileLogger(t *testing.T) {
	t.Run("mirrors to writer and file", func(t *testing.T) {
		var buf bytes.Buffer
		logPath := filepath.Join(t.TempDir(), "spotx.log")

		logger, closer := NewFileLogger(&buf, LogConfig{Level: "debug", File: logPath, MaxSizeMB: 1}, false)
		logger.Debug("hello", "component", "test")
		if err := closer.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}

		if !strings.Contains(buf.String(), "hello") {
			t.Errorf("expected writer output, got %q", buf.String())
		}
		data, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("failed to read log file: %v", err)
		}
		if !strings.Contains(string(data), "component=test") {
			t.Errorf("expected log file entry, got %q", string(data))
		}
	})

	t.Run("file only without file discards", func(t *testing.T) {
		var buf bytes.Buffer
		logger, _ := NewFileLogger(&buf, LogConfig{Level: "info"}, true)
		logger.Info("hidden")

		if buf.Len() != 0 {
			t.Errorf("expected no output, got %q", buf.String())
		}
	})
}

func TestBrowserCommand(t *testing.T) {
	for _, rt := range []string{"darwin", "linux", "windows"} {
		t.Run(rt, func(t *testing.T) {
			cmd, err := browserCommand(rt, "https://accounts.spotify.com/authorize")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := cmd.Args[len(cmd.Args)-1]; got != "https://accounts.spotify.com/authorize" {
				t.Errorf("url should be the last argument, got %q", got)
			}
		})
	}

	t.Run("unsupported", func(t *testing.T) {
		original := getRuntime
		defer func() { getRuntime = original }()
		getRuntime = func() string { return "plan9" }

		if err := OpenBrowser("https://example.com"); err == nil {
			t.Error("expected unsupported platform error")
		}
	})
}
