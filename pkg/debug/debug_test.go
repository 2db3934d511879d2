package debug

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseCategories(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]bool
	}{
		{"empty", "", map[string]bool{}},
		{"single", "pipeline", map[string]bool{"pipeline": true}},
		{"multiple", "pipeline,router", map[string]bool{"pipeline": true, "router": true}},
		{"all", "all", map[string]bool{"all": true}},
		{"with spaces", " pipeline , router ", map[string]bool{"pipeline": true, "router": true}},
		{"uppercase normalized", "PIPELINE,Router", map[string]bool{"pipeline": true, "router": true}},
		{"empty segments", "pipeline,,router", map[string]bool{"pipeline": true, "router": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCategories(tt.input)
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("got[%q] = %v, want %v", k, got[k], v)
				}
			}
			if len(got) != len(tt.want) {
				t.Errorf("len(got) = %d, want %d", len(got), len(tt.want))
			}
		})
	}
}

func TestEnabled(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("pipeline,router")

	if !Enabled("pipeline") {
		t.Error("pipeline should be enabled")
	}
	if !Enabled("router") {
		t.Error("router should be enabled")
	}
	if Enabled("auth") {
		t.Error("auth should not be enabled")
	}
}

func TestEnabled_All(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("all")

	if !Enabled("pipeline") || !Enabled("anything") {
		t.Error("every category should be enabled via 'all'")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"TRACE", LevelTrace},
		{"trace", LevelTrace},
		{"DEBUG", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestInitWriter(t *testing.T) {
	origCats := categories
	origLogger := slog.Default()
	defer func() {
		categories = origCats
		slog.SetDefault(origLogger)
	}()
	t.Setenv("KETTE_DEBUG", "")
	t.Setenv("KETTE_LOG_LEVEL", "")

	var buf bytes.Buffer
	InitWriter(&buf, "pipeline", "DEBUG", "json")

	if got := Categories(); len(got) != 1 || got[0] != "pipeline" {
		t.Fatalf("Categories() = %v, want [pipeline]", got)
	}

	Log("pipeline", "phase done", "phase", "request")
	Log("router", "ignored")

	out := buf.String()
	if !strings.Contains(out, `"msg":"phase done"`) {
		t.Errorf("expected JSON debug record, got %q", out)
	}
	if strings.Contains(out, "ignored") {
		t.Errorf("disabled category was logged: %q", out)
	}
}

func TestInitWriter_EnvOverridesConfig(t *testing.T) {
	origCats := categories
	origLogger := slog.Default()
	defer func() {
		categories = origCats
		slog.SetDefault(origLogger)
	}()
	t.Setenv("KETTE_DEBUG", "auth")
	t.Setenv("KETTE_LOG_LEVEL", "ERROR")

	var buf bytes.Buffer
	logger := InitWriter(&buf, "pipeline", "DEBUG", "text")

	if Enabled("pipeline") || !Enabled("auth") {
		t.Errorf("categories = %v, want env override [auth]", Categories())
	}
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info record emitted at ERROR level: %q", buf.String())
	}
}

func TestLog_DisabledCategory(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("")

	Log("pipeline", "test message", "key", "value")
	Trace("pipeline", "trace message", "key", "value")
}
