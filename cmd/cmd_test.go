package cmd

import (
	"bytes"
	"encoding/base64"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out.String()
}

func TestVersion(t *testing.T) {
	if got := run(t, "version"); !strings.HasPrefix(got, "workshopd dev") {
		t.Fatalf("unexpected version output %q", got)
	}
	if got := run(t, "version", "--short"); got != "dev\n" {
		t.Fatalf("expected bare version, got %q", got)
	}
}

func TestKeys(t *testing.T) {
	got := strings.TrimSpace(run(t, "keys"))
	v, ok := strings.CutPrefix(got, "export COOKIE_SECRET=")
	if !ok {
		t.Fatalf("unexpected output %q", got)
	}
	b, err := base64.StdEncoding.DecodeString(v)
	if err != nil || len(b) != 32 {
		t.Fatalf("expected 32 bytes of base64, got %q (%v)", v, err)
	}
}

func TestSlotsOffline(t *testing.T) {
	t.Setenv("DEFAULT_DROP_OFF_START", "09:00")
	t.Setenv("DEFAULT_DROP_OFF_END", "12:00")
	t.Setenv("DEFAULT_SLOT_MINUTES", "30")

	got := run(t, "slots", "--offline", "--date", "2024-06-12")
	if !strings.Contains(got, "slots=09:00,09:30,10:00,10:30,11:00,11:30") {
		t.Fatalf("unexpected slots output %q", got)
	}
}
