package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/faucetdb/tollgate/internal/auth"
	"github.com/faucetdb/tollgate/internal/model"
)

// run executes the command tree with args against a fresh data directory
// and returns stdout.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()

	stdoutIsTerminal = func() bool { return false }

	cmd := newRootCmd("test", "abc123", "today")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--data-dir", dir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestKeyLifecycle(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "key", "generate", "--lifetime", "1h")
	if err != nil {
		t.Fatalf("key generate: %v", err)
	}
	raw := strings.TrimSpace(out)
	if _, err := auth.ParseKey(raw); err != nil {
		t.Fatalf("generate printed %q: %v", raw, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "tollgate.db")); err != nil {
		t.Errorf("key store not created in data dir: %v", err)
	}

	if _, err := run(t, dir, "key", "verify", raw); err != nil {
		t.Errorf("key verify: %v", err)
	}

	out, err = run(t, dir, "key", "list", "--json")
	if err != nil {
		t.Fatalf("key list: %v", err)
	}
	var rows []model.KeyResponse
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode list: %v (%s)", err, out)
	}
	if len(rows) != 1 || rows[0].Key != raw {
		t.Errorf("unexpected list: %+v", rows)
	}

	if _, err := run(t, dir, "key", "revoke", raw); err != nil {
		t.Fatalf("key revoke: %v", err)
	}
	if _, err := run(t, dir, "key", "verify", raw); err == nil {
		t.Error("revoked key still verifies")
	}
}

func TestKeyVerifyRejectsMalformed(t *testing.T) {
	_, err := run(t, t.TempDir(), "key", "verify", "nope")
	if !errors.Is(err, auth.ErrWrongLength) {
		t.Errorf("expected wrong length error, got %v", err)
	}
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tollgate.yaml")

	if _, err := run(t, dir, "config", "init", "--path", path); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := run(t, dir, "config", "init", "--path", path); err == nil {
		t.Error("second init without --force should fail")
	}
	if _, err := run(t, dir, "config", "init", "--path", path, "--force"); err != nil {
		t.Errorf("init --force: %v", err)
	}
}

func TestAdminTokenRequiresSubject(t *testing.T) {
	if _, err := run(t, t.TempDir(), "admin", "token"); err == nil {
		t.Error("expected error without --subject")
	}
}

func TestVersionJSON(t *testing.T) {
	out, err := run(t, t.TempDir(), "version", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var info buildInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Version != "test" || info.Commit != "abc123" || info.KeyLength != auth.KeyLength {
		t.Errorf("unexpected info: %v", info)
	}
}

func TestCommandTreesDoNotShareConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("auth:\n  key_header: X-From-File\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, dir, "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show --config: %v", err)
	}
	if !strings.Contains(out, "key_header: X-From-File") || !strings.Contains(out, path) {
		t.Fatalf("config file not applied:\n%s", out)
	}

	// A fresh tree must not inherit the file or values read by the last one.
	out, err = run(t, dir, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "X-From-File") || strings.Contains(out, path) {
		t.Errorf("previous --config leaked into a new command tree:\n%s", out)
	}
	if !strings.Contains(out, "key_header: X-Access-Key") {
		t.Errorf("default key header missing:\n%s", out)
	}
}
