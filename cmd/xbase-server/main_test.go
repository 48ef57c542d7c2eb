package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	env, err := loadDotEnv(dir)
	if err != nil || len(env) != 0 {
		t.Fatalf("missing file: %v, %v", env, err)
	}
	content := "# secrets\nSUPABASE_URL=https://x.supabase.co\nJWT_SECRET=\"a b\"\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	if env, err = loadDotEnv(dir); err != nil {
		t.Fatal(err)
	}
	if env["SUPABASE_URL"] != "https://x.supabase.co" || env["JWT_SECRET"] != "a b" {
		t.Errorf("env = %v", env)
	}
}
