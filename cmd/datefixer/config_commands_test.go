package main

import (
	"os"
	"path/filepath"
	"testing"

	"datefixer/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env.configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Strategies: container, signature")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, err = runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}
	if _, err := runCLI(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, err = runCLI(t, target, "config", "validate")
	if err != nil {
		t.Fatalf("validate sample: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestDoctorPassesWithDefaults(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := runCLI(t, env.configPath, "doctor")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "State directory")
	requireContains(t, out, "Journal")
	requireContains(t, out, "All checks passed")
}

func TestDoctorFailsWithoutRequiredSevenZip(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithArchiveFormat("external"), testsupport.WithEmptyPath())
	out, err := runCLI(t, env.configPath, "doctor")
	if err == nil {
		t.Fatalf("expected doctor to fail, got output %q", out)
	}
	requireContains(t, out, "7-Zip")
	requireContains(t, out, "FAIL")
}

func TestDoctorTreatsSevenZipAsOptionalForAuto(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithArchiveFormat("auto"), testsupport.WithEmptyPath())
	out, err := runCLI(t, env.configPath, "doctor")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "missing (optional)")
}
