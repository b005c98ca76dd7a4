// Package e2e drives the sous binary end to end. Each test builds the CLI
// once, then runs it as one or more devices that share a single sync folder,
// the way two laptops would share a Dropbox directory.
package e2e

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
)

// Harness builds the sous binary and hands out devices wired to one shared
// sync directory.
type Harness struct {
	T          *testing.T
	BinaryPath string
	SharedDir  string
	Timeout    time.Duration
}

// NewHarness creates an end-to-end harness with a fresh shared directory.
// It builds the sous binary if needed.
func NewHarness(t *testing.T) *Harness {
	t.Helper()

	sharedDir := filepath.Join(t.TempDir(), "shared")
	if err := os.MkdirAll(sharedDir, 0o755); err != nil {
		t.Fatalf("failed to create shared directory: %v", err)
	}

	return &Harness{
		T:          t,
		BinaryPath: getBinary(t),
		SharedDir:  sharedDir,
		Timeout:    30 * time.Second,
	}
}

// getBinary returns the path to the sous binary, building it unless
// SOUS_BINARY points at an existing one.
func getBinary(t *testing.T) string {
	t.Helper()

	if path := os.Getenv("SOUS_BINARY"); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	binaryPath := filepath.Join(t.TempDir(), "sous-test")

	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/sous")
	cmd.Dir = findProjectRoot(t)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.Fatalf("failed to build sous binary: %v\n%s", err, stderr.String())
	}

	return binaryPath
}

// findProjectRoot walks up from the working directory to the module root.
func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("could not find project root (no go.mod found)")
		}
		dir = parent
	}
}

// Device is one simulated machine: its own home, data dir and config file,
// sharing the harness's sync directory with every other device.
type Device struct {
	h *Harness

	Name       string
	HomeDir    string
	DataDir    string
	ConfigPath string

	LastOutput   string
	LastError    string
	LastExitCode int
}

// NewDevice creates a device with empty home and data directories. The
// config file is not written yet; call WriteConfig, or run 'init' to
// scaffold the defaults.
func (h *Harness) NewDevice(name string) *Device {
	h.T.Helper()

	root := filepath.Join(h.T.TempDir(), name)
	homeDir := filepath.Join(root, "home")
	dataDir := filepath.Join(root, "data")
	for _, dir := range []string{homeDir, dataDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			h.T.Fatalf("failed to create directory %s: %v", dir, err)
		}
	}

	return &Device{
		h:          h,
		Name:       name,
		HomeDir:    homeDir,
		DataDir:    dataDir,
		ConfigPath: filepath.Join(root, "config.yaml"),
	}
}

// WriteConfig writes a config pointing the device's database at its own
// data dir and its storage at the shared sync directory.
func (d *Device) WriteConfig() {
	d.h.T.Helper()

	content := fmt.Sprintf(`storage:
  provider: directory
  path: %s
database:
  path: %s
`, d.h.SharedDir, filepath.Join(d.DataDir, "sous.db"))

	if err := os.WriteFile(d.ConfigPath, []byte(content), 0o644); err != nil {
		d.h.T.Fatalf("failed to write config for %s: %v", d.Name, err)
	}
}

// Run executes a sous command as this device and returns the exit code.
func (d *Device) Run(args ...string) int {
	d.h.T.Helper()

	full := append([]string{"--config", d.ConfigPath}, args...)
	cmd := exec.Command(d.h.BinaryPath, full...)
	cmd.Dir = d.HomeDir

	cmd.Env = append(os.Environ(),
		fmt.Sprintf("HOME=%s", d.HomeDir),
		fmt.Sprintf("XDG_DATA_HOME=%s", d.DataDir),
		fmt.Sprintf("XDG_CONFIG_HOME=%s", filepath.Join(d.HomeDir, ".config")),
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- cmd.Run()
	}()

	select {
	case err := <-done:
		d.LastOutput = stdout.String()
		d.LastError = stderr.String()
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				d.LastExitCode = exitErr.ExitCode()
			} else {
				d.LastExitCode = -1
			}
		} else {
			d.LastExitCode = 0
		}
	case <-time.After(d.h.Timeout):
		_ = cmd.Process.Kill()
		d.h.T.Fatalf("command timed out after %v: %v", d.h.Timeout, args)
	}

	return d.LastExitCode
}

// RunSuccess executes a command and expects it to succeed.
func (d *Device) RunSuccess(args ...string) string {
	d.h.T.Helper()

	exitCode := d.Run(args...)
	if exitCode != 0 {
		d.h.T.Fatalf("[%s] command failed with exit code %d: %v\nOutput: %s\nStderr: %s",
			d.Name, exitCode, args, d.LastOutput, d.LastError)
	}

	return d.LastOutput
}

// RunFail executes a command and expects it to fail.
func (d *Device) RunFail(args ...string) string {
	d.h.T.Helper()

	exitCode := d.Run(args...)
	if exitCode == 0 {
		d.h.T.Fatalf("[%s] command succeeded but expected failure: %v\nOutput: %s",
			d.Name, args, d.LastOutput)
	}

	return d.LastOutput + d.LastError
}

var uuidPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

// ExtractID returns the first record id printed in parentheses, the shape
// every add/generate command uses to report what it created.
func ExtractID(t *testing.T, output string) string {
	t.Helper()

	m := regexp.MustCompile(`\(([0-9a-f-]{36})\)`).FindStringSubmatch(output)
	if m == nil {
		t.Fatalf("no record id found in output:\n%s", output)
	}
	return m[1]
}

// ExtractItemID returns the id on the first output line mentioning name,
// for picking one row out of a printed table or checklist.
func ExtractItemID(t *testing.T, output, name string) string {
	t.Helper()

	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, name) {
			continue
		}
		if id := uuidPattern.FindString(line); id != "" {
			return id
		}
	}
	t.Fatalf("no item line for %q in output:\n%s", name, output)
	return ""
}
