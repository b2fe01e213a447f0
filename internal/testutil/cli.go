// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package testutil

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
)

var (
	binaryOnce sync.Once
	binaryPath string
	buildErr   error
)

// BuildBinary builds the sirseer-collect binary once per test process.
func BuildBinary(t *testing.T) string {
	t.Helper()

	binaryOnce.Do(func() {
		tmpDir, err := os.MkdirTemp("", "sirseer-collect-test")
		if err != nil {
			buildErr = err
			return
		}
		binaryPath = filepath.Join(tmpDir, "sirseer-collect")

		root, err := findProjectRoot()
		if err != nil {
			buildErr = err
			return
		}

		cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/collect")
		cmd.Dir = root
		if output, err := cmd.CombinedOutput(); err != nil {
			buildErr = err
			t.Logf("Build output: %s", output)
		}
	})

	if buildErr != nil {
		t.Fatalf("Failed to build binary: %v", buildErr)
	}
	return binaryPath
}

// CLIResult is the outcome of one binary invocation.
type CLIResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// RunCLI runs the binary in dir with a scrubbed environment: HOME points
// at dir so no user configuration or state leaks into the run.
func RunCLI(t *testing.T, dir string, env map[string]string, args ...string) CLIResult {
	t.Helper()

	cmd := exec.Command(BuildBinary(t), args...)
	cmd.Dir = dir
	cmd.Env = []string{"HOME=" + dir, "PATH=" + os.Getenv("PATH")}
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	result := CLIResult{}
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			t.Fatalf("Failed to run binary: %v", err)
		}
		result.ExitCode = exitErr.ExitCode()
	}
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	return result
}

// AssertExitCode fails the test when the process exited with another code.
func AssertExitCode(t *testing.T, result CLIResult, want int) {
	t.Helper()

	if result.ExitCode != want {
		t.Errorf("Expected exit code %d, got %d\nStdout: %s\nStderr: %s", want, result.ExitCode, result.Stdout, result.Stderr)
	}
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}
