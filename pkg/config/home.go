package config

import (
	"os"
	"path/filepath"
	"sync"
)

// EnvHome overrides where Playwright and its browsers are installed.
const EnvHome = "WEBFLOW_RUNNER_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the directory holding the Playwright driver and the
// browsers it downloads. It is resolved once per process, in order:
//  1. $WEBFLOW_RUNNER_HOME
//  2. <dir>, when the binary is installed as <dir>/bin/webflow-runner
//  3. <user cache dir>/webflow-runner
//  4. .webflow-runner in the working directory
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome(os.Getenv(EnvHome), executableDir(), os.UserCacheDir)
	})
	return homeDir
}

// PlaywrightDriverDir returns <home>/playwright/driver, where the
// Playwright driver for this binary is unpacked.
func PlaywrightDriverDir() string {
	return filepath.Join(GetHome(), "playwright", "driver")
}

// BrowsersDir returns <home>/playwright/browsers. It is handed to
// Playwright as its browsers path so runs share one browser download.
func BrowsersDir() string {
	return filepath.Join(GetHome(), "playwright", "browsers")
}

func resolveHome(env, binDir string, userCacheDir func() (string, error)) string {
	if env != "" {
		return env
	}

	if binDir != "" && filepath.Base(binDir) == "bin" {
		return filepath.Dir(binDir)
	}

	if cache, err := userCacheDir(); err == nil && cache != "" {
		return filepath.Join(cache, "webflow-runner")
	}

	return ".webflow-runner"
}

// executableDir returns the directory of the running binary with
// symlinks resolved, or "" if it cannot be determined.
func executableDir() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = resolved
	}
	return filepath.Dir(execPath)
}

// ResetHome forgets the resolved home directory (for testing).
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
