package config

import (
	"os"
	"path/filepath"
	"sync"
)

// HomeEnv overrides workspace discovery.
const HomeEnv = "EDGEQA_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the edgeqa workspace directory. The first match wins:
// $EDGEQA_HOME, the nearest directory at or above the working directory
// holding a workspace config, <home> when the binary lives in <home>/bin,
// and finally the working directory. The result is cached.
func GetHome() string {
	homeOnce.Do(func() {
		cwd, err := os.Getwd()
		if err != nil {
			cwd = "."
		}
		exe, err := os.Executable()
		if err == nil {
			if resolved, err := filepath.EvalSymlinks(exe); err == nil {
				exe = resolved
			}
		}
		homeDir = findHome(os.Getenv(HomeEnv), cwd, exe)
	})
	return homeDir
}

// GetReportsDir returns <home>/reports, the parent of timestamped run
// folders.
func GetReportsDir() string {
	return filepath.Join(GetHome(), "reports")
}

// ResetHome clears the cached home. Tests that set EDGEQA_HOME call it.
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}

func findHome(env, cwd, exe string) string {
	if env != "" {
		return env
	}
	for dir := cwd; ; {
		if _, ok := findConfig(dir); ok {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	if exe != "" {
		if bin := filepath.Dir(exe); filepath.Base(bin) == "bin" {
			return filepath.Dir(bin)
		}
	}
	return cwd
}
