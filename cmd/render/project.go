package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"uxforge/internal/runner"
)

const projectDirName = "next_project"

// latestProject returns the most recently modified generate/<id>/next_project
// below runtimeDir.
func latestProject(runtimeDir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(runtimeDir, "generate", "*", projectDirName))
	if err != nil {
		return "", err
	}
	var (
		best    string
		bestMod int64
	)
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.IsDir() {
			continue
		}
		if mod := info.ModTime().UnixNano(); best == "" || mod > bestMod {
			best, bestMod = m, mod
		}
	}
	if best == "" {
		return "", fmt.Errorf("no generated project under %s", filepath.Join(runtimeDir, "generate"))
	}
	return best, nil
}

type packageManager struct {
	name     string
	lockfile string
	install  []string
}

// script builds the argv for a package.json script, forwarding the port to
// next when one is given.
func (pm packageManager) script(name, port string) []string {
	args := []string{"run", name}
	if port == "" {
		return args
	}
	if pm.name == "npm" {
		args = append(args, "--")
	}
	return append(args, "-p", port)
}

var packageManagers = []packageManager{
	{name: "pnpm", lockfile: "pnpm-lock.yaml", install: []string{"install"}},
	{name: "yarn", lockfile: "yarn.lock", install: []string{"install"}},
	{name: "npm", lockfile: "package-lock.json", install: []string{"install", "--no-audit", "--no-fund"}},
}

// pickPackageManager prefers the manager whose lockfile is present, then the
// first one installed.
func pickPackageManager(r runner.CommandRunner, dir string) (packageManager, error) {
	for _, pm := range packageManagers {
		if _, err := os.Stat(filepath.Join(dir, pm.lockfile)); err == nil && r.LookPath(pm.name) {
			return pm, nil
		}
	}
	for _, pm := range packageManagers {
		if r.LookPath(pm.name) {
			return pm, nil
		}
	}
	return packageManager{}, errors.New("none of pnpm, yarn or npm is installed")
}

func hasNodeModules(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, "node_modules"))
	return err == nil && info.IsDir()
}
