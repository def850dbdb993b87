package sandbox

import (
	"regexp"
	"sort"
	"strings"
)

// depsDir is the workspace-local directory third-party packages are
// installed into before a run. It is never collected as an artifact.
const depsDir = ".deps"

var importLine = regexp.MustCompile(`^\s*(?:import|from)\s+([a-zA-Z0-9_.]+)`)

// pythonStdlib holds top-level standard-library module names that never
// need installing.
var pythonStdlib = map[string]bool{
	"abc": true, "argparse": true, "ast": true, "asyncio": true,
	"base64": true, "bisect": true, "builtins": true, "calendar": true,
	"collections": true, "concurrent": true, "contextlib": true,
	"copy": true, "csv": true, "dataclasses": true, "datetime": true,
	"decimal": true, "difflib": true, "enum": true, "errno": true,
	"functools": true, "gc": true, "getpass": true, "glob": true,
	"gzip": true, "hashlib": true, "heapq": true, "html": true,
	"http": true, "importlib": true, "inspect": true, "io": true,
	"itertools": true, "json": true, "logging": true, "math": true,
	"multiprocessing": true, "numbers": true, "operator": true,
	"os": true, "pathlib": true, "pickle": true, "platform": true,
	"pprint": true, "queue": true, "random": true, "re": true,
	"secrets": true, "select": true, "shlex": true, "shutil": true,
	"signal": true, "site": true, "socket": true, "sqlite3": true,
	"ssl": true, "stat": true, "statistics": true, "string": true,
	"struct": true, "subprocess": true, "sys": true, "tarfile": true,
	"tempfile": true, "textwrap": true, "threading": true, "time": true,
	"timeit": true, "tomllib": true, "traceback": true, "types": true,
	"typing": true, "unicodedata": true, "unittest": true,
	"urllib": true, "uuid": true, "venv": true, "warnings": true,
	"weakref": true, "xml": true, "zipfile": true, "zlib": true,
	"zoneinfo": true,
}

// extractImports returns the sorted set of top-level third-party package
// names the code imports. Standard-library modules are filtered out.
func extractImports(code string) []string {
	seen := make(map[string]bool)
	for _, line := range strings.Split(code, "\n") {
		m := importLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		pkg := strings.SplitN(m[1], ".", 2)[0]
		if pkg == "" || pythonStdlib[pkg] {
			continue
		}
		seen[pkg] = true
	}
	pkgs := make([]string, 0, len(seen))
	for pkg := range seen {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)
	return pkgs
}
