package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"deprecheck/internal/loader"
	"deprecheck/internal/rules"
)

// Fingerprint summarizes the content a source resolves to. Files are
// hashed by content; directories by the path, size and modification time
// of every PHP file below them.
func Fingerprint(src loader.Source) (string, error) {
	if src.Kind == loader.KindDirectory {
		return dirFingerprint(src.Path)
	}
	return fileFingerprint(src.Path)
}

func fileFingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func dirFingerprint(root string) (string, error) {
	var lines []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".php") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		lines = append(lines, fmt.Sprintf("%s\x00%d\x00%d", filepath.ToSlash(rel), info.Size(), info.ModTime().UnixNano()))
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, l := range lines {
		io.WriteString(h, l)
		io.WriteString(h, "\n")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// entryVersion changes whenever the layout of a stored entry changes.
const entryVersion = "2"

// Scope is the loader configuration that changes what a source yields.
type Scope struct {
	VendorDir string
	Ignored   []string
}

func (s Scope) String() string {
	ignored := append([]string(nil), s.Ignored...)
	sort.Strings(ignored)
	return s.VendorDir + "\x00" + strings.Join(ignored, "\x00")
}

// Key derives the storage key of a source for a loader.
func Key(loaderName string, src loader.Source, fingerprint string, scope Scope) string {
	return digest(loaderName, string(src.Kind), absPath(src.Path), fingerprint, scope.String(),
		fmt.Sprint(rules.FormatVersion), entryVersion)
}

// PackageKey derives the storage key of one lockfile package.
func PackageKey(pkg loader.Package, fingerprint string, scope Scope) string {
	return digest("package", pkg.Name, pkg.Version, absPath(pkg.InstallPath), fingerprint, scope.String(),
		fmt.Sprint(rules.FormatVersion), entryVersion)
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func digest(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		io.WriteString(h, p)
		h.Write([]byte{'|'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
