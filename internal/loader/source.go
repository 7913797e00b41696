package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Kind selects the loading strategy for a rule source.
type Kind string

const (
	KindDirectory Kind = "directory"
	KindLockfile  Kind = "lockfile"
	KindRuleFile  Kind = "rulefile"
)

// LockfileName is the dependency manifest recognized by Select.
const LockfileName = "composer.lock"

// Source is a rule source of a known kind.
type Source struct {
	Kind Kind
	Path string
}

func (s Source) String() string {
	return fmt.Sprintf("%s:%s", s.Kind, s.Path)
}

// Select decides the kind of a path: a directory is scanned for
// annotations, a composer.lock is read as a dependency manifest, anything
// else is a rule file.
func Select(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Source{Path: path}, &LoadError{Source: Source{Path: path}, Op: "select", Err: err}
	}
	switch {
	case info.IsDir():
		return Source{Kind: KindDirectory, Path: path}, nil
	case strings.EqualFold(filepath.Base(path), LockfileName):
		return Source{Kind: KindLockfile, Path: path}, nil
	default:
		return Source{Kind: KindRuleFile, Path: path}, nil
	}
}

// LoadError reports a fatal failure to produce a rule set.
type LoadError struct {
	Source Source
	Op     string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load rules from %s: %s: %v", e.Source.Path, e.Op, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
