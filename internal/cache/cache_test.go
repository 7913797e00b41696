package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deprecheck/internal/ir"
	"deprecheck/internal/loader"
	"deprecheck/internal/rules"
	"deprecheck/internal/storage"
)

type countingLoader struct {
	calls atomic.Int32
	rs    *rules.RuleSet
	err   error
	delay time.Duration
}

func (l *countingLoader) Name() string { return "counting" }

func (l *countingLoader) Load(ctx context.Context, src loader.Source) (*rules.RuleSet, error) {
	l.calls.Add(1)
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	return l.rs, l.err
}

func sampleRules() *rules.RuleSet {
	return rules.NewBuilder().
		AddClass(`Acme\Old`, "use New").
		AddInterface(`Acme\OldContract`, "gone").
		AddMethod(`Acme\Service`, "legacy", "use modern()").
		Build()
}

func writeSource(t *testing.T, content string) loader.Source {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return loader.Source{Kind: loader.KindRuleFile, Path: path}
}

func newCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(Options{Dir: filepath.Join(t.TempDir(), "cache")})
	require.NoError(t, err)
	return c
}

func TestLoader_SecondLoadIsHit(t *testing.T) {
	ctx := context.Background()
	src := writeSource(t, "version: 1\n")
	inner := &countingLoader{rs: sampleRules()}
	c := newCache(t)
	l := c.Wrap(inner)

	first, err := l.Load(ctx, src)
	require.NoError(t, err)
	second, err := l.Load(ctx, src)
	require.NoError(t, err)

	assert.Equal(t, int32(1), inner.calls.Load())
	assert.True(t, first.Equal(second))
	assert.Equal(t, Stats{Hits: 1, Misses: 1}, c.Stats())

	// A fresh cache over the same directory reads the persisted entry.
	reopened, err := New(Options{Dir: c.store.(*storage.FileStore).Dir()})
	require.NoError(t, err)
	third, err := reopened.Wrap(inner).Load(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.True(t, sampleRules().Equal(third))
}

func TestLoader_SourceChangeIsMiss(t *testing.T) {
	ctx := context.Background()
	src := writeSource(t, "version: 1\n")
	inner := &countingLoader{rs: sampleRules()}
	l := newCache(t).Wrap(inner)

	_, err := l.Load(ctx, src)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(src.Path, []byte("version: 1\nclasses: {}\n"), 0o644))
	_, err = l.Load(ctx, src)
	require.NoError(t, err)

	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestLoader_CorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	src := writeSource(t, "version: 1\n")
	inner := &countingLoader{rs: sampleRules()}
	c := newCache(t)
	l := c.Wrap(inner)

	_, err := l.Load(ctx, src)
	require.NoError(t, err)

	fp, err := Fingerprint(src)
	require.NoError(t, err)
	key := Key(inner.Name(), src, fp, Scope{})
	entry := filepath.Join(c.store.(*storage.FileStore).Dir(), key[:2], key+".rsc")
	require.NoError(t, os.WriteFile(entry, []byte("garbage"), 0o644))

	rs, err := l.Load(ctx, src)
	require.NoError(t, err)
	assert.True(t, sampleRules().Equal(rs))
	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Equal(t, int64(1), c.Stats().Corrupt)

	// The entry was rewritten.
	_, err = l.Load(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestLoader_ConcurrentLoadsShareOneComputation(t *testing.T) {
	src := writeSource(t, "version: 1\n")
	inner := &countingLoader{rs: sampleRules(), delay: 20 * time.Millisecond}
	l := newCache(t).Wrap(inner)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rs, err := l.Load(context.Background(), src)
			assert.NoError(t, err)
			assert.Equal(t, 3, rs.Len())
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestLoader_Disabled(t *testing.T) {
	src := writeSource(t, "version: 1\n")
	inner := &countingLoader{rs: sampleRules()}
	c, err := New(Options{Disabled: true})
	require.NoError(t, err)
	assert.False(t, c.Enabled())

	l := c.Wrap(inner)
	for i := 0; i < 3; i++ {
		_, err := l.Load(context.Background(), src)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), inner.calls.Load())
	assert.Equal(t, Stats{}, c.Stats())
}

func TestLoader_ErrorsAreNotCached(t *testing.T) {
	src := writeSource(t, "version: 1\n")
	boom := errors.New("boom")
	inner := &countingLoader{err: boom}
	l := newCache(t).Wrap(inner)

	_, err := l.Load(context.Background(), src)
	assert.ErrorIs(t, err, boom)
	_, err = l.Load(context.Background(), src)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), inner.calls.Load())
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) { return nil, storage.ErrNotFound }
func (failingStore) Put(context.Context, string, []byte) error   { return errors.New("disk full") }
func (failingStore) Delete(context.Context, string) error        { return nil }

func TestLoader_WriteErrorStillReturnsResult(t *testing.T) {
	src := writeSource(t, "version: 1\n")
	inner := &countingLoader{rs: sampleRules()}
	c := NewWithStore(failingStore{}, Options{})

	rs, err := c.Wrap(inner).Load(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, sampleRules().Equal(rs))
	assert.Equal(t, int64(1), c.Stats().WriteErrors)
}

func TestCache_LoadPackage(t *testing.T) {
	ctx := context.Background()
	c := newCache(t)
	var calls int
	load := func(context.Context) (*rules.RuleSet, error) {
		calls++
		return sampleRules(), nil
	}

	pkg := loader.Package{Name: "acme/legacy", Version: "1.4.0", InstallPath: t.TempDir()}
	for i := 0; i < 2; i++ {
		rs, err := c.LoadPackage(ctx, pkg, load)
		require.NoError(t, err)
		assert.Equal(t, 3, rs.Len())
	}
	assert.Equal(t, 1, calls)

	pkg.Version = "1.5.0"
	_, err := c.LoadPackage(ctx, pkg, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	dev := loader.Package{Name: "acme/tools", Version: "dev-main", InstallPath: t.TempDir()}
	_, err = c.LoadPackage(ctx, dev, load)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dev.InstallPath, "New.php"), []byte("<?php\n"), 0o644))
	_, err = c.LoadPackage(ctx, dev, load)
	require.NoError(t, err)
	assert.Equal(t, 4, calls, "dev packages are fingerprinted by content")
}

func TestCache_LoadPackageKeysOnInstallPath(t *testing.T) {
	ctx := context.Background()
	c := newCache(t)
	var calls int
	load := func(context.Context) (*rules.RuleSet, error) {
		calls++
		return sampleRules(), nil
	}

	pkg := loader.Package{Name: "acme/legacy", Version: "1.4.0", InstallPath: t.TempDir()}
	_, err := c.LoadPackage(ctx, pkg, load)
	require.NoError(t, err)
	pkg.InstallPath = t.TempDir()
	_, err = c.LoadPackage(ctx, pkg, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestLoader_ScopeIsPartOfKey(t *testing.T) {
	ctx := context.Background()
	src := writeSource(t, "version: 1\n")
	inner := &countingLoader{rs: sampleRules()}
	dir := filepath.Join(t.TempDir(), "cache")

	for _, scope := range []Scope{
		{VendorDir: "vendor"},
		{VendorDir: "vendor", Ignored: []string{"tests"}},
		{VendorDir: "lib"},
		{VendorDir: "vendor", Ignored: []string{"tests"}},
	} {
		c, err := New(Options{Dir: dir, Scope: scope})
		require.NoError(t, err)
		_, err = c.Wrap(inner).Load(ctx, src)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), inner.calls.Load())

	assert.Equal(t,
		Scope{Ignored: []string{"b", "a"}}.String(),
		Scope{Ignored: []string{"a", "b"}}.String())
}

func TestLoader_LockfileSourcesBypassCache(t *testing.T) {
	src := writeSource(t, "{}")
	src.Kind = loader.KindLockfile
	inner := &countingLoader{rs: sampleRules()}
	c := newCache(t)
	l := c.Wrap(inner)

	for i := 0; i < 2; i++ {
		_, err := l.Load(context.Background(), src)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Equal(t, Stats{}, c.Stats())
}

func TestLoader_ReplaysWarningsOnHit(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Old.php"), []byte("<?php\n/** @deprecated */\nclass Old {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Broken.php"), []byte("<?php\nclass Broken extends {\n"), 0o644))
	src := loader.Source{Kind: loader.KindDirectory, Path: dir}

	c := newCache(t)
	l := c.Wrap(loader.NewDirectoryLoader(loader.Options{}))

	var runs [2][]ir.ParseWarning
	for i := range runs {
		ctx := loader.WithWarnings(context.Background(), func(w ir.ParseWarning) {
			runs[i] = append(runs[i], w)
		})
		rs, err := l.Load(ctx, src)
		require.NoError(t, err)
		assert.Equal(t, 1, rs.Len())
	}
	assert.Equal(t, Stats{Hits: 1, Misses: 1}, c.Stats())

	require.Len(t, runs[0], 1)
	require.Len(t, runs[1], 1)
	assert.Equal(t, runs[0][0].Filepath, runs[1][0].Filepath)
	assert.Contains(t, runs[0][0].Filepath, "Broken.php")
	assert.Equal(t, runs[0][0].Err.Error(), runs[1][0].Err.Error())
}

func TestFingerprint_Directory(t *testing.T) {
	dir := t.TempDir()
	src := loader.Source{Kind: loader.KindDirectory, Path: dir}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "A.php"), []byte("<?php\n"), 0o644))

	first, err := Fingerprint(src)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	second, err := Fingerprint(src)
	require.NoError(t, err)
	assert.Equal(t, first, second, "non-PHP files do not affect the fingerprint")

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "B.php"), []byte("<?php\n"), 0o644))
	third, err := Fingerprint(src)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)

	_, err = Fingerprint(loader.Source{Kind: loader.KindRuleFile, Path: filepath.Join(dir, "missing")})
	assert.Error(t, err)
}
