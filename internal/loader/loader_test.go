package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deprecheck/internal/ir"
	"deprecheck/internal/rules"
)

func TestSelect(t *testing.T) {
	dir := t.TempDir()
	lock := filepath.Join(dir, "composer.lock")
	ruleFile := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(lock, []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(ruleFile, []byte("version: 1\n"), 0o644))

	cases := []struct {
		path string
		want Kind
	}{
		{dir, KindDirectory},
		{lock, KindLockfile},
		{ruleFile, KindRuleFile},
	}
	for _, tc := range cases {
		src, err := Select(tc.path)
		require.NoError(t, err)
		assert.Equal(t, tc.want, src.Kind, tc.path)
		assert.Equal(t, tc.path, src.Path)
	}

	_, err := Select(filepath.Join(dir, "missing"))
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "select", loadErr.Op)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestDirectoryLoader(t *testing.T) {
	var warnings []ir.ParseWarning
	l := NewDirectoryLoader(Options{OnWarning: func(w ir.ParseWarning) { warnings = append(warnings, w) }})

	rs, err := l.Load(context.Background(), Source{Kind: KindDirectory, Path: filepath.Join("testdata", "annotated")})
	require.NoError(t, err)

	mailer, ok := rs.Class(`Acme\Mail\Mailer`)
	require.True(t, ok)
	assert.Equal(t, `Use Acme\Mail\Transport instead.`, mailer.Message)

	retries, ok := rs.Class(`acme\mail\retries`)
	require.True(t, ok, "traits are recorded as classes")
	assert.Equal(t, `Acme\Mail\Retries is deprecated`, retries.Message)

	queue, ok := rs.Interface(`Acme\Mail\Queue`)
	require.True(t, ok)
	assert.Equal(t, "since 3.1", queue.Message)

	sendNow, ok := rs.Method(`Acme\Mail\Mailer`, "sendNow")
	require.True(t, ok)
	assert.Equal(t, `Acme\Mail\Mailer::sendNow is deprecated`, sendNow.Message)

	enqueue, ok := rs.Method(`Acme\Mail\Queue`, "enqueue")
	require.True(t, ok)
	assert.Equal(t, "use push()", enqueue.Message)

	_, ok = rs.Method(`Acme\Mail\Mailer`, "send")
	assert.False(t, ok)
	assert.Equal(t, 5, rs.Len())

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Filepath, "Broken.php")
}

func TestDirectoryLoader_Errors(t *testing.T) {
	l := NewDirectoryLoader(Options{})
	ctx := context.Background()

	_, err := l.Load(ctx, Source{Kind: KindDirectory, Path: filepath.Join("testdata", "missing")})
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)

	_, err = l.Load(ctx, Source{Kind: KindDirectory, Path: filepath.Join("testdata", "lock", "composer.lock")})
	require.ErrorAs(t, err, &loadErr)

	_, err = l.Load(ctx, Source{Kind: KindRuleFile, Path: "testdata"})
	require.ErrorAs(t, err, &loadErr)
}

func TestLockfileLoader(t *testing.T) {
	var warnings []ir.ParseWarning
	opts := Options{OnWarning: func(w ir.ParseWarning) { warnings = append(warnings, w) }}
	l := NewLockfileLoader(nil, opts)

	rs, err := l.Load(context.Background(), Source{Kind: KindLockfile, Path: filepath.Join("testdata", "lock", "composer.lock")})
	require.NoError(t, err, "malformed entries must not abort loading")

	old, ok := rs.Class(`Acme\Legacy\OldLogger`)
	require.True(t, ok)
	assert.Equal(t, `Use Psr\Log\LoggerInterface.`, old.Message)

	_, ok = rs.Method(`Acme\Legacy\OldLogger`, "create")
	assert.True(t, ok)

	_, ok = rs.Interface(`Acme\Tools\Helper`)
	assert.True(t, ok, "install-path is honored")

	require.Len(t, warnings, 3)
	var reasons []string
	for _, w := range warnings {
		reasons = append(reasons, w.Err.Error())
	}
	assert.True(t, errors.Is(warnings[1].Err, errMissingName))
	assert.True(t, errors.Is(warnings[2].Err, errMissingInstallDir))
	assert.True(t, strings.HasSuffix(warnings[2].Filepath, "acme/not-installed"), reasons)
}

func TestLockfileLoader_InvalidDocument(t *testing.T) {
	dir := t.TempDir()
	lock := filepath.Join(dir, "composer.lock")
	require.NoError(t, os.WriteFile(lock, []byte("{not json"), 0o644))

	_, err := NewLockfileLoader(nil, Options{}).Load(context.Background(), Source{Kind: KindLockfile, Path: lock})
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "parse", loadErr.Op)
}

type recordingPackageCache struct {
	mu   sync.Mutex
	seen []string
}

func (c *recordingPackageCache) LoadPackage(ctx context.Context, pkg Package, load func(context.Context) (*rules.RuleSet, error)) (*rules.RuleSet, error) {
	c.mu.Lock()
	c.seen = append(c.seen, pkg.Name+"@"+pkg.Version)
	c.mu.Unlock()
	return load(ctx)
}

func TestLockfileLoader_PackageCache(t *testing.T) {
	pc := &recordingPackageCache{}
	l := NewLockfileLoader(nil, Options{Packages: pc})

	_, err := l.Load(context.Background(), Source{Kind: KindLockfile, Path: filepath.Join("testdata", "lock", "composer.lock")})
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/legacy@1.4.0", "acme/tools@dev-main"}, pc.seen)
}

func TestRuleFileLoader(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(good, []byte("version: 1\nclasses:\n  Old: use New\n"), 0o644))
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("version: 99\n"), 0o644))

	l := NewRuleFileLoader()
	rs, err := l.Load(context.Background(), Source{Kind: KindRuleFile, Path: good})
	require.NoError(t, err)
	e, ok := rs.Class("old")
	require.True(t, ok)
	assert.Equal(t, "use New", e.Message)

	_, err = l.Load(context.Background(), Source{Kind: KindRuleFile, Path: bad})
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.ErrorIs(t, err, rules.ErrUnknownFormat)

	_, err = l.Load(context.Background(), Source{Kind: KindRuleFile, Path: filepath.Join(dir, "missing.yaml")})
	require.ErrorAs(t, err, &loadErr)
}

func TestLoaders_RejectOtherKinds(t *testing.T) {
	dir := t.TempDir()
	ruleFile := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(ruleFile, []byte("version: 1\n"), 0o644))

	cases := []struct {
		loader Loader
		src    Source
	}{
		{NewRuleFileLoader(), Source{Kind: KindDirectory, Path: ruleFile}},
		{NewDirectoryLoader(Options{}), Source{Kind: KindRuleFile, Path: dir}},
		{NewLockfileLoader(nil, Options{}), Source{Kind: KindRuleFile, Path: ruleFile}},
	}
	for _, tc := range cases {
		t.Run(tc.loader.Name(), func(t *testing.T) {
			_, err := tc.loader.Load(context.Background(), tc.src)
			var loadErr *LoadError
			require.ErrorAs(t, err, &loadErr)
			assert.Equal(t, "load", loadErr.Op)
		})
	}
}

func TestLockfileLoader_WarningsReachContext(t *testing.T) {
	var fromOpts, fromCtx []ir.ParseWarning
	l := NewLockfileLoader(nil, Options{OnWarning: func(w ir.ParseWarning) { fromOpts = append(fromOpts, w) }})
	ctx := WithWarnings(context.Background(), func(w ir.ParseWarning) { fromCtx = append(fromCtx, w) })

	_, err := l.Load(ctx, Source{Kind: KindLockfile, Path: filepath.Join("testdata", "lock", LockfileName)})
	require.NoError(t, err)
	assert.Len(t, fromOpts, 3)
	assert.Equal(t, fromOpts, fromCtx)
}

func TestWithWarnings_Nests(t *testing.T) {
	var order []string
	ctx := WithWarnings(context.Background(), func(ir.ParseWarning) { order = append(order, "outer") })
	ctx = WithWarnings(ctx, func(ir.ParseWarning) { order = append(order, "inner") })

	ReportWarning(ctx, ir.ParseWarning{Filepath: "a.php"})
	ReportWarning(context.Background(), ir.ParseWarning{Filepath: "b.php"})
	assert.Equal(t, []string{"inner", "outer"}, order)
}

func TestDispatcher(t *testing.T) {
	d := NewDefault(Options{})
	rs, src, err := LoadPath(context.Background(), d, filepath.Join("testdata", "annotated"))
	require.NoError(t, err)
	assert.Equal(t, KindDirectory, src.Kind)
	assert.False(t, rs.IsEmpty())

	_, err = NewDispatcher(nil).Load(context.Background(), Source{Kind: KindRuleFile, Path: "x"})
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "dispatch", loadErr.Op)
}
