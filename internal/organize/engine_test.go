package organize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gotidy/internal/config"
	"gotidy/internal/journal"
	"gotidy/internal/metrics"
	"gotidy/pkg/models"
)

var june = time.Date(2023, 6, 10, 12, 0, 0, 0, time.UTC)

func touch(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	require.NoError(t, os.Chtimes(p, june, june))
	return p
}

func seed(t *testing.T, root string) {
	touch(t, root, "report(1).pdf", "quarterly numbers")
	touch(t, root, "docs/report.pdf", "other numbers....")
	touch(t, root, "pics/IMG_0001.jpg", "same bytes")
	touch(t, root, "pics/copy/IMG_0001.jpg", "same bytes")
	touch(t, root, "pics/2023-06-10 beach.png", "sand")
	touch(t, root, "node_modules/lib.js", "module.exports")
	touch(t, root, ".cache/blob.bin", "hidden")
	touch(t, root, "scratch.tmp", "temp")
}

func newConfig(t *testing.T, root string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Scan.Root = root
	_, err := cfg.Validate()
	require.NoError(t, err)
	require.NoError(t, cfg.Resolve())
	return cfg
}

func tree(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	require.NoError(t, filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		require.NoError(t, err)
		if info.Mode().IsRegular() {
			rel, _ := filepath.Rel(root, p)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	}))
	sort.Strings(out)
	return out
}

func TestRun_Organize(t *testing.T) {
	root := t.TempDir()
	seed(t, root)
	e := NewEngine(newConfig(t, root), afero.NewOsFs(), nil, nil)

	stats, err := e.Run(context.Background(), PassDedupe, PassArchive)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Scanned)
	assert.Equal(t, 1, stats.Groups)
	assert.Equal(t, 5, stats.Moved)
	assert.Zero(t, stats.Failed)

	files := tree(t, root)
	assert.Contains(t, files, "archive/2023/06/documents/2023-06-10_report.pdf")
	assert.Contains(t, files, "archive/2023/06/documents/2023-06-10_report(1).pdf")
	assert.Contains(t, files, "archive/2023/06/images/2023-06-10_beach.png")
	assert.Contains(t, files, "node_modules/lib.js")
	assert.Contains(t, files, ".cache/blob.bin")
	assert.Contains(t, files, "scratch.tmp")

	var dups []string
	for _, f := range files {
		if strings.HasPrefix(f, "duplicates/") {
			dups = append(dups, filepath.Base(f))
		}
	}
	assert.ElementsMatch(t, []string{"IMG_0001.jpg", "IMG_0001_copy1.jpg", "manifest.txt"}, dups)
}

func TestRun_SecondRunChangesNothing(t *testing.T) {
	root := t.TempDir()
	seed(t, root)

	_, err := NewEngine(newConfig(t, root), afero.NewOsFs(), nil, nil).Run(context.Background(), PassDedupe, PassArchive)
	require.NoError(t, err)
	before := tree(t, root)

	second := NewEngine(newConfig(t, root), afero.NewOsFs(), nil, nil)
	stats, err := second.Run(context.Background(), PassDedupe, PassArchive)
	require.NoError(t, err)
	assert.Zero(t, stats.Moved)
	assert.Zero(t, stats.Renamed)
	assert.Empty(t, second.Journal().Operations())
	assert.Equal(t, before, tree(t, root))
}

func TestRun_DryRunMatchesRealRun(t *testing.T) {
	ops := func(dryRun bool, passes ...Pass) (string, []string) {
		root := t.TempDir()
		seed(t, root)
		cfg := newConfig(t, root)
		cfg.DryRun = dryRun
		e := NewEngine(cfg, afero.NewOsFs(), nil, nil)
		before := tree(t, root)
		_, err := e.Run(context.Background(), passes...)
		require.NoError(t, err)
		if dryRun {
			assert.Equal(t, before, tree(t, root), "dry-run must not touch the tree")
		}
		var out []string
		for _, op := range e.Journal().Operations() {
			out = append(out, string(op.Kind)+" "+strings.TrimPrefix(op.Source, root)+" -> "+strings.TrimPrefix(op.Destination, root))
		}
		return root, out
	}

	for _, passes := range [][]Pass{
		{PassDedupe, PassArchive},
		{PassArchive, PassDedupe},
		{PassRename},
	} {
		_, dry := ops(true, passes...)
		_, done := ops(false, passes...)
		assert.NotEmpty(t, dry)
		assert.Equal(t, dry, done, "passes %v", passes)
	}
}

func TestRun_ArchiveFirstSkipsDedupe(t *testing.T) {
	root := t.TempDir()
	seed(t, root)
	e := NewEngine(newConfig(t, root), afero.NewOsFs(), nil, nil)

	stats, err := e.Run(context.Background(), PassArchive, PassDedupe)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Moved)
	assert.NoDirExists(t, filepath.Join(root, "duplicates"))
}

func TestRun_Rename(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "a/notes(3).txt", "n")
	touch(t, root, "a/2023-06-10_done.txt", "d")
	e := NewEngine(newConfig(t, root), afero.NewOsFs(), nil, nil)

	stats, err := e.Run(context.Background(), PassRename)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Renamed)
	assert.Equal(t, []string{"a/2023-06-10_done.txt", "a/2023-06-10_notes.txt"}, tree(t, root))
}

func TestRun_UnknownPass(t *testing.T) {
	e := NewEngine(newConfig(t, t.TempDir()), afero.NewOsFs(), nil, nil)
	_, err := e.Run(context.Background(), Pass("shred"))
	assert.ErrorIs(t, err, ErrUnknownPass)
}

func TestRun_UnknownPassTouchesNothing(t *testing.T) {
	root := t.TempDir()
	seed(t, root)
	before := tree(t, root)

	e := NewEngine(newConfig(t, root), afero.NewOsFs(), nil, nil)
	stats, err := e.Run(context.Background(), PassDedupe, Pass("archve"))
	assert.ErrorIs(t, err, ErrUnknownPass)
	assert.Zero(t, stats.Scanned)
	assert.Zero(t, stats.Moved)
	assert.Empty(t, e.Journal().Operations())
	assert.Equal(t, before, tree(t, root))
	assert.NoDirExists(t, filepath.Join(root, "duplicates"))
}

func TestParsePasses(t *testing.T) {
	passes, err := ParsePasses([]string{" Dedupe", "ARCHIVE", "rename "})
	require.NoError(t, err)
	assert.Equal(t, []Pass{PassDedupe, PassArchive, PassRename}, passes)

	_, err = ParsePasses([]string{"dedupe", "archve"})
	assert.ErrorIs(t, err, ErrUnknownPass)
}

func TestRun_ArchiveByNameSecondRunChangesNothing(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "report.pdf", "numbers")
	touch(t, root, "notes/apple.txt", "fruit")
	cfg := newConfig(t, root)
	cfg.Archive.ByName = true

	_, err := NewEngine(cfg, afero.NewOsFs(), nil, nil).Run(context.Background(), PassArchive)
	require.NoError(t, err)
	before := tree(t, root)
	assert.Contains(t, before, "archive/2023/06/documents/0-9/2023-06-10_report.pdf")
	assert.Contains(t, before, "archive/2023/06/documents/0-9/2023-06-10_apple.txt")

	second := NewEngine(cfg, afero.NewOsFs(), nil, nil)
	stats, err := second.Run(context.Background(), PassArchive)
	require.NoError(t, err)
	assert.Zero(t, stats.Moved)
	assert.Empty(t, second.Journal().Operations())
	assert.Equal(t, before, tree(t, root))
}

func TestRun_Cancelled(t *testing.T) {
	root := t.TempDir()
	seed(t, root)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEngine(newConfig(t, root), afero.NewOsFs(), nil, nil).Run(ctx, PassArchive)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPlaceOne(t *testing.T) {
	root := t.TempDir()
	cfg := newConfig(t, root)
	e := NewEngine(cfg, afero.NewOsFs(), nil, nil)

	p := touch(t, root, "inbox/Song.mp3", "la la")
	dst, moved, err := e.PlaceOne(p)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, filepath.Join(cfg.Archive.Root, "2023", "06", "audio", "2023-06-10_Song.mp3"), dst)

	// the archived file itself must not be picked up again
	_, _, err = e.PlaceOne(dst)
	assert.ErrorIs(t, err, ErrSkipped)

	for _, rel := range []string{"node_modules/x.js", ".git/HEAD", "inbox/a.tmp", "duplicates/group_0001_ab/a.txt"} {
		_, _, err := e.PlaceOne(touch(t, root, rel, "x"))
		assert.ErrorIs(t, err, ErrSkipped, rel)
	}

	outside := touch(t, t.TempDir(), "far.txt", "x")
	_, _, err = e.PlaceOne(outside)
	assert.ErrorIs(t, err, ErrSkipped)

	_, _, err = e.PlaceOne(filepath.Join(root, "missing.txt"))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrSkipped))
}

func TestPlaceOne_PathReused(t *testing.T) {
	root := t.TempDir()
	e := NewEngine(newConfig(t, root), afero.NewOsFs(), nil, nil)

	p := touch(t, root, "in.txt", "first")
	_, moved, err := e.PlaceOne(p)
	require.NoError(t, err)
	require.True(t, moved)

	touch(t, root, "in.txt", "second")
	dst, moved, err := e.PlaceOne(p)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.True(t, strings.HasSuffix(dst, "2023-06-10_in(1).txt"), dst)
}

func TestFinish_WritesConfiguredFiles(t *testing.T) {
	root := t.TempDir()
	seed(t, root)
	out := t.TempDir()
	cfg := newConfig(t, root)
	cfg.DryRun = true
	cfg.JournalFile = filepath.Join(out, "run.json")
	cfg.MetricsFile = filepath.Join(out, "gotidy.prom")

	e := NewEngine(cfg, afero.NewOsFs(), nil, metrics.New())
	_, err := e.Run(context.Background(), PassDedupe, PassArchive)
	require.NoError(t, err)
	require.NoError(t, e.Finish())

	report, err := journal.Load(afero.NewOsFs(), cfg.JournalFile)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, e.Journal().RunID(), report.RunID)
	assert.NotEmpty(t, report.Operations)
	for _, op := range report.Operations {
		assert.Equal(t, models.StatusPlanned, op.Status)
	}
	assert.Equal(t, 5, report.Stats.Scanned)

	data, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "gotidy_operations_total")
}

func TestFinish_NothingConfigured(t *testing.T) {
	e := NewEngine(newConfig(t, t.TempDir()), afero.NewOsFs(), nil, nil)
	assert.NoError(t, e.Finish())
}
