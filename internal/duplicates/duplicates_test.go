package duplicates

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gotidy/internal/config"
	"gotidy/internal/journal"
	"gotidy/internal/metrics"
	"gotidy/internal/mover"
	"gotidy/pkg/models"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func touch(t *testing.T, path, content string, mod time.Time) models.FileRecord {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	require.NoError(t, os.Chtimes(path, mod, mod))
	info, err := os.Stat(path)
	require.NoError(t, err)
	return models.NewFileRecord(path, info.Size(), info.ModTime(), info.ModTime(), info.ModTime())
}

func paths(recs []models.FileRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Path
	}
	return out
}

func TestFinder_SameSizeDifferentContent(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, filepath.Join(dir, "a.bin"), "aaaa", base)
	b := touch(t, filepath.Join(dir, "b.bin"), "bbbb", base)
	c := touch(t, filepath.Join(dir, "c.bin"), "aaaa", base)

	f := NewFinder(afero.NewOsFs(), 2, nil, nil)
	groups, err := f.Find(context.Background(), []models.FileRecord{a, b, c})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{a.Path, c.Path}, paths(groups[0].Members))
	assert.NotContains(t, paths(groups[0].Members), b.Path)
	assert.Equal(t, int64(4), groups[0].Size)

	stats := f.Stats()
	assert.Equal(t, 3, stats.Candidates)
	assert.Equal(t, 3, stats.Hashed)
	assert.Equal(t, 1, stats.Groups)
}

func TestFinder_UniqueSizesAreNotHashed(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, filepath.Join(dir, "a"), "1", base)
	b := touch(t, filepath.Join(dir, "b"), "22", base)

	f := NewFinder(afero.NewOsFs(), 1, nil, nil)
	groups, err := f.Find(context.Background(), []models.FileRecord{a, b})
	require.NoError(t, err)
	assert.Empty(t, groups)
	assert.Zero(t, f.Stats().Hashed)
}

func TestFinder_Deterministic(t *testing.T) {
	dir := t.TempDir()
	var records []models.FileRecord
	for i := 0; i < 30; i++ {
		content := []string{"red", "grn", "blu"}[i%3]
		records = append(records, touch(t, filepath.Join(dir, "f"+string(rune('a'+i%26))+strings.Repeat("x", i/26)), content, base))
	}

	one, err := NewFinder(afero.NewOsFs(), 1, nil, nil).Find(context.Background(), records)
	require.NoError(t, err)
	many, err := NewFinder(afero.NewOsFs(), 8, nil, nil).Find(context.Background(), records)
	require.NoError(t, err)

	require.Len(t, one, 3)
	assert.Equal(t, one, many)
	assert.Equal(t, records[0].Path, one[0].Members[0].Path)
	assert.Equal(t, records[1].Path, one[1].Members[0].Path)
}

func TestFinder_HashFailureExcluded(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, filepath.Join(dir, "a"), "same", base)
	b := touch(t, filepath.Join(dir, "b"), "same", base)
	gone := touch(t, filepath.Join(dir, "gone"), "same", base)
	require.NoError(t, os.Remove(gone.Path))

	rec := metrics.New()
	groups, err := NewFinder(afero.NewOsFs(), 2, nil, rec).Find(context.Background(), []models.FileRecord{a, gone, b})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{a.Path, b.Path}, paths(groups[0].Members))
}

func TestFinder_LargeFilesStreamed(t *testing.T) {
	fsys := afero.NewMemMapFs()
	data := bytes.Repeat([]byte("0123456789abcdef"), 20000) // several chunks
	other := append([]byte{}, data...)
	other[len(other)-1] = 'X'

	require.NoError(t, afero.WriteFile(fsys, "/big1", data, 0644))
	require.NoError(t, afero.WriteFile(fsys, "/big2", data, 0644))
	require.NoError(t, afero.WriteFile(fsys, "/big3", other, 0644))
	size := int64(len(data))
	records := []models.FileRecord{
		models.NewFileRecord("/big1", size, base, base, base),
		models.NewFileRecord("/big2", size, base, base, base),
		models.NewFileRecord("/big3", size, base, base, base),
	}

	groups, err := NewFinder(fsys, 3, nil, nil).Find(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"/big1", "/big2"}, paths(groups[0].Members))
}

func TestFinder_Cancelled(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, filepath.Join(dir, "a"), "x", base)
	b := touch(t, filepath.Join(dir, "b"), "x", base)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFinder(afero.NewOsFs(), 2, nil, nil).Find(ctx, []models.FileRecord{a, b})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCandidates_DedupesPaths(t *testing.T) {
	a := models.NewFileRecord("/x/a", 5, base, base, base)
	b := models.NewFileRecord("/x/b", 5, base, base, base)
	c := models.NewFileRecord("/x/c", 6, base, base, base)
	assert.Empty(t, Candidates([]models.FileRecord{a, a, c}))
	assert.Equal(t, []string{"/x/a", "/x/b"}, paths(Candidates([]models.FileRecord{a, c, b, a})))
}

func TestSortMembers(t *testing.T) {
	old := models.NewFileRecord("/a/very/long/old.txt", 1, base, base, base)
	mid := models.NewFileRecord("/b/mid.txt", 1, base, base.Add(time.Hour), base)
	newest := models.NewFileRecord("/c/deeper/new.txt", 1, base, base.Add(2*time.Hour), base)
	tie := models.NewFileRecord("/a/mid.txt", 1, base, base.Add(time.Hour), base)
	in := []models.FileRecord{old, mid, newest, tie}

	assert.Equal(t, []string{newest.Path, tie.Path, mid.Path, old.Path}, paths(SortMembers(in, config.KeepNewest)))
	assert.Equal(t, []string{old.Path, tie.Path, mid.Path, newest.Path}, paths(SortMembers(in, config.KeepOldest)))
	assert.Equal(t, []string{tie.Path, mid.Path, newest.Path, old.Path}, paths(SortMembers(in, config.KeepShortestPath)))
	assert.Equal(t, old.Path, in[0].Path, "input must not be reordered")
}

func TestNames(t *testing.T) {
	rec := models.NewFileRecord("/x/Report.PDF", 1, base, base, base)
	assert.Equal(t, "Report_copy2.PDF", CopyName(rec, 2))
	assert.Equal(t, "group_0007_deadbeef", GroupDirName(7, "deadbeefcafe"))
	assert.Equal(t, "group_0001_ab", GroupDirName(1, "ab"))
}

func organize(t *testing.T, root string, dryRun bool, keep config.KeepPolicy) ([]Manifest, *journal.Journal, []models.FileRecord) {
	t.Helper()
	records := []models.FileRecord{
		touch(t, filepath.Join(root, "a", "photo.jpg"), "pixels", base),
		touch(t, filepath.Join(root, "b", "photo.jpg"), "pixels", base.Add(2*time.Hour)),
		touch(t, filepath.Join(root, "c", "photo (copy).jpg"), "pixels", base.Add(time.Hour)),
		touch(t, filepath.Join(root, "d", "IMG_1.jpg"), "pixels", base.Add(-time.Hour)),
		touch(t, filepath.Join(root, "e", "other.jpg"), "framed", base),
	}
	groups, err := NewFinder(afero.NewOsFs(), 4, nil, nil).Find(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	j := journal.New(dryRun)
	m := mover.New(afero.NewOsFs(), dryRun, nil, j, nil)
	cfg := config.DuplicatesConfig{Dir: filepath.Join(root, "duplicates"), Keep: keep}
	manifests, err := NewOrganizer(cfg, j.RunID(), m, nil).Process(context.Background(), groups)
	require.NoError(t, err)
	return manifests, j, records
}

func TestOrganizer_Completeness(t *testing.T) {
	root := t.TempDir()
	manifests, _, records := organize(t, root, false, config.KeepNewest)
	require.Len(t, manifests, 1)

	groupDir := filepath.Join(root, "duplicates", GroupDirName(1, manifests[0].Hash))
	entries, err := os.ReadDir(groupDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{
		"photo.jpg",
		"photo (copy)_copy1.jpg",
		"photo_copy2.jpg",
		"IMG_1_copy3.jpg",
		ManifestName,
	}, names)

	for _, r := range records[:4] {
		assert.NoFileExists(t, r.Path)
	}
	assert.FileExists(t, records[4].Path)

	// newest keeps its name, from b/
	assert.Equal(t, records[1].Path, manifests[0].Members[0].Record.Path)
	assert.Equal(t, filepath.Join(groupDir, "photo.jpg"), manifests[0].Members[0].Destination)

	data, err := os.ReadFile(filepath.Join(groupDir, ManifestName))
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Duplicate group #1")
	assert.Contains(t, text, manifests[0].Hash)
	assert.Contains(t, text, "Files: 4")
	assert.Contains(t, text, "Size: 6 bytes")
	assert.Contains(t, text, "Kept: newest")
	assert.Less(t, strings.Index(text, records[1].Path), strings.Index(text, records[0].Path))
}

func TestOrganizer_KeepShortestPath(t *testing.T) {
	root := t.TempDir()
	manifests, _, records := organize(t, root, false, config.KeepShortestPath)
	require.Len(t, manifests, 1)
	assert.Equal(t, records[0].Path, manifests[0].Members[0].Record.Path)
}

func TestOrganizer_DryRunMatchesRealRun(t *testing.T) {
	dryRoot, realRoot := t.TempDir(), t.TempDir()
	_, dry, dryRecords := organize(t, dryRoot, true, config.KeepNewest)
	_, done, _ := organize(t, realRoot, false, config.KeepNewest)

	for _, r := range dryRecords {
		assert.FileExists(t, r.Path)
	}
	assert.NoDirExists(t, filepath.Join(dryRoot, "duplicates"))

	strip := func(root string, ops []models.Operation) []string {
		var out []string
		for _, op := range ops {
			out = append(out, string(op.Kind)+" "+strings.TrimPrefix(op.Source, root)+" -> "+strings.TrimPrefix(op.Destination, root))
		}
		return out
	}
	dryOps, doneOps := dry.Operations(), done.Operations()
	require.Len(t, dryOps, 5)
	assert.Equal(t, strip(dryRoot, dryOps), strip(realRoot, doneOps))
	assert.Len(t, dry.Filter(models.StatusPlanned), 5)
	assert.Len(t, done.Filter(models.StatusDone), 5)
}

func TestOrganizer_MoveFailureLeavesMembers(t *testing.T) {
	root := t.TempDir()
	a := touch(t, filepath.Join(root, "a.txt"), "same", base)
	b := touch(t, filepath.Join(root, "b.txt"), "same", base)
	group := models.DuplicateGroup{Hash: "0123456789abcdef", Size: 4, Members: []models.FileRecord{a, b}}

	j := journal.New(false)
	m := mover.New(afero.NewReadOnlyFs(afero.NewOsFs()), false, nil, j, nil)
	o := NewOrganizer(config.DuplicatesConfig{Dir: filepath.Join(root, "dups"), Keep: config.KeepNewest}, "", m, nil)

	manifests, err := o.Process(context.Background(), []models.DuplicateGroup{group, group})
	require.NoError(t, err)
	require.Len(t, manifests, 2, "a failing group must not stop the next one")
	for _, p := range manifests[0].Members {
		assert.Empty(t, p.Destination)
		assert.NotEmpty(t, p.Reason)
	}
	assert.FileExists(t, a.Path)
	assert.FileExists(t, b.Path)
	assert.NoDirExists(t, filepath.Join(root, "dups"))
	assert.Len(t, j.Filter(models.StatusFailed), 4)
	assert.Empty(t, j.Filter(models.StatusDone))
}

func TestOrganizer_SkipsExistingGroupDir(t *testing.T) {
	root := t.TempDir()
	dups := filepath.Join(root, "dups")
	hash := "0123456789abcdef"
	old := filepath.Join(dups, GroupDirName(1, hash))
	require.NoError(t, os.MkdirAll(old, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(old, ManifestName), []byte("earlier run"), 0644))

	a := touch(t, filepath.Join(root, "a.txt"), "same", base)
	b := touch(t, filepath.Join(root, "b.txt"), "same", base)
	m := mover.New(afero.NewOsFs(), false, nil, nil, nil)
	o := NewOrganizer(config.DuplicatesConfig{Dir: dups, Keep: config.KeepNewest}, "", m, nil)

	manifests, err := o.Process(context.Background(), []models.DuplicateGroup{{Hash: hash, Size: 4, Members: []models.FileRecord{a, b}}})
	require.NoError(t, err)
	require.Len(t, manifests, 1)
	assert.Equal(t, 2, manifests[0].Number)

	fresh := filepath.Join(dups, GroupDirName(2, hash))
	assert.FileExists(t, filepath.Join(fresh, "a.txt"))
	assert.FileExists(t, filepath.Join(fresh, "b_copy1.txt"))
	assert.FileExists(t, filepath.Join(fresh, ManifestName))

	entries, err := os.ReadDir(old)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "earlier group directory is left alone")
}

func TestOrganizer_SkipsRelocatedMembers(t *testing.T) {
	root := t.TempDir()
	a := touch(t, filepath.Join(root, "a.txt"), "same", base)
	b := touch(t, filepath.Join(root, "b.txt"), "same", base)
	m := mover.New(afero.NewOsFs(), true, nil, nil, nil)
	_, _, err := m.Place(models.OpArchive, a, filepath.Join(root, "archive"), a.Name)
	require.NoError(t, err)

	o := NewOrganizer(config.DuplicatesConfig{Dir: filepath.Join(root, "dups")}, "", m, nil)
	manifests, err := o.Process(context.Background(), []models.DuplicateGroup{{Hash: "ff", Size: 4, Members: []models.FileRecord{a, b}}})
	require.NoError(t, err)
	assert.Empty(t, manifests)
}

func TestManifest_Render(t *testing.T) {
	rec := models.NewFileRecord("/x/a.txt", 2048, base, base, base)
	m := Manifest{
		Number: 3, RunID: "run-1", Hash: "abc", Size: 2048, Keep: config.KeepOldest,
		Members: []Placement{
			{Record: rec, Destination: "/d/a.txt"},
			{Record: rec, Reason: "permission denied"},
		},
	}
	text := string(m.Render())
	assert.Contains(t, text, "Duplicate group #3")
	assert.Contains(t, text, "Run: run-1")
	assert.Contains(t, text, "Size: 2,048 bytes (2.0 KiB)")
	assert.Contains(t, text, "Modified: 2024-05-01 12:00:00")
	assert.Contains(t, text, "Placed:   /d/a.txt")
	assert.Contains(t, text, "Left in place: permission denied")
}
