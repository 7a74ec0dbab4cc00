package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/common"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestSourceFromPath(t *testing.T) {
	root := filepath.Join("srv", "inbox")

	s, ok := SourceFromPath(root, filepath.Join(root, "kehe", "po.csv"))
	assert.True(t, ok)
	assert.Equal(t, constants.SourceKEHE, s)

	s, ok = SourceFromPath(root, filepath.Join(root, "Whole Foods", "2024", "po.html"))
	assert.True(t, ok)
	assert.Equal(t, constants.SourceWholeFoods, s)

	_, ok = SourceFromPath(root, filepath.Join(root, "po.csv"))
	assert.False(t, ok)

	s, ok = SourceFromPath("", filepath.Join("x", "unfi_east", "po.pdf"))
	assert.True(t, ok)
	assert.Equal(t, constants.SourceUNFIEast, s)
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden("/a/.git"))
	assert.True(t, IsHidden(".DS_Store"))
	assert.False(t, IsHidden("po.csv"))
	assert.False(t, IsHidden("."))
}

func TestLoadPath(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "unfi_west", "PO-7.CSV")
	writeFile(t, p, "PO,Item\n7,A\n")

	ing := NewFSIngestor("", nil)
	up, res, err := ing.LoadPath(context.Background(), root, p)
	require.NoError(t, err)
	assert.Equal(t, constants.SourceUNFIWest, up.Source)
	assert.Equal(t, constants.FormatCSV, up.Format)
	assert.Equal(t, "PO-7.CSV", up.Name)
	assert.Equal(t, []byte("PO,Item\n7,A\n"), up.Bytes)
	assert.Equal(t, up.ID.String(), res.UploadID)
	assert.Len(t, res.HashHex, 64)
	assert.False(t, res.Deduplicated)
}

func TestLoadPathErrors(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	img := filepath.Join(root, "kehe", "scan.png")
	writeFile(t, img, "x")
	_, _, err := NewFSIngestor("", nil).LoadPath(ctx, root, img)
	assert.ErrorIs(t, err, common.ErrUnsupportedFormat)

	loose := filepath.Join(root, "po.csv")
	writeFile(t, loose, "a,b\n")
	_, _, err = NewFSIngestor("", nil).LoadPath(ctx, root, loose)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	big := filepath.Join(root, "kehe", "big.csv")
	writeFile(t, big, "0123456789")
	ing := NewFSIngestor("", nil)
	ing.MaxBytes = 4
	_, _, err = ing.LoadPath(ctx, root, big)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestLoadPathPinnedSource(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "po.csv")
	writeFile(t, p, "a,b\n")

	up, _, err := NewFSIngestor(constants.SourceDavidson, nil).LoadPath(context.Background(), "", p)
	require.NoError(t, err)
	assert.Equal(t, constants.SourceDavidson, up.Source)
}

func TestLoadDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "kehe", "a.csv"), "one\n")
	writeFile(t, filepath.Join(root, "kehe", "copy-of-a.csv"), "one\n")
	writeFile(t, filepath.Join(root, "wholefoods", "b.html"), "<html></html>")
	writeFile(t, filepath.Join(root, "wholefoods", "notes.md"), "skip")
	writeFile(t, filepath.Join(root, ".trash", "kehe", "c.csv"), "hidden\n")
	writeFile(t, filepath.Join(root, "stray.csv"), "no partner\n")

	ing := NewFSIngestor("", nil)
	uploads, results, stats, err := ing.LoadDirectory(context.Background(), root, true)
	require.NoError(t, err)

	assert.Len(t, uploads, 2)
	assert.Len(t, results, 4)
	assert.EqualValues(t, 4, stats.Matched)
	assert.EqualValues(t, 3, stats.Succeeded)
	assert.EqualValues(t, 1, stats.Deduplicated)
	assert.EqualValues(t, 1, stats.Failed)

	names := map[string]constants.Source{}
	for _, up := range uploads {
		names[up.Name] = up.Source
	}
	assert.Equal(t, constants.SourceKEHE, names["a.csv"])
	assert.Equal(t, constants.SourceWholeFoods, names["b.html"])

	_, _, _, err = ing.LoadDirectory(context.Background(), " ", true)
	assert.Error(t, err)
}

func TestWatcherEmitsNewDocuments(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "kehe", "existing.csv"), "x\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{root},
		InitialScan: true,
		SkipHidden:  true,
		Debounce:    20 * time.Millisecond,
	})
	require.NoError(t, err)

	next := func() string {
		select {
		case p := <-events:
			return p
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for watcher event")
			return ""
		}
	}
	assert.Equal(t, "existing.csv", filepath.Base(next()))

	writeFile(t, filepath.Join(root, "kehe", "ignored.txt.bak"), "x")
	writeFile(t, filepath.Join(root, "kehe", "new.csv"), "y\n")
	assert.Equal(t, "new.csv", filepath.Base(next()))

	cancel()
	for range events {
	}
}

func TestWatcherRequiresRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{})
	assert.Error(t, err)
}
