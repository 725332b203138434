package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cfdi-ledger/internal/common"
)

type stored struct {
	category, origin, name string
	content                []byte
}

type fakeStore struct {
	mu   sync.Mutex
	got  []stored
	fail string
}

func (f *fakeStore) CreateFromDocument(_ context.Context, category, origin, name string, content []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name == f.fail {
		return "", common.InvalidInput("refused %q", name)
	}
	f.got = append(f.got, stored{category, origin, name, content})
	return "[" + origin + "] " + name, nil
}

func (f *fakeStore) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.got {
		out = append(out, s.name)
	}
	return out
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestImportDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"), "uno")
	writeFile(t, filepath.Join(root, "sub", "b.PDF"), "dos")
	writeFile(t, filepath.Join(root, "sub", "copia.pdf"), "uno")
	writeFile(t, filepath.Join(root, "notas.txt"), "x")
	writeFile(t, filepath.Join(root, ".oculto", "c.pdf"), "tres")
	writeFile(t, filepath.Join(root, "malo.pdf"), "cuatro")

	fs := &fakeStore{fail: "malo.pdf"}
	imp := NewImporter(fs, nil)

	results, stats, err := imp.ImportDirectory(context.Background(), root, Target{Category: "Fletes", Origin: "Campo"}, true)
	require.NoError(t, err)

	assert.Equal(t, uint32(4), stats.Matched)
	assert.Equal(t, uint32(2), stats.Succeeded)
	assert.Equal(t, uint32(1), stats.Deduplicated)
	assert.Equal(t, uint32(1), stats.Failed)
	assert.Len(t, results, 4)
	assert.ElementsMatch(t, []string{"a.pdf", "b.PDF"}, fs.names())
	for _, s := range fs.got {
		assert.Equal(t, "Fletes", s.category)
		assert.Equal(t, "Campo", s.origin)
	}

	// sources are kept unless the target consumes them
	assert.FileExists(t, filepath.Join(root, "a.pdf"))
}

func TestImportDirectoryStoresWhatItHashed(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"), "uno")

	fs := &fakeStore{}
	results, stats, err := NewImporter(fs, nil).ImportDirectory(context.Background(), root, Target{Category: "Fletes", Origin: "Campo", Consume: true}, false)
	require.NoError(t, err)
	require.Equal(t, uint32(1), stats.Succeeded)
	require.Len(t, results, 1)
	require.Len(t, fs.got, 1)

	assert.Equal(t, []byte("uno"), fs.got[0].content)
	assert.Equal(t, strconv.FormatUint(xxhash.Sum64([]byte("uno")), 16), results[0].HashHex)
	assert.Equal(t, "[Campo] a.pdf", results[0].Archivo)
	assert.NoFileExists(t, filepath.Join(root, "a.pdf"))
}

func TestImportDirectoryRequiresRoot(t *testing.T) {
	_, _, err := NewImporter(&fakeStore{}, nil).ImportDirectory(context.Background(), " ", Target{}, false)
	assert.Error(t, err)
}

func TestImportFileConsumes(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "[Viejo] recibo.pdf")
	writeFile(t, src, "pdf")

	fs := &fakeStore{}
	r, err := NewImporter(fs, nil).ImportFile(context.Background(), src, Target{Category: "Fletes", Origin: "Centrales", Consume: true})
	require.NoError(t, err)
	assert.Equal(t, "[Centrales] [Viejo] recibo.pdf", r.Archivo)
	assert.NotEmpty(t, r.HashHex)
	assert.NoFileExists(t, src)
}

func TestImportFileRejectsNonDocuments(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "foto.png")
	writeFile(t, src, "png")

	_, err := NewImporter(&fakeStore{}, nil).ImportFile(context.Background(), src, Target{Category: "Fletes", Origin: "Campo"})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeInvalidInput, appErr.Code)
}

func TestStartWatcherInitialScan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"), "x")
	writeFile(t, filepath.Join(root, "b.txt"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true}, nil)
	require.NoError(t, err)

	select {
	case p := <-events:
		assert.Equal(t, filepath.Join(root, "a.pdf"), p)
	case <-time.After(2 * time.Second):
		t.Fatal("initial document not emitted")
	}
}

func TestStartWatcherRequiresRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{}, nil)
	assert.Error(t, err)
}

func TestWatchImportsNewDocuments(t *testing.T) {
	root := t.TempDir()
	fs := &fakeStore{}
	imp := NewImporter(fs, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- imp.Watch(ctx, WatchConfig{Roots: []string{root}, Debounce: 50 * time.Millisecond}, Target{Category: "Fletes", Origin: "Campo", Consume: true})
	}()

	// give the watcher time to register the root
	time.Sleep(100 * time.Millisecond)
	writeFile(t, filepath.Join(root, "nuevo.pdf"), "contenido")

	assert.Eventually(t, func() bool {
		return len(fs.names()) == 1
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"nuevo.pdf"}, fs.names())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
