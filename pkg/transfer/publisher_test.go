package transfer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"marsfeed/pkg/config"
	errs "marsfeed/pkg/errors"
	"marsfeed/pkg/logger"
	"marsfeed/pkg/retry"
)

type memoryUploader struct {
	mu      sync.Mutex
	files   map[string]string
	listing []string
	failOn  map[string]error
	listErr error
	closed  bool
}

func newMemoryUploader() *memoryUploader {
	return &memoryUploader{files: make(map[string]string), failOn: make(map[string]error)}
}

func (m *memoryUploader) Store(ctx context.Context, remotePath string, r io.Reader) error {
	if err := m.failOn[remotePath]; err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[remotePath] = string(data)
	return nil
}

func (m *memoryUploader) List(ctx context.Context, dir string) ([]string, error) {
	return m.listing, m.listErr
}

func (m *memoryUploader) Close() error {
	m.closed = true
	return nil
}

func transferConfig() config.TransferConfig {
	return config.TransferConfig{DocumentsPrefix: "mars-20/api/geojson", SequencesPrefix: "mars-20/api/gifs"}
}

func fastRetry() *retry.Config {
	rc := retry.DefaultConfig()
	rc.MaxAttempts = 2
	rc.Backoff = &retry.ConstantBackoff{Delay: time.Millisecond}
	return rc
}

func writeFiles(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	var paths []string
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(p, []byte("content of "+n), 0644))
		paths = append(paths, p)
	}
	return paths
}

func TestPublishUploadsDocumentsAndMissingSequences(t *testing.T) {
	root := t.TempDir()
	docs := writeFiles(t, root, "perseverance-path.json", "ingenuity-path.json")
	gifs := filepath.Join(root, "gifs")
	writeFiles(t, gifs, "54.gif", "60.gif", "notes.txt")

	uploader := newMemoryUploader()
	uploader.listing = []string{"mars-20/api/gifs/54.gif"}

	summary, err := NewPublisher(uploader, docs, gifs, transferConfig(), fastRetry(), logger.NewNopLogger()).Publish(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Documents)
	assert.Equal(t, 1, summary.Sequences)
	assert.Equal(t, 1, summary.Existing)
	assert.Equal(t, "content of perseverance-path.json", uploader.files["mars-20/api/geojson/perseverance-path.json"])
	assert.Contains(t, uploader.files, "mars-20/api/gifs/60.gif")
	assert.NotContains(t, uploader.files, "mars-20/api/gifs/54.gif")
	assert.NotContains(t, uploader.files, "mars-20/api/gifs/notes.txt")
}

func TestPublishIsolatesItemFailures(t *testing.T) {
	root := t.TempDir()
	docs := writeFiles(t, root, "a.json", "b.json")
	gifs := filepath.Join(root, "gifs")
	writeFiles(t, gifs, "1.gif", "2.gif")

	uploader := newMemoryUploader()
	uploader.failOn["mars-20/api/geojson/a.json"] = errs.New(errs.ErrorTypeNetwork, 0, "reset")
	uploader.failOn["mars-20/api/gifs/1.gif"] = errs.New(errs.ErrorTypeAuth, 530, "denied")

	summary, err := NewPublisher(uploader, docs, gifs, transferConfig(), fastRetry(), logger.NewNopLogger()).Publish(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Documents)
	assert.Equal(t, 1, summary.Sequences)
	assert.Equal(t, 2, summary.Failed)
	items := []string{summary.Failures[0].Item, summary.Failures[1].Item}
	assert.ElementsMatch(t, []string{"a.json", "1.gif"}, items)
}

func TestPublishFailsWhenListingFails(t *testing.T) {
	root := t.TempDir()
	uploader := newMemoryUploader()
	uploader.listErr = errs.New(errs.ErrorTypeAuth, 530, "denied")

	_, err := NewPublisher(uploader, nil, filepath.Join(root, "gifs"), transferConfig(), fastRetry(), logger.NewNopLogger()).Publish(context.Background())

	require.Error(t, err)
	var typed *errs.Error
	assert.True(t, errors.As(err, &typed))
}

func TestPublishWithoutLocalSequences(t *testing.T) {
	uploader := newMemoryUploader()
	summary, err := NewPublisher(uploader, nil, filepath.Join(t.TempDir(), "absent"), transferConfig(), fastRetry(), logger.NewNopLogger()).Publish(context.Background())

	require.NoError(t, err)
	assert.Zero(t, summary.Sequences)
}
