package evidence

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/milestone-tracker/internal/catalog"
	"github.com/rcliao/milestone-tracker/internal/model"
	"github.com/rcliao/milestone-tracker/internal/responses"
	"github.com/rcliao/milestone-tracker/internal/store"
)

var at = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func TestObjectKey(t *testing.T) {
	key, err := ObjectKey("pepper", "/tmp/IMG_0001.MOV", 12, "M_12M_001", at)
	require.NoError(t, err)
	assert.Len(t, key, 16+len(".mov"))
	assert.True(t, strings.HasSuffix(key, ".mov"))
	assert.NotContains(t, key, "IMG_0001")

	again, err := ObjectKey("pepper", "/other/dir/IMG_0001.MOV", 12, "M_12M_001", at)
	require.NoError(t, err)
	assert.Equal(t, key, again, "only the base name contributes")

	otherSalt, err := ObjectKey("salt", "/tmp/IMG_0001.MOV", 12, "M_12M_001", at)
	require.NoError(t, err)
	assert.NotEqual(t, key, otherSalt)

	later, err := ObjectKey("pepper", "/tmp/IMG_0001.MOV", 12, "M_12M_001", at.Add(time.Second))
	require.NoError(t, err)
	assert.NotEqual(t, key, later)

	_, err = ObjectKey("", "a.mp4", 12, "M_12M_001", at)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestNewCaptureIDSortsByTime(t *testing.T) {
	a := NewCaptureID(at)
	b := NewCaptureID(at.Add(time.Millisecond))
	assert.Len(t, a, 26)
	assert.Less(t, a, b)
}

type memUploader struct {
	mu   sync.Mutex
	keys []string
	meta []map[string]string
	err  error
}

func (m *memUploader) Upload(_ context.Context, key, _ string, meta map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.keys = append(m.keys, key)
	m.meta = append(m.meta, meta)
	return "mem://" + key, nil
}

func newBook(t *testing.T) *responses.Book {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "evidence.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	book, err := responses.Open(context.Background(), catalog.Default(), s, "default")
	require.NoError(t, err)
	return book
}

func writeCapture(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("not really a video"), 0o600))
	return path
}

func TestRecorderAttach(t *testing.T) {
	ctx := context.Background()
	book := newBook(t)
	up := &memUploader{}
	rec := NewRecorder(up, book, "pepper", WithClock(func() time.Time { return at }))

	capture, err := rec.Attach(ctx, "S_12M_002", writeCapture(t, "wave.mp4"), 12)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(capture.Key, KeyPrefix))
	assert.Equal(t, "mem://"+capture.Key, capture.Ref.Reference)
	assert.Equal(t, at, capture.Ref.CapturedAt)
	assert.Equal(t, capture.ID, up.meta[0]["capture-id"])

	got, ok := book.Evidence("S_12M_002")
	require.True(t, ok)
	assert.Equal(t, capture.Ref.Reference, got.Reference)
	assert.Equal(t, model.Unanswered, book.Get("S_12M_002"), "evidence does not answer the milestone")
}

func TestRecorderRejectsBeforeUploading(t *testing.T) {
	ctx := context.Background()
	book := newBook(t)
	up := &memUploader{}
	rec := NewRecorder(up, book, "pepper")

	_, err := rec.Attach(ctx, "NOPE", writeCapture(t, "a.mp4"), 12)
	assert.ErrorIs(t, err, model.ErrInvalidMilestoneID)

	_, err = rec.Attach(ctx, "M_12M_001", filepath.Join(t.TempDir(), "missing.mp4"), 12)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = NewRecorder(up, book, "").Attach(ctx, "M_12M_001", writeCapture(t, "a.mp4"), 12)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	assert.Empty(t, up.keys)
}

func TestRecorderUploadFailureRecordsNothing(t *testing.T) {
	book := newBook(t)
	up := &memUploader{err: model.NewError(model.KindServiceUnavailable, errors.New("refused"), "upload")}

	_, err := NewRecorder(up, book, "pepper").Attach(context.Background(), "M_12M_001", writeCapture(t, "a.mp4"), 12)
	assert.ErrorIs(t, err, model.ErrServiceUnavailable)
	assert.Empty(t, book.AllEvidence())
}

func TestLocalUploaderCopiesUnderKey(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeCapture(t, "IMG_0001.MOV")
	key, err := ObjectKey("pepper", path, 12, "M_12M_001", at)
	require.NoError(t, err)

	up := LocalUploader{Dir: dir}
	ref, err := up.Upload(ctx, KeyPrefix+key, path, nil)
	require.NoError(t, err)

	dest := filepath.Join(dir, "evidence", key)
	assert.Equal(t, "file://"+filepath.ToSlash(dest), ref)
	assert.NotContains(t, ref, "IMG_0001")
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "not really a video", string(got))

	_, err = up.Upload(ctx, KeyPrefix+key, path, nil)
	assert.ErrorIs(t, err, model.ErrPersistenceWrite)
	got, err = os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "not really a video", string(got))
}

func TestLocalUploaderRequiresDir(t *testing.T) {
	path := writeCapture(t, "clip.mov")
	_, err := LocalUploader{}.Upload(context.Background(), KeyPrefix+"abc.mov", path, nil)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestMinioUploaderPutsObject(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		body   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		method, path = r.Method, r.URL.Path
		body, _ = io.ReadAll(r.Body)
		mu.Unlock()
		w.Header().Set("ETag", `"0123456789abcdef"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	up, err := NewMinioUploader(MinioConfig{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "access",
		SecretKey: "secret",
		Bucket:    "captures",
	})
	require.NoError(t, err)

	ref, err := up.Upload(context.Background(), "evidence/abc.mp4", writeCapture(t, "x.mp4"), map[string]string{"capture-id": "1"})
	require.NoError(t, err)
	assert.Equal(t, "s3://captures/evidence/abc.mp4", ref)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/captures/evidence/abc.mp4", path)
	assert.NotEmpty(t, body)
}

func TestMinioUploaderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	up, err := NewMinioUploader(MinioConfig{Endpoint: endpoint, Bucket: "captures"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = up.Upload(ctx, "evidence/abc.mp4", writeCapture(t, "x.mp4"), nil)
	assert.ErrorIs(t, err, model.ErrServiceUnavailable)
}

func TestNewMinioUploaderRequiresBucket(t *testing.T) {
	_, err := NewMinioUploader(MinioConfig{Endpoint: "localhost:9000"})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}
