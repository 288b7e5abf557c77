// Package evidence uploads captured videos under de-identified names and
// records the resulting reference against a milestone.
package evidence

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/rcliao/milestone-tracker/internal/catalog"
	"github.com/rcliao/milestone-tracker/internal/model"
)

// KeyPrefix is prepended to every uploaded object key.
const KeyPrefix = "evidence/"

// ObjectKey derives the de-identified object name for a capture: the first
// 16 hex characters of a salted SHA-256 over the capture details, plus the
// original file extension. The salt is required.
func ObjectKey(salt, fileName string, ageMonths int, milestoneID string, at time.Time) (string, error) {
	if salt == "" {
		return "", model.NewError(model.KindInvalidInput, nil, "evidence salt is not configured")
	}
	base := filepath.Base(fileName)
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s_%s_%d_%s_%s", salt, base, ageMonths, milestoneID, at.UTC().Format(time.RFC3339Nano))))
	return hex.EncodeToString(sum[:])[:16] + strings.ToLower(filepath.Ext(base)), nil
}

// NewCaptureID returns a sortable unique id for a capture.
func NewCaptureID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), rand.Reader).String()
}

// Uploader stores a local file under key and returns a durable reference.
type Uploader interface {
	Upload(ctx context.Context, key, path string, meta map[string]string) (string, error)
}

// Attacher records evidence against a milestone.
type Attacher interface {
	AttachEvidence(ctx context.Context, id string, ref model.EvidenceRef) error
	Catalog() *catalog.Catalog
}

// Capture is a finished upload.
type Capture struct {
	ID  string            `json:"id"`
	Key string            `json:"key"`
	Ref model.EvidenceRef `json:"ref"`
}

// Recorder uploads files and attaches them to milestones.
type Recorder struct {
	uploader Uploader
	book     Attacher
	salt     string
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*Recorder)

func WithLogger(logger *zap.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder creates a Recorder.
func NewRecorder(uploader Uploader, book Attacher, salt string, opts ...Option) *Recorder {
	r := &Recorder{
		uploader: uploader,
		book:     book,
		salt:     salt,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach uploads the file at path and records it for milestoneID. The
// milestone is checked before anything leaves the device.
func (r *Recorder) Attach(ctx context.Context, milestoneID, path string, ageMonths int) (*Capture, error) {
	if !r.book.Catalog().Has(milestoneID) {
		return nil, model.NewError(model.KindInvalidMilestoneID, nil, "%q", milestoneID)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, model.NewError(model.KindInvalidInput, err, "read capture")
	}
	if info.IsDir() {
		return nil, model.NewError(model.KindInvalidInput, nil, "%s is a directory", path)
	}

	at := r.now().UTC()
	name, err := ObjectKey(r.salt, path, ageMonths, milestoneID, at)
	if err != nil {
		return nil, err
	}
	id := NewCaptureID(at)
	key := KeyPrefix + name

	ref, err := r.uploader.Upload(ctx, key, path, map[string]string{
		"capture-id":   id,
		"milestone-id": milestoneID,
	})
	if err != nil {
		return nil, err
	}

	evidence := model.EvidenceRef{Reference: ref, CapturedAt: at}
	if err := r.book.AttachEvidence(ctx, milestoneID, evidence); err != nil {
		return nil, err
	}
	r.logger.Info("evidence attached",
		zap.String("milestone_id", milestoneID),
		zap.String("capture_id", id),
		zap.Int64("bytes", info.Size()))
	return &Capture{ID: id, Key: key, Ref: evidence}, nil
}

// LocalUploader copies captures into Dir under their object key and
// references the copy by file URI. Used when no object storage is configured.
type LocalUploader struct {
	Dir string
}

func (u LocalUploader) Upload(ctx context.Context, key, path string, _ map[string]string) (string, error) {
	if u.Dir == "" {
		return "", model.NewError(model.KindInvalidInput, nil, "local evidence directory is not configured")
	}
	dest, err := filepath.Abs(filepath.Join(u.Dir, filepath.FromSlash(key)))
	if err != nil {
		return "", model.NewError(model.KindInvalidInput, err, "resolve evidence path")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
		return "", model.NewError(model.KindPersistenceWrite, err, "create evidence directory")
	}
	if err := copyFile(ctx, dest, path); err != nil {
		return "", model.NewError(model.KindPersistenceWrite, err, "copy capture")
	}
	return "file://" + filepath.ToSlash(dest), nil
}

func copyFile(ctx context.Context, dest, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	err = ctx.Err()
	if err == nil {
		_, err = io.Copy(out, in)
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
	}
	return err
}
