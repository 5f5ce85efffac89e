package egress

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
	"webshot/internal/capture"
	"webshot/internal/classify"
	"webshot/internal/storage"
)

// Result is where a published screenshot can be read. Inline means URL is a
// data URI carrying the image itself.
type Result struct {
	URL    string
	Inline bool
}

type Publisher struct {
	storage storage.Storage
	now     func() time.Time
}

// NewPublisher publishes to s. A nil s always publishes inline.
func NewPublisher(s storage.Storage) *Publisher {
	return &Publisher{
		storage: s,
		now:     time.Now,
	}
}

// Publish uploads data and falls back to an inline data URI when the upload
// fails. It never fails itself.
func (p *Publisher) Publish(ctx context.Context, data []byte, format capture.Format, sourceURL string) Result {
	if p.storage == nil {
		return Result{URL: DataURI(data, format), Inline: true}
	}

	key := Key(sourceURL, format, p.now())
	u, err := p.storage.Put(ctx, key, data)
	if err != nil {
		err = classify.Wrap(classify.UploadFailure, err)
		slog.Warn("failed to upload screenshot, returning inline data", "key", key, "size", len(data), "kind", classify.Classify(err).Kind, "error", err)
		return Result{URL: DataURI(data, format), Inline: true}
	}
	return Result{URL: u}
}

// Key is screenshot_<hash of sourceURL>_<unix millis>.<ext>.
func Key(sourceURL string, format capture.Format, t time.Time) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return fmt.Sprintf("screenshot_%s_%d.%s", hex.EncodeToString(sum[:])[:16], t.UnixMilli(), extension(format))
}

func DataURI(data []byte, format capture.Format) string {
	return fmt.Sprintf("data:%s;base64,%s", format.ContentType(), base64.StdEncoding.EncodeToString(data))
}

func extension(format capture.Format) string {
	if format == capture.JPEG {
		return "jpg"
	}
	return "png"
}
