package egress_test

import (
	"context"
	"encoding/base64"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"
	"webshot/internal/capture"
	"webshot/internal/capture/capturetest"
	"webshot/internal/egress"

	"github.com/google/go-cmp/cmp"
)

type fakeStorage struct {
	keys []string
	err  error
}

func (s *fakeStorage) Put(ctx context.Context, key string, data []byte) (string, error) {
	s.keys = append(s.keys, key)
	if s.err != nil {
		return "", s.err
	}
	return "https://img.example/" + key, nil
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	data, err := capturetest.Image(4, 4, capture.PNG)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("Uploaded", func(t *testing.T) {
		s := &fakeStorage{}

		got := egress.NewPublisher(s).Publish(ctx, data, capture.PNG, "https://example.com")
		if got.Inline {
			t.Errorf("expected a remote url")
		}
		if diff := cmp.Diff("https://img.example/"+s.keys[0], got.URL); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("UploadFailureFallsBackInline", func(t *testing.T) {
		s := &fakeStorage{err: errors.New("upload returned 502 Bad Gateway")}

		got := egress.NewPublisher(s).Publish(ctx, data, capture.PNG, "https://example.com")
		if !got.Inline {
			t.Fatalf("expected inline result")
		}

		payload, ok := strings.CutPrefix(got.URL, "data:image/png;base64,")
		if !ok {
			t.Fatalf("unexpected data uri prefix: %.40s", got.URL)
		}
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(data, decoded); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		if _, err := capture.NewShot(decoded, capture.PNG); err != nil {
			t.Errorf("inline payload is not a valid png: %v", err)
		}
	})

	t.Run("NoStorage", func(t *testing.T) {
		got := egress.NewPublisher(nil).Publish(ctx, data, capture.PNG, "https://example.com")
		if !got.Inline {
			t.Errorf("expected inline result")
		}
	})
}

func TestKey(t *testing.T) {
	at := time.UnixMilli(1700000000123)

	png := egress.Key("https://example.com", capture.PNG, at)
	if !regexp.MustCompile(`^screenshot_[0-9a-f]{16}_1700000000123\.png$`).MatchString(png) {
		t.Errorf("unexpected key %s", png)
	}
	if diff := cmp.Diff(png, egress.Key("https://example.com", capture.PNG, at)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if png == egress.Key("https://example.org", capture.PNG, at) {
		t.Errorf("different urls share key %s", png)
	}
	if !strings.HasSuffix(egress.Key("https://example.com", capture.JPEG, at), ".jpg") {
		t.Errorf("expected jpg extension")
	}
}
