package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"golang.org/x/xerrors"
)

const (
	DefaultImageBedEndpoint = "https://image.darkchoco.top/api/r2/upload-url"
	DefaultImageBedPrefix   = "screenshots"
)

type imageBedStorage struct {
	client *http.Client
	config ImageBedConfig
}

// ImageBedConfig configures an HTTP image host that accepts a multipart form
// with the fields file and prefix and answers {"url": ...} or {"error": ...}.
type ImageBedConfig struct {
	Endpoint string
	Prefix   string
}

func NewImageBedStorage(client *http.Client, c ImageBedConfig) Storage {
	if c.Endpoint == "" {
		c.Endpoint = DefaultImageBedEndpoint
	}
	if c.Prefix == "" {
		c.Prefix = DefaultImageBedPrefix
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &imageBedStorage{
		client: client,
		config: c,
	}
}

func (s *imageBedStorage) Put(ctx context.Context, key string, data []byte) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, key))
	header.Set("Content-Type", http.DetectContentType(data))
	part, err := w.CreatePart(header)
	if err != nil {
		return "", xerrors.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", xerrors.Errorf("failed to write file part: %w", err)
	}
	if err := w.WriteField("prefix", s.config.Prefix); err != nil {
		return "", xerrors.Errorf("failed to write prefix field: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", xerrors.Errorf("failed to close multipart body: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint, bytes.NewReader(body.Bytes()))
	if err != nil {
		return "", xerrors.Errorf("failed to build upload request: %w", err)
	}
	request.Header.Set("Content-Type", w.FormDataContentType())

	response, err := s.client.Do(request)
	if err != nil {
		return "", xerrors.Errorf("failed to upload %s: %w", key, err)
	}
	defer response.Body.Close()

	b, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		return "", xerrors.Errorf("failed to read upload response: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return "", xerrors.Errorf("upload returned %s", response.Status)
	}

	var result struct {
		URL   string `json:"url"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return "", xerrors.Errorf("failed to decode upload response: %w", err)
	}
	if result.Error != "" {
		return "", xerrors.Errorf("upload rejected: %s", result.Error)
	}
	if result.URL == "" {
		return "", xerrors.New("upload response has no url")
	}
	return result.URL, nil
}
