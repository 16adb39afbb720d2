package generation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/minischools/academy-backend/internal/platform/httpx"
)

const DefaultRemotePath = "/generateChapterContent"

// RemoteSource asks an envelope-speaking backend for chapter content.
type RemoteSource struct {
	Client *httpx.EnvelopeClient
	Path   string
}

func NewRemoteSource(client *httpx.EnvelopeClient, path string) *RemoteSource {
	if strings.TrimSpace(path) == "" {
		path = DefaultRemotePath
	}
	return &RemoteSource{Client: client, Path: path}
}

func (s *RemoteSource) GenerateChapter(ctx context.Context, req ChapterRequest) (string, error) {
	if s == nil || s.Client == nil {
		return "", errors.New("remote source not configured")
	}
	var data json.RawMessage
	if err := s.Client.PostJSON(ctx, s.Path, req, &data); err != nil {
		return "", err
	}
	return NormalizeChapterHTML(req.Chapter, decodeChapterData(data))
}

// decodeChapterData accepts data as a bare string or as an object carrying
// the chapter under one of the usual keys.
func decodeChapterData(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return ""
	}
	for _, k := range []string{"content", "html", "chapter", "text"} {
		if v, ok := obj[k].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
