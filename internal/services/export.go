package services

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	contentmod "github.com/minischools/academy-backend/internal/modules/content"
	"github.com/minischools/academy-backend/internal/modules/publish"
	"github.com/minischools/academy-backend/internal/observability"
	"github.com/minischools/academy-backend/internal/platform/apierr"
	"github.com/minischools/academy-backend/internal/platform/dbctx"
	"github.com/minischools/academy-backend/internal/platform/gcp"
	"github.com/minischools/academy-backend/internal/platform/logger"
)

const (
	ExportPDF  = "pdf"
	ExportEPUB = "epub"
)

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

type ExportService interface {
	Export(dbc dbctx.Context, creatorID, itemID uuid.UUID, format string) (*ExportFile, error)
	Store(dbc dbctx.Context, creatorID, itemID uuid.UUID, format string) (string, error)
	SharedHTML(dbc dbctx.Context, contentType string, itemID uuid.UUID) (string, error)
}

type exportService struct {
	log      *logger.Logger
	content  ContentService
	exporter *publish.Exporter
	bucket   gcp.BucketService
}

// NewExportService accepts a nil bucket; Store then reports 503.
func NewExportService(baseLog *logger.Logger, content ContentService, exporter *publish.Exporter, bucket gcp.BucketService) ExportService {
	return &exportService{
		log:      baseLog.With("service", "ExportService"),
		content:  content,
		exporter: exporter,
		bucket:   bucket,
	}
}

func (s *exportService) Export(dbc dbctx.Context, creatorID, itemID uuid.UUID, format string) (*ExportFile, error) {
	item, err := s.content.GetWithChapters(dbc, creatorID, itemID)
	if err != nil {
		return nil, err
	}
	ctx, span := observability.StartSpan(dbc.Ctx, "export."+format,
		attribute.String("content.id", item.ID.String()),
		attribute.Int("chapters", len(item.Chapters)),
	)
	defer span.End()

	doc := publish.Document{
		Title:    item.Title,
		Chapters: contentmod.EncodeChapters(item.Chapters),
	}
	var (
		data []byte
		ct   string
	)
	switch format {
	case ExportPDF:
		data, err = s.exporter.PDF(ctx, doc)
		ct = "application/pdf"
	case ExportEPUB:
		data, err = s.exporter.EPUB(ctx, doc)
		ct = "application/epub+zip"
	default:
		return nil, apierr.BadRequest("invalid_format", fmt.Errorf("unsupported export format %q", format))
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("render %s: %w", format, err)
	}
	s.log.Info("content exported", "content_id", item.ID, "format", format, "bytes", len(data))
	return &ExportFile{
		Filename:    fileSlug(item.Title) + "." + format,
		ContentType: ct,
		Data:        data,
	}, nil
}

// Store renders the export and uploads it, returning its public URL.
func (s *exportService) Store(dbc dbctx.Context, creatorID, itemID uuid.UUID, format string) (string, error) {
	if s.bucket == nil {
		return "", apierr.New(http.StatusServiceUnavailable, "storage_unavailable", errStorageUnavailable)
	}
	file, err := s.Export(dbc, creatorID, itemID, format)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("exports/%s/%s-%s", itemID, time.Now().UTC().Format("20060102T150405Z"), file.Filename)
	if err := s.bucket.UploadFile(dbc.Ctx, gcp.BucketCategoryExport, key, bytes.NewReader(file.Data)); err != nil {
		return "", fmt.Errorf("upload export: %w", err)
	}
	return s.bucket.GetPublicURL(gcp.BucketCategoryExport, key), nil
}

// SharedHTML renders the public document for a shared item.
func (s *exportService) SharedHTML(dbc dbctx.Context, contentType string, itemID uuid.UUID) (string, error) {
	shared, err := s.content.GetShared(dbc, contentType, itemID)
	if err != nil {
		return "", err
	}
	return publish.SharedDocument(shared.Title, contentmod.ParseContent(shared.Content)), nil
}

func fileSlug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "export"
	}
	if len(out) > 80 {
		out = strings.TrimSuffix(out[:80], "-")
	}
	return out
}
