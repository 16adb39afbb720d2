package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/minischools/academy-backend/internal/platform/logger"
)

type BucketCategory string

const (
	BucketCategoryCover  BucketCategory = "cover"
	BucketCategoryAudio  BucketCategory = "audio"
	BucketCategoryExport BucketCategory = "export"
)

type BucketService interface {
	UploadFile(ctx context.Context, category BucketCategory, key string, file io.Reader) error
	Exists(ctx context.Context, category BucketCategory, key string) (bool, error)
	DeleteFile(ctx context.Context, category BucketCategory, key string) error
	GetPublicURL(category BucketCategory, key string) string
}

type bucketService struct {
	log        *logger.Logger
	client     *storage.Client
	cfg        ObjectStorageConfig
	buckets    map[BucketCategory]string
	cdnDomains map[BucketCategory]string
}

// NewBucketService reads COVER_/AUDIO_/EXPORT_GCS_BUCKET_NAME. Categories
// without a bucket are rejected at call time.
func NewBucketService(ctx context.Context, log *logger.Logger) (BucketService, error) {
	cfg, err := ResolveObjectStorageConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("resolve object storage config: %w", err)
	}
	buckets := map[BucketCategory]string{}
	cdn := map[BucketCategory]string{}
	for cat, prefix := range map[BucketCategory]string{
		BucketCategoryCover:  "COVER",
		BucketCategoryAudio:  "AUDIO",
		BucketCategoryExport: "EXPORT",
	} {
		if name := strings.TrimSpace(os.Getenv(prefix + "_GCS_BUCKET_NAME")); name != "" {
			buckets[cat] = name
		}
		if domain := strings.TrimSpace(os.Getenv(prefix + "_CDN_DOMAIN")); domain != "" {
			cdn[cat] = domain
		}
	}
	if len(buckets) == 0 {
		return nil, errors.New("no *_GCS_BUCKET_NAME configured")
	}

	client, err := newStorageClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	log = log.With("service", "BucketService")
	log.Info("Object storage initialized", "mode", cfg.Mode, "buckets", len(buckets))
	return newBucketService(log, client, cfg, buckets, cdn), nil
}

func newBucketService(log *logger.Logger, client *storage.Client, cfg ObjectStorageConfig, buckets, cdn map[BucketCategory]string) *bucketService {
	return &bucketService{log: log, client: client, cfg: cfg, buckets: buckets, cdnDomains: cdn}
}

func newStorageClient(ctx context.Context, cfg ObjectStorageConfig) (*storage.Client, error) {
	if cfg.IsEmulatorMode() {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", cfg.EmulatorHost)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	}
	opts := append(ClientOptionsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
	return storage.NewClient(ctx, opts...)
}

func (bs *bucketService) bucketName(category BucketCategory) (string, error) {
	name, ok := bs.buckets[category]
	if !ok {
		return "", fmt.Errorf("no bucket configured for category %q", category)
	}
	return name, nil
}

func (bs *bucketService) UploadFile(ctx context.Context, category BucketCategory, key string, file io.Reader) error {
	name, err := bs.bucketName(category)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := bs.client.Bucket(name).Object(key).NewWriter(ctx)
	if ct := ContentTypeForKey(key); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, file); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	bs.log.Debug("Uploaded object", "category", category, "key", key)
	return nil
}

func (bs *bucketService) Exists(ctx context.Context, category BucketCategory, key string) (bool, error) {
	name, err := bs.bucketName(category)
	if err != nil {
		return false, err
	}
	_, err = bs.client.Bucket(name).Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (bs *bucketService) DeleteFile(ctx context.Context, category BucketCategory, key string) error {
	name, err := bs.bucketName(category)
	if err != nil {
		return err
	}
	err = bs.client.Bucket(name).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete %s/%s: %w", name, key, err)
	}
	return nil
}

func (bs *bucketService) GetPublicURL(category BucketCategory, key string) string {
	name, err := bs.bucketName(category)
	if err != nil {
		return key
	}
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if domain := bs.cdnDomains[category]; domain != "" {
		return fmt.Sprintf("https://%s/%s", domain, key)
	}
	if bs.cfg.PublicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", bs.cfg.PublicBaseURL, name, key)
	}
	if bs.cfg.IsEmulatorMode() {
		return fmt.Sprintf("%s/download/storage/v1/b/%s/o/%s?alt=media", bs.cfg.EmulatorHost, url.PathEscape(name), url.PathEscape(key))
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", name, key)
}

func ContentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	switch {
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".webp"):
		return "image/webp"
	case strings.HasSuffix(s, ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(s, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(s, ".epub"):
		return "application/epub+zip"
	default:
		return ""
	}
}
