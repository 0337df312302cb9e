package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/storage"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
)

// Image limits
const (
	MaxImageBytes       = 5 << 20
	MinImageDimension   = 100
	MaxImageDimension   = 5000
	DefaultFetchTimeout = 15 * time.Second
)

var imageFormats = map[string]string{
	"image/jpeg": "jpeg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// ImageStore is the persistence the image service needs
type ImageStore interface {
	CreateImage(ctx context.Context, img *models.Image) error
	GetImage(ctx context.Context, id int64) (*models.Image, error)
	ListImages(ctx context.Context, productID *int64) ([]models.Image, error)
	DeleteImage(ctx context.Context, id int64) error
}

// ImageHost stores image bytes and serves them publicly
type ImageHost interface {
	Upload(ctx context.Context, data []byte, ext, contentType string) (*storage.Object, error)
	Delete(ctx context.Context, key string) error
}

// ImageService validates images and keeps the host and the metadata table in step
type ImageService struct {
	store  ImageStore
	host   ImageHost
	client *resty.Client
	logger *zap.Logger
}

// NewImageService creates an image service. A nil host makes uploads and deletes Unavailable.
func NewImageService(store ImageStore, host ImageHost, fetchTimeout time.Duration) *ImageService {
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	return &ImageService{
		store:  store,
		host:   host,
		client: resty.New().SetTimeout(fetchTimeout),
		logger: util.GetLogger(),
	}
}

// ImageInfo is what validation learned about an image
type ImageInfo struct {
	Format      string
	ContentType string
	Ext         string
	Width       int
	Height      int
}

// InspectImage checks size, format and dimensions
func InspectImage(data []byte) (*ImageInfo, error) {
	if len(data) == 0 {
		return nil, apperr.MissingFields("file")
	}
	if len(data) > MaxImageBytes {
		return nil, errImageTooLarge()
	}

	mt := mimetype.Detect(data)
	format, ok := imageFormats[mt.String()]
	if !ok {
		return nil, apperr.New(apperr.Validation, "unsupported image format: %s", mt.String())
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, err, "unreadable %s image", format)
	}
	if cfg.Width < MinImageDimension || cfg.Height < MinImageDimension ||
		cfg.Width > MaxImageDimension || cfg.Height > MaxImageDimension {
		return nil, apperr.New(apperr.Validation,
			"image dimensions %dx%d outside %d-%d pixels", cfg.Width, cfg.Height, MinImageDimension, MaxImageDimension)
	}

	return &ImageInfo{
		Format:      format,
		ContentType: mt.String(),
		Ext:         mt.Extension(),
		Width:       cfg.Width,
		Height:      cfg.Height,
	}, nil
}

// Upload validates data, stores it on the host and records its metadata
func (s *ImageService) Upload(ctx context.Context, data []byte, productID *int64) (*models.Image, error) {
	ctx, span := util.StartSpan(ctx, "ImageService.Upload")
	defer span.End()

	start := time.Now()
	defer func() {
		util.ImageUploadLatency.Observe(time.Since(start).Seconds())
	}()

	if s.host == nil {
		util.ImageUploadsTotal.WithLabelValues("unavailable").Inc()
		return nil, apperr.Wrap(apperr.Unavailable, storage.ErrNotConfigured, "image upload unavailable")
	}

	info, err := InspectImage(data)
	if err != nil {
		util.ImageUploadsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	obj, err := s.host.Upload(ctx, data, info.Ext, info.ContentType)
	if err != nil {
		util.RecordError(span, err)
		util.ImageUploadsTotal.WithLabelValues("host_error").Inc()
		return nil, apperr.Wrap(apperr.Unavailable, err, "image host rejected upload")
	}

	img := &models.Image{
		ProductID:  productID,
		URL:        obj.URL,
		StorageKey: obj.Key,
		Format:     info.Format,
		Width:      info.Width,
		Height:     info.Height,
		Bytes:      int64(len(data)),
	}
	if err := s.store.CreateImage(ctx, img); err != nil {
		if derr := s.host.Delete(ctx, obj.Key); derr != nil {
			s.logger.Error("Failed to remove orphaned image", zap.String("key", obj.Key), zap.Error(derr))
		}
		util.ImageUploadsTotal.WithLabelValues("db_error").Inc()
		if errors.Is(err, store.ErrReferenced) {
			return nil, apperr.New(apperr.NotFound, "product not found: %d", *productID)
		}
		return nil, fmt.Errorf("failed to save image: %w", err)
	}

	util.ImageUploadsTotal.WithLabelValues("success").Inc()
	s.logger.Info("Image uploaded",
		zap.Int64("image_id", img.ID),
		zap.String("key", img.StorageKey),
		zap.String("format", img.Format))
	return img, nil
}

// UploadFromURL downloads a remote image and uploads it
func (s *ImageService) UploadFromURL(ctx context.Context, rawURL string, productID *int64) (*models.Image, error) {
	if s.host == nil {
		util.ImageUploadsTotal.WithLabelValues("unavailable").Inc()
		return nil, apperr.Wrap(apperr.Unavailable, storage.ErrNotConfigured, "image upload unavailable")
	}

	data, err := s.fetch(ctx, rawURL)
	if err != nil {
		util.ImageUploadsTotal.WithLabelValues("fetch_error").Inc()
		return nil, err
	}
	return s.Upload(ctx, data, productID)
}

func (s *ImageService) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apperr.InvalidFields("url")
	}

	resp, err := s.client.R().SetContext(ctx).SetDoNotParseResponse(true).Get(u.String())
	if err != nil {
		return nil, fetchError(err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return nil, apperr.New(apperr.Validation, "failed to fetch image: status %d", resp.StatusCode())
	}
	if resp.RawResponse.ContentLength > MaxImageBytes {
		return nil, errImageTooLarge()
	}

	data, err := io.ReadAll(io.LimitReader(body, MaxImageBytes+1))
	if err != nil {
		return nil, fetchError(err)
	}
	if len(data) > MaxImageBytes {
		return nil, errImageTooLarge()
	}
	return data, nil
}

func fetchError(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return apperr.Wrap(apperr.Timeout, err, "timed out fetching image")
	}
	return apperr.Wrap(apperr.Validation, err, "failed to fetch image")
}

func errImageTooLarge() error {
	return apperr.New(apperr.Validation, "image exceeds %d MB", MaxImageBytes>>20)
}

// List returns image metadata, newest first, optionally for one product
func (s *ImageService) List(ctx context.Context, productID *int64) ([]models.Image, error) {
	images, err := s.store.ListImages(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	if images == nil {
		images = []models.Image{}
	}
	return images, nil
}

// Delete removes the image from the host and then its metadata
func (s *ImageService) Delete(ctx context.Context, id int64) error {
	img, err := s.store.GetImage(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.NotFound, "image not found: %d", id)
		}
		return fmt.Errorf("failed to get image: %w", err)
	}
	if s.host == nil {
		return apperr.Wrap(apperr.Unavailable, storage.ErrNotConfigured, "image delete unavailable")
	}

	if err := s.host.Delete(ctx, img.StorageKey); err != nil {
		return apperr.Wrap(apperr.Unavailable, err, "image host rejected delete")
	}
	if err := s.store.DeleteImage(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	s.logger.Info("Image deleted", zap.Int64("image_id", id), zap.String("key", img.StorageKey))
	return nil
}
