package media

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/skillhive/skillhive/config"
)

// Uploader stores course media and returns a public URL. The course
// handlers depend on this interface so tests can use a fake.
type Uploader interface {
	UploadImage(ctx context.Context, r io.Reader, folder string) (string, error)
	UploadVideo(ctx context.Context, r io.Reader, folder string) (string, error)
}

// Cloudinary implements Uploader against the Cloudinary upload API.
type Cloudinary struct {
	client *cloudinary.Cloudinary
}

func NewCloudinary(cfg config.Cloudinary) (*Cloudinary, error) {
	client, err := cloudinary.NewFromParams(cfg.CloudName, cfg.Key, cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("building cloudinary client: %w", err)
	}
	return &Cloudinary{client: client}, nil
}

func (c *Cloudinary) upload(ctx context.Context, r io.Reader, folder string, resourceType string) (string, error) {
	res, err := c.client.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:       folder,
		ResourceType: resourceType,
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s to folder %q: %w", resourceType, folder, err)
	}
	return res.SecureURL, nil
}

func (c *Cloudinary) UploadImage(ctx context.Context, r io.Reader, folder string) (string, error) {
	return c.upload(ctx, r, folder, "image")
}

func (c *Cloudinary) UploadVideo(ctx context.Context, r io.Reader, folder string) (string, error) {
	return c.upload(ctx, r, folder, "video")
}
