package media

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// thumbnailTransform is inserted into a video delivery URL to produce a
// still-frame thumbnail rendition.
const thumbnailTransform = "so_auto,w_400,h_225,c_fill"

type Uploader interface {
	Upload(ctx context.Context, file io.Reader, publicId string) (string, error)
}

type CloudinaryUploader struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryUploader(cloudinaryUrl string) (*CloudinaryUploader, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryUrl)
	if err != nil {
		return nil, err
	}

	return &CloudinaryUploader{cld: cld}, nil
}

// Upload stores the file with Cloudinary as a video asset and returns the
// resulting secure URL.
func (u *CloudinaryUploader) Upload(ctx context.Context, file io.Reader, publicId string) (string, error) {
	res, err := u.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		PublicID:     publicId,
		ResourceType: "video",
	})
	if err != nil {
		return "", err
	}

	// the SDK reports some API failures in the response body rather
	// than as an error
	if res.Error.Message != "" {
		return "", errors.New(res.Error.Message)
	}

	return res.SecureURL, nil
}

// ThumbnailURL derives a thumbnail rendition from a video delivery URL by
// injecting a transformation segment after the upload path component.
func ThumbnailURL(videoUrl string) string {
	return strings.Replace(videoUrl, "video/upload", "video/upload/"+thumbnailTransform, 1)
}
