// README: Delivery file storage on MinIO/S3: existence checks and presigned downloads.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"gigmarket/internal/modules/order"
)

// ObjectStore is the part of *minio.Client deliveries use.
type ObjectStore interface {
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PresignedGetObject(ctx context.Context, bucket, object string, expiry time.Duration, params url.Values) (*url.URL, error)
}

func NewClient(endpoint, accessKey, secretKey string, secure bool) (*minio.Client, error) {
	c, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	return c, errors.Wrap(err, "minio client")
}

type Deliveries struct {
	store  ObjectStore
	bucket string
	expiry time.Duration
}

func NewDeliveries(store ObjectStore, bucket string, expiry time.Duration) *Deliveries {
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &Deliveries{store: store, bucket: bucket, expiry: expiry}
}

// Verify checks every file id names an uploaded object; a missing one fails the
// delivery precondition.
func (d *Deliveries) Verify(ctx context.Context, ids []string) error {
	for _, id := range ids {
		_, err := d.store.StatObject(ctx, d.bucket, id, minio.StatObjectOptions{})
		if err == nil {
			continue
		}
		if isMissing(err) {
			return fmt.Errorf("%w: delivery file %s was not uploaded", order.ErrInvalidState, id)
		}
		return errors.Wrapf(err, "stat %s", id)
	}
	return nil
}

// DownloadURL presigns a time-limited GET for one delivered file.
func (d *Deliveries) DownloadURL(ctx context.Context, id string) (string, time.Time, error) {
	u, err := d.store.PresignedGetObject(ctx, d.bucket, id, d.expiry, url.Values{})
	if err != nil {
		return "", time.Time{}, errors.Wrapf(err, "presign %s", id)
	}
	return u.String(), time.Now().Add(d.expiry), nil
}

func isMissing(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}
