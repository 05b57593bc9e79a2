package s3

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/Bill1907/prepup/internal/shared/storage/object"
	"github.com/Bill1907/prepup/internal/shared/util"
)

// PresignAPI is satisfied by *s3.PresignClient.
type PresignAPI interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// WithPresigner enables PresignPut on the store.
func (s *Store) WithPresigner(p PresignAPI) *Store {
	s.presign = p
	return s
}

// PresignPut returns a URL the browser can PUT the file to directly. The key
// is generated under the owner's namespace, like Save.
func (s *Store) PresignPut(ctx context.Context, ownerID, fileName string, expires time.Duration) (object.PresignedUpload, error) {
	if s.presign == nil {
		return object.PresignedUpload{}, object.ErrPresignUnsupported
	}
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return object.PresignedUpload{}, fmt.Errorf("sanitize file name: %w", err)
	}

	key := path.Join(util.HashUserKey(ownerID), uuid.NewString()+"_"+name)
	objectKey := applyPrefix(s.prefix, key)
	out, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return object.PresignedUpload{}, fmt.Errorf("s3 presign put bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return object.PresignedUpload{URL: out.URL, Key: key, ExpiresIn: expires}, nil
}

var _ object.Presigner = (*Store)(nil)
