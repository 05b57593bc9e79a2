package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/Bill1907/prepup/internal/shared/storage/object"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "user/file.pdf", want: "user/file.pdf"},
		{name: "simple prefix", prefix: "root", key: "user/file.pdf", want: "root/user/file.pdf"},
		{name: "prefix trailing slash", prefix: "root/", key: "user/file.pdf", want: "root/user/file.pdf"},
		{name: "prefix and key slashes", prefix: "/root/", key: "/user/file.pdf", want: "root/user/file.pdf"},
		{name: "nested prefix", prefix: "root/sub", key: "user/file.pdf", want: "root/sub/user/file.pdf"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

type fakeUploader struct {
	input *s3.PutObjectInput
	body  string
}

func (f *fakeUploader) Upload(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.input = in
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = string(data)
	return &manager.UploadOutput{}, nil
}

type fakeAPI struct{}

func (fakeAPI) GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return nil, &s3types.NoSuchKey{}
}

func (fakeAPI) HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(42), ContentType: aws.String("application/pdf")}, nil
}

func (fakeAPI) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	return &s3.DeleteObjectOutput{}, nil
}

func TestSaveUsesUploaderWithPrefixAndEncryption(t *testing.T) {
	up := &fakeUploader{}
	store := NewWithClients(fakeAPI{}, up, "bucket", "/resumes/", "kms-key")

	obj, err := store.Save(context.Background(), "google:1", "cv.pdf", strings.NewReader("%PDF-1.4 body"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if up.body != "%PDF-1.4 body" {
		t.Fatalf("uploaded body mismatch: %q", up.body)
	}
	if got := aws.ToString(up.input.Key); got != "resumes/"+obj.Key {
		t.Fatalf("unexpected object key %q for storage key %q", got, obj.Key)
	}
	if up.input.ServerSideEncryption != s3types.ServerSideEncryptionAwsKms {
		t.Fatalf("expected kms encryption, got %q", up.input.ServerSideEncryption)
	}
	if obj.MimeType != "application/pdf" || obj.Size != int64(len("%PDF-1.4 body")) {
		t.Fatalf("unexpected object %+v", obj)
	}
}

func TestOpenMapsNoSuchKey(t *testing.T) {
	store := NewWithClients(fakeAPI{}, &fakeUploader{}, "bucket", "", "")
	if _, err := store.Open(context.Background(), "missing"); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	stat, err := store.Stat(context.Background(), "present")
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if stat.Size != 42 {
		t.Fatalf("unexpected size %d", stat.Size)
	}
}
