package minioblob

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMinio implements minioAPI without a network.
type fakeMinio struct {
	bucketExists    bool
	bucketExistsErr error
	makeBucketErr   error
	madeBucket      string

	putErr         error
	putKey         string
	putSize        int64
	putContentType string

	getRC  io.ReadCloser
	getErr error

	copyErr error
	copySrc string
	copyDst string

	removeErr error
	removed   string

	statErr error
}

func (f *fakeMinio) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, f.bucketExistsErr
}

func (f *fakeMinio) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.madeBucket = bucket
	return f.makeBucketErr
}

func (f *fakeMinio) PutObject(_ context.Context, _, key string, _ io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.putKey, f.putSize, f.putContentType = key, size, opts.ContentType
	return minio.UploadInfo{Key: key, Size: size}, f.putErr
}

func (f *fakeMinio) GetObject(_ context.Context, _, _ string, _ minio.GetObjectOptions) (io.ReadCloser, error) {
	return f.getRC, f.getErr
}

func (f *fakeMinio) CopyObject(_ context.Context, dst minio.CopyDestOptions, src minio.CopySrcOptions) (minio.UploadInfo, error) {
	f.copySrc, f.copyDst = src.Object, dst.Object
	return minio.UploadInfo{}, f.copyErr
}

func (f *fakeMinio) RemoveObject(_ context.Context, _, key string, _ minio.RemoveObjectOptions) error {
	f.removed = key
	return f.removeErr
}

func (f *fakeMinio) StatObject(_ context.Context, _, _ string, _ minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return minio.ObjectInfo{}, f.statErr
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name        string
		api         *fakeMinio
		wantErr     bool
		wantCreated bool
	}{
		{name: "existing bucket", api: &fakeMinio{bucketExists: true}},
		{name: "missing bucket", api: &fakeMinio{}, wantCreated: true},
		{name: "check error", api: &fakeMinio{bucketExistsErr: errors.New("boom")}, wantErr: true},
		{name: "create error", api: &fakeMinio{makeBucketErr: errors.New("boom")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := newClientWithAPI(context.Background(), tt.api, "docs")
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			if tt.wantCreated {
				assert.Equal(t, "docs", tt.api.madeBucket)
			} else {
				assert.Empty(t, tt.api.madeBucket)
			}
		})
	}
}

func TestClient_Upload(t *testing.T) {
	api := &fakeMinio{bucketExists: true}
	c, err := newClientWithAPI(context.Background(), api, "docs")
	require.NoError(t, err)

	err = c.Upload(context.Background(), "enrollments/s1/dni", bytes.NewReader([]byte("img")), 3, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "enrollments/s1/dni", api.putKey)
	assert.Equal(t, int64(3), api.putSize)
	assert.Equal(t, "image/png", api.putContentType)

	api.putErr = errors.New("boom")
	err = c.Upload(context.Background(), "k", bytes.NewReader(nil), 0, "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "uploading object")
}

func TestClient_Download(t *testing.T) {
	api := &fakeMinio{bucketExists: true, getRC: io.NopCloser(bytes.NewReader([]byte("pdf")))}
	c, err := newClientWithAPI(context.Background(), api, "docs")
	require.NoError(t, err)

	rc, err := c.Download(context.Background(), "k")
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "pdf", string(content))

	api.getErr = errors.New("boom")
	_, err = c.Download(context.Background(), "k")
	assert.Error(t, err)
}

func TestClient_CopyAndDelete(t *testing.T) {
	api := &fakeMinio{bucketExists: true}
	c, err := newClientWithAPI(context.Background(), api, "docs")
	require.NoError(t, err)

	require.NoError(t, c.Copy(context.Background(), "enrollments/s1/degree", "students/u1/degree"))
	assert.Equal(t, "enrollments/s1/degree", api.copySrc)
	assert.Equal(t, "students/u1/degree", api.copyDst)

	require.NoError(t, c.Delete(context.Background(), "enrollments/s1/degree"))
	assert.Equal(t, "enrollments/s1/degree", api.removed)

	api.copyErr = errors.New("boom")
	assert.Error(t, c.Copy(context.Background(), "a", "b"))
	api.removeErr = errors.New("boom")
	assert.Error(t, c.Delete(context.Background(), "a"))
}

func TestClient_Exists(t *testing.T) {
	tests := []struct {
		name    string
		statErr error
		want    bool
		wantErr bool
	}{
		{name: "found", want: true},
		{name: "not found", statErr: minio.ErrorResponse{Code: "NoSuchKey"}},
		{name: "error", statErr: errors.New("boom"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeMinio{bucketExists: true, statErr: tt.statErr}
			c, err := newClientWithAPI(context.Background(), api, "docs")
			require.NoError(t, err)

			got, err := c.Exists(context.Background(), "k")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
