package s3

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPutObject struct {
	mock.Mock
}

func (m *mockPutObject) PutObject(
	ctx context.Context,
	params *s3.PutObjectInput,
	optFns ...func(*s3.Options),
) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(params.Body)
	args := m.Called(aws.ToString(params.Bucket), aws.ToString(params.Key), string(body))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func TestMirror_Upload(t *testing.T) {
	ctx := context.Background()
	local := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, os.WriteFile(local, []byte("a,b\n1,2\n"), 0o600))

	t.Run("success", func(t *testing.T) {
		client := &mockPutObject{}
		client.On("PutObject", "bucket", "pivot/req-1/report.csv", "a,b\n1,2\n").
			Return(&s3.PutObjectOutput{}, nil)

		uri, err := newMirror(client, Settings{Bucket: "bucket", Prefix: "/pivot/"}).Upload(ctx, "req-1", local)
		require.NoError(t, err)
		assert.Equal(t, "s3://bucket/pivot/req-1/report.csv", uri)
		client.AssertExpectations(t)
	})

	t.Run("upload error", func(t *testing.T) {
		client := &mockPutObject{}
		client.On("PutObject", "bucket", "req-1/report.csv", mock.Anything).
			Return(nil, errors.New("access denied"))

		_, err := newMirror(client, Settings{Bucket: "bucket"}).Upload(ctx, "req-1", local)
		assert.ErrorContains(t, err, "access denied")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := newMirror(&mockPutObject{}, Settings{Bucket: "bucket"}).Upload(ctx, "req-1", local+".gone")
		assert.Error(t, err)
	})

	t.Run("bucket required", func(t *testing.T) {
		_, err := NewMirror(ctx, Settings{})
		assert.Error(t, err)
	})
}
