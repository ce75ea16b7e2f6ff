package storage

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFilename(t *testing.T) {
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	assert.Equal(t, "menu_backup_20260203_040506.json", normalizeFilename("menu backup.json", at))
	assert.Equal(t, "file_20260203_040506.json", normalizeFilename("***.json", at))
	assert.Equal(t, "menu_20260203_040506", normalizeFilename("menu", at))
}

func TestLocalStorageSavesAndPrunes(t *testing.T) {
	fs := afero.NewMemMapFs()
	ls := NewLocalStorage(fs, "/backups", 2)

	for _, name := range []string{
		"menu_backup_20250101_000000.json",
		"menu_backup_20250102_000000.json",
		"menu_backup_20250103_000000.json",
		"other_20240101_000000.json",
	} {
		require.NoError(t, afero.WriteFile(fs, "/backups/"+name, []byte("{}"), 0o644))
	}

	path, err := ls.SaveFile(context.Background(), []byte(`{"ok":true}`), "menu_backup.json")
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))

	entries, err := afero.ReadDir(fs, "/backups")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Len(t, names, 3)
	assert.Contains(t, names, "menu_backup_20250103_000000.json")
	assert.Contains(t, names, "other_20240101_000000.json")
	assert.NotContains(t, names, "menu_backup_20250101_000000.json")
}

func TestLocalStorageUnlimited(t *testing.T) {
	fs := afero.NewMemMapFs()
	ls := NewLocalStorage(fs, "/b", 0)
	require.NoError(t, afero.WriteFile(fs, "/b/snap_20200101_000000.json", nil, 0o644))

	_, err := ls.SaveFile(context.Background(), []byte("{}"), "snap.json")
	require.NoError(t, err)

	entries, err := afero.ReadDir(fs, "/b")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

type fakeS3 struct {
	s3iface.S3API
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestSpacesStorageUploads(t *testing.T) {
	fake := &fakeS3{}
	ss := &SpacesStorage{client: fake, bucket: "menus", prefix: "backups"}

	loc, err := ss.SaveFile(context.Background(), []byte("{}"), "menu_backup.json")
	require.NoError(t, err)

	require.NotNil(t, fake.input)
	assert.Equal(t, "menus", aws.StringValue(fake.input.Bucket))
	assert.Regexp(t, `^backups/menu_backup_\d{8}_\d{6}\.json$`, aws.StringValue(fake.input.Key))
	assert.Equal(t, "application/json", aws.StringValue(fake.input.ContentType))
	assert.Equal(t, []byte("{}"), fake.body)
	assert.Equal(t, "s3://menus/"+aws.StringValue(fake.input.Key), loc)
}

func TestSpacesStorageError(t *testing.T) {
	ss := &SpacesStorage{client: &fakeS3{err: errors.New("denied")}, bucket: "menus"}
	_, err := ss.SaveFile(context.Background(), []byte("{}"), "menu_backup.json")
	assert.ErrorContains(t, err, "denied")
}
