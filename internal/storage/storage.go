package storage

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// Storage is a destination for backup snapshots.
type Storage interface {
	// SaveFile stores data under a unique name derived from filename and
	// returns where it ended up.
	SaveFile(ctx context.Context, data []byte, filename string) (string, error)
}

type LocalStorage struct {
	fs       afero.Fs
	dir      string
	maxCount int
}

type SpacesStorage struct {
	client   s3iface.S3API
	bucket   string
	prefix   string
	endpoint string
}

// NewLocalStorage keeps at most maxCount files in dir; zero keeps everything.
func NewLocalStorage(fs afero.Fs, dir string, maxCount int) *LocalStorage {
	return &LocalStorage{fs: fs, dir: dir, maxCount: maxCount}
}

func NewSpacesStorage(endpoint, region, bucket, prefix, accessKey, secretKey string) (*SpacesStorage, error) {
	config := &aws.Config{
		Credentials:      credentials.NewStaticCredentials(accessKey, secretKey, ""),
		Endpoint:         aws.String(endpoint),
		Region:           aws.String(region),
		S3ForcePathStyle: aws.Bool(false),
	}

	sess, err := session.NewSession(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &SpacesStorage{
		client:   s3.New(sess),
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		endpoint: endpoint,
	}, nil
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// cleanBase strips the extension and anything other than letters, digits,
// dashes and underscores from a filename.
func cleanBase(filename string) string {
	baseName := strings.TrimSuffix(filename, filepath.Ext(filename))
	baseName = strings.ReplaceAll(baseName, " ", "_")
	baseName = unsafeChars.ReplaceAllString(baseName, "")
	if baseName == "" {
		baseName = "file"
	}
	return baseName
}

// normalizeFilename creates a unique, normalized filename without spaces
func normalizeFilename(originalFilename string, now time.Time) string {
	// basename_timestamp.ext; the timestamp sorts lexically
	return fmt.Sprintf("%s_%s%s", cleanBase(originalFilename), now.UTC().Format("20060102_150405"), filepath.Ext(originalFilename))
}

func (ls *LocalStorage) SaveFile(ctx context.Context, data []byte, filename string) (string, error) {
	name := normalizeFilename(filename, time.Now())
	path := filepath.Join(ls.dir, name)

	if err := ls.fs.MkdirAll(ls.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	if err := afero.WriteFile(ls.fs, path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	log.Debug().Str("path", path).Int("bytes", len(data)).Msg("Backup written")

	if err := ls.prune(filename); err != nil {
		log.Warn().Err(err).Str("dir", ls.dir).Msg("Failed to prune old backups")
	}
	return path, nil
}

// prune removes the oldest files that share filename's prefix until at most
// maxCount remain.
func (ls *LocalStorage) prune(filename string) error {
	if ls.maxCount <= 0 {
		return nil
	}
	ext := filepath.Ext(filename)
	prefix := cleanBase(filename) + "_"

	entries, err := afero.ReadDir(ls.fs, ls.dir)
	if err != nil {
		return err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ext) {
			names = append(names, e.Name())
		}
	}
	if len(names) <= ls.maxCount {
		return nil
	}
	sort.Strings(names)
	for _, name := range names[:len(names)-ls.maxCount] {
		if err := ls.fs.Remove(filepath.Join(ls.dir, name)); err != nil {
			return err
		}
		log.Debug().Str("file", name).Msg("Removed old backup")
	}
	return nil
}

func (ss *SpacesStorage) SaveFile(ctx context.Context, data []byte, filename string) (string, error) {
	key := normalizeFilename(filename, time.Now())
	if ss.prefix != "" {
		key = ss.prefix + "/" + key
	}

	_, err := ss.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(ss.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(getContentType(filename)),
		ACL:         aws.String("private"),
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to upload backup to Spaces")
		return "", fmt.Errorf("failed to upload to Spaces: %w", err)
	}

	return fmt.Sprintf("s3://%s/%s", ss.bucket, key), nil
}

func getContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return "application/json"
	case ".gz":
		return "application/gzip"
	default:
		return "application/octet-stream"
	}
}
