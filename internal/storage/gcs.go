// Package storage persists uploaded CVs and hands back durable references.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/chiranSam/job-application-form/internal/models"
)

const publicHost = "https://storage.googleapis.com"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectKey builds a unique key under namespace. Every call yields a new key,
// so retried uploads never overwrite each other.
func ObjectKey(namespace, filename string) string {
	name := unsafeChars.ReplaceAllString(path.Base(filename), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "document"
	}
	return path.Join(strings.Trim(namespace, "/"), uuid.NewString()+"-"+name)
}

// GCSStore writes documents to a Cloud Storage bucket
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore wraps an existing storage client
func NewGCSStore(client *storage.Client, bucket string) *GCSStore {
	return &GCSStore{client: client, bucket: bucket}
}

// Store uploads the document and returns its public URL and gs:// URI
func (s *GCSStore) Store(ctx context.Context, data []byte, mediaType, namespace, filename string) (models.DocumentRef, error) {
	key := ObjectKey(namespace, filename)

	writer := s.client.Bucket(s.bucket).Object(key).
		If(storage.Conditions{DoesNotExist: true}).
		NewWriter(ctx)
	writer.ContentType = mediaType

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return models.DocumentRef{}, fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		return models.DocumentRef{}, fmt.Errorf("failed to finalize GCS write: %w", err)
	}

	return models.DocumentRef{
		Key:       key,
		URL:       PublicURL(s.bucket, key),
		URI:       fmt.Sprintf("gs://%s/%s", s.bucket, key),
		MediaType: mediaType,
	}, nil
}

// ReadPrefix returns the contents of every object under prefix, in natural
// name order: output-21-to-40.json precedes output-101-to-120.json.
func (s *GCSStore) ReadPrefix(ctx context.Context, prefix string) ([][]byte, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects under %s: %w", prefix, err)
		}
		names = append(names, attrs.Name)
	}
	sort.SliceStable(names, func(i, j int) bool { return naturalLess(names[i], names[j]) })

	out := make([][]byte, 0, len(names))
	for _, name := range names {
		r, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", name, err)
		}
		data, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		out = append(out, data)
	}
	return out, nil
}

// naturalLess compares names with digit runs ordered by numeric value
func naturalLess(a, b string) bool {
	for a != "" && b != "" {
		if isDigit(a[0]) && isDigit(b[0]) {
			na, restA := leadingDigits(a)
			nb, restB := leadingDigits(b)
			na, nb = strings.TrimLeft(na, "0"), strings.TrimLeft(nb, "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			a, b = restA, restB
			continue
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func leadingDigits(s string) (string, string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

// Bucket returns the bucket name
func (s *GCSStore) Bucket() string {
	return s.bucket
}

// PublicURL is the browser-resolvable link for an object
func PublicURL(bucket, key string) string {
	return fmt.Sprintf("%s/%s/%s", publicHost, bucket, key)
}
