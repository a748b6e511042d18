package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
)

// defaultConcurrency bounds parallel fetches within one Resolve call.
const defaultConcurrency = 4

// S3API is the subset of the S3 client the store uses. It exists so tests
// can substitute a mock without a real client.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Compile-time check that the SDK client satisfies the interface.
var _ S3API = (*s3.Client)(nil)

// Store resolves artifact references into payloads and writes deployment
// outputs back to object storage. A Store is safe for concurrent use.
type Store struct {
	api         S3API
	logger      *slog.Logger
	concurrency int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger attaches a logger. Without one the store is silent.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithConcurrency bounds the number of parallel fetches in one Resolve
// call. Values below one are ignored.
func WithConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewStore returns a store backed by the given client.
func NewStore(api S3API, opts ...Option) *Store {
	s := &Store{
		api:         api,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewStoreWithCredentials returns a store whose client authenticates with
// the given static credentials. The control plane scopes each job's
// artifact access through short-lived credentials delivered in the job
// event; a store built from them can read and write exactly that job's
// artifact locations.
func NewStoreWithCredentials(ctx context.Context, region, accessKey, secretKey, sessionToken string, opts ...Option) (*Store, error) {
	if accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("artifact: credentials are required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, sessionToken),
		),
	}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("artifact: load credential config: %w", err)
	}

	return NewStore(s3.NewFromConfig(cfg), opts...), nil
}

// Resolve fetches every referenced artifact and returns the complete set.
//
// Fetches run concurrently up to the configured bound. Resolution is
// all-or-nothing: the first failure cancels outstanding fetches and the
// whole call fails with an *Error identifying the artifact. There are no
// retries and no caching; every call reads storage.
func (s *Store) Resolve(ctx context.Context, refs []Ref) (Set, error) {
	for _, ref := range refs {
		if ref.Name == "" || ref.Bucket == "" || ref.Key == "" {
			return nil, newError("get", ref, ErrInvalidRef)
		}
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "resolving artifacts", "count", len(refs))
	}

	if len(refs) == 0 {
		return Set{}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, s.concurrency)
	payloads := make(Set, len(refs))

	for _, ref := range refs {
		wg.Add(1)
		go func(ref Ref) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				if firstErr == nil {
					firstErr = newError("get", ref, ctx.Err())
				}
				mu.Unlock()
				return
			}

			payload, err := s.fetch(ctx, ref)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				return
			}
			payloads[ref.Name] = payload
		}(ref)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return payloads, nil
}

func (s *Store) fetch(ctx context.Context, ref Ref) (*Payload, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return nil, newError("get", ref, convertAPIError(err))
	}
	defer func() { _ = out.Body.Close() }()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, newError("get", ref, fmt.Errorf("read object body: %w", err))
	}

	payload := &Payload{
		Name:   ref.Name,
		Bucket: ref.Bucket,
		Key:    ref.Key,
		Body:   body,
		Size:   int64(len(body)),
	}
	if out.ContentType != nil && *out.ContentType != "" {
		payload.ContentType = *out.ContentType
	} else {
		payload.ContentType = detectContentType(ref.Key, body)
	}
	if out.ETag != nil {
		payload.ETag = strings.Trim(*out.ETag, `"`)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "artifact fetched",
			"name", ref.Name,
			"location", ref.Location(),
			"size", payload.Size,
		)
	}
	return payload, nil
}

// Put writes body to bucket/key and returns the storage entity tag. An
// empty contentType is filled by sniffing the body.
func (s *Store) Put(ctx context.Context, bucket, key string, body []byte, contentType string) (string, error) {
	ref := Ref{Bucket: bucket, Key: key}
	if bucket == "" || key == "" {
		return "", newError("put", ref, ErrInvalidRef)
	}

	if contentType == "" {
		contentType = detectContentType(key, body)
	}

	out, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", newError("put", ref, convertAPIError(err))
	}

	etag := ""
	if out.ETag != nil {
		etag = strings.Trim(*out.ETag, `"`)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "artifact written",
			"location", ref.Location(),
			"size", len(body),
			"content_type", contentType,
		)
	}
	return etag, nil
}

// PutJSON marshals v and writes it to bucket/key as application/json.
func (s *Store) PutJSON(ctx context.Context, bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return newError("put", Ref{Bucket: bucket, Key: key}, fmt.Errorf("encode json: %w", err))
	}
	_, err = s.Put(ctx, bucket, key, data, "application/json")
	return err
}

// detectContentType sniffs the content type from the body, falling back to
// the key's extension, then to application/octet-stream.
func detectContentType(key string, body []byte) string {
	mtype := mimetype.Detect(body)
	if mtype.String() != "application/octet-stream" {
		return mtype.String()
	}
	if ext := filepath.Ext(key); ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}
	return "application/octet-stream"
}
