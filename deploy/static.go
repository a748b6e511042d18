package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/trellisci/deploykit/artifact"
	"github.com/trellisci/deploykit/config"
)

// Compile-time check that the artifact store can serve as the putter.
var _ ObjectPutter = (*artifact.Store)(nil)

// StaticBackend publishes the artifact payload to static object storage
// under a fresh key per invocation, so repeated deployments never
// overwrite each other and rollback means repointing at an earlier key.
type StaticBackend struct {
	putter ObjectPutter
	logger *slog.Logger
}

// NewStaticBackend returns a static backend writing through putter.
func NewStaticBackend(putter ObjectPutter, opts ...Option) *StaticBackend {
	o := applyOptions(opts)
	return &StaticBackend{
		putter: putter,
		logger: o.logger,
	}
}

// Kind returns config.TypeStaticArtifact.
func (b *StaticBackend) Kind() config.DeploymentType {
	return config.TypeStaticArtifact
}

// Deploy writes the payload under the configured prefix. The key embeds
// the submission timestamp and a random suffix, which keeps keys unique
// across invocations regardless of process lifetime.
func (b *StaticBackend) Deploy(ctx context.Context, cfg *config.Deployment, artifacts artifact.Set) (*Result, error) {
	bucket := cfg.StaticBucket()
	if bucket == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingTarget, config.KeyStaticBucket)
	}

	payload, ok := artifacts.First(payloadNames...)
	if !ok {
		return nil, fmt.Errorf("%w: expected one of %v", ErrMissingArtifact, payloadNames)
	}

	key := uniqueKey(cfg.StaticPrefix(), payload.Name)

	if b.logger != nil {
		b.logger.InfoContext(ctx, "publishing static artifact",
			"bucket", bucket,
			"key", key,
			"size", payload.Size,
		)
	}

	etag, err := b.putter.Put(ctx, bucket, key, payload.Body, payload.ContentType)
	if err != nil {
		return nil, newError(b.Kind(), "publish", err)
	}

	result := &StaticResult{Bucket: bucket, Key: key, ETag: etag}

	if b.logger != nil {
		b.logger.DebugContext(ctx, "static artifact published",
			"location", result.Location(),
			"etag", etag,
		)
	}

	return &Result{Kind: b.Kind(), Static: result}, nil
}

// uniqueKey builds <prefix>/<timestamp>-<suffix>/<name>.
func uniqueKey(prefix, name string) string {
	stamp := time.Now().UTC().Format("20060102T150405")
	suffix := uuid.NewString()[:8]
	return path.Join(prefix, stamp+"-"+suffix, name)
}
