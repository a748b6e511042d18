// Package artifact fetches and publishes pipeline artifacts held in
// S3-compatible object storage.
//
// The control plane hands a job a set of named artifact references, each
// pointing at a bucket and key. Store.Resolve materializes every reference
// into an in-memory payload before any deployment work starts, so backends
// never observe a partially fetched set. Store.Put and Store.PutJSON write
// deployment outputs back, for the static backend and for the job summary
// written to output artifact locations.
package artifact

import (
	"fmt"
	"sort"
)

// Ref names an artifact and the object storage location holding it.
type Ref struct {
	// Name is the artifact's pipeline-assigned name, e.g. "BuildArtifact".
	Name string

	// Bucket is the object storage bucket holding the artifact.
	Bucket string

	// Key is the object key within the bucket.
	Key string
}

// Location returns the s3:// URI of the referenced object.
func (r Ref) Location() string {
	return fmt.Sprintf("s3://%s/%s", r.Bucket, r.Key)
}

// Payload is a fully fetched artifact held in memory.
type Payload struct {
	// Name is the artifact name the payload was resolved under.
	Name string

	// Bucket and Key record where the payload came from.
	Bucket string
	Key    string

	// Body is the raw artifact content.
	Body []byte

	// ContentType is the stored content type, or a sniffed fallback when
	// the object carried none.
	ContentType string

	// ETag is the storage entity tag, without surrounding quotes.
	ETag string

	// Size is the payload length in bytes.
	Size int64
}

// Set holds resolved payloads indexed by artifact name.
type Set map[string]*Payload

// First returns the payload for the first of names that is present.
func (s Set) First(names ...string) (*Payload, bool) {
	for _, name := range names {
		if p, ok := s[name]; ok && p != nil {
			return p, true
		}
	}
	return nil, false
}

// Names returns the sorted artifact names present in the set.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
