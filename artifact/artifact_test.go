package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet_First(t *testing.T) {
	build := &Payload{Name: "BuildArtifact"}
	source := &Payload{Name: "SourceOutput"}

	tests := []struct {
		name   string
		set    Set
		names  []string
		want   *Payload
		wantOK bool
	}{
		{
			name:   "first preference present",
			set:    Set{"BuildArtifact": build, "SourceOutput": source},
			names:  []string{"BuildArtifact", "SourceOutput"},
			want:   build,
			wantOK: true,
		},
		{
			name:   "falls back to second preference",
			set:    Set{"SourceOutput": source},
			names:  []string{"BuildArtifact", "SourceOutput"},
			want:   source,
			wantOK: true,
		},
		{
			name:   "no preference present",
			set:    Set{"Other": {Name: "Other"}},
			names:  []string{"BuildArtifact", "SourceOutput"},
			wantOK: false,
		},
		{
			name:   "empty set",
			set:    Set{},
			names:  []string{"BuildArtifact"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.set.First(tt.names...)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSet_Names(t *testing.T) {
	set := Set{
		"SourceOutput":  {Name: "SourceOutput"},
		"BuildArtifact": {Name: "BuildArtifact"},
	}
	assert.Equal(t, []string{"BuildArtifact", "SourceOutput"}, set.Names())
}

func TestRef_Location(t *testing.T) {
	ref := Ref{Name: "BuildArtifact", Bucket: "pipeline-artifacts", Key: "run-42/build.zip"}
	assert.Equal(t, "s3://pipeline-artifacts/run-42/build.zip", ref.Location())
}
