package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"ec2", KindInstance},
		{"Instance", KindInstance},
		{"rds", KindDatabase},
		{"aurora", KindDatabaseCluster},
		{"S3", KindBucket},
		{" efs ", KindFileSystem},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseKind("lambda")
	assert.Error(t, err)
}

func TestTagSetIsCopyOnWrite(t *testing.T) {
	base := NewTagSet(map[string]string{"Name": "web1"})

	added := base.With("Owner", "ops")
	removed := added.Without("Name")

	assert.False(t, base.Has("Owner"), "With must not mutate the receiver")
	assert.True(t, added.Has("Name"), "Without must not mutate the receiver")
	assert.Equal(t, []string{"Owner"}, removed.Keys())
	assert.Equal(t, []string{"Name", "Owner"}, added.Keys())
}

func TestRefOrdering(t *testing.T) {
	a := Ref{Kind: KindBucket, ID: "alpha"}
	b := Ref{Kind: KindInstance, ID: "beta"}
	c := Ref{Kind: KindInstance, ID: "alpha"}

	assert.True(t, a.Less(b))
	assert.True(t, a.Less(c), "same ID orders by kind")
	assert.False(t, b.Less(a))
	assert.Equal(t, "AWS::S3::Bucket", a.Kind.TypeName())
}
