package workspace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndexName_NormalizesEquivalentRoots(t *testing.T) {
	// Given: three spellings of the same root
	a := IndexName(`C:\Repo\App\`)
	b := IndexName("c:/repo/app")
	c := IndexName("c:/repo/app/")

	// Then: they share one index name
	assert.Equal(t, a, b)
	assert.Equal(t, b, c)
	assert.True(t, strings.HasPrefix(a, "code_agent_v2_"))
	assert.Len(t, strings.TrimPrefix(a, "code_agent_v2_"), 12)
}

func TestIndexName_DifferentRootsDiffer(t *testing.T) {
	assert.NotEqual(t, IndexName("/srv/repo-a"), IndexName("/srv/repo-b"))
}

func TestIndexName_BlankRootUsesDefault(t *testing.T) {
	assert.Equal(t, "code_agent_v2_default", IndexName(""))
	assert.Equal(t, "code_agent_v2_default", IndexName("   "))
	assert.Equal(t, DefaultID, ID("/"))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  /Home/User/Proj//  ", "/home/user/proj"},
		{`D:\Work\x`, "d:/work/x"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}
