package docmind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```python\nresult_df = df\n```", "result_df = df"},
		{"  plain  ", "plain"},
		{"```\n{}\n```", "{}"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripFences(tt.in))
	}
}

func TestTruncateCountsCharacters(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "", Truncate("abc", 0))
}

func TestParseObject(t *testing.T) {
	obj, err := ParseObject("```json\n{\"Total\": \"$10.00\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "$10.00", obj["Total"])

	for _, bad := range []string{"not json", "[1,2]", "null", "42"} {
		_, err := ParseObject(bad)
		assert.ErrorIs(t, err, ErrParse, bad)
	}
}

func TestNewIDIsUnique(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		id := NewID()
		assert.Len(t, id, 36)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestStreamTagValid(t *testing.T) {
	for _, tag := range []StreamTag{StreamA, StreamB, StreamC, StreamD} {
		assert.True(t, tag.Valid())
	}
	assert.False(t, StreamTag("E").Valid())
}

func TestResultConstructors(t *testing.T) {
	assert.Equal(t, StatusSuccess, Success("ok", nil).Status)
	assert.Equal(t, StatusError, Failure("bad", nil).Status)
	assert.Equal(t, StatusSimulated, Simulated("sim", nil).Status)
}
