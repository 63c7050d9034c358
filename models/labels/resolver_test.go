package labels

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResolveWithTable validates named lookups and out-of-range ids.
func TestResolveWithTable(t *testing.T) {
	r := NewResolver(Table{"cat", "dog"})

	label, err := r.Resolve(0)
	require.NoError(t, err)
	assert.True(t, label.IsNamed())
	assert.Equal(t, "cat", label.String())
	name, ok := label.Name()
	assert.True(t, ok)
	assert.Equal(t, "cat", name)

	label, err = r.Resolve(1)
	require.NoError(t, err)
	assert.Equal(t, "dog", label.String())

	_, err = r.Resolve(2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))

	_, err = r.Resolve(-1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIndexOutOfRange), "negative ids must not wrap around")
}

// TestResolveWithoutTable validates the raw identity fallback.
func TestResolveWithoutTable(t *testing.T) {
	r := NewResolver(nil)
	assert.False(t, r.HasTable())

	label, err := r.Resolve(5)
	require.NoError(t, err)
	assert.False(t, label.IsNamed())
	assert.Equal(t, 5, label.ID())
	assert.Equal(t, "5", label.String())

	_, ok := label.Name()
	assert.False(t, ok)
}

// TestLabelJSON validates that named labels encode as strings and raw labels as numbers.
func TestLabelJSON(t *testing.T) {
	b, err := json.Marshal(Named(3, "car"))
	require.NoError(t, err)
	assert.JSONEq(t, `"car"`, string(b))

	b, err = json.Marshal(Raw(7))
	require.NoError(t, err)
	assert.JSONEq(t, `7`, string(b))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Table
	}{
		{name: "trailing newline", input: "person\nbicycle\ncar\n", want: Table{"person", "bicycle", "car"}},
		{name: "no trailing newline", input: "person\nbicycle", want: Table{"person", "bicycle"}},
		{name: "crlf", input: "person\r\nbicycle\r\n", want: Table{"person", "bicycle"}},
		{name: "empty", input: "", want: Table{}},
		{name: "names with spaces", input: "traffic light\nfire hydrant\n", want: Table{"traffic light", "fire hydrant"}},
		{name: "blank line keeps its id", input: "person\n\ncar\n", want: Table{"person", "", "car"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestParseLongLine validates that a label line longer than 64 KiB is read whole.
func TestParseLongLine(t *testing.T) {
	long := strings.Repeat("x", 100*1024)

	got, err := Parse(strings.NewReader("person\n" + long + "\r\ncar"))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "person", got[0])
	assert.Len(t, got[1], len(long))
	assert.Equal(t, "car", got[2])
}

func TestParseReadError(t *testing.T) {
	_, err := Parse(errReader{})
	require.Error(t, err)
	assert.Equal(t, errBrokenPipe, errors.Cause(err))
}

var errBrokenPipe = errors.New("broken pipe")

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errBrokenPipe }

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coco.txt")
	require.NoError(t, os.WriteFile(path, []byte("person\nbicycle\n"), 0o600))

	table, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Table{"person", "bicycle"}, table)

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
