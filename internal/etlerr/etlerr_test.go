package etlerr

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestKindsMatchThroughWrapping verifies errors.Is finds the kind through
// fmt.Errorf wrapping and keeps the cause reachable.
func TestKindsMatchThroughWrapping(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("read footer: %w", Connectivity("blob download", io.ErrUnexpectedEOF))
	require.ErrorIs(t, err, ErrConnectivity)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.NotErrorIs(t, err, ErrWriteFailure)

	werr := WriteFailure("bulk copy", errors.New("table locked"))
	require.ErrorIs(t, werr, ErrWriteFailure)
	assert.Contains(t, werr.Error(), "bulk copy")
	assert.Contains(t, werr.Error(), "table locked")
}

// TestWrapNilAndNoDoubleWrap checks nil passthrough and that an already
// classified error keeps its original kind.
func TestWrapNilAndNoDoubleWrap(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Connectivity("x", nil))
	assert.NoError(t, WriteFailure("x", nil))

	conn := Connectivity("ping", errors.New("dial tcp: refused"))
	got := WriteFailure("begin", conn)
	require.ErrorIs(t, got, ErrConnectivity)
	assert.NotErrorIs(t, got, ErrWriteFailure)
}

func TestSchemaMismatchError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("normalize: %w", &SchemaMismatchError{Missing: []string{"VendorID", "RatecodeID"}})
	require.ErrorIs(t, err, ErrSchemaMismatch)

	var sm *SchemaMismatchError
	require.ErrorAs(t, err, &sm)
	assert.Equal(t, []string{"VendorID", "RatecodeID"}, sm.Missing)
	assert.Contains(t, err.Error(), "missing columns: VendorID, RatecodeID")
}

func TestCoercionNullIsNotFatalKind(t *testing.T) {
	t.Parallel()

	c := CoercionNull{Column: "vendor_id", Row: 3, Value: "abc"}
	require.ErrorIs(t, c, ErrCoercionNull)
	assert.Contains(t, c.Error(), `"abc"`)
	assert.Equal(t, ExitConfig, ExitCode(c))
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"connectivity", Connectivity("x", io.EOF), ExitConnectivity},
		{"schema", &SchemaMismatchError{Missing: []string{"a"}}, ExitSchemaMismatch},
		{"write", WriteFailure("x", io.EOF), ExitWriteFailure},
		{"other", errors.New("boom"), ExitConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
