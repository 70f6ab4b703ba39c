package inspect

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxietl/internal/normalize"
	"taxietl/internal/parser/parquet"
	"taxietl/internal/parser/parquet/parquettest"
	"taxietl/internal/records"
	_ "taxietl/internal/storage/sqlite"
)

// footerSchema writes a yellow fixture and reads its schema back.
func footerSchema(t *testing.T) records.Schema {
	t.Helper()
	path := parquettest.WriteYellow(t, t.TempDir(), 3, 0)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	st, err := f.Stat()
	require.NoError(t, err)
	pf, err := parquet.Open(f, st.Size(), parquet.Options{})
	require.NoError(t, err)
	return pf.Schema()
}

func TestDescribeYellow(t *testing.T) {
	t.Parallel()

	in := footerSchema(t)
	rep := Describe(in, normalize.YellowTripdata(), Options{Kind: "sqlite", Table: "yellow_tripdata"})

	require.True(t, rep.OK(), rep.Problems)
	require.Len(t, rep.Input, 19)
	assert.Empty(t, rep.Missing)

	vendor := rep.Input[0]
	assert.Equal(t, "VendorID", vendor.Name)
	assert.Equal(t, RoleMapped, vendor.Role)
	assert.Equal(t, "vendor_id", vendor.Target)
	assert.Equal(t, records.KindInt32, vendor.Cast)

	require.Len(t, rep.Output, 19)
	assert.Equal(t, "airport_fee", rep.Output[18].Name)
	pc := rep.Output[3]
	assert.Equal(t, "passenger_count", pc.Name)
	assert.Equal(t, records.KindInt32, pc.Kind)
	assert.False(t, pc.Nullable, "filled column is not nullable")

	assert.Contains(t, rep.DDL, `CREATE TABLE IF NOT EXISTS "yellow_tripdata"`)
	assert.Contains(t, rep.DDL, `"passenger_count" INTEGER NOT NULL`)

	var buf bytes.Buffer
	require.NoError(t, rep.WriteText(&buf))
	out := buf.String()
	assert.Contains(t, out, " |-- VendorID: int32 (nullable = true) -> vendor_id cast=int32\n")
	assert.Contains(t, out, " |-- passenger_count: int64 (nullable = true) -> passenger_count cast=int32 fill=0\n")
	assert.Contains(t, out, "\noutput\n |-- vendor_id: int32 (nullable = true)\n")
}

func TestDescribeMissingAndPassthrough(t *testing.T) {
	t.Parallel()

	in := records.Schema{
		{Name: "VendorID", Kind: records.KindInt32, Nullable: true},
		{Name: "cbd_congestion_fee", Kind: records.KindFloat64, Nullable: true},
	}
	rep := Describe(in, normalize.YellowTripdata(), Options{})

	assert.False(t, rep.OK())
	assert.Len(t, rep.Missing, 18)
	assert.Contains(t, rep.Missing, "Airport_fee")
	assert.Equal(t, RolePassthrough, rep.Input[1].Role)
	assert.Empty(t, rep.Output)

	var buf bytes.Buffer
	require.NoError(t, rep.WriteText(&buf))
	assert.Contains(t, buf.String(), "cbd_congestion_fee: float64 (nullable = true) [passthrough]")
	assert.Contains(t, buf.String(), "missing: tpep_pickup_datetime,")
}

func TestDescribeDropUnmapped(t *testing.T) {
	t.Parallel()

	m := normalize.Mapping{{Source: "VendorID", Target: "vendor_id", Cast: records.KindInt32}}
	in := records.Schema{
		{Name: "vendorid", Kind: records.KindInt64, Nullable: true},
		{Name: "extra", Kind: records.KindFloat64, Nullable: true},
	}
	rep := Describe(in, m, Options{Normalize: normalize.Options{CaseInsensitive: true, DropUnmapped: true}})

	require.True(t, rep.OK(), rep.Problems)
	assert.Equal(t, RoleMapped, rep.Input[0].Role)
	assert.Equal(t, RoleDropped, rep.Input[1].Role)
	require.Len(t, rep.Output, 1)
	assert.Equal(t, Column{Name: "vendor_id", Kind: records.KindInt32, Nullable: true}, rep.Output[0])
}

func TestDescribeUnknownDialect(t *testing.T) {
	t.Parallel()

	in := records.Schema{{Name: "VendorID", Kind: records.KindInt32, Nullable: true}}
	m := normalize.Mapping{{Source: "VendorID", Target: "vendor_id"}}
	rep := Describe(in, m, Options{Kind: "oracle", Table: "t"})

	assert.False(t, rep.OK())
	assert.Len(t, rep.Output, 1)
	assert.Empty(t, rep.DDL)
	assert.Contains(t, rep.Problems[0], "ddl: no DDL renderer")
}
