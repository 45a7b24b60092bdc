package docstore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocstore_SaveLoadDelete(t *testing.T) {
	ds := New("mem://intake/docs")
	ctx := context.Background()

	storedPath, err := ds.Save(ctx, "Factura Enero 2026.pdf", []byte("%PDF-1.4 test"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(storedPath, "-Factura_Enero_2026.pdf"))

	ok, err := ds.Exists(ctx, storedPath)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := ds.Load(ctx, storedPath)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 test", string(data))

	require.NoError(t, ds.Delete(ctx, storedPath))
	ok, err = ds.Exists(ctx, storedPath)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDocstore_UniqueNamesForSameFile(t *testing.T) {
	ds := New("mem://intake/docs")
	ctx := context.Background()

	p1, err := ds.Save(ctx, "factura.pdf", []byte("one"))
	require.NoError(t, err)
	p2, err := ds.Save(ctx, "factura.pdf", []byte("two"))
	require.NoError(t, err)
	assert.NotEqual(t, p1, p2)

	d1, err := ds.Load(ctx, p1)
	require.NoError(t, err)
	assert.Equal(t, "one", string(d1))
}

func TestDocstore_URL(t *testing.T) {
	ds := New("file:///var/lib/intake/docs")
	assert.Equal(t, "file:///var/lib/intake/docs/ab12-f.pdf", ds.URL("ab12-f.pdf"))
}

func TestDocstore_SanitizesPathTraversal(t *testing.T) {
	ds := New("mem://intake/docs")
	ctx := context.Background()

	storedPath, err := ds.Save(ctx, "../../etc/passwd", []byte("x"))
	require.NoError(t, err)
	assert.NotContains(t, storedPath, "..")
	assert.NotContains(t, storedPath, "/")
}
