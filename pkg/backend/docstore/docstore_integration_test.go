//go:build integration

package docstore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cdpfgl/cdpfgl-go/pkg/backend"
	"github.com/cdpfgl/cdpfgl-go/pkg/filemeta"
)

// mongoURI starts a disposable Mongo container, unless MONGODB_ENDPOINT is
// set in the environment, in which case that URI is used — much as the S3
// integration tests read their endpoint from LOCALSTACK_ENDPOINT.
func mongoURI(t *testing.T) string {
	t.Helper()
	if uri := os.Getenv("MONGODB_ENDPOINT"); uri != "" {
		return uri
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "27017")
	require.NoError(t, err)
	return fmt.Sprintf("mongodb://%s:%s", host, port.Port())
}

func openTestBackend(t *testing.T) *Backend {
	t.Helper()
	ctx := context.Background()
	b, err := Open(ctx, Config{URI: mongoURI(t), Database: "cdpfgl_test_" + uuid.NewString()[:8]})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close(context.Background()) })
	return b
}

func TestIntegration_StoreAndListFiles(t *testing.T) {
	ctx := context.Background()
	b := openTestBackend(t)

	records := []filemeta.FileMeta{
		{Host: "hostA", Path: "/a.txt", Name: "a.txt", Type: filemeta.TypeRegular, Mtime: 1654041600}, // 2022-06-01
		{Host: "hostA", Path: "/a.txt", Name: "a.txt", Type: filemeta.TypeRegular, Mtime: 1671062400}, // 2022-12-15
		{Host: "hostA", Path: "/a.txt", Name: "a.txt", Type: filemeta.TypeRegular, Mtime: 1682899200}, // 2023-05-01
	}
	for _, r := range records {
		require.NoError(t, b.StoreFileMeta(ctx, r))
	}

	before := int64(1672531200) // 2023-01-01
	var got []filemeta.FileMeta
	for fm, err := range b.ListFiles(ctx, backend.Query{Host: "hostA", BeforeMtime: &before, LatestOnly: true}) {
		require.NoError(t, err)
		got = append(got, fm)
	}

	require.Len(t, got, 1)
	require.Equal(t, int64(1671062400), got[0].Mtime)
}

func TestIntegration_StoreFileMeta_IsAppendOnly(t *testing.T) {
	ctx := context.Background()
	b := openTestBackend(t)

	fm := filemeta.FileMeta{Host: "hostB", Path: "/x", Name: "x", Type: filemeta.TypeRegular, Mtime: 1}
	require.NoError(t, b.StoreFileMeta(ctx, fm))
	require.NoError(t, b.StoreFileMeta(ctx, fm))

	var count int
	for _, err := range b.ListFiles(ctx, backend.Query{Host: "hostB"}) {
		require.NoError(t, err)
		count++
	}
	require.Equal(t, 2, count)
}
