package archive_test

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/stocktake/internal/archive"
	"github.com/agentstation/stocktake/pkg/errors"
)

type fakeUploader struct {
	objects map[string]string
	fail    string
}

func (f *fakeUploader) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if *in.Key == f.fail {
		return nil, errors.New("access denied")
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = string(body)
	return &s3.PutObjectOutput{}, nil
}

func inventory(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "inventory_2026-06-30")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "families"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "raw_inventory_2026-06-30.txt"), []byte("A\nB\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "families", "F1.csv"), []byte("Code;Quantity\n"), 0o644))
	return dir
}

func TestArchive(t *testing.T) {
	dir := inventory(t)
	up := &fakeUploader{objects: map[string]string{}}
	a := archive.NewWithClient(up, "bucket", "/stock/")

	keys, err := a.Archive(context.Background(), dir)
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{
		"stock/inventory_2026-06-30/families/F1.csv",
		"stock/inventory_2026-06-30/raw_inventory_2026-06-30.txt",
	}, keys)
	assert.Equal(t, "A\nB\n", up.objects["stock/inventory_2026-06-30/raw_inventory_2026-06-30.txt"])
}

func TestArchiveFailure(t *testing.T) {
	dir := inventory(t)
	up := &fakeUploader{objects: map[string]string{}, fail: "inventory_2026-06-30/families/F1.csv"}
	a := archive.NewWithClient(up, "bucket", "")

	_, err := a.Archive(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := archive.New(context.Background(), archive.Config{})
	assert.True(t, errors.IsValidationError(err))
}

type recordingTransport struct {
	mu    sync.Mutex
	paths []string
}

func (rt *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		_, _ = io.Copy(io.Discard, req.Body)
		_ = req.Body.Close()
	}
	rt.mu.Lock()
	rt.paths = append(rt.paths, req.Method+" "+req.URL.Path)
	rt.mu.Unlock()
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Etag": []string{`"etag"`}},
		Body:       io.NopCloser(strings.NewReader("")),
		Request:    req,
	}, nil
}

func TestArchiveThroughS3Client(t *testing.T) {
	dir := inventory(t)
	rt := &recordingTransport{}
	a, err := archive.New(context.Background(), archive.Config{
		Bucket:          "inventories",
		Endpoint:        "https://s3.example.test",
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		HTTPClient:      &http.Client{Transport: rt},
	})
	require.NoError(t, err)

	_, err = a.Archive(context.Background(), dir)
	require.NoError(t, err)
	sort.Strings(rt.paths)
	assert.Equal(t, []string{
		"PUT /inventories/inventory_2026-06-30/families/F1.csv",
		"PUT /inventories/inventory_2026-06-30/raw_inventory_2026-06-30.txt",
	}, rt.paths)
}
