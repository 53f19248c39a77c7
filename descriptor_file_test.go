package reqflow_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/reqflow"
)

func TestLoadDescriptorYAML(t *testing.T) {
	d, err := reqflow.LoadDescriptor("testdata/todo.yaml")
	require.NoError(t, err)

	assert.Equal(t, "https://jsonplaceholder.typicode.com", d.BaseURL)
	assert.Equal(t, "/todos", d.Path)
	assert.Equal(t, reqflow.MethodPost, d.Method)
	assert.Equal(t, reqflow.EncodingJSON, d.Encoding)
	assert.Equal(t, "Bearer token", d.Headers["Authorization"])
	assert.Equal(t, map[string]any{"title": "write tests", "completed": false}, d.Parameters)

	require.NotNil(t, d.Retry)
	assert.Equal(t, 2, d.Retry.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, d.Retry.Delay)
	assert.False(t, d.Retry.ShouldRetry(reqflow.ErrClientError))
}

func TestLoadDescriptorJSON(t *testing.T) {
	d, err := reqflow.LoadDescriptor("testdata/search.json")
	require.NoError(t, err)

	assert.Equal(t, reqflow.MethodGet, d.Method)
	assert.Equal(t, reqflow.EncodingURL, d.Encoding)
	assert.Nil(t, d.Retry)

	req, err := reqflow.NewBuilder().Build(d)
	require.NoError(t, err)
	assert.Equal(t, "golang", req.URL.Query().Get("q"))
	assert.Equal(t, "2", req.URL.Query().Get("page"))
}

func TestLoadDescriptorErrors(t *testing.T) {
	_, err := reqflow.LoadDescriptor("testdata/nope.json")
	assert.ErrorContains(t, err, "reqflow: read descriptor")

	_, err = reqflow.LoadDescriptor("testdata/bad_method.json")
	assert.ErrorContains(t, err, "unsupported method")

	_, err = reqflow.LoadDescriptor("testdata/invalid.yaml")
	assert.ErrorContains(t, err, "reqflow: descriptor")
}

func TestDescriptorDocRetry(t *testing.T) {
	bad := "soon"
	doc := reqflow.DescriptorDoc{
		BaseURL: "https://api.example.com",
		Retry:   &reqflow.RetryDoc{Delay: &bad},
	}

	_, err := doc.Descriptor()
	require.ErrorContains(t, err, "retry.delay")

	zero := 0
	doc.Retry = &reqflow.RetryDoc{MaxRetries: &zero}

	d, err := doc.Descriptor()
	require.NoError(t, err)
	assert.Equal(t, 0, d.Retry.MaxRetries)
	assert.Equal(t, reqflow.DefaultRetryDelay, d.Retry.Delay)

	doc.Encoding = "xml"
	_, err = doc.Descriptor()
	assert.ErrorContains(t, err, "unknown encoding")
}
