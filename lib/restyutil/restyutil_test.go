package restyutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

type memoryOutput map[string]string

func (m memoryOutput) Write(id string, contents string) {
	m[id] = contents
}

func TestRedactForm(t *testing.T) {
	redacted := redactForm("lt=abc&password=hunter2&username=pid")
	values, err := url.ParseQuery(redacted)
	require.NoError(t, err)
	require.Equal(t, "<redacted>", values.Get("password"))
	require.Equal(t, "<redacted>", values.Get("username"))
	require.Equal(t, "abc", values.Get("lt"))

	require.Equal(t, "a=b", redactForm("a=b"))
}

func TestInstrumentClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	client := resty.New()
	InstrumentClient(client, nil, memoryOutput{})

	res, err := client.R().Get(srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusTeapot, res.StatusCode())

	_, err = client.R().Get("http://127.0.0.1:0/unreachable")
	require.Error(t, err)
}

func TestFilesystemOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dump")
	out, err := NewFilesystemOutput(dir)
	require.NoError(t, err)

	out.Write("1", "hello")
	contents, err := os.ReadFile(filepath.Join(dir, "1.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(contents))
}
