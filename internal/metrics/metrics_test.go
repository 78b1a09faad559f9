package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCollectors(t *testing.T) {
	ParseTotal.WithLabelValues("complete").Inc()
	ICSSyncTotal.WithLabelValues("work", "ok").Inc()
	WSClients.Set(2)

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := string(body)
	assert.Contains(t, out, `vnsched_parse_total{result="complete"}`)
	assert.Contains(t, out, `vnsched_ics_sync_total{result="ok",source="work"}`)
	assert.Contains(t, out, "vnsched_ws_clients 2")
	assert.Contains(t, out, "go_goroutines")
}
