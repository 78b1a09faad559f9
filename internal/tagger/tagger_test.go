package tagger

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vnsched/internal/entity"
)

func TestProseLabel(t *testing.T) {
	assert.Equal(t, "TIME", proseLabel("DATE"))
	assert.Equal(t, "TIME", proseLabel("time"))
	assert.Equal(t, "LOC", proseLabel("GPE"))
	assert.Equal(t, "LOC", proseLabel("FAC"))
	assert.Equal(t, "PERSON", proseLabel("person"))
}

func TestProseTagDoesNotFail(t *testing.T) {
	var tagger entity.Tagger = NewProse()
	_, err := tagger.Tag("họp nhóm lúc 10h sáng mai ở Hanoi")
	assert.NoError(t, err)
}

func TestSidecarTag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "họp ở phòng 301", req["text"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"entities":[{"text":"phòng 301","label":"B-LOC","start":7,"end":16}]}`))
	}))
	defer srv.Close()

	tokens, err := NewSidecar(srv.URL, SidecarConfig{}).Tag("họp ở phòng 301")
	require.NoError(t, err)
	assert.Equal(t, []entity.Token{{Text: "phòng 301", Tag: "B-LOC"}}, tokens)
}

func TestSidecarBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewSidecar(srv.URL, SidecarConfig{MaxFailures: 2, OpenFor: time.Minute})
	for i := 0; i < 2; i++ {
		_, err := s.Tag("x")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}

	_, err := s.Tag("x")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSidecarHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	assert.True(t, NewSidecar(srv.URL, SidecarConfig{}).Healthy())
	assert.False(t, NewSidecar("http://127.0.0.1:1", SidecarConfig{Timeout: 200 * time.Millisecond}).Healthy())
}
