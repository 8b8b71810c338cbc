package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, RoleSystem, req.Messages[0].Role)

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  The Tower speaks of change.  "}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "key", "test-model", time.Second)
	reply, err := c.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "You are a tarot reader."},
		{Role: RoleUser, Content: "What does the Tower mean?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "The Tower speaks of change.", reply)
}

func TestComplete_NotConfigured(t *testing.T) {
	c := NewClient("http://unused", "", "m", time.Second)
	_, err := c.Complete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestComplete_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "m", time.Second)
	reply, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestComplete_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad", "m", time.Second)
	_, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	assert.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestComplete_EmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "m", time.Second)
	_, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	assert.Error(t, err)
}
