package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return New(ts.URL+"/", WithToken("secret"))
}

func jsonHandler(t *testing.T, status int, body any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if body != nil {
			if err := json.NewEncoder(w).Encode(body); err != nil {
				t.Errorf("encode response: %v", err)
			}
		}
	}
}

type sensor struct {
	ID    string  `json:"id"`
	Value float64 `json:"value"`
}

func TestGet_DecodesAndAuthenticates(t *testing.T) {
	var gotAuth, gotPath string
	c := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.RequestURI()
		jsonHandler(t, http.StatusOK, []sensor{{ID: "s1", Value: 21.5}})(w, r)
	})

	var out []sensor
	require.NoError(t, c.Get(context.Background(), WithQuery("/iot/sensors", map[string]string{"page": "2", "search": ""}), &out))
	assert.Equal(t, []sensor{{ID: "s1", Value: 21.5}}, out)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "/iot/sensors?page=2", gotPath)
}

func TestPost_SendsJSON(t *testing.T) {
	var got sensor
	var method, contentType string
	c := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"s9","value":1}`))
	})

	var out sensor
	require.NoError(t, c.Post(context.Background(), "/iot/sensors", sensor{ID: "new", Value: 3}, &out))
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "new", got.ID)
	assert.Equal(t, "s9", out.ID)
}

func TestPutAndDelete_NoBody(t *testing.T) {
	var methods []string
	c := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})

	var out sensor
	require.NoError(t, c.Put(context.Background(), "/iot/sensors/s1", sensor{ID: "s1"}, &out))
	require.NoError(t, c.Delete(context.Background(), "/iot/sensors/s1", nil))
	assert.Equal(t, []string{http.MethodPut, http.MethodDelete}, methods)
}

func TestError_UsesServerMessage(t *testing.T) {
	c := mockServer(t, jsonHandler(t, http.StatusConflict, map[string]string{
		"error":   "conflict",
		"message": "Employee has open timesheets",
	}))

	err := c.Delete(context.Background(), "/hr/employees/7", nil)
	require.Error(t, err)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "conflict", apiErr.Code)
	assert.Equal(t, "Employee has open timesheets", Message(err))
	assert.Equal(t, http.StatusConflict, StatusOf(err))
}

func TestError_WithoutBody(t *testing.T) {
	c := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := c.Get(context.Background(), "/iot/alerts", nil)
	assert.EqualError(t, err, "request failed: status 502")
	assert.Equal(t, "", Message(nil))
	assert.Zero(t, StatusOf(errors.New("plain")))
}

func TestGet_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(ts.Close)
	t.Cleanup(func() { close(release) })

	c := New(ts.URL, WithTimeout(50*time.Millisecond))
	err := c.Get(context.Background(), "/slow", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GET /slow")
}

func TestWithQuery_AppendsToExisting(t *testing.T) {
	assert.Equal(t, "/hr/employees?dept=ops&limit=25", WithQuery("/hr/employees?dept=ops", map[string]string{"limit": "25"}))
	assert.Equal(t, "/hr/employees", WithQuery("/hr/employees", nil))
}
