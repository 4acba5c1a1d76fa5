package cloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-appliances/internal/appliance"
	"github.com/nerrad567/gray-logic-appliances/internal/infrastructure/config"
)

const devicesJSON = `{
  "000123": {
    "ident": {
      "type": {"value_raw": 18, "value_localized": "Cooker Hood"},
      "deviceName": "Hood",
      "deviceIdentLabel": {"fabNumber": "000123"}
    },
    "state": {"status": {"value_raw": 5}, "ventilationStep": {"value_raw": 2}, "light": 1}
  },
  "000456": {
    "ident": {
      "type": {"value_raw": 1, "value_localized": "Washing Machine"},
      "deviceIdentLabel": {"fabNumber": "000456"}
    },
    "state": {"status": {"value_raw": 1}, "signalDoor": true}
  },
  "broken": {"ident": {"deviceIdentLabel": {"fabNumber": ""}}}
}`

func testCloudConfig(baseURL string) config.CloudConfig {
	return config.CloudConfig{
		BaseURL:     baseURL,
		AccessToken: "secret-token",
		Language:    "en",
		Timeout:     5,
	}
}

func TestClient_FetchDevices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/devices", r.URL.Path)
		assert.Equal(t, "en", r.URL.Query().Get("language"))
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(devicesJSON))
	}))
	defer srv.Close()

	c := NewClient(testCloudConfig(srv.URL+"/v1/"), nil)
	defer c.Close()

	records, skipped, err := c.FetchDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "000123", records[0].Ident.DeviceID)
	assert.Equal(t, "Hood", records[0].DisplayName())
	assert.Equal(t, "Washing Machine", records[1].DisplayName())

	require.Contains(t, skipped, "broken")
	assert.ErrorIs(t, skipped["broken"], appliance.ErrMissingIdentity)
}

func TestClient_ErrorStatuses(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusInternalServerError, ErrUnexpectedStatus},
		{http.StatusNotFound, ErrUnexpectedStatus},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			c := NewClient(testCloudConfig(srv.URL), nil)
			_, _, err := c.FetchDevices(context.Background())
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorContains(t, err, "nope")

			err = c.SendAction(context.Background(), "1", map[string]any{"light": 1})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_MalformedDeviceList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[1, 2, 3]`))
	}))
	defer srv.Close()

	_, _, err := NewClient(testCloudConfig(srv.URL), nil).FetchDevices(context.Background())
	assert.ErrorIs(t, err, appliance.ErrMalformedRecord)
}

func TestClient_SendAction(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/devices/000123/actions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(testCloudConfig(srv.URL), nil)
	err := c.SendAction(context.Background(), "000123", map[string]any{"powerOn": true, "ventilationStep": 3})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"powerOn": true, "ventilationStep": float64(3)}, gotBody)
}

func TestClient_SendActionRequiresDevice(t *testing.T) {
	c := NewClient(testCloudConfig("http://127.0.0.1:1"), nil)
	assert.ErrorIs(t, c.SendAction(context.Background(), "", nil), ErrInvalidDeviceID)
}

func TestClient_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewClient(testCloudConfig(srv.URL), nil).FetchDevices(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
