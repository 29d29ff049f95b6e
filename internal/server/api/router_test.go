package api_test

import (
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vuga-dev/vuga/internal/server/api"
	"github.com/vuga-dev/vuga/usb"
)

func TestRouterMatch(t *testing.T) {
	tests := []struct {
		name           string
		pattern        string
		path           string
		shouldMatch    bool
		expectedParams map[string]string
	}{
		{
			name:        "static path",
			pattern:     "bus/list",
			path:        "bus/list",
			shouldMatch: true,
		},
		{
			name:           "single placeholder",
			pattern:        "bus/{id}/list",
			path:           "bus/3/list",
			shouldMatch:    true,
			expectedParams: map[string]string{"id": "3"},
		},
		{
			name:           "two placeholders",
			pattern:        "bus/{id}/{dev}/state",
			path:           "bus/1/7/state",
			shouldMatch:    true,
			expectedParams: map[string]string{"id": "1", "dev": "7"},
		},
		{
			name:           "placeholder names keep their case",
			pattern:        "bus/{busId}/info",
			path:           "bus/2/info",
			shouldMatch:    true,
			expectedParams: map[string]string{"busId": "2"},
		},
		{
			name:        "path matching is case insensitive",
			pattern:     "bus/list",
			path:        "BUS/LIST",
			shouldMatch: true,
		},
		{
			name:        "length mismatch",
			pattern:     "bus/{id}/list",
			path:        "bus/list",
			shouldMatch: false,
		},
		{
			name:        "literal mismatch",
			pattern:     "bus/{id}/list",
			path:        "hub/3/list",
			shouldMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := api.NewRouter()
			r.Register(tt.pattern, func(req *api.Request, res *api.Response, logger *slog.Logger) error {
				return nil
			})

			h, params := r.Match(tt.path)
			if !tt.shouldMatch {
				assert.Nil(t, h)
				return
			}
			assert.NotNil(t, h)
			if tt.expectedParams != nil {
				assert.Equal(t, tt.expectedParams, params)
			}
		})
	}
}

func TestRouterStreamRoutesAreSeparate(t *testing.T) {
	r := api.NewRouter()
	r.RegisterStream("bus/{busId}/{deviceid}", func(conn net.Conn, dev *usb.Device, logger *slog.Logger) error {
		return nil
	})

	h, _ := r.Match("bus/1/2")
	assert.Nil(t, h, "stream route must not match as a command route")

	sh, params := r.MatchStream("bus/1/2")
	assert.NotNil(t, sh)
	assert.Equal(t, map[string]string{"busId": "1", "deviceid": "2"}, params)
}
