package middleware_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/seo-analyzer/internal/middleware"
)

func TestValidateTarget(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		scenario string
		target   string
		wantErr  bool
	}{
		{"https url", "https://example.com", false},
		{"http url", "http://example.com/path", false},
		{"bare host normalized", "example.com", false},
		{"bare host with path", "example.com/pricing", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"localhost", "http://localhost:8080", true},
		{"loopback ip", "https://127.0.0.1", true},
		{"private 10 range", "https://10.0.0.5", true},
		{"private 192.168 range", "http://192.168.1.1/admin", true},
	}

	for _, tt := range testCases {
		tt := tt
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			err := middleware.ValidateTarget(tt.target)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateLimit(t *testing.T) {
	t.Parallel()

	require.Equal(t, 20, middleware.ValidateLimit(0))
	require.Equal(t, 20, middleware.ValidateLimit(-5))
	require.Equal(t, 50, middleware.ValidateLimit(50))
	require.Equal(t, 100, middleware.ValidateLimit(500))
}
