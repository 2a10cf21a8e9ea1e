package platform_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/streamcaster/internal/adapter/driven/platform"
	"github.com/ericfisherdev/streamcaster/internal/domain/model"
)

var testCreds = platform.OAuthCredentials{ClientID: "client-id", ClientSecret: "client-secret"}

// newTestServer starts an httptest server and returns adapter options pointing at it.
func newTestServer(t *testing.T, handler http.Handler) (*httptest.Server, []platform.Option) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return server, []platform.Option{
		platform.WithHTTPClient(server.Client()),
		platform.WithBaseURL(server.URL),
		platform.WithTokenURL(server.URL + "/token"),
		platform.WithRateLimit(time.Millisecond, 100),
	}
}

func testAccount() model.AuthorizedAccount {
	return model.AuthorizedAccount{
		ID:           1,
		ExternalID:   "chan-1",
		DisplayName:  "streamer",
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
	}
}

// writeVideo writes a small fake video file and returns its path.
func writeVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("fake video bytes"), 0o600))
	return path
}
