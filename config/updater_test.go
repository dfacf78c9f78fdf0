package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdaterDefaults(t *testing.T) {
	disabled := false

	tests := []struct {
		name             string
		in               Updater
		wantAutoDownload bool
		wantRepository   string
		wantQuery        time.Duration
		wantDownload     time.Duration
	}{
		{
			name:             "空配置",
			wantAutoDownload: true,
			wantRepository:   DefaultRepository,
			wantQuery:        DefaultQueryTimeout,
		},
		{
			name:             "关闭自动下载",
			in:               Updater{AutoDownload: &disabled, Repository: "someone/fork", QueryTimeout: time.Minute, DownloadTimeout: 10 * time.Minute},
			wantAutoDownload: false,
			wantRepository:   "someone/fork",
			wantQuery:        time.Minute,
			wantDownload:     10 * time.Minute,
		},
		{
			name:             "负数超时",
			in:               Updater{QueryTimeout: -1, DownloadTimeout: -1},
			wantAutoDownload: true,
			wantRepository:   DefaultRepository,
			wantQuery:        DefaultQueryTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Defaults()
			require.NotNil(t, got.AutoDownload)
			assert.Equal(t, tt.wantAutoDownload, *got.AutoDownload)
			assert.Equal(t, tt.wantRepository, got.Repository)
			assert.Equal(t, tt.wantQuery, got.QueryTimeout)
			assert.Equal(t, tt.wantDownload, got.DownloadTimeout)

			opts := tt.in.ControllerOptions("1.2.0")
			assert.Equal(t, "1.2.0", opts.CurrentVersion)
			assert.Equal(t, tt.wantAutoDownload, opts.AutoDownload)
			assert.Equal(t, tt.wantQuery, opts.QueryTimeout)
			assert.Equal(t, tt.wantDownload, opts.DownloadTimeout)
		})
	}
}

func TestUpdaterYAML(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "updater.yaml")
	t.Setenv(PathENV, tmpFile)

	content := `updater:
  auto_download: false
  repository: someone/fork
  query_timeout: 45s
`
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0600))

	conf, err := GetConfigCached()
	require.NoError(t, err)
	assert.False(t, conf.AutoDownloadEnabled())
	assert.Equal(t, "someone/fork", conf.Repository)
	assert.Equal(t, 45*time.Second, conf.QueryTimeout)

	conf.SetAutoDownload(true)
	require.NoError(t, conf.SaveConfig())

	globalCache.invalidate()
	reloaded, err := GetConfigCached()
	require.NoError(t, err)
	assert.True(t, reloaded.AutoDownloadEnabled())
	assert.Equal(t, 45*time.Second, reloaded.QueryTimeout)
}
