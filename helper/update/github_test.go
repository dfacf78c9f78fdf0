package update

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxbdasheng/dupdate/updater"
)

var testAssetName = fmt.Sprintf("dupdate_%s_%s.tar.gz", runtime.GOOS, runtime.GOARCH)

type releaseServer struct {
	*httptest.Server
	tag       string
	assetName string
	payload   []byte
	// checksums 为空时发布中不带校验文件
	checksums string
	status    int
}

func newReleaseServer(t *testing.T, tag string, payload []byte) *releaseServer {
	t.Helper()
	rs := &releaseServer{tag: tag, assetName: testAssetName, payload: payload, status: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/cxbdasheng/dupdate/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != userAgent {
			http.Error(w, "missing user agent", http.StatusForbidden)
			return
		}
		if rs.status != http.StatusOK {
			w.WriteHeader(rs.status)
			return
		}
		rel := Release{
			TagName:     rs.tag,
			Body:        "修复若干问题",
			PublishedAt: time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC),
			Assets: []ReleaseAsset{
				{Name: "dupdate_plan9_mips.zip", BrowserDownloadURL: rs.URL + "/download/other"},
				{Name: rs.assetName, Size: int64(len(rs.payload)), BrowserDownloadURL: rs.URL + "/download/asset"},
			},
		}
		if rs.checksums != "" {
			rel.Assets = append(rel.Assets, ReleaseAsset{Name: "checksums.txt", BrowserDownloadURL: rs.URL + "/download/checksums"})
		}
		_ = json.NewEncoder(w).Encode(rel)
	})
	mux.HandleFunc("/download/asset", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(rs.payload)))
		// 分多次写出，产生多次进度回调
		for i := 0; i < len(rs.payload); i += 512 {
			end := min(i+512, len(rs.payload))
			_, _ = w.Write(rs.payload[i:end])
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	})
	mux.HandleFunc("/download/checksums", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(rs.checksums))
	})

	rs.Server = httptest.NewServer(mux)
	t.Cleanup(rs.Close)
	return rs
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestGitHubSource_QueryLatest(t *testing.T) {
	srv := newReleaseServer(t, "v1.3.0", []byte("payload"))
	src := NewGitHubSource(srv.URL, "")

	info, err := src.QueryLatest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", info.Version)
	assert.Equal(t, "修复若干问题", info.ReleaseNotes)
	assert.Equal(t, 2026, info.ReleaseDate.Year())

	asset := src.lastAsset()
	require.NotNil(t, asset)
	assert.Equal(t, testAssetName, asset.Name)
	assert.Equal(t, srv.URL+"/download/asset", asset.URL)
}

func TestGitHubSource_QueryLatestErrors(t *testing.T) {
	t.Run("状态码错误", func(t *testing.T) {
		srv := newReleaseServer(t, "v1.3.0", nil)
		srv.status = http.StatusForbidden
		_, err := NewGitHubSource(srv.URL, "").QueryLatest(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "403")
	})

	t.Run("没有适用的文件", func(t *testing.T) {
		srv := newReleaseServer(t, "v1.3.0", nil)
		srv.assetName = "dupdate_unknownos_unknownarch.zip"
		_, err := NewGitHubSource(srv.URL, "").QueryLatest(context.Background())
		assert.ErrorIs(t, err, ErrNoAsset)
	})

	t.Run("仓库不存在", func(t *testing.T) {
		srv := newReleaseServer(t, "v1.3.0", nil)
		_, err := NewGitHubSource(srv.URL, "someone/else").QueryLatest(context.Background())
		assert.Error(t, err)
	})

	t.Run("context 已取消", func(t *testing.T) {
		srv := newReleaseServer(t, "v1.3.0", nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewGitHubSource(srv.URL, "").QueryLatest(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestGitHubSource_FetchPackage(t *testing.T) {
	orig := progressInterval
	progressInterval = 0
	t.Cleanup(func() { progressInterval = orig })

	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i)
	}
	srv := newReleaseServer(t, "v1.3.0", payload)
	src := NewGitHubSource(srv.URL, "")

	_, err := src.FetchPackage(context.Background(), nil)
	require.Error(t, err, "未查询时不能下载")

	_, err = src.QueryLatest(context.Background())
	require.NoError(t, err)

	var ticks []updater.Progress
	pkg, err := src.FetchPackage(context.Background(), func(p updater.Progress) {
		ticks = append(ticks, p)
	})
	require.NoError(t, err)
	assert.Equal(t, testAssetName, pkg.Name)
	assert.Equal(t, payload, pkg.Data)

	require.NotEmpty(t, ticks)
	for i := 1; i < len(ticks); i++ {
		assert.GreaterOrEqual(t, ticks[i].Transferred, ticks[i-1].Transferred)
	}
	last := ticks[len(ticks)-1]
	assert.Equal(t, int64(len(payload)), last.Transferred)
	assert.Equal(t, int64(len(payload)), last.Total)
	assert.InDelta(t, 100, last.Percent, 0.001)
}

func TestGitHubSource_FetchPackageChecksum(t *testing.T) {
	payload := []byte("release archive")

	tests := []struct {
		name      string
		checksums string
		wantErr   bool
	}{
		{
			name:      "校验通过",
			checksums: fmt.Sprintf("%s  other.zip\n%s  %s\n", sha256Hex([]byte("x")), sha256Hex(payload), testAssetName),
		},
		{
			name:      "二进制模式的文件名",
			checksums: fmt.Sprintf("%s *%s\n", sha256Hex(payload), testAssetName),
		},
		{
			name:      "校验值不一致",
			checksums: fmt.Sprintf("%s  %s\n", sha256Hex([]byte("tampered")), testAssetName),
			wantErr:   true,
		},
		{
			name:      "校验文件中没有该文件",
			checksums: fmt.Sprintf("%s  other.zip\n", sha256Hex(payload)),
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newReleaseServer(t, "v1.3.0", payload)
			srv.checksums = tt.checksums
			src := NewGitHubSource(srv.URL, "")

			_, err := src.QueryLatest(context.Background())
			require.NoError(t, err)

			pkg, err := src.FetchPackage(context.Background(), nil)
			if tt.wantErr {
				assert.ErrorIs(t, err, errChecksumMismatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, payload, pkg.Data)
		})
	}
}

func TestProgressReader_UnknownTotal(t *testing.T) {
	var got []updater.Progress
	pr := newProgressReader(nil, 0, func(p updater.Progress) { got = append(got, p) })
	pr.read = 10
	pr.finish()
	pr.finish()

	require.Len(t, got, 1)
	assert.Equal(t, int64(10), got[0].Transferred)
	assert.Zero(t, got[0].Percent)
}

func TestDownloadFile_SizeLimits(t *testing.T) {
	orig := MaxPackageSize
	t.Cleanup(func() { MaxPackageSize = orig })
	MaxPackageSize = 1024

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/huge-header":
			// 声明的长度远大于实际内容
			w.Header().Set("Content-Length", "4611686018427387904")
			_, _ = w.Write([]byte("abc"))
		case "/chunked":
			for i := 0; i < 4; i++ {
				_, _ = w.Write(make([]byte, 512))
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
			}
		case "/exact":
			_, _ = w.Write(make([]byte, 1024))
		}
	}))
	defer srv.Close()

	s := NewGitHubSource(srv.URL, "a/b")
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "Content-Length 超出上限", path: "/huge-header", wantErr: true},
		{name: "未声明长度但内容超出上限", path: "/chunked", wantErr: true},
		{name: "恰好等于上限", path: "/exact"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := s.downloadFile(context.Background(), srv.URL+tt.path, 0, nil)
			if tt.wantErr {
				require.ErrorIs(t, err, errPackageTooLarge)
				assert.Nil(t, data)
				return
			}
			require.NoError(t, err)
			assert.Len(t, data, 1024)
		})
	}
}
