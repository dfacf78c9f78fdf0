package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cxbdasheng/dupdate/helper"
	"github.com/cxbdasheng/dupdate/updater"
)

const (
	// DefaultAPIURL GitHub API 地址
	DefaultAPIURL = "https://api.github.com"
	// DefaultRepository 默认的发布仓库
	DefaultRepository = "cxbdasheng/dupdate"

	userAgent = "dupdate-updater"
)

// ErrNoAsset 发布中没有适用于当前系统的文件
var ErrNoAsset = errors.New("未找到适用于当前系统的二进制文件")

// Release GitHub Release 结构
type Release struct {
	TagName     string         `json:"tag_name"`
	Name        string         `json:"name"`
	Body        string         `json:"body"`
	PublishedAt time.Time      `json:"published_at"`
	Assets      []ReleaseAsset `json:"assets"`
}

// ReleaseAsset Release 中的资源文件
type ReleaseAsset struct {
	Name               string `json:"name"`
	Size               int64  `json:"size"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// GitHubSource 以 GitHub Releases 作为发布源。
// 记住最近一次查询解析到的 asset，FetchPackage 下载的就是它。
type GitHubSource struct {
	apiURL     string
	repository string
	// api 用于查询接口，download 用于下载更新包，超时由调用方的 context 控制
	api      *http.Client
	download *http.Client

	mu    sync.Mutex
	asset *Asset
}

var _ updater.ReleaseSource = (*GitHubSource)(nil)

// NewGitHubSource 创建发布源，apiURL 与 repository 为空时使用默认值
func NewGitHubSource(apiURL, repository string) *GitHubSource {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if repository == "" {
		repository = DefaultRepository
	}
	return &GitHubSource{
		apiURL:     strings.TrimRight(apiURL, "/"),
		repository: strings.Trim(repository, "/"),
		api:        helper.CreateHTTPClient(helper.DefaultHTTPTimeout),
		download:   helper.CreateHTTPClient(0),
	}
}

// ReleasesURL 发布页面地址，用于提示手动下载
func (s *GitHubSource) ReleasesURL() string {
	return fmt.Sprintf("https://github.com/%s/releases/latest", s.repository)
}

// QueryLatest 查询最新发布，并解析出适用于当前系统的 asset
func (s *GitHubSource) QueryLatest(ctx context.Context) (*updater.UpdateInfo, error) {
	apiURL := fmt.Sprintf("%s/repos/%s/releases/latest", s.apiURL, s.repository)
	release, err := s.getLatest(ctx, apiURL)
	if err != nil {
		return nil, err
	}

	asset, found := findAsset(release)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNoAsset, release.TagName)
	}

	s.mu.Lock()
	s.asset = asset
	s.mu.Unlock()

	helper.Debug(helper.LogTypeUpdate, "版本 %s 匹配到文件: %s", release.TagName, asset.Name)
	return &updater.UpdateInfo{
		Version:      strings.TrimPrefix(release.TagName, "v"),
		ReleaseNotes: release.Body,
		ReleaseDate:  release.PublishedAt,
	}, nil
}

// getLatest 从 GitHub API 获取最新的 release 信息
func (s *GitHubSource) getLatest(ctx context.Context, apiURL string) (*Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := s.api.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API 返回错误状态码: %d", resp.StatusCode)
	}
	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if release.TagName == "" {
		return nil, errors.New("发布信息缺少版本号")
	}
	return &release, nil
}

func (s *GitHubSource) lastAsset() *Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.asset == nil {
		return nil
	}
	a := *s.asset
	return &a
}
