package update

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cxbdasheng/dupdate/helper"
	"github.com/cxbdasheng/dupdate/updater"
)

// progressInterval 两次进度回调的最小间隔
var progressInterval = 200 * time.Millisecond

// MaxPackageSize 更新包大小上限，超过时按下载失败处理
var MaxPackageSize int64 = 512 << 20

// preallocLimit 按 Content-Length 预分配的上限
const preallocLimit = 64 << 20

var (
	errChecksumMismatch = errors.New("更新包校验失败")
	errPackageTooLarge  = errors.New("更新包超过大小上限")
)

// FetchPackage 下载最近一次 QueryLatest 解析到的更新包
func (s *GitHubSource) FetchPackage(ctx context.Context, onProgress func(updater.Progress)) (*updater.Package, error) {
	asset := s.lastAsset()
	if asset == nil {
		return nil, errors.New("尚未查询到可下载的版本")
	}

	helper.Info(helper.LogTypeUpdate, "正在下载 %s", asset.Name)
	data, err := s.downloadFile(ctx, asset.URL, asset.Size, onProgress)
	if err != nil {
		return nil, err
	}

	if asset.ChecksumURL != "" {
		if err := s.verifyChecksum(ctx, asset, data); err != nil {
			return nil, err
		}
		helper.Debug(helper.LogTypeUpdate, "%s 校验通过", asset.Name)
	}
	return &updater.Package{Name: asset.Name, Data: data}, nil
}

// downloadFile 下载文件，sizeHint 在响应没有 Content-Length 时作为总大小
func (s *GitHubSource) downloadFile(ctx context.Context, url string, sizeHint int64, onProgress func(updater.Progress)) ([]byte, error) {
	resp, err := s.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	total := resp.ContentLength
	if total <= 0 {
		total = sizeHint
	}

	if total > MaxPackageSize {
		return nil, fmt.Errorf("%w: %s 大小为 %d 字节, 上限 %d", errPackageTooLarge, url, total, MaxPackageSize)
	}

	var buf bytes.Buffer
	if total > 0 {
		buf.Grow(int(min(total, preallocLimit)))
	}
	pr := newProgressReader(resp.Body, total, onProgress)
	// 多读一个字节用于判断是否超过上限
	if _, err := io.Copy(&buf, io.LimitReader(pr, MaxPackageSize+1)); err != nil {
		return nil, fmt.Errorf("无法从 %s 下载文件: %w", url, err)
	}
	if int64(buf.Len()) > MaxPackageSize {
		return nil, fmt.Errorf("%w: %s 超过 %d 字节", errPackageTooLarge, url, MaxPackageSize)
	}
	pr.finish()
	return buf.Bytes(), nil
}

func (s *GitHubSource) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := s.download.Do(req)
	if err != nil {
		return nil, fmt.Errorf("无法从 %s 下载文件: %w", url, err)
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("无法从 %s 下载文件，响应状态码: %d", url, resp.StatusCode)
	}
	return resp, nil
}

// verifyChecksum 按 sha256sum 的格式查找 asset 对应的校验值
func (s *GitHubSource) verifyChecksum(ctx context.Context, asset *Asset, data []byte) error {
	resp, err := s.get(ctx, asset.ChecksumURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	want, err := findChecksum(resp.Body, asset.Name)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(data)
	if got := hex.EncodeToString(sum[:]); !strings.EqualFold(got, want) {
		return fmt.Errorf("%w: %s 期望 %s，实际 %s", errChecksumMismatch, asset.Name, want, got)
	}
	return nil
}

func findChecksum(r io.Reader, name string) (string, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		// 二进制模式下文件名带 * 前缀
		if strings.TrimPrefix(fields[1], "*") == name {
			return fields[0], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("读取校验文件失败: %w", err)
	}
	return "", fmt.Errorf("%w: 校验文件中没有 %s", errChecksumMismatch, name)
}

// progressReader 统计已读取的字节数，按间隔回调下载进度
type progressReader struct {
	r          io.Reader
	total      int64
	read       int64
	reported   int64
	start      time.Time
	last       time.Time
	onProgress func(updater.Progress)
}

func newProgressReader(r io.Reader, total int64, onProgress func(updater.Progress)) *progressReader {
	now := time.Now()
	return &progressReader{r: r, total: total, start: now, last: now, onProgress: onProgress}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if n > 0 && time.Since(p.last) >= progressInterval {
		p.report()
	}
	return n, err
}

// finish 补发最后一次进度
func (p *progressReader) finish() {
	if p.read != p.reported {
		p.report()
	}
}

func (p *progressReader) report() {
	now := time.Now()
	p.last = now
	p.reported = p.read
	if p.onProgress == nil {
		return
	}

	progress := updater.Progress{Transferred: p.read, Total: p.total}
	if p.total > 0 {
		progress.Percent = float64(p.read) * 100 / float64(p.total)
		if progress.Percent > 100 {
			progress.Percent = 100
		}
	}
	if elapsed := now.Sub(p.start).Seconds(); elapsed > 0 {
		progress.BytesPerSecond = int64(float64(p.read) / elapsed)
	}
	p.onProgress(progress)
}
