package update

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/cxbdasheng/dupdate/helper"
)

// checksumAssetNames 发布中校验文件的常见名称
var checksumAssetNames = []string{"checksums.txt", "SHA256SUMS", "sha256sums.txt"}

// Asset 表示 GitHub Release 中的一个资源文件
type Asset struct {
	Name string
	URL  string
	Size int64
	// ChecksumURL 发布中的 sha256 校验文件，可为空
	ChecksumURL string
}

// findAsset 从 release 中查找适合当前系统架构的 asset
func findAsset(rel *Release) (*Asset, bool) {
	if rel == nil {
		helper.Warn(helper.LogTypeUpdate, "没有找到发布信息")
		return nil, false
	}
	for _, arch := range generateAdditionalArch() {
		if a, ok := findAssetFromRelease(rel, buildSuffixes(arch)); ok {
			a.ChecksumURL = findChecksumURL(rel)
			return a, true
		}
	}
	helper.Warn(helper.LogTypeUpdate, "在版本 %s 中未找到适用于 %s/%s 的文件", rel.TagName, runtime.GOOS, runtime.GOARCH)
	return nil, false
}

// findAssetFromRelease 从 release 的 assets 中查找匹配指定后缀的文件
func findAssetFromRelease(rel *Release, suffixes []string) (*Asset, bool) {
	if rel == nil {
		return nil, false
	}
	for _, asset := range rel.Assets {
		if matchesAssetSuffixes(asset.Name, suffixes) {
			return &Asset{Name: asset.Name, URL: asset.BrowserDownloadURL, Size: asset.Size}, true
		}
	}
	return nil, false
}

func findChecksumURL(rel *Release) string {
	for _, asset := range rel.Assets {
		for _, name := range checksumAssetNames {
			if strings.EqualFold(asset.Name, name) {
				return asset.BrowserDownloadURL
			}
		}
	}
	return ""
}

// matchesAssetSuffixes 检查 asset 名称是否匹配任一后缀
func matchesAssetSuffixes(name string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// buildSuffixes 构建所有要与 asset 进行检查的候选后缀
// TODO: 由于缺失获取 MIPS 架构 float 的方法，所以目前无法正确获取 MIPS 架构的后缀。
func buildSuffixes(arch string) []string {
	suffixes := make([]string, 0, 2)
	for _, ext := range []string{".zip", ".tar.gz"} {
		suffix := fmt.Sprintf("%s_%s%s", runtime.GOOS, arch, ext)
		suffixes = append(suffixes, suffix)
	}
	return suffixes
}
