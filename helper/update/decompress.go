package update

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cxbdasheng/dupdate/helper"
)

var (
	errCannotDecompressFile        = errors.New("无法解压文件")
	errExecutableNotFoundInArchive = errors.New("未找到可执行文件")
)

var fileTypes = []struct {
	ext        string
	decompress func(data []byte, cmd string) ([]byte, error)
}{
	{".zip", unzip},
	{".tar.gz", untar},
	{".tgz", untar},
}

// extractExecutable 从更新包中提取可执行文件。根据 assetName 的扩展名识别格式，
// 支持 '.zip' 和 '.tar.gz'，其他文件视为可执行文件本身。
//
// 可能返回以下封装过的错误：
//   - errCannotDecompressFile
//   - errExecutableNotFoundInArchive
func extractExecutable(data []byte, assetName, execName string) ([]byte, error) {
	for _, ft := range fileTypes {
		if strings.HasSuffix(assetName, ft.ext) {
			return ft.decompress(data, execName)
		}
	}
	helper.Info(helper.LogTypeUpdate, "不是压缩文件，跳过解压")
	return data, nil
}

func unzip(data []byte, cmd string) ([]byte, error) {
	z, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w zip 文件: %s", errCannotDecompressFile, err)
	}

	for _, file := range z.File {
		if file.FileInfo().IsDir() || !isExecutableMatch(cmd, path.Base(file.Name)) {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w zip 文件: %s", errCannotDecompressFile, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}

	return nil, fmt.Errorf("在 zip 文件中%w：%q", errExecutableNotFoundInArchive, cmd)
}

func untar(data []byte, cmd string) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w tar.gz 文件: %s", errCannotDecompressFile, err)
	}
	defer gz.Close()

	t := tar.NewReader(gz)
	for {
		h, err := t.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w tar.gz 文件：%s", errCannotDecompressFile, err)
		}
		if h.Typeflag == tar.TypeDir || !isExecutableMatch(cmd, path.Base(h.Name)) {
			continue
		}
		return io.ReadAll(t)
	}
	return nil, fmt.Errorf("在 tar.gz 文件中%w：%q", errExecutableNotFoundInArchive, cmd)
}

// isExecutableMatch cmd 为当前可执行文件名，Windows 下压缩包中的文件可能带 .exe
func isExecutableMatch(cmd, target string) bool {
	return cmd == target || cmd+".exe" == target
}
