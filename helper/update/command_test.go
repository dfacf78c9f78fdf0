package update

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxbdasheng/dupdate/updater"
)

func TestConfirmUpdate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "直接回车", input: "\n", want: true},
		{name: "输入 y", input: "y\n", want: true},
		{name: "输入大写 Y", input: "Y\n", want: true},
		{name: "输入 yes 无换行", input: "yes", want: true},
		{name: "输入 n", input: "n\n", want: false},
		{name: "输入 no", input: " no \n", want: false},
		{name: "其他输入", input: "later\n", want: false},
		{name: "没有输入", input: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if got := confirmUpdate(strings.NewReader(tt.input), &out); got != tt.want {
				t.Errorf("confirmUpdate(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if !strings.Contains(out.String(), "[Y/n]") {
				t.Errorf("提示信息不正确: %q", out.String())
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

// newCommandController 使用本地发布服务与临时可执行文件组装控制器
func newCommandController(t *testing.T, current string, out *bytes.Buffer) (*updater.Controller, string) {
	t.Helper()
	stubContainer(t, false)

	srv := newReleaseServer(t, "v1.3.0", createTestTarGz(t, map[string]string{"dupdate": "new binary"}))
	exePath := writeExecutable(t, "old binary")
	inst := &Installer{
		ExePath:  exePath,
		Relaunch: func(string) error { return nil },
	}
	c := updater.NewController(updater.Options{CurrentVersion: current},
		NewGitHubSource(srv.URL, ""), inst, ProgressPrinter(out))
	t.Cleanup(c.Close)
	return c, exePath
}

func TestCheckAndUpdate(t *testing.T) {
	t.Run("确认后完成更新", func(t *testing.T) {
		var out bytes.Buffer
		c, exePath := newCommandController(t, "1.2.0", &out)

		require.NoError(t, CheckAndUpdate(context.Background(), c, strings.NewReader("y\n"), &out))

		data, err := os.ReadFile(exePath)
		require.NoError(t, err)
		assert.Equal(t, "new binary", string(data))
		assert.Equal(t, updater.PhaseInstallPending, c.State().Phase)
		assert.Contains(t, out.String(), "发现新版本: 1.2.0 -> 1.3.0")
		assert.Contains(t, out.String(), "修复若干问题")
		assert.Contains(t, out.String(), "下载中")
		assert.Contains(t, out.String(), "更新成功")
	})

	t.Run("取消更新", func(t *testing.T) {
		var out bytes.Buffer
		c, exePath := newCommandController(t, "1.2.0", &out)

		require.NoError(t, CheckAndUpdate(context.Background(), c, strings.NewReader("n\n"), &out))

		data, _ := os.ReadFile(exePath)
		assert.Equal(t, "old binary", string(data))
		assert.Equal(t, updater.PhaseAvailable, c.State().Phase)
		assert.Contains(t, out.String(), "已取消更新")
	})

	t.Run("已是最新版本", func(t *testing.T) {
		var out bytes.Buffer
		c, _ := newCommandController(t, "1.3.0", &out)

		require.NoError(t, CheckAndUpdate(context.Background(), c, strings.NewReader(""), &out))
		assert.Equal(t, updater.PhaseIdle, c.State().Phase)
		assert.Contains(t, out.String(), "当前已是最新版本")
	})

	t.Run("安装失败", func(t *testing.T) {
		var out bytes.Buffer
		c, _ := newCommandController(t, "1.2.0", &out)
		stubContainer(t, true)

		err := CheckAndUpdate(context.Background(), c, strings.NewReader("\n"), &out)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRunInContainer)
		assert.Equal(t, updater.PhaseDownloaded, c.State().Phase)
	})
}
