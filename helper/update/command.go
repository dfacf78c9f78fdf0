package update

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cxbdasheng/dupdate/helper"
	"github.com/cxbdasheng/dupdate/updater"
)

// releaseNotesPreview 终端中显示的更新说明长度
const releaseNotesPreview = 300

// CheckAndUpdate 在终端中执行手动更新：检查、确认、下载、安装。
// controller 应关闭自动下载，下载进度由 ProgressPrinter 输出。
func CheckAndUpdate(ctx context.Context, c *updater.Controller, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "正在检查更新...\n当前版本: %s\n", c.CurrentVersion())

	info, err := c.CheckForUpdates(ctx, true)
	if err != nil {
		return fmt.Errorf("获取最新版本失败: %w", err)
	}
	if info == nil {
		fmt.Fprintln(out, "当前已是最新版本，无需更新")
		return nil
	}

	fmt.Fprintf(out, "发现新版本: %s -> %s\n", c.CurrentVersion(), info.Version)
	if !info.ReleaseDate.IsZero() {
		fmt.Fprintf(out, "发布时间: %s\n", info.ReleaseDate.Local().Format("2006-01-02 15:04:05"))
	}
	if notes := strings.TrimSpace(info.ReleaseNotes); notes != "" {
		fmt.Fprintf(out, "更新说明:\n%s\n", helper.Truncate(notes, releaseNotesPreview))
	}

	if !confirmUpdate(in, out) {
		fmt.Fprintln(out, "已取消更新")
		return nil
	}

	if err := c.DownloadUpdate(ctx, true); err != nil {
		return fmt.Errorf("下载更新失败: %w", err)
	}
	fmt.Fprintln(out)

	if err := c.InstallAndRestart(ctx); err != nil {
		return fmt.Errorf("更新失败: %w", err)
	}
	fmt.Fprintf(out, "✓ 更新成功! 版本 %s -> %s\n", c.CurrentVersion(), info.Version)
	return nil
}

// confirmUpdate 询问用户是否确认更新
func confirmUpdate(in io.Reader, out io.Writer) bool {
	fmt.Fprint(out, "是否确认更新? [Y/n]: ")
	reader := bufio.NewReader(in)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return false
	}

	input = strings.TrimSpace(strings.ToLower(input))
	return input == "" || input == "y" || input == "yes"
}

// ProgressPrinter 在终端中输出下载进度，其他事件忽略
func ProgressPrinter(out io.Writer) updater.Publisher {
	return updater.PublisherFunc(func(e updater.Event) error {
		p, ok := e.Payload.(updater.Progress)
		if !ok {
			return nil
		}
		_, err := fmt.Fprintf(out, "\r下载中 %5.1f%%  %s/%s  %s/s   ",
			p.Percent, formatBytes(p.Transferred), formatBytes(p.Total), formatBytes(p.BytesPerSecond))
		return err
	})
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
