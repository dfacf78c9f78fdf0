package update

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/minio/selfupdate"

	"github.com/cxbdasheng/dupdate/helper"
	"github.com/cxbdasheng/dupdate/updater"
)

// ErrRunInContainer 容器内不替换可执行文件，应更新镜像
var ErrRunInContainer = errors.New("运行在容器中，请通过更新镜像升级")

var (
	isRunInContainer = helper.IsRunInContainer
	interactive      = service.Interactive
	exit             = os.Exit
)

// Installer 用下载好的更新包替换当前可执行文件
type Installer struct {
	// ExePath 要替换的可执行文件，为空时使用 os.Executable
	ExePath string
	// Relaunch 替换成功后重启进程，为空时使用 DefaultRelaunch
	Relaunch func(exePath string) error
}

var _ updater.Installer = (*Installer)(nil)

// Install 解压并替换可执行文件。silent 时只在调试日志中输出安装细节，
// relaunch 时替换成功后重启进程。
func (i *Installer) Install(ctx context.Context, pkg *updater.Package, silent, relaunch bool) error {
	if pkg == nil || len(pkg.Data) == 0 {
		return errors.New("更新包为空")
	}
	if isRunInContainer() {
		return ErrRunInContainer
	}

	exePath, err := i.executable()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	logf := helper.Info
	if silent {
		logf = helper.Debug
	}

	_, execName := filepath.Split(exePath)
	bin, err := extractExecutable(pkg.Data, pkg.Name, execName)
	if err != nil {
		return err
	}
	logf(helper.LogTypeUpdate, "已从 %s 解压出 %s (%d 字节)", pkg.Name, execName, len(bin))

	if err := selfupdate.Apply(bytes.NewReader(bin), selfupdate.Options{TargetPath: exePath}); err != nil {
		if rerr := selfupdate.RollbackError(err); rerr != nil {
			return fmt.Errorf("替换可执行文件失败且无法回滚: %w", rerr)
		}
		return fmt.Errorf("替换可执行文件失败: %w", err)
	}
	logf(helper.LogTypeUpdate, "已替换可执行文件: %s", exePath)

	if !relaunch {
		return nil
	}
	restart := i.Relaunch
	if restart == nil {
		restart = DefaultRelaunch
	}
	return restart(exePath)
}

func (i *Installer) executable() (string, error) {
	if i.ExePath != "" {
		return i.ExePath, nil
	}
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("获取可执行文件路径失败: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exePath); err == nil {
		exePath = resolved
	}
	return exePath, nil
}

// DefaultRelaunch 交互运行时启动新进程后退出；
// 作为服务运行时直接以非零状态退出，由服务管理器拉起新版本。
func DefaultRelaunch(exePath string) error {
	if interactive() {
		return restartProgram(exePath)
	}
	helper.Info(helper.LogTypeUpdate, "以服务方式运行，退出进程交由服务管理器重启")
	exit(1)
	return nil
}

// restartProgram 重启当前程序
func restartProgram(exePath string) error {
	// 使用 StartProcess 而不是 Exec，以便当前进程能正常退出
	attr := &os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
		Env:   os.Environ(),
	}

	process, err := os.StartProcess(exePath, os.Args, attr)
	if err != nil {
		return fmt.Errorf("重启程序失败: %w", err)
	}

	// 释放新进程，让其独立运行
	if err := process.Release(); err != nil {
		return fmt.Errorf("释放新进程失败: %w", err)
	}

	exit(0)
	return nil
}
