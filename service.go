package main

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kardianos/service"

	"github.com/cxbdasheng/dupdate/helper"
)

// serviceName 系统服务名称
const serviceName = "dupdate"

// stopTimeout 服务停止时等待退出的时间
const stopTimeout = 10 * time.Second

// program 实现 service.Interface 接口
type program struct {
	// runFunc 实际运行的主程序，ctx 结束时应返回
	runFunc func(ctx context.Context)
	cancel  context.CancelFunc
	done    chan struct{}
}

func newProgram() *program {
	return &program{runFunc: run}
}

func (p *program) Start(s service.Service) error {
	// Start 不应该阻塞，异步执行实际工作
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		p.runFunc(ctx)
	}()
	return nil
}

// Stop 通知主程序退出，最多等待 stopTimeout
func (p *program) Stop(s service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	select {
	case <-p.done:
	case <-time.After(stopTimeout):
		helper.Warn(helper.LogTypeSystem, "等待服务退出超时")
	}
	return nil
}

// platformOptions 各服务管理器的配置与依赖。
// 安装新版本后进程以非零状态退出，依赖失败重启拉起新版本
func platformOptions(system string) (service.KeyValue, []string) {
	options := make(service.KeyValue)
	var depends []string

	switch system {
	case "unix-systemv":
		// System V init 脚本配置
		options["SysvScript"] = sysvScript
		options["UserService"] = false
	case "unix-upstart":
		options["UserService"] = false
	case "linux-systemd":
		// 确保服务等待网络就绪后再启动
		depends = append(depends,
			"Requires=network.target",
			"After=network-online.target syslog.target")
		// 失败时自动重启
		options["Restart"] = "on-failure"
		options["RestartSec"] = 10
		options["LimitNOFILE"] = 65536
	case "darwin-launchd":
		// 进程退出后由 launchd 拉起
		options["KeepAlive"] = true
		options["RunAtLoad"] = true
		options["UserService"] = false
	case "windows-service":
		// 自动(延迟启动)，失败时重启
		options["DelayedAutoStart"] = true
		options["OnFailure"] = "restart"
		options["OnFailureDelayDuration"] = "10s"
		options["OnFailureResetPeriod"] = 60
	default:
		depends = append(depends,
			"Requires=network.target",
			"After=network-online.target")
	}
	return options, depends
}

// serviceArguments 服务启动时沿用当前的命令行参数
func serviceArguments() []string {
	args := []string{"-l", *listen, "-c", *configFilePath}
	// 非 Web 运行
	if *noWebService {
		args = append(args, "-noweb")
	}
	if *logLevel != "" {
		args = append(args, "-logLevel", *logLevel)
	}
	if *logFile != "" {
		args = append(args, "-logFile", *logFile)
	}
	return args
}

// getService 获取服务配置
func getService() service.Service {
	options, depends := platformOptions(service.ChosenSystem().String())
	svcConfig := &service.Config{
		Name:         serviceName,
		DisplayName:  "D-Update Service",
		Description:  "D-Update - 自动检查、下载并安装新版本",
		Arguments:    serviceArguments(),
		Dependencies: depends,
		Option:       options,
	}

	s, err := service.New(newProgram(), svcConfig)
	if err != nil {
		helper.Fatalf(helper.LogTypeSystem, "创建系统服务失败: %v", err)
	}
	return s
}

// sysvTool System V 下配置开机自启的工具
type sysvTool struct {
	name    string
	enable  [][]string
	disable [][]string
}

// sysvTools 按顺序尝试，使用第一个存在的工具
var sysvTools = []sysvTool{
	// Debian/Ubuntu
	{
		name:    "update-rc.d",
		enable:  [][]string{{"update-rc.d", serviceName, "defaults"}},
		disable: [][]string{{"update-rc.d", "-f", serviceName, "remove"}},
	},
	// RedHat/CentOS
	{
		name:    "chkconfig",
		enable:  [][]string{{"chkconfig", "--add", serviceName}, {"chkconfig", serviceName, "on"}},
		disable: [][]string{{"chkconfig", "--del", serviceName}},
	},
}

// runSysvTool 执行 enable 或 disable 中的命令，遇到失败即停止
func runSysvTool(pick func(sysvTool) [][]string) (string, error) {
	for _, tool := range sysvTools {
		if _, err := exec.LookPath(tool.name); err != nil {
			continue
		}
		for _, cmd := range pick(tool) {
			if out, err := exec.Command(cmd[0], cmd[1:]...).CombinedOutput(); err != nil {
				return tool.name, fmt.Errorf("%s 失败: %w, 输出: %s", strings.Join(cmd, " "), err, out)
			}
		}
		return tool.name, nil
	}
	return "", nil
}

// installService 使用service库安装系统服务
func installService() {
	helper.Info(helper.LogTypeSystem, "正在安装 D-Update 系统服务...")

	s := getService()
	status, err := s.Status()
	if err != nil && status == service.StatusUnknown {
		// 服务未知，创建服务
		if err = s.Install(); err == nil {
			if startErr := s.Start(); startErr != nil {
				helper.Error(helper.LogTypeSystem, "服务安装成功但启动失败: %v", startErr)
			}
			helper.Info(helper.LogTypeSystem, "安装 D-Update 服务成功! 请打开浏览器并进行配置")

			// System V init 系统需要额外配置开机自启
			if service.ChosenSystem().String() == "unix-systemv" {
				tool, err := runSysvTool(func(t sysvTool) [][]string { return t.enable })
				if err != nil {
					helper.Error(helper.LogTypeSystem, "配置开机自启失败: %v", err)
				} else if tool != "" {
					helper.Info(helper.LogTypeSystem, "已配置开机自启 (%s)", tool)
				}
			}
			return
		}
		helper.Error(helper.LogTypeSystem, "安装 D-Update 服务失败, 异常信息: %v", err)
	}

	if status != service.StatusUnknown {
		helper.Info(helper.LogTypeSystem, "D-Update 服务已安装, 无需再次安装")
	}
}

// uninstallService 使用 service 库卸载系统服务
func uninstallService() {
	helper.Info(helper.LogTypeSystem, "正在卸载 D-Update 系统服务...")

	s := getService()
	if stopErr := s.Stop(); stopErr != nil {
		helper.Warn(helper.LogTypeSystem, "停止服务时出现警告: %v", stopErr)
	}

	// System V init 系统需要额外清理
	if service.ChosenSystem().String() == "unix-systemv" {
		if _, err := runSysvTool(func(t sysvTool) [][]string { return t.disable }); err != nil {
			helper.Error(helper.LogTypeSystem, "移除开机自启失败: %v", err)
		}
	}

	if err := s.Uninstall(); err != nil {
		helper.Fatal(helper.LogTypeSystem, "D-Update 服务卸载失败: %v", err)
	}
	helper.Info(helper.LogTypeSystem, "D-Update 服务卸载成功")
}

// restartService 使用service库重启系统服务
func restartService() {
	helper.Info(helper.LogTypeSystem, "正在重启 D-Update 系统服务...")

	s := getService()
	status, err := s.Status()
	if err != nil {
		helper.Fatal(helper.LogTypeSystem, "D-Update 服务未安装, 请先安装服务")
	}

	switch status {
	case service.StatusRunning:
		// 服务正在运行，执行重启
		if err = s.Restart(); err != nil {
			helper.Fatal(helper.LogTypeSystem, "D-Update 服务重启失败: %v", err)
		}
		helper.Info(helper.LogTypeSystem, "D-Update 服务重启成功")
	case service.StatusStopped:
		// 服务已停止，执行启动
		if err = s.Start(); err != nil {
			helper.Fatal(helper.LogTypeSystem, "D-Update 服务启动失败: %v", err)
		}
		helper.Info(helper.LogTypeSystem, "D-Update 服务启动成功")
	default:
		helper.Fatal(helper.LogTypeSystem, "D-Update 服务状态未知: %v", status)
	}
}

// sysvScript 定义 System V init 脚本模板
const sysvScript = `#!/bin/sh
### BEGIN INIT INFO
# Provides:          {{.Name}}
# Required-Start:    $network $remote_fs $syslog
# Required-Stop:     $network $remote_fs $syslog
# Default-Start:     2 3 4 5
# Default-Stop:      0 1 6
# Short-Description: {{.DisplayName}}
# Description:       {{.Description}}
### END INIT INFO

cmd="{{.Path}}{{range .Arguments}} {{.}}{{end}}"

name=$(basename $(readlink -f $0))
pid_file="/var/run/$name.pid"
stdout_log="/var/log/$name.log"
stderr_log="/var/log/$name.err"

get_pid() {
    cat "$pid_file"
}

is_running() {
    [ -f "$pid_file" ] && ps -p $(get_pid) > /dev/null 2>&1
}

case "$1" in
    start)
        if is_running; then
            echo "Already started"
        else
            echo "Starting $name"
            $cmd >> "$stdout_log" 2>> "$stderr_log" &
            echo $! > "$pid_file"
        fi
        ;;
    stop)
        if is_running; then
            echo "Stopping $name"
            kill $(get_pid)
            rm -f "$pid_file"
        else
            echo "Not running"
        fi
        ;;
    restart)
        $0 stop
        $0 start
        ;;
    status)
        if is_running; then
            echo "Running"
        else
            echo "Stopped"
            exit 1
        fi
        ;;
    *)
        echo "Usage: $0 {start|stop|restart|status}"
        exit 1
        ;;
esac

exit 0
`
