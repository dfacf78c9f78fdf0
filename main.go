package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kardianos/service"

	"github.com/cxbdasheng/dupdate/bootstrap"
	"github.com/cxbdasheng/dupdate/config"
	"github.com/cxbdasheng/dupdate/helper"
	"github.com/cxbdasheng/dupdate/helper/update"
	"github.com/cxbdasheng/dupdate/web"
)

// 配置文件路径
var configFilePath = flag.String("c", config.GetConfigFilePathDefault(), "Custom configuration file path")

// 监听地址
var listen = flag.String("l", config.GetDefaultListen(), "Listen address")

// 服务管理
var serviceType = flag.String("s", "", "Service management (install|uninstall|restart)")

// 重置密码
var newPassword = flag.String("resetPassword", "", "Reset password to the one entered")

// Web 服务
var noWebService = flag.Bool("noweb", false, "No web service")

// 手动更新
var updateNow = flag.Bool("u", false, "Check for updates and upgrade in the terminal")

// 版本
var showVersion = flag.Bool("v", false, "Print version and exit")

// 日志
var (
	logLevel = flag.String("logLevel", "", "Log level (debug|info|warn|error), overrides config")
	logFile  = flag.String("logFile", "", "Log file path, console for stderr, overrides config")
)

// shutdownTimeout Web 服务优雅关闭的等待时间
const shutdownTimeout = 5 * time.Second

// version
var version = "DEV"

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version)
		return
	}
	// 设置配置文件路径
	if *configFilePath != "" {
		absPath, err := filepath.Abs(*configFilePath)
		if err != nil {
			log.Fatalf("Failed to get absolute path: %v", err)
		}
		os.Setenv(config.PathENV, absPath)
	}
	initLog()
	// 未指定 -l 时使用配置中的端口
	if !isFlagSet("l") {
		if conf, err := config.GetConfigCached(); err == nil && conf.Port != "" {
			*listen = conf.GetPort()
		}
	}
	// 检查监听地址
	if _, err := net.ResolveTCPAddr("tcp", *listen); err != nil {
		log.Fatalf("Parse listen address failed! Exception: %s", err)
	}
	// 重置密码
	if *newPassword != "" {
		conf, err := config.GetConfigCached()
		if err == nil {
			err = conf.ResetPassword(*newPassword)
			if err != nil {
				fmt.Printf("重置密码失败: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("密码重置成功")
		} else {
			fmt.Printf("配置文件 %s 不存在, 可通过-c指定配置文件\n", *configFilePath)
			os.Exit(1)
		}
		return
	}
	if *updateNow {
		runUpdateCommand()
		return
	}
	switch *serviceType {
	case "install":
		installService()
	case "uninstall":
		uninstallService()
	case "restart":
		restartService()
	default:
		if service.Interactive() {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			run(ctx)
			return
		}
		if err := getService().Run(); err != nil {
			helper.Fatal(helper.LogTypeSystem, "服务运行失败: %v", err)
		}
	}
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// initLog 命令行参数优先，其次使用配置文件中的日志设置
func initLog() {
	level, file := *logLevel, *logFile
	if conf, err := config.GetConfigCached(); err == nil {
		if level == "" {
			level = conf.LogLevel
		}
		if file == "" {
			file = conf.LogFile
		}
	}
	if err := helper.InitLogOutput(level, file); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
}

// runUpdateCommand 在终端中检查并安装新版本
func runUpdateCommand() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 配置文件不存在时使用默认发布源
	conf, _ := config.GetConfigCached()
	c := bootstrap.NewCommandController(conf, version, os.Stdout)
	defer c.Close()

	if err := update.CheckAndUpdate(ctx, c, os.Stdin, os.Stdout); err != nil {
		fmt.Printf("%v\n", err)
		c.Close()
		os.Exit(1)
	}
}

func runWebServer(app *bootstrap.App) (*http.Server, error) {
	api := &web.UpdateAPI{Controller: app.Updater}
	server := &http.Server{
		Handler:           web.NewServeMux(api, app.Events),
		ReadHeaderTimeout: 10 * time.Second,
	}

	l, err := net.Listen("tcp", *listen)
	if err != nil {
		return nil, errors.New("监听端口发生异常, 请检查端口是否被占用!" + err.Error())
	}
	go func() {
		if err := server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			helper.Error(helper.LogTypeWeb, "Web服务异常退出: %v", err)
		}
	}()
	return server, nil
}

// run 运行主程序，ctx 结束时退出
func run(ctx context.Context) {
	fmt.Printf("D-Update %s 启动中...\n", version)

	app := bootstrap.Start(ctx, version)
	defer app.Stop()

	if !*noWebService {
		server, err := runWebServer(app)
		if err != nil {
			helper.Error(helper.LogTypeWeb, "Web服务启动失败: %v", err)
			time.Sleep(time.Minute)
			os.Exit(1)
		}
		fmt.Printf("Web界面: http://localhost%s\n", *listen)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				helper.Warn(helper.LogTypeWeb, "Web服务关闭超时: %v", err)
			}
		}()
	}

	fmt.Println("D-Update 服务已启动，按 Ctrl+C 停止")
	<-ctx.Done()
	helper.Info(helper.LogTypeSystem, "正在停止 D-Update...")
}
