package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cxbdasheng/dupdate/helper"
)

// watchDebounce 编辑器保存时会产生多次事件，合并为一次重新加载
var watchDebounce = 200 * time.Millisecond

// Watch 监听配置文件所在目录，配置文件变化时重新加载并回调 onChange，ctx 结束时停止。
// 监听目录而不是文件，以便覆盖先删除再创建的保存方式。
func Watch(ctx context.Context, onChange func(Config)) error {
	configFilePath, err := filepath.Abs(GetConfigFilePath())
	if err != nil {
		return fmt.Errorf("获取配置文件路径失败: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建配置监听失败: %w", err)
	}
	if err := watcher.Add(filepath.Dir(configFilePath)); err != nil {
		watcher.Close()
		return fmt.Errorf("监听配置目录失败: %w", err)
	}

	go watchLoop(ctx, watcher, configFilePath, onChange)
	helper.Debug(helper.LogTypeConfig, "正在监听配置文件: %s", configFilePath)
	return nil
}

func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, configFilePath string, onChange func(Config)) {
	defer watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != configFilePath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			globalCache.invalidate()
			conf, err := GetConfigCached()
			if err != nil {
				helper.Warn(helper.LogTypeConfig, "重新加载配置失败: %v", err)
				continue
			}
			helper.Info(helper.LogTypeConfig, "配置文件已变化，重新加载")
			onChange(conf)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			helper.Warn(helper.LogTypeConfig, "配置监听出错: %v", err)
		}
	}
}
