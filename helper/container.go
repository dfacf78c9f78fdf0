package helper

import (
	"os"
	"strings"
)

// containerMarkers 容器运行时在根目录留下的标记文件
var containerMarkers = []string{"/.dockerenv", "/run/.containerenv"}

// cgroupFile 用于判断 1 号进程是否运行在容器中
var cgroupFile = "/proc/1/cgroup"

// IsRunInContainer 检查是否运行在 Docker/Podman 等容器中
func IsRunInContainer() bool {
	for _, marker := range containerMarkers {
		if _, err := os.Stat(marker); err == nil {
			return true
		}
	}

	data, err := os.ReadFile(cgroupFile)
	if err != nil {
		return false
	}
	content := string(data)
	return strings.Contains(content, "docker") ||
		strings.Contains(content, "containerd") ||
		strings.Contains(content, "kubepods")
}
