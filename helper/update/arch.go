package update

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strconv"
)

const (
	minARM = 5
	maxARM = 7
)

// goarm 编译时的 GOARM，仅 arm 架构有效
var goarm = readGOARM()

func readGOARM() int {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return maxARM
	}
	for _, s := range info.Settings {
		if s.Key != "GOARM" || s.Value == "" {
			continue
		}
		// 可能带有 ,softfloat 之类的后缀
		if v, err := strconv.Atoi(s.Value[:1]); err == nil {
			return v
		}
	}
	return maxARM
}

// 生成额外的架构，按优先级排列，最后一个总是 runtime.GOARCH
func generateAdditionalArch() []string {
	arch := make([]string, 0, 4)

	switch runtime.GOARCH {
	case "arm":
		if goarm >= minARM && goarm <= maxARM {
			for v := goarm; v >= minARM; v-- {
				arch = append(arch, fmt.Sprintf("armv%d", v))
			}
		}
	case "amd64":
		arch = append(arch, "x86_64")
	case "386":
		arch = append(arch, "i386")
	case "arm64":
		arch = append(arch, "aarch64")
	}

	arch = append(arch, runtime.GOARCH)
	return arch
}
