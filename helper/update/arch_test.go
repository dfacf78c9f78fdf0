package update

import (
	"runtime"
	"strings"
	"testing"
)

func TestGenerateAdditionalArch(t *testing.T) {
	arch := generateAdditionalArch()

	if len(arch) == 0 {
		t.Fatal("generateAdditionalArch() 返回空列表")
	}

	// 最后一个元素总是 runtime.GOARCH
	if arch[len(arch)-1] != runtime.GOARCH {
		t.Errorf("最后一个架构应该是 %s，实际是 %s", runtime.GOARCH, arch[len(arch)-1])
	}

	aliases := map[string]string{
		"amd64": "x86_64",
		"386":   "i386",
		"arm64": "aarch64",
	}

	switch runtime.GOARCH {
	case "amd64", "386", "arm64":
		if len(arch) != 2 {
			t.Errorf("%s 应该返回 2 个架构，实际返回 %d 个", runtime.GOARCH, len(arch))
		}
		if arch[0] != aliases[runtime.GOARCH] {
			t.Errorf("%s 的第一个架构应该是 %s，实际是 %s", runtime.GOARCH, aliases[runtime.GOARCH], arch[0])
		}
	case "arm":
		for _, a := range arch[:len(arch)-1] {
			if !strings.HasPrefix(a, "armv") {
				t.Errorf("arm 架构的变体应以 armv 开头，实际是 %s", a)
			}
		}
	default:
		if len(arch) != 1 {
			t.Errorf("架构 %s 应该只返回 1 个架构，实际返回 %d 个", runtime.GOARCH, len(arch))
		}
	}
}

func TestGenerateAdditionalArch_NoDuplicates(t *testing.T) {
	seen := make(map[string]bool)
	for i, a := range generateAdditionalArch() {
		if a == "" {
			t.Errorf("位置 %d 的架构不应该为空字符串", i)
		}
		if seen[a] {
			t.Errorf("发现重复的架构: %s", a)
		}
		seen[a] = true
	}
}

func TestReadGOARM(t *testing.T) {
	v := readGOARM()
	if runtime.GOARCH != "arm" {
		return
	}
	if v < minARM || v > maxARM {
		t.Errorf("readGOARM() = %d，超出 %d-%d 范围", v, minARM, maxARM)
	}
}
