package helper

import "strings"

// SplitLines 按 '\r\n' 或 '\n' 分割字符串，包含 '\r\n' 时优先按 '\r\n' 分割
func SplitLines(s string) []string {
	if strings.Contains(s, "\r\n") {
		return strings.Split(s, "\r\n")
	}

	return strings.Split(s, "\n")
}

// NonEmptyLines 分割后去掉首尾空白，并丢弃空行
func NonEmptyLines(s string) []string {
	lines := make([]string, 0)
	for _, line := range SplitLines(s) {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Truncate 截断过长的文本，按字符而非字节计算
func Truncate(s string, max int) string {
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
