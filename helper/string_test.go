package helper

import (
	"reflect"
	"testing"
)

// TestSplitLines 测试字符串按行分割
func TestSplitLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "Unix 风格换行符 (LF)",
			input: "line1\nline2\nline3",
			want:  []string{"line1", "line2", "line3"},
		},
		{
			name:  "Windows 风格换行符 (CRLF)",
			input: "line1\r\nline2\r\nline3",
			want:  []string{"line1", "line2", "line3"},
		},
		{
			name:  "单行文本无换行符",
			input: "single line",
			want:  []string{"single line"},
		},
		{
			name:  "空字符串",
			input: "",
			want:  []string{""},
		},
		{
			name:  "只有换行符 (LF)",
			input: "\n",
			want:  []string{"", ""},
		},
		{
			name:  "只有换行符 (CRLF)",
			input: "\r\n",
			want:  []string{"", ""},
		},
		{
			name:  "多个连续换行符 (LF)",
			input: "line1\n\n\nline2",
			want:  []string{"line1", "", "", "line2"},
		},
		{
			name:  "多个连续换行符 (CRLF)",
			input: "line1\r\n\r\n\r\nline2",
			want:  []string{"line1", "", "", "line2"},
		},
		{
			name:  "末尾有换行符 (LF)",
			input: "line1\nline2\n",
			want:  []string{"line1", "line2", ""},
		},
		{
			name:  "末尾有换行符 (CRLF)",
			input: "line1\r\nline2\r\n",
			want:  []string{"line1", "line2", ""},
		},
		{
			name:  "开头有换行符 (LF)",
			input: "\nline1\nline2",
			want:  []string{"", "line1", "line2"},
		},
		{
			name:  "开头有换行符 (CRLF)",
			input: "\r\nline1\r\nline2",
			want:  []string{"", "line1", "line2"},
		},
		{
			name:  "包含空格和制表符",
			input: "  line1  \n\tline2\t\nline3",
			want:  []string{"  line1  ", "\tline2\t", "line3"},
		},
		{
			name:  "包含特殊字符",
			input: "Hello, 世界!\nこんにちは\n안녕하세요",
			want:  []string{"Hello, 世界!", "こんにちは", "안녕하세요"},
		},
		{
			name:  "混合 CRLF 优先",
			input: "line1\r\nline2\nline3",
			want:  []string{"line1", "line2\nline3"},
		},
		{
			name:  "长文本 (LF)",
			input: "This is line 1\nThis is line 2\nThis is line 3\nThis is line 4\nThis is line 5",
			want:  []string{"This is line 1", "This is line 2", "This is line 3", "This is line 4", "This is line 5"},
		},
		{
			name:  "长文本 (CRLF)",
			input: "This is line 1\r\nThis is line 2\r\nThis is line 3\r\nThis is line 4\r\nThis is line 5",
			want:  []string{"This is line 1", "This is line 2", "This is line 3", "This is line 4", "This is line 5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitLines(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitLines() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestNonEmptyLines 测试去除空行
func TestNonEmptyLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "空字符串", input: "", want: []string{}},
		{name: "只有空白", input: " \n\t\r\n", want: []string{}},
		{name: "请求头", input: "Authorization: Bearer x\n\nContent-Type: text/plain\n", want: []string{"Authorization: Bearer x", "Content-Type: text/plain"}},
		{name: "CRLF 且带缩进", input: "  a  \r\n\r\n b", want: []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NonEmptyLines(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NonEmptyLines() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestTruncate 测试按字符截断
func TestTruncate(t *testing.T) {
	tests := []struct {
		input string
		max   int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 5, "hello..."},
		{"更新日志内容", 2, "更新..."},
		{"abc", 0, "abc"},
	}

	for _, tt := range tests {
		if got := Truncate(tt.input, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
		}
	}
}
