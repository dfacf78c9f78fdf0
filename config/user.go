package config

// User 登录用户
type User struct {
	Username string
	Password string
}

// Settings 全局设置
type Settings struct {
	// Port 监听端口，为空时使用 -l 参数
	Port string
	// NotAllowWanAccess 禁止公网访问 Web 界面
	NotAllowWanAccess bool `json:"not_allow_wan_access"`
	// LogLevel logrus 日志级别
	LogLevel string `yaml:"log_level,omitempty" json:"log_level"`
	// LogFile 日志文件，为空或 console 时输出到终端
	LogFile string `yaml:"log_file,omitempty" json:"log_file"`
}
