package updater

import "time"

// Phase 更新生命周期所处的阶段
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseChecking       Phase = "checking"
	PhaseAvailable      Phase = "available"
	PhaseDownloading    Phase = "downloading"
	PhaseDownloaded     Phase = "downloaded"
	PhaseInstallPending Phase = "install-pending"
	PhaseError          Phase = "error"
)

// Valid 判断阶段是否为已定义的七种之一
func (p Phase) Valid() bool {
	switch p {
	case PhaseIdle, PhaseChecking, PhaseAvailable, PhaseDownloading,
		PhaseDownloaded, PhaseInstallPending, PhaseError:
		return true
	}
	return false
}

// UpdateInfo 发布源返回的新版本信息
type UpdateInfo struct {
	Version      string    `json:"version"`
	ReleaseNotes string    `json:"releaseNotes"`
	ReleaseDate  time.Time `json:"releaseDate"`
}

// Progress 下载进度，每次回调整体替换
type Progress struct {
	Percent        float64 `json:"percent"`
	BytesPerSecond int64   `json:"bytesPerSecond"`
	Transferred    int64   `json:"transferred"`
	Total          int64   `json:"total"`
}

// ErrorInfo 最近一次失败的描述
type ErrorInfo struct {
	Message string `json:"message"`
	Cause   string `json:"cause"`
}

// Package 已下载的更新包
type Package struct {
	Name string
	Data []byte
}

// state 更新状态，只由 Controller 持有并在锁内修改
type state struct {
	phase          Phase
	currentVersion string
	pendingInfo    *UpdateInfo
	progress       *Progress
	lastError      *ErrorInfo
	pkg            *Package
}

// Snapshot 对外暴露的状态副本
type Snapshot struct {
	Phase          Phase       `json:"phase"`
	CurrentVersion string      `json:"currentVersion"`
	PendingInfo    *UpdateInfo `json:"pendingInfo,omitempty"`
	Progress       *Progress   `json:"progress,omitempty"`
	LastError      *ErrorInfo  `json:"lastError,omitempty"`
}

func (s *state) snapshot() Snapshot {
	snap := Snapshot{
		Phase:          s.phase,
		CurrentVersion: s.currentVersion,
	}
	if s.pendingInfo != nil {
		info := *s.pendingInfo
		snap.PendingInfo = &info
	}
	if s.progress != nil {
		p := *s.progress
		snap.Progress = &p
	}
	if s.lastError != nil {
		e := *s.lastError
		snap.LastError = &e
	}
	return snap
}

func (s *state) pendingCopy() *UpdateInfo {
	if s.pendingInfo == nil {
		return nil
	}
	info := *s.pendingInfo
	return &info
}
