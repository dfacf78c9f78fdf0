package updater

import (
	"context"
	"sync"
)

// fakeSource 可编程的发布源
type fakeSource struct {
	mu       sync.Mutex
	infos    []*UpdateInfo
	errs     []error
	queries  int
	ticks    []Progress
	fetchErr error
	fetches  int
	release  chan struct{}
}

func newFakeSource(version string) *fakeSource {
	return &fakeSource{infos: []*UpdateInfo{{Version: version, ReleaseNotes: "notes " + version}}}
}

// QueryLatest 按调用次数依次返回 infos / errs，超出范围时沿用最后一个
func (s *fakeSource) QueryLatest(ctx context.Context) (*UpdateInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.queries
	s.queries++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if len(s.infos) == 0 {
		return nil, nil
	}
	if i >= len(s.infos) {
		i = len(s.infos) - 1
	}
	info := *s.infos[i]
	return &info, nil
}

func (s *fakeSource) FetchPackage(ctx context.Context, onProgress func(Progress)) (*Package, error) {
	s.mu.Lock()
	s.fetches++
	ticks := append([]Progress(nil), s.ticks...)
	fetchErr := s.fetchErr
	release := s.release
	s.mu.Unlock()

	for _, p := range ticks {
		onProgress(p)
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	return &Package{Name: "dupdate_linux_x86_64.tar.gz", Data: []byte("binary")}, nil
}

func (s *fakeSource) counts() (queries, fetches int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries, s.fetches
}

type installCall struct {
	pkg      *Package
	silent   bool
	relaunch bool
}

type fakeInstaller struct {
	mu    sync.Mutex
	err   error
	calls []installCall
}

func (i *fakeInstaller) Install(ctx context.Context, pkg *Package, silent, relaunch bool) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls = append(i.calls, installCall{pkg: pkg, silent: silent, relaunch: relaunch})
	return i.err
}

// recorder 记录收到的事件
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) types() []EventType {
	var types []EventType
	for _, e := range r.all() {
		types = append(types, e.Type)
	}
	return types
}

func (r *recorder) ofType(t EventType) []Event {
	var out []Event
	for _, e := range r.all() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
