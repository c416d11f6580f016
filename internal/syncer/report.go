package syncer

import (
	"sort"
	"sync"
)

// Step 为一个同步步骤的统计。
type Step struct {
	Name     string
	Upserted int
	Changed  int
	Removed  int
	Purged   bool
	Err      error
}

// Report 收集一轮同步中各步骤的统计，按步骤名覆盖。
type Report struct {
	mu    sync.Mutex
	steps map[string]Step
}

func NewReport() *Report {
	return &Report{steps: make(map[string]Step)}
}

func (r *Report) Add(s Step) {
	if s.Name == "" {
		return
	}
	r.mu.Lock()
	r.steps[s.Name] = s
	r.mu.Unlock()
}

// Failed 返回出错的步骤数。
func (r *Report) Failed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.steps {
		if s.Err != nil {
			n++
		}
	}
	return n
}

// Snapshot 返回按步骤名排序的副本。
func (r *Report) Snapshot() []Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Step, 0, len(r.steps))
	for _, v := range r.steps {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
