package api

import (
	"FlowSpectra/internal/report"
	"container/list"
	"sync"
)

// reportCache keeps the most recently used reports. Reports carry every
// packet sample of a capture, so only a few are held at once.
type reportCache struct {
	mu    sync.Mutex
	cap   int
	list  *list.List
	items map[string]*list.Element
}

type reportEntry struct {
	path string
	rep  *report.Report
}

func newReportCache(cap int) *reportCache {
	if cap < 1 {
		cap = 1
	}
	return &reportCache{
		cap:   cap,
		list:  list.New(),
		items: make(map[string]*list.Element, cap),
	}
}

func (c *reportCache) get(path string) (*report.Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[path]; ok {
		c.list.MoveToFront(e)
		return e.Value.(*reportEntry).rep, true
	}
	return nil, false
}

func (c *reportCache) add(path string, rep *report.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[path]; ok {
		e.Value.(*reportEntry).rep = rep
		c.list.MoveToFront(e)
		return
	}
	c.items[path] = c.list.PushFront(&reportEntry{path: path, rep: rep})
	if c.list.Len() > c.cap {
		oldest := c.list.Back()
		c.list.Remove(oldest)
		delete(c.items, oldest.Value.(*reportEntry).path)
	}
}

func (c *reportCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.Len()
}
