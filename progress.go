package pkgcache

import (
	"golang.org/x/time/rate"
)

// Progress reports how far a merge pass has come.
type Progress struct {
	File    string
	Records int
	Offset  uint64 // position in the source file
	Size    uint64 // size of the source file, 0 if unknown
	Done    bool
}

// Percent returns the share of the file consumed, or -1 if the size is unknown.
func (p Progress) Percent() float64 {
	if p.Done {
		return 100
	}
	if p.Size == 0 {
		return -1
	}
	return min(float64(p.Offset)/float64(p.Size)*100, 100)
}

// ProgressFunc receives merge progress. It runs on the merging goroutine.
type ProgressFunc func(Progress)

type progress struct {
	fn        ProgressFunc
	file      string
	size      uint64
	sometimes *rate.Sometimes
}

func newProgress(o options, file string, size uint64) *progress {
	p := &progress{fn: o.progress, file: file, size: size}
	if o.progressInterval > 0 {
		p.sometimes = &rate.Sometimes{First: 1, Interval: o.progressInterval}
	} else {
		p.sometimes = &rate.Sometimes{Every: 1}
	}
	return p
}

func (p *progress) step(records int, offset uint64) {
	if p.fn == nil {
		return
	}
	p.sometimes.Do(func() {
		p.fn(Progress{File: p.file, Records: records, Offset: offset, Size: p.size})
	})
}

func (p *progress) done(records int) {
	if p.fn == nil {
		return
	}
	p.fn(Progress{File: p.file, Records: records, Offset: p.size, Size: p.size, Done: true})
}
