package progress

import (
	"io"

	"github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
)

// NewPool returns an mpb container rendering to w.
func NewPool(w io.Writer) *mpb.Progress {
	return mpb.New(mpb.WithOutput(w), mpb.WithWidth(40))
}

// CreatePercentBar adds a bar that tracks a 0-100 percentage.
func CreatePercentBar(pool *mpb.Progress, name string, complete string) PercentBar {
	bar := pool.AddBar(100,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DidentRight}),
		),
		mpb.AppendDecorators(
			decor.OnComplete(decor.Percentage(decor.WC{W: 5}), complete),
		),
	)
	return PercentBar{bar: bar}
}

type PercentBar struct {
	bar *mpb.Bar
}

func (p PercentBar) Set(percent int) {
	p.bar.SetCurrent(int64(percent))
}

func (p PercentBar) Complete() {
	p.bar.SetCurrent(100)
}

// Close aborts an unfinished bar, leaving it on screen.
func (p PercentBar) Close() {
	if !p.bar.Completed() {
		p.bar.Abort(false)
	}
}
