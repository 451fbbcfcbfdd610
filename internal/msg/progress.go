package msg

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ProgressBar renders the planner's dispatch progress: how many of the
// outstanding built files have completed their action this run. Adapted
// from a byte-oriented download progress bar into a unit-count one driven
// by explicit Step() calls from the scheduler instead of io.Writer bytes.
type ProgressBar struct {
	Total      int64
	Current    int64
	Indent     int
	Start      time.Time
	W          io.Writer
	lastPrint  time.Time
	throbIndex int
}

var throbbers = []rune{'|', '/', '-', '\\'}

func NewProgressBar(total int64, indent int, w io.Writer) *ProgressBar {
	return &ProgressBar{
		Total:     total,
		Indent:    indent,
		Start:     time.Now(),
		W:         w,
		lastPrint: time.Now(),
	}
}

// Step advances the counter by n completed units and redraws if the
// preceding redraw was more than 40ms ago, to avoid flooding a non-tty.
func (pb *ProgressBar) Step(n int64) {
	pb.Current += n
	if time.Since(pb.lastPrint) > 40*time.Millisecond {
		pb.print(false)
		pb.lastPrint = time.Now()
	}
}

func (pb *ProgressBar) print(finish bool) {
	width := 40
	percent := float64(pb.Current) / float64(max(pb.Total, 1))
	if finish {
		percent = 1
	}

	filled := min(int(percent*float64(width)), width)
	bar := strings.Repeat("█", filled) + strings.Repeat("-", width-filled)

	throb := throbbers[pb.throbIndex%len(throbbers)]
	pb.throbIndex++
	if finish {
		throb = ' '
	}

	fmt.Fprintf(pb.W, "\r%s%6.f%% [%s] %c (%d/%d actions)",
		strings.Repeat(" ", pb.Indent),
		percent*100,
		bar,
		throb,
		pb.Current, pb.Total,
	)
}

func (pb *ProgressBar) Finish() {
	pb.print(true)
	fmt.Fprintln(pb.W)
}
