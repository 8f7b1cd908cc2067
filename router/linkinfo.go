package router

import (
	"github.com/montanaflynn/stats"
)

// linkInfo tracks one neighbor link. helloState is a three-strike
// liveness counter; zero means the link is down. Cost samples
// accumulate in costSamples and are reduced to count/min/max/mean on
// demand via montanaflynn/stats.
type linkInfo struct {
	peerIP     uint32
	cost       float64 // smoothed cost, in seconds
	gotReply   bool
	helloState int

	costSamples []float64
}

func newLinkInfo(peerIP uint32, initialCost float64) *linkInfo {
	return &linkInfo{
		peerIP:     peerIP,
		cost:       initialCost,
		gotReply:   true,
		helloState: 3,
	}
}

// recordSample folds a new RTT/2 measurement into the smoothed cost
// and appends it to the running sample set.
func (l *linkInfo) recordSample(c float64) {
	const alpha = 0.1
	l.cost = (1-alpha)*l.cost + alpha*c
	l.costSamples = append(l.costSamples, c)
	l.gotReply = true
	l.helloState = 3
}

// linkStats summarizes a link's cost sample history.
type linkStats struct {
	Count   int
	Average float64
	Min     float64
	Max     float64
}

func (l *linkInfo) stats() linkStats {
	if len(l.costSamples) == 0 {
		return linkStats{}
	}
	avg, _ := stats.Mean(l.costSamples)
	min, _ := stats.Min(l.costSamples)
	max, _ := stats.Max(l.costSamples)
	return linkStats{
		Count:   len(l.costSamples),
		Average: avg,
		Min:     min,
		Max:     max,
	}
}

// down reports whether the link is currently considered disabled,
// i.e. the three-strike hello counter has reached zero.
func (l *linkInfo) down() bool {
	return l.helloState == 0
}
