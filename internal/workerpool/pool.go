// Package workerpool runs short callbacks on a small fixed set of
// goroutines instead of spawning a fresh one per call. The health loop
// (spec.md §4.6) uses it to report each completed PING's latency to
// Metrics without growing a new goroutine every PingInterval.
package workerpool

import "sync/atomic"

const shardN = 16
const capa = 256

var shardn uint32
var chans []chan func()

func init() {
	chans = make([]chan func(), shardN)
	for i := range chans {
		ch := make(chan func(), capa)
		chans[i] = ch
		go worker(ch)
	}
}

func worker(ch chan func()) {
	for f := range ch {
		f()
	}
}

// Go runs f on one of the pool's workers. If that worker's queue is full,
// f runs inline on the caller's goroutine rather than blocking: callbacks
// must never stall the goroutine that submits them.
func Go(f func()) {
	i := atomic.AddUint32(&shardn, 1)
	select {
	case chans[i%shardN] <- f:
	default:
		f()
	}
}
