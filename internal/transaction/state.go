package transaction

import "sync/atomic"

// state implements the per-transaction state machine of spec §4.G:
//
//	Opening --open-ok--> Open --commit/rollback/close/io-err--> Closing --> Closed
//	   |                                                              ^
//	   +--open-err-------------------------------------------------→--+
//
// Transitions are CAS-based so concurrent callers racing to close a
// transaction (an explicit Close alongside a fatal stream error, say)
// agree on exactly one winner.
type state int32

const (
	stateOpening state = iota
	stateOpen
	stateClosing
	stateClosed
)

type stateBox struct {
	v atomic.Int32
}

func newStateBox() *stateBox {
	b := &stateBox{}
	b.v.Store(int32(stateOpening))
	return b
}

func (b *stateBox) load() state {
	return state(b.v.Load())
}

// transition moves from `from` to `to` iff the current state is `from`,
// returning whether it won the race.
func (b *stateBox) transition(from, to state) bool {
	return b.v.CompareAndSwap(int32(from), int32(to))
}

// forceTo moves unconditionally, used once the transition away from Open
// has already been decided (e.g. moving Closing -> Closed after drain).
func (b *stateBox) forceTo(to state) {
	b.v.Store(int32(to))
}

func (b *stateBox) isOpen() bool {
	return b.load() == stateOpen
}
