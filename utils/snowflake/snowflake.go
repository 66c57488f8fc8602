// Package snowflake generates time-ordered 63-bit ids for every Rally row.
//
// Layout: 41 bits of milliseconds since Epoch, 10 bits of node id and
// 12 bits of per-millisecond sequence.
package snowflake

import (
	"errors"
	"sync"
	"time"
)

const (
	// Epoch is 2025-01-01 00:00:00 UTC in milliseconds.
	Epoch int64 = 1735689600000

	NodeBits     = 10
	SequenceBits = 12

	MaxNode      = -1 ^ (-1 << NodeBits)
	sequenceMask = -1 ^ (-1 << SequenceBits)
	nodeShift    = SequenceBits
	timeShift    = SequenceBits + NodeBits

	// maxBackwardDrift is how far the clock may step back before NextID gives up.
	maxBackwardDrift = 5 * time.Millisecond
)

var (
	ErrInvalidNode         = errors.New("snowflake: node id out of range")
	ErrClockMovedBackwards = errors.New("snowflake: clock moved backwards")
)

// Generator is safe for concurrent use.
type Generator struct {
	mu       sync.Mutex
	node     int64
	sequence int64
	lastMS   int64
	now      func() int64
}

func NewGenerator(node int64) (*Generator, error) {
	if node < 0 || node > MaxNode {
		return nil, ErrInvalidNode
	}
	return &Generator{
		node: node,
		now:  func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// NextID returns the next id. A small backwards clock step is waited out;
// a larger one is reported as ErrClockMovedBackwards.
func (g *Generator) NextID() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now()
	if ms < g.lastMS {
		if time.Duration(g.lastMS-ms)*time.Millisecond > maxBackwardDrift {
			return 0, ErrClockMovedBackwards
		}
		ms = g.waitUntil(g.lastMS)
	}

	if ms == g.lastMS {
		g.sequence = (g.sequence + 1) & sequenceMask
		if g.sequence == 0 {
			ms = g.waitUntil(g.lastMS + 1)
		}
	} else {
		g.sequence = 0
	}
	g.lastMS = ms

	return (ms-Epoch)<<timeShift | g.node<<nodeShift | g.sequence, nil
}

// MustNextID is NextID for callers that treat clock failure as fatal.
func (g *Generator) MustNextID() int64 {
	id, err := g.NextID()
	if err != nil {
		panic(err)
	}
	return id
}

func (g *Generator) waitUntil(target int64) int64 {
	ms := g.now()
	for ms < target {
		time.Sleep(100 * time.Microsecond)
		ms = g.now()
	}
	return ms
}

// Time returns the creation time encoded in id.
func Time(id int64) time.Time {
	return time.UnixMilli((id >> timeShift) + Epoch).UTC()
}

// Node returns the node id encoded in id.
func Node(id int64) int64 {
	return (id >> nodeShift) & MaxNode
}
