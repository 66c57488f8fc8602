package snowflake

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_IDsStrictlyIncrease(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("ids from one generator strictly increase", prop.ForAll(
		func(node int64, count int) bool {
			g, err := NewGenerator(node)
			if err != nil {
				return false
			}
			var last int64
			for i := range count {
				id, err := g.NextID()
				if err != nil {
					return false
				}
				if i > 0 && id <= last {
					return false
				}
				if Node(id) != node {
					return false
				}
				last = id
			}
			return true
		},
		gen.Int64Range(0, MaxNode),
		gen.IntRange(100, 2000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_DistinctNodesNeverCollide(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("two nodes never produce the same id", prop.ForAll(
		func(a, b int64, count int) bool {
			if a == b {
				return true
			}
			ga, _ := NewGenerator(a)
			gb, _ := NewGenerator(b)
			seen := make(map[int64]bool, count*2)
			for range count {
				for _, id := range []int64{ga.MustNextID(), gb.MustNextID()} {
					if seen[id] {
						return false
					}
					seen[id] = true
				}
			}
			return true
		},
		gen.Int64Range(0, MaxNode),
		gen.Int64Range(0, MaxNode),
		gen.IntRange(50, 300),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
