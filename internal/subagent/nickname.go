package subagent

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
)

// names is a fixed pool of human-friendly nicknames assigned to spawned
// handles, mirroring internal/task.Manager's short random id generation
// but biased toward readability for the parent's status display.
var names = []string{
	"Atlas", "Birch", "Cedar", "Delta", "Ember", "Fern", "Garnet", "Hazel",
	"Iris", "Juno", "Kite", "Lumen", "Maple", "Nimbus", "Onyx", "Pine",
	"Quartz", "Reef", "Sage", "Talon", "Umber", "Vesper", "Willow", "Xenon",
	"Yarrow", "Zephyr",
}

// pool hands out nicknames picked at random from names. A name that was
// already handed out gets a numbered suffix ("Cedar-2"), even while other
// names are still unused.
type pool struct {
	mu   sync.Mutex
	used map[string]int
}

func newPool() *pool {
	return &pool{used: make(map[string]int)}
}

func (p *pool) take() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	base := names[randIndex(len(names))]
	n := p.used[base]
	p.used[base] = n + 1
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, n+1)
}

func randIndex(n int) int {
	i, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(i.Int64())
}
