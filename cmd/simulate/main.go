// Command simulate drives synthetic multi-node traffic against a shared
// globalstore/memstore backend and prints change-feed invalidation
// activity as each node's TieredCache observes it.
//
// Usage:
//
//	simulate --nodes=3 --keys=20 --duration=10 --rate=50
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	flashflags "github.com/agilira/flash-flags"

	"github.com/nearcache/tiercache"
	"github.com/nearcache/tiercache/globalstore/memstore"
)

func main() {
	fs := flashflags.New("simulate", "multi-node tiercache traffic simulator")
	nodes := fs.Int("nodes", 3, "number of simulated nodes, each with its own TieredCache and node id")
	keys := fs.Int("keys", 20, "size of the shared key space traffic is generated against")
	durationSeconds := fs.Int("duration", 10, "how long to generate traffic for, in seconds")
	rate := fs.Int("rate", 50, "operations per second, aggregate across all nodes")
	shards := fs.Int("shards", 4, "memstore shard count")

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "parsing flags:", err)
		os.Exit(1)
	}

	duration := time.Duration(*durationSeconds) * time.Second
	store := memstore.New(*shards)
	sim := newSimulation(store, *nodes, *keys)
	defer sim.close()

	fmt.Printf("simulating %d node(s), %d key(s), %d op/s, for %s\n", *nodes, *keys, *rate, duration)

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	sim.run(ctx, *rate)
	fmt.Println("done")
}

type simulation struct {
	caches []*tiercache.TieredCache
	keys   []string
}

func newSimulation(store *memstore.Store, nodeCount, keyCount int) *simulation {
	sim := &simulation{keys: make([]string, keyCount)}
	for i := range sim.keys {
		sim.keys[i] = fmt.Sprintf("key-%d", i)
	}

	for i := 0; i < nodeCount; i++ {
		nodeID := fmt.Sprintf("node-%d", i)
		cfg := tiercache.DefaultConfig()
		cfg.NodeID = nodeID
		cfg.ChangeFeed.CheckpointPath = ""
		cfg.ChangeFeed.PollIntervalMillis = 100

		cache, err := tiercache.New(cfg, memstore.NewClient(store, nodeID))
		if err != nil {
			fmt.Fprintln(os.Stderr, "starting cache for", nodeID, ":", err)
			os.Exit(1)
		}

		unregister := cache.RegisterChangeListener(func(key, kind string) {
			fmt.Printf("[%s] invalidated %s (%s)\n", nodeID, key, kind)
		})
		_ = unregister // torn down implicitly by cache.Close

		sim.caches = append(sim.caches, cache)
	}
	return sim
}

func (s *simulation) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, c := range s.caches {
		if err := c.Close(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "closing cache:", err)
		}
	}
}

func (s *simulation) run(ctx context.Context, ratePerSecond int) {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	interval := time.Second / time.Duration(ratePerSecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.step(ctx)
			}()
		}
	}
}

func (s *simulation) step(ctx context.Context) {
	cache := s.caches[rand.Intn(len(s.caches))]
	key := s.keys[rand.Intn(len(s.keys))]

	switch rand.Intn(10) {
	case 0, 1:
		if err := cache.Remove(ctx, key); err != nil {
			fmt.Fprintln(os.Stderr, "remove:", err)
		}
	case 2:
		value := fmt.Sprintf("v%d", rand.Intn(1000))
		if err := cache.Put(ctx, key, []byte(value)); err != nil {
			fmt.Fprintln(os.Stderr, "put:", err)
		}
	default:
		if _, _, err := cache.Get(ctx, key); err != nil {
			fmt.Fprintln(os.Stderr, "get:", err)
		}
		if rand.Intn(4) == 0 {
			value := fmt.Sprintf("v%d", rand.Intn(1000))
			if err := cache.Put(ctx, key, []byte(value)); err != nil {
				fmt.Fprintln(os.Stderr, "put:", err)
			}
		}
	}
}
