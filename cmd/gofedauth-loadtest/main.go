package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	goFedAuth "github.com/MrEthical07/goFedAuth"
	"github.com/MrEthical07/goFedAuth/user"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type account struct {
	email   string
	access  string
	refresh string
	mu      sync.Mutex
}

const loadPassword = "loadtest-password"

func main() {
	var (
		users       = flag.Int("users", 2000, "number of accounts to register")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "gfa-load", "redis key prefix")
		gate        = flag.Bool("cache-gate", false, "gate validation on the access token cache")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := goFedAuth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(strings.Repeat("L", 32))
	cfg.Storage.RedisPrefix = *prefix
	cfg.AccessCache.GateValidation = *gate
	cfg.AccessCache.Capacity = *users
	// Cheap hashing keeps the run about token and store throughput.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := goFedAuth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserRepository(user.NewMemoryRepository()).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	accounts := make([]account, *users)
	fmt.Printf("registering %d accounts...\n", *users)
	startSeed := time.Now()
	for i := range accounts {
		email := fmt.Sprintf("load-%d@example.com", i)
		resp, err := engine.Register(ctx, goFedAuth.RegisterRequest{Email: email, Password: loadPassword})
		if err != nil {
			fmt.Fprintf(os.Stderr, "register failed: %v\n", err)
			os.Exit(1)
		}
		accounts[i] = account{email: email, access: resp.AccessToken, refresh: resp.RefreshToken}
	}
	fmt.Printf("registered in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runPhase(*ops, *concurrency, accounts, func(a *account) error {
		a.mu.Lock()
		token := a.access
		a.mu.Unlock()
		_, err := engine.ValidateAccess(ctx, token)
		return err
	})
	refreshStats := runPhase(*ops, *concurrency, accounts, func(a *account) error {
		a.mu.Lock()
		defer a.mu.Unlock()
		resp, err := engine.Refresh(ctx, a.refresh)
		if err == nil {
			a.access = resp.AccessToken
		}
		return err
	})
	loginStats := runPhase(*ops/10+1, *concurrency, accounts, func(a *account) error {
		resp, err := engine.Authenticate(ctx, a.email, loadPassword)
		if err != nil {
			return err
		}
		a.mu.Lock()
		a.access, a.refresh = resp.AccessToken, resp.RefreshToken
		a.mu.Unlock()
		return nil
	})

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("refresh", refreshStats)
	printStats("login", loginStats)
	snapshot := engine.MetricsSnapshot()
	fmt.Printf("metrics: login_success=%d refresh_success=%d refresh_failure=%d cache_evictions=%d\n",
		snapshot.Counters[goFedAuth.MetricLoginSuccess],
		snapshot.Counters[goFedAuth.MetricRefreshSuccess],
		snapshot.Counters[goFedAuth.MetricRefreshFailure],
		snapshot.Counters[goFedAuth.MetricAccessCacheEviction],
	)
}

// runPhase spreads ops calls of fn over concurrency workers picking random
// accounts.
func runPhase(ops, concurrency int, accounts []account, fn func(*account) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				a := &accounts[r.Intn(len(accounts))]
				t0 := time.Now()
				err := fn(a)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
