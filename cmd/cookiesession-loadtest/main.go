package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	cookiesession "github.com/fairmanager/fm-cookie-session"
	"github.com/fairmanager/fm-cookie-session/internal/envconfig"
	"github.com/fairmanager/fm-cookie-session/keyring"
	"github.com/redis/go-redis/v9"
)

type clientState struct {
	jar []*http.Cookie
	mu  sync.Mutex
}

func main() {
	var (
		clients     = flag.Int("clients", 10000, "number of cookie jars to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (read + update)")
		payload     = flag.Int("payload", 16, "number of keys per session")
	)
	flag.Parse()

	if *clients <= 0 || *concurrency <= 0 || *ops <= 0 || *payload <= 0 {
		fmt.Fprintln(os.Stderr, "clients, concurrency, ops, and payload must be > 0")
		os.Exit(2)
	}

	env, err := envconfig.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "env: %v\n", err)
		os.Exit(2)
	}
	cfg, err := env.Config()
	if err != nil {
		fmt.Fprintf(os.Stderr, "env: %v\n", err)
		os.Exit(2)
	}
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	ctx := context.Background()
	builder := cookiesession.New().
		WithConfig(cfg).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	if cfg.Signing.Signed && len(cfg.Signing.Keys) == 0 {
		src, cleanup, err := redisKeys(ctx, env.RedisAddr, env.RedisPrefix)
		if err != nil {
			fmt.Fprintf(os.Stderr, "key ring: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		builder = builder.WithKeySource(src)
	}

	engine, err := builder.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	states := make([]clientState, *clients)
	fmt.Printf("seeding %d sessions (%s, signed=%t)...\n", *clients, cfg.Signing.Format, cfg.Signing.Signed)
	startSeed := time.Now()
	for i := range states {
		jar, _ := roundTrip(engine, nil, func(b *cookiesession.Binding) {
			s := b.Session()
			for k := 0; k < *payload; k++ {
				s.Set(fmt.Sprintf("k%02d", k), i*k)
			}
		})
		if len(jar) == 0 {
			fmt.Fprintln(os.Stderr, "seed produced no cookie")
			os.Exit(1)
		}
		states[i].jar = jar
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	readStats := runPhase(states, *ops, *concurrency, 7919, func(st *clientState, _ int) bool {
		st.mu.Lock()
		jar := st.jar
		st.mu.Unlock()
		_, ok := roundTrip(engine, jar, func(b *cookiesession.Binding) {
			_ = b.Session().GetString("k00")
		})
		return ok
	})
	updateStats := runPhase(states, *ops, *concurrency, 6151, func(st *clientState, i int) bool {
		st.mu.Lock()
		defer st.mu.Unlock()
		next, ok := roundTrip(engine, st.jar, func(b *cookiesession.Binding) {
			b.Session().Set("counter", i)
		})
		if ok && len(next) > 0 {
			st.jar = next
		}
		return ok
	})

	fmt.Println("---- results ----")
	printStats("read", readStats)
	printStats("update", updateStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("loaded=%d created=%d written=%d skipped=%d failures=%d\n",
		snap.Counters[cookiesession.MetricSessionLoaded],
		snap.Counters[cookiesession.MetricSessionCreated],
		snap.Counters[cookiesession.MetricCookieWritten],
		snap.Counters[cookiesession.MetricCookieSkipped],
		snap.Counters[cookiesession.MetricCookieWriteFailure],
	)
}

func redisKeys(ctx context.Context, addr, prefix string) (keyring.Source, func(), error) {
	var mr *miniredis.Miniredis
	if addr == "" {
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			return nil, nil, err
		}
		addr = mr.Addr()
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		fmt.Printf("using redis at %s\n", addr)
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	cleanup := func() {
		_ = client.Close()
		if mr != nil {
			mr.Close()
		}
	}

	src := keyring.NewRedisSource(client, prefix)
	k, err := keyring.Generate()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if err := src.Rotate(ctx, k, keyring.DefaultRingSize); err != nil {
		cleanup()
		return nil, nil, err
	}
	return src, cleanup, nil
}

// roundTrip runs one in-process request. ok is false when the request
// cookies did not yield a loaded session.
func roundTrip(engine *cookiesession.Engine, jar []*http.Cookie, handle func(*cookiesession.Binding)) ([]*http.Cookie, bool) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range jar {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	b := engine.Bind(rec, req)
	handle(b)
	ok := len(jar) == 0 || !b.Session().IsNew()
	b.Commit()
	return rec.Result().Cookies(), ok
}

func runPhase(states []clientState, ops, concurrency int, seed int64, op func(*clientState, int) bool) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				st := &states[r.Intn(len(states))]
				t0 := time.Now()
				ok := op(st, i)
				d := time.Since(t0)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
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
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
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
