package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
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
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/pipeline"
	"github.com/MrEthical07/goAuthClient/session"
)

func main() {
	var (
		namespaces  = flag.Int("namespaces", 1000, "number of session namespaces to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "store operations")
		rounds      = flag.Int("rounds", 50, "refresh storm rounds")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "goauthclient-lt", "redis key prefix")
	)
	flag.Parse()

	if *namespaces <= 0 || *concurrency <= 0 || *ops <= 0 || *rounds <= 0 {
		fmt.Fprintln(os.Stderr, "namespaces, concurrency, ops and rounds must be > 0")
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
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	backend := session.NewRedisBackend(client, *prefix, 0)

	stores := make([]*session.Store, *namespaces)
	fmt.Printf("seeding %d sessions...\n", *namespaces)
	startSeed := time.Now()
	for i := range stores {
		stores[i] = session.NewStore(backend, fmt.Sprintf("lt%d", i), logger)
		stores[i].SaveAll(ctx, fmt.Sprintf("cred-%d", i), fmt.Sprintf("refresh-%d", i), &session.UserProfile{
			ID:       fmt.Sprintf("%d", i),
			Username: fmt.Sprintf("user%d", i),
		})
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	storeStats := runStorePhase(ctx, stores, *ops, *concurrency)
	stormStats, refreshes, err := runStormPhase(ctx, client, *prefix, logger, *rounds, *concurrency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "refresh storm failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("---- results ----")
	printStats("store", storeStats)
	printStats("storm", stormStats)
	fmt.Printf("storm: rounds=%d refresh calls=%d (want %d)\n", *rounds, refreshes, *rounds)
}

// runStorePhase mixes credential loads and rotations across namespaces.
func runStorePhase(ctx context.Context, stores []*session.Store, ops, concurrency int) phaseStats {
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
				store := stores[r.Intn(len(stores))]
				t0 := time.Now()
				if i%4 == 0 {
					store.SaveCredential(ctx, fmt.Sprintf("cred-%d-%d", worker, i))
				} else if _, ok := store.LoadCredential(ctx); !ok {
					atomic.AddInt64(&failures, 1)
				}
				d := time.Since(t0)
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

// runStormPhase revokes the credential each round and fires concurrency
// requests at once; every round should cost exactly one refresh.
func runStormPhase(ctx context.Context, client redis.UniversalClient, prefix string, logger *slog.Logger, rounds, concurrency int) (phaseStats, int64, error) {
	api := newStubAPI()
	defer api.Close()

	cfg := goAuthClient.DefaultConfig()
	cfg.API.BaseURL = api.URL()
	cfg.Storage.Backend = "redis"
	cfg.Storage.RedisPrefix = prefix
	cfg.Storage.Namespace = "storm"
	cfg.Metrics.EnableLatencyHistograms = true

	m, err := goAuthClient.New().WithConfig(cfg).WithRedis(client).WithLogger(logger).BuildContext(ctx)
	if err != nil {
		return phaseStats{}, 0, err
	}
	defer m.Close()

	if _, err := m.Login(ctx, "load", "test"); err != nil {
		return phaseStats{}, 0, err
	}
	p := pipeline.New(m)

	var (
		failures  int64
		latencies = make([]time.Duration, 0, rounds*concurrency)
		mu        sync.Mutex
	)
	start := time.Now()
	for round := 0; round < rounds; round++ {
		api.revoke()
		g, gctx := errgroup.WithContext(ctx)
		for w := 0; w < concurrency; w++ {
			g.Go(func() error {
				t0 := time.Now()
				resp, err := p.Fetch(gctx, http.MethodGet, api.URL()+"/resource", nil)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				} else {
					if resp.StatusCode != http.StatusOK {
						atomic.AddInt64(&failures, 1)
					}
					_ = resp.Body.Close()
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}
	return computeStats(time.Since(start), latencies, failures), api.refreshCalls.Load(), nil
}

// stubAPI issues short HS256 credentials and accepts only the newest one on
// /resource.
type stubAPI struct {
	srv          *httptest.Server
	refreshCalls atomic.Int64

	mu      sync.Mutex
	serial  int
	valid   string
	refresh string
}

func newStubAPI() *stubAPI {
	a := &stubAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.writeTokensLocked(w)
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		a.refreshCalls.Add(1)
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		a.mu.Lock()
		defer a.mu.Unlock()
		if body.RefreshToken != a.refresh {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		a.writeTokensLocked(w)
	})
	mux.HandleFunc("/resource", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		valid := a.valid
		a.mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer "+valid {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	a.srv = httptest.NewServer(mux)
	return a
}

func (a *stubAPI) URL() string { return a.srv.URL }

func (a *stubAPI) Close() { a.srv.Close() }

func (a *stubAPI) revoke() {
	a.mu.Lock()
	a.valid = "revoked"
	a.mu.Unlock()
}

func (a *stubAPI) writeTokensLocked(w http.ResponseWriter) {
	a.serial++
	token, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims{
		"sub":      "1",
		"username": "load",
		"jti":      fmt.Sprintf("t%d", a.serial),
		"exp":      time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("loadtest"))
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	a.valid = token
	a.refresh = fmt.Sprintf("r%d", a.serial)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"token":        token,
		"refreshToken": a.refresh,
		"user":         map[string]string{"id": "1", "username": "load"},
	})
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
