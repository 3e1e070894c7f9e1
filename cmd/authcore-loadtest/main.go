package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	mrand "math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/metrics/export/prometheus"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type account struct {
	email string
	token string
}

func main() {
	var (
		users       = flag.Int("users", 200, "number of accounts to sign up")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "token validations to run")
		logins      = flag.Int("logins", 400, "password logins to run")
		backend     = flag.String("backend", "memory", "store backend: memory, redis or mysql")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, AUTHCORE_REDIS_ADDR or miniredis is used")
		dsn         = flag.String("dsn", "", "mysql DSN; if empty, AUTHCORE_DATABASE_DSN is used")
		configPath  = flag.String("config", "", "YAML config file; if empty, a throwaway hs256 config is used")
		audit       = flag.Bool("audit", false, "log audit events")
		dumpMetrics = flag.Bool("metrics", false, "print Prometheus metrics after the run")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 || *logins < 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	b := authcore.New().WithConfig(cfg).WithLatencyHistograms(true)
	if *audit {
		b.WithAuditSink(authcore.NewLoggerSink(log.New(os.Stderr, "", log.LstdFlags)))
	}

	cleanup, err := wireBackend(ctx, b, *backend, *redisAddr, *dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backend: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	engine, err := b.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	run := hex.EncodeToString(randomBytes(4))
	accounts := make([]account, *users)
	fmt.Printf("signing up %d accounts...\n", *users)
	startSeed := time.Now()
	for i := range accounts {
		email := fmt.Sprintf("user%d-%s@loadtest.example", i, run)
		if _, err := engine.Signup(ctx, email, "loadtest-password", false); err != nil {
			fmt.Fprintf(os.Stderr, "signup failed: %v\n", err)
			os.Exit(1)
		}
		res, err := engine.Login(ctx, email, "loadtest-password")
		if err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
			os.Exit(1)
		}
		accounts[i] = account{email: email, token: res.Token}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	loginStats := runPhase(*logins, *concurrency, func(r *mrand.Rand) error {
		a := accounts[r.Intn(len(accounts))]
		_, err := engine.Login(ctx, a.email, "loadtest-password")
		return err
	})
	validateStats := runPhase(*ops, *concurrency, func(r *mrand.Rand) error {
		_, err := engine.VerifyToken(ctx, accounts[r.Intn(len(accounts))].token)
		return err
	})

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("validate", validateStats)

	if *dumpMetrics {
		fmt.Println("---- metrics ----")
		_, _ = prometheus.NewPrometheusExporter(engine).WriteTo(os.Stdout)
	}
}

func loadConfig(path string) (authcore.Config, error) {
	if path != "" {
		return authcore.LoadConfigFile(path)
	}
	cfg := authcore.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = randomBytes(32)
	cfg.JWT.TokenTTL = time.Hour
	return cfg, nil
}

func wireBackend(ctx context.Context, b *authcore.Builder, backend, redisAddr, dsn string) (func(), error) {
	switch backend {
	case "memory":
		fmt.Println("using in-process stores")
		return func() {}, nil
	case "redis":
		addr := redisAddr
		if addr == "" {
			addr = os.Getenv("AUTHCORE_REDIS_ADDR")
		}
		if addr == "" {
			mr, err := miniredis.Run()
			if err != nil {
				return nil, fmt.Errorf("start miniredis: %w", err)
			}
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			b.WithRedis(client)
			fmt.Printf("using miniredis at %s\n", mr.Addr())
			return func() {
				_ = client.Close()
				mr.Close()
			}, nil
		}
		client, err := authcore.OpenRedis(ctx, addr)
		if err != nil {
			return nil, err
		}
		b.WithRedis(client)
		fmt.Printf("using redis at %s\n", addr)
		return func() { _ = client.Close() }, nil
	case "mysql":
		if dsn == "" {
			dsn = os.Getenv("AUTHCORE_DATABASE_DSN")
		}
		if dsn == "" {
			return nil, fmt.Errorf("mysql backend needs -dsn or AUTHCORE_DATABASE_DSN")
		}
		db, err := authcore.OpenMySQL(dsn)
		if err != nil {
			return nil, err
		}
		b.WithDB(db)
		fmt.Println("using mysql")
		return func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

func runPhase(ops, concurrency int, op func(*mrand.Rand) error) phaseStats {
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
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
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

func randomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}
