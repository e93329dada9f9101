// README: Bench checks: environment, schema, HTTP surface, calendar invariants, and load.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"drivebook/internal/modules/availability"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
}

type Result struct {
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	start := time.Now().UTC().Add(30 * 24 * time.Hour).Truncate(time.Hour)
	return []TestCase{
		{Name: "Env: Postgres connect", Run: checkPostgres},
		{Name: "Env: Redis connect", Run: checkRedis},
		{Name: "Migration: apply (optional)", Run: applyMigration},
		{Name: "Migration: tables exist", Run: checkTables},

		publicCase("API: health", base+"/health", 200),
		publicCase("API: metrics exposed", base+"/metrics", 200),
		publicCase("API: bookings require auth", base+"/api/bookings", 401),

		httpCase("Driver: register self", http.MethodPost, base+"/api/drivers", nil, r.cfg.DriverToken, []int{201, 409}),
		httpCase("Pricing: fare 30km", http.MethodGet, base+"/api/pricing/fare?distance_km=30", nil, r.cfg.CustomerToken, []int{200}),
		httpCase("Pricing: negative distance -> 400", http.MethodGet, base+"/api/pricing/fare?distance_km=-1", nil, r.cfg.CustomerToken, []int{400}),
		httpCase("Booking: bad duration unit -> 400", http.MethodPost, base+"/api/bookings", map[string]any{
			"driver_id":      "any",
			"pickup":         map[string]any{"address": "bench"},
			"duration":       map[string]any{"value": 2, "unit": "fortnights"},
			"payment_method": "cash",
		}, r.cfg.CustomerToken, []int{400}),
		{
			Name: "Concurrency: overlapping accepts on one driver",
			Run: func(ctx context.Context, r *Runner) Result {
				return concurrentAccept(ctx, r, start)
			},
		},

		{Name: "Invariant: no overlapping active slots", Run: checkNoDoubleBooking},
		{Name: "Invariant: accepted/started bookings hold an active slot", Run: checkSlotsMatchBookings},
		{Name: "Invariant: completed bookings are paid", Run: checkCompletedPaid},

		{
			Name: "Load: fare estimate throughput",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, base+"/api/pricing/fare?distance_km=12")
			},
		},
	}
}

func checkPostgres(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func checkRedis(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: statusSkip, Note: "redis not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func applyMigration(ctx context.Context, r *Runner) Result {
	if !r.cfg.ApplyMigration {
		return Result{Status: statusSkip, Note: "apply-migration=false"}
	}
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	sql, err := os.ReadFile(r.cfg.MigrationPath)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	for _, s := range splitSQL(string(sql)) {
		if _, err := r.db.Exec(ctx, s); err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
	}
	return Result{Status: statusPass}
}

func checkTables(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	tables, err := extractTables(r.cfg.MigrationPath)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	for _, t := range tables {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
			t,
		).Scan(&exists)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if !exists {
			return Result{Status: statusFail, Note: "missing table: " + t}
		}
	}
	return Result{Status: statusPass, Note: strings.Join(tables, ",")}
}

// activeSlots loads every driver's Active slots from the calendar column.
func activeSlots(ctx context.Context, r *Runner) (map[string][]availability.TimeInterval, error) {
	rows, err := r.db.Query(ctx, "SELECT id, slots FROM drivers")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]availability.TimeInterval)
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		var slots []availability.TimeInterval
		if err := json.Unmarshal(raw, &slots); err != nil {
			return nil, fmt.Errorf("driver %s: %w", id, err)
		}
		for _, s := range slots {
			if s.Status == availability.SlotActive {
				out[id] = append(out[id], s)
			}
		}
	}
	return out, rows.Err()
}

func checkNoDoubleBooking(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "db not configured"}
	}
	byDriver, err := activeSlots(ctx, r)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	total := 0
	for id, slots := range byDriver {
		sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
		for i := 1; i < len(slots); i++ {
			if slots[i].Start.Before(slots[i-1].End) {
				return Result{Status: statusFail, Note: fmt.Sprintf("driver %s: %s overlaps %s", id, slots[i].BookingRef, slots[i-1].BookingRef)}
			}
		}
		total += len(slots)
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("drivers=%d active_slots=%d", len(byDriver), total)}
}

func checkSlotsMatchBookings(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "db not configured"}
	}
	byDriver, err := activeSlots(ctx, r)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	held := make(map[string]bool)
	for _, slots := range byDriver {
		for _, s := range slots {
			held[string(s.BookingRef)] = true
		}
	}
	rows, err := r.db.Query(ctx, "SELECT id FROM bookings WHERE status IN ('accepted', 'started')")
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if !held[id] {
			return Result{Status: statusFail, Note: "booking without active slot: " + id}
		}
		n++
	}
	if n != len(held) {
		return Result{Status: statusFail, Note: fmt.Sprintf("active slots=%d but accepted/started bookings=%d", len(held), n)}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("bookings=%d", n)}
}

func checkCompletedPaid(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "db not configured"}
	}
	var unpaid int
	err := r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM bookings WHERE status = 'completed' AND payment_status NOT IN ('paid', 'refunded')",
	).Scan(&unpaid)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if unpaid > 0 {
		return Result{Status: statusFail, Note: fmt.Sprintf("unpaid completed bookings=%d", unpaid)}
	}
	return Result{Status: statusPass}
}

func publicCase(name, url string, want int) TestCase {
	return httpCheck(name, http.MethodGet, url, nil, "", false, []int{want})
}

func httpCase(name, method, url string, body any, token string, okStatuses []int) TestCase {
	return httpCheck(name, method, url, body, token, true, okStatuses)
}

func httpCheck(name, method, url string, body any, token string, needToken bool, okStatuses []int) TestCase {
	return TestCase{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			if needToken && token == "" {
				return Result{Status: statusSkip, Note: "no token configured"}
			}
			start := time.Now()
			code, _, err := r.do(ctx, method, url, body, token)
			if err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			latency := time.Since(start)
			if contains(okStatuses, code) {
				return Result{Status: statusPass, Latency: latency, Note: fmt.Sprintf("status=%d", code)}
			}
			return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d", code)}
		},
	}
}

func (r *Runner) do(ctx context.Context, method, url string, body any, token string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

// concurrentAccept books several overlapping windows on the driver behind DriverToken,
// accepts them all at once, and expects exactly one to win.
func concurrentAccept(ctx context.Context, r *Runner, start time.Time) Result {
	if r.cfg.CustomerToken == "" || r.cfg.DriverToken == "" {
		return Result{Status: statusSkip, Note: "customer and driver tokens required"}
	}
	base := r.cfg.BaseURL
	code, body, err := r.do(ctx, http.MethodPost, base+"/api/drivers", nil, r.cfg.DriverToken)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	var me struct {
		ID string `json:"id"`
	}
	if code == http.StatusCreated {
		_ = json.Unmarshal(body, &me)
	}
	if me.ID == "" {
		return Result{Status: statusSkip, Note: "driver already registered; run against a fresh driver"}
	}

	n := r.cfg.Concurrency
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		code, body, err := r.do(ctx, http.MethodPost, base+"/api/bookings", map[string]any{
			"driver_id":       me.ID,
			"pickup":          map[string]any{"address": "bench"},
			"duration":        map[string]any{"value": 2, "unit": "hours"},
			"scheduled_start": start.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
			"payment_method":  "cash",
		}, r.cfg.CustomerToken)
		if err != nil || code != http.StatusCreated {
			return Result{Status: statusFail, Note: fmt.Sprintf("create status=%d err=%v", code, err)}
		}
		var b struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(body, &b)
		ids = append(ids, b.ID)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succ, conflicts := 0, 0
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			code, _, err := r.do(ctx, http.MethodPut, base+"/api/bookings/"+id+"/status", map[string]any{"status": "accepted"}, r.cfg.DriverToken)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			switch code {
			case http.StatusOK:
				succ++
			case http.StatusConflict:
				conflicts++
			}
		}(id)
	}
	wg.Wait()

	note := fmt.Sprintf("success=%d conflicts=%d", succ, conflicts)
	if succ == 1 && conflicts == n-1 {
		return Result{Status: statusPass, Note: note}
	}
	return Result{Status: statusFail, Note: note}
}

func perfLoad(ctx context.Context, r *Runner, url string) Result {
	if r.cfg.CustomerToken == "" {
		return Result{Status: statusSkip, Note: "no token configured"}
	}
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				code, _, err := r.do(ctx, http.MethodGet, url, nil, r.cfg.CustomerToken)
				mu.Lock()
				if err != nil || code != http.StatusOK {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func contains(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	parts := strings.Split(strings.Join(filtered, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
