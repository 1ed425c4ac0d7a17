// README: Bench checks: environment, schema, public API, request lifecycle and load.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"quickfix/migrations"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

// Seeded demo identities the lifecycle checks act as.
const (
	benchRequester = "kalyan"
	benchVendor    = "vendor2"
	benchWorker    = "worker2"
	benchProblem   = "TOWING_SERVICE"
)

var raceVendors = []string{"vendor1", "vendor2", "vendor3", "vendor4"}

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// request driven through the lifecycle checks
	assigned string
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
			defer db.Close()
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
		defer r.redis.Close()
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
	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: Postgres connect", Run: pingPostgres},
		{Name: "Env: Redis connect", Run: pingRedis},
		{Name: "Schema: migrated tables exist", Run: tablesExist},

		statusCase("API: health", http.MethodGet, "/health", "", nil, http.StatusOK),
		statusCase("API: request types", http.MethodGet, "/api/request-types", "", nil, http.StatusOK),
		statusCase("API: metrics", http.MethodGet, "/metrics", "", nil, http.StatusOK),
		statusCase("API: unauthenticated create -> 401", http.MethodPost, "/api/requests", "", map[string]any{
			"problem_description": benchProblem,
		}, http.StatusUnauthorized),
		statusCase("API: blank problem -> 400", http.MethodPost, "/api/requests", benchRequester, map[string]any{
			"problem_description": "  ",
		}, http.StatusBadRequest),

		{Name: "Flow: create routes to nearest qualified vendor", Run: func(ctx context.Context, r *Runner) Result {
			res, id := r.createRequest(ctx)
			r.assigned = id
			return res
		}},
		{Name: "Flow: vendor sees the offer", Run: func(ctx context.Context, r *Runner) Result {
			if r.assigned == "" {
				return Result{Status: statusSkip, Note: "no request"}
			}
			var open []map[string]any
			res := r.call(ctx, http.MethodGet, "/api/vendors/me/requests", benchVendor, nil, &open, http.StatusOK)
			if res.Status != statusPass {
				return res
			}
			for _, o := range open {
				if o["id"] == r.assigned {
					return res
				}
			}
			return Result{Status: statusFail, Latency: res.Latency, Note: "offer not listed"}
		}},
		{Name: "Flow: requester cannot accept -> 403", Run: func(ctx context.Context, r *Runner) Result {
			if r.assigned == "" {
				return Result{Status: statusSkip, Note: "no request"}
			}
			return r.call(ctx, http.MethodPost, "/api/requests/"+r.assigned+"/actions/accept", benchRequester, nil, nil, http.StatusForbidden)
		}},
		{Name: "Flow: vendor assigns qualified worker", Run: func(ctx context.Context, r *Runner) Result {
			if r.assigned == "" {
				return Result{Status: statusSkip, Note: "no request"}
			}
			return r.call(ctx, http.MethodPost, "/api/requests/"+r.assigned+"/assign/"+benchWorker, benchVendor, nil, nil, http.StatusOK)
		}},
		{Name: "Flow: ETA for assigned request", Run: func(ctx context.Context, r *Runner) Result {
			if r.assigned == "" {
				return Result{Status: statusSkip, Note: "no request"}
			}
			res := r.call(ctx, http.MethodGet, "/api/requests/"+r.assigned+"/eta", benchRequester, nil, nil, http.StatusOK, http.StatusServiceUnavailable)
			if res.Note == fmt.Sprintf("status=%d", http.StatusServiceUnavailable) {
				res.Status = statusSkip
				res.Note = "no maps key"
			}
			return res
		}},
		{Name: "Flow: requester completes", Run: func(ctx context.Context, r *Runner) Result {
			if r.assigned == "" {
				return Result{Status: statusSkip, Note: "no request"}
			}
			return r.call(ctx, http.MethodPost, "/api/requests/"+r.assigned+"/complete", benchRequester, nil, nil, http.StatusOK)
		}},
		{Name: "Race: concurrent accepts, one winner", Run: func(ctx context.Context, r *Runner) Result {
			res, id := r.createRequest(ctx)
			if res.Status != statusPass {
				return res
			}
			return concurrentAccept(ctx, r, id)
		}},

		{Name: "Load: location updates", Run: func(ctx context.Context, r *Runner) Result {
			return perfLoad(ctx, r, http.MethodPut, "/api/users/"+benchRequester+"/location", benchRequester, map[string]any{
				"lat": 12.9719, "lng": 77.6412,
			})
		}},
		{Name: "Load: vendor open-offer listing", Run: func(ctx context.Context, r *Runner) Result {
			return perfLoad(ctx, r, http.MethodGet, "/api/vendors/me/requests", benchVendor, nil)
		}},
	}
}

func pingPostgres(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "no dsn"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func pingRedis(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: statusSkip, Note: "no redis addr"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func tablesExist(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "no dsn"}
	}
	tables, err := migratedTables(migrations.FS)
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
	return Result{Status: statusPass, Note: fmt.Sprintf("%d tables", len(tables))}
}

func statusCase(name, method, path, uid string, body any, want int) TestCase {
	return TestCase{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			return r.call(ctx, method, path, uid, body, nil, want)
		},
	}
}

// call issues one request as uid (empty means no Authorization header) and
// decodes the response into out when the status is one of want.
func (r *Runner) call(ctx context.Context, method, path, uid string, body, out any, want ...int) Result {
	req, err := r.newRequest(ctx, method, path, uid, body)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	defer resp.Body.Close()
	latency := time.Since(start)
	note := fmt.Sprintf("status=%d", resp.StatusCode)

	if !contains(want, resp.StatusCode) {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Result{Status: statusFail, Latency: latency, Note: note}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return Result{Status: statusFail, Latency: latency, Note: "decode: " + err.Error()}
		}
	}
	return Result{Status: statusPass, Latency: latency, Note: note}
}

func (r *Runner) newRequest(ctx context.Context, method, path, uid string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if uid != "" {
		req.Header.Set("Authorization", "Bearer "+uid)
	}
	return req, nil
}

func (r *Runner) createRequest(ctx context.Context) (Result, string) {
	var created map[string]any
	res := r.call(ctx, http.MethodPost, "/api/requests", benchRequester, map[string]any{
		"problem_description": benchProblem,
		"vehicle_number":      "KA01AB1234",
	}, &created, http.StatusCreated)
	if res.Status != statusPass {
		return res, ""
	}
	id, _ := created["id"].(string)
	if id == "" {
		return Result{Status: statusFail, Latency: res.Latency, Note: "no id in response"}, ""
	}
	if created["intended_vendor_id"] != benchVendor {
		res.Note = fmt.Sprintf("routed to %v, want %s", created["intended_vendor_id"], benchVendor)
		res.Status = statusFail
	}
	return res, id
}

// concurrentAccept fires cfg.Concurrency accepts spread across the seeded
// vendors; exactly one may succeed and the rest must see 409.
func concurrentAccept(ctx context.Context, r *Runner, id string) Result {
	var (
		wg        sync.WaitGroup
		succ      atomic.Int64
		conflicts atomic.Int64
	)
	start := time.Now()
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(vendor string) {
			defer wg.Done()
			req, err := r.newRequest(ctx, http.MethodPost, "/api/requests/"+id+"/actions/accept", vendor, nil)
			if err != nil {
				return
			}
			resp, err := r.httpc.Do(req)
			if err != nil {
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			switch {
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				succ.Add(1)
			case resp.StatusCode == http.StatusConflict:
				conflicts.Add(1)
			}
		}(raceVendors[i%len(raceVendors)])
	}
	wg.Wait()

	note := fmt.Sprintf("success=%d conflict=%d", succ.Load(), conflicts.Load())
	if succ.Load() == 1 && conflicts.Load() == int64(r.cfg.Concurrency-1) {
		return Result{Status: statusPass, Latency: time.Since(start), Note: note}
	}
	return Result{Status: statusFail, Latency: time.Since(start), Note: note}
}

func perfLoad(ctx context.Context, r *Runner, method, path, uid string, payload any) Result {
	end := time.Now().Add(r.cfg.Duration)
	var (
		wg       sync.WaitGroup
		count    atomic.Int64
		errCount atomic.Int64
	)
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				req, err := r.newRequest(ctx, method, path, uid, payload)
				if err != nil {
					errCount.Add(1)
					return
				}
				resp, err := r.httpc.Do(req)
				if err != nil {
					errCount.Add(1)
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				if resp.StatusCode >= 300 {
					errCount.Add(1)
					continue
				}
				count.Add(1)
			}
		}()
	}
	wg.Wait()

	if count.Load() == 0 {
		return Result{Status: statusFail, Note: fmt.Sprintf("no requests completed, errors=%d", errCount.Load())}
	}
	rps := float64(count.Load()) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount.Load())}
}

func contains(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
}

var createTableRe = regexp.MustCompile(`(?i)create\s+table\s+(?:if\s+not\s+exists\s+)?([a-zA-Z0-9_]+)`)

// migratedTables lists the tables created by the embedded migrations.
func migratedTables(fsys fs.FS) ([]string, error) {
	files, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, err
	}
	var tables []string
	for _, f := range files {
		b, err := fs.ReadFile(fsys, f)
		if err != nil {
			return nil, err
		}
		for _, m := range createTableRe.FindAllStringSubmatch(string(b), -1) {
			tables = append(tables, m[1])
		}
	}
	return tables, nil
}
