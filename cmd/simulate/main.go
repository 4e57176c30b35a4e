package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/yuemei/clinic-booking/internal/config"
	"github.com/yuemei/clinic-booking/internal/schedule"
	"github.com/yuemei/clinic-booking/pkg/logging"
)

// simulate hammers a running api-server with concurrent bookings over a
// small window of slots, so slot_full and slot_being_booked conflicts
// actually occur. It reports per-operation latency and outcome counts.

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	BookRatio   float64
	CancelRatio float64
	ReadRatio   float64
	Days        int
}

type DataPool struct {
	Slots []slotRef // date+time pairs the workers book against

	mu           sync.RWMutex
	appointments []string
}

type slotRef struct {
	Date string
	Time string
}

func (dp *DataPool) AddAppointment(id string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (string, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return "", false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total    int64
	Success  int64
	Conflict int64
	Error    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.latencies))
	copy(latencies, om.latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Metrics struct {
	Book    OperationMetrics
	Cancel  OperationMetrics
	Slots   OperationMetrics
	Summary OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	logger := logging.Default()
	logger.Info("simulator starting")

	cfg := loadSimConfig()
	if err := validateSimConfig(cfg); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger.Info("simulation config",
		"duration", cfg.Duration.String(), "workers", cfg.Workers,
		"book", cfg.BookRatio, "cancel", cfg.CancelRatio, "read", cfg.ReadRatio)

	pool, err := buildDataPool(cfg)
	if err != nil {
		logger.Error("build slot pool", "error", err)
		os.Exit(1)
	}
	logger.Info("slot pool ready", "slots", len(pool.Slots))

	sim := &Simulator{
		config: cfg,
		pool:   pool,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	gofakeit.Seed(time.Now().UnixNano())

	sim.Run()
	sim.PrintReport()
}

func loadSimConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 10),
		BookRatio:   getFloat("SIM_BOOK_RATIO", 0.5),
		CancelRatio: getFloat("SIM_CANCEL_RATIO", 0.2),
		ReadRatio:   getFloat("SIM_READ_RATIO", 0.3),
		Days:        getInt("SIM_DAYS", 3),
	}

	total := cfg.BookRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateSimConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Days <= 0 {
		return fmt.Errorf("SIM_DAYS must be > 0")
	}
	return nil
}

// buildDataPool derives the bookable slots from the same schedule the
// server uses. Keeping SIM_DAYS small concentrates workers on few slots
// and drives up contention.
func buildDataPool(cfg SimConfig) (*DataPool, error) {
	appCfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	loc, err := appCfg.Location()
	if err != nil {
		return nil, err
	}
	table, err := appCfg.ScheduleTable()
	if err != nil {
		return nil, err
	}
	gen := schedule.NewGenerator(table, appCfg.SlotDurationMinutes, appCfg.SlotCapacity)

	pool := &DataPool{}
	for d := 1; d <= cfg.Days; d++ {
		date := time.Now().In(loc).AddDate(0, 0, d).Format(schedule.DateLayout)
		slots, err := gen.Generate(date)
		if err != nil {
			return nil, err
		}
		for _, s := range slots {
			pool.Slots = append(pool.Slots, slotRef{Date: date, Time: s.Time})
		}
	}

	if len(pool.Slots) == 0 {
		return nil, fmt.Errorf("no open slots in the next %d days", cfg.Days)
	}
	return pool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookRatio:
				s.doBook(ctx, rng)
			case r < s.config.BookRatio+s.config.CancelRatio:
				s.doCancel(ctx, rng)
			default:
				if rng.Intn(2) == 0 {
					s.doSlots(ctx, rng)
				} else {
					s.doSummary(ctx, rng)
				}
			}
		}
	}
}

func (s *Simulator) doBook(ctx context.Context, rng *rand.Rand) {
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]

	reqBody := map[string]any{
		"patient_name":     gofakeit.Name(),
		"patient_phone":    "09" + gofakeit.DigitN(8),
		"date":             slot.Date,
		"time":             slot.Time,
		"appointment_type": "single",
		"people_count":     1,
	}
	body, _ := json.Marshal(reqBody)

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "POST", s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
			var apptResp struct {
				ID string `json:"id"`
			}
			bodyBytes, _ := io.ReadAll(resp.Body)
			if json.Unmarshal(bodyBytes, &apptResp) == nil && apptResp.ID != "" {
				s.pool.AddAppointment(apptResp.ID)
			}
		case http.StatusConflict:
			conflict = true
		}
	}

	s.metrics.Book.Record(latency, success, conflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s/appointments/%s/cancel", s.config.APIBaseURL, apptID), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()
		// Repeat cancels of the same appointment return 409.
		switch resp.StatusCode {
		case http.StatusOK:
			success = true
		case http.StatusConflict:
			conflict = true
		}
	}

	s.metrics.Cancel.Record(latency, success, conflict)
}

func (s *Simulator) doSlots(ctx context.Context, rng *rand.Rand) {
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/slots?date=%s", s.config.APIBaseURL, slot.Date), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.Slots.Record(latency, success, false)
}

func (s *Simulator) doSummary(ctx context.Context, rng *rand.Rand) {
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/appointments/summary?date=%s", s.config.APIBaseURL, slot.Date), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.Summary.Record(latency, success, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Book", &s.metrics.Book)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Day Slots", &s.metrics.Slots)
	printOperationReport("Day Summary", &s.metrics.Summary)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	errCount := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if errCount > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errCount, float64(errCount)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
