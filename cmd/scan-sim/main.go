// scan-sim seeds the session store with synthetic booth traffic for demos
// and dashboard development. Every generated scan goes through the same
// validation and derivation pipeline as live ingest; the only difference is
// that the commit timestamp is back-dated to the scan's out-time.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/RidhamAnand/EDAI-4/internal/config"
	"github.com/RidhamAnand/EDAI-4/internal/ingest"
	"github.com/RidhamAnand/EDAI-4/internal/store"

	"github.com/joho/godotenv"
)

func main() {
	count := flag.Int("count", 365, "number of synthetic sessions to insert")
	booths := flag.Int("booths", 5, "booth ids are drawn from 1..booths")
	days := flag.Int("days", 1, "spread dwell windows over the past N days")
	flag.Parse()
	if *booths < 1 {
		*booths = 1
	}
	if *days < 1 {
		*days = 1
	}

	_ = godotenv.Load()
	cfg := config.Load()

	normalizer, err := ingest.NewNormalizer(cfg.Timezone)
	if err != nil {
		slog.Error("invalid timezone", "tz", cfg.Timezone, "error", err)
		os.Exit(1)
	}
	loc, _ := time.LoadLocation(cfg.Timezone)

	db, err := store.OpenPostgres(
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.SSLMode,
	)
	if err != nil {
		slog.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	repo, err := store.New(db)
	if err != nil {
		slog.Error("db migrate failed", "error", err)
		os.Exit(1)
	}

	pipeline := &ingest.Pipeline{Store: repo, Normalizer: normalizer, DefaultBooth: cfg.DefaultBoothID}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	ctx := context.Background()
	inserted := 0
	for i := 0; i < *count; i++ {
		payload, outTime := syntheticScan(rng, loc, *booths, *days)
		if _, err := pipeline.Ingest(ctx, payload, outTime); err != nil {
			slog.Error("synthetic scan rejected", "error", err)
			os.Exit(1)
		}
		inserted++
	}
	slog.Info("synthetic sessions inserted", "count", inserted, "booths", *booths)
}

// syntheticScan builds one random scan payload: a MAC-style device id, 4-10
// RSSI samples in [-80,-20], a 30s-5min dwell window inside the 10:00-16:00
// exhibition hours, and a distance estimate of 0.5-5.0 meters.
func syntheticScan(rng *rand.Rand, loc *time.Location, booths, days int) ([]byte, time.Time) {
	mac := make([]byte, 6)
	for i := range mac {
		mac[i] = byte(rng.Intn(256))
	}
	deviceID := fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])

	samples := make([]int, 4+rng.Intn(7))
	for i := range samples {
		samples[i] = -80 + rng.Intn(61)
	}

	day := time.Now().In(loc).AddDate(0, 0, -rng.Intn(days))
	open := time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, loc)
	inTime := open.Add(time.Duration(rng.Intn(6*3600-300)) * time.Second)
	outTime := inTime.Add(time.Duration(30+rng.Intn(271)) * time.Second)

	distance := float64(50+rng.Intn(451)) / 100

	payload, _ := json.Marshal(map[string]any{
		"device_id":        deviceID,
		"rssi_values":      samples,
		"in_time":          inTime.Unix(),
		"out_time":         outTime.Unix(),
		"average_distance": distance,
		"booth_id":         1 + rng.Intn(booths),
	})
	return payload, outTime
}
