// storecheck is a small operational tool for inspecting the transcription
// store: row counts, recent results, and cleanup of failed runs.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	pool, err := pgxpool.New(context.Background(), os.Getenv("DATABASE_URL"))
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	ctx := context.Background()

	if len(os.Args) > 1 && os.Args[1] == "cleanup" {
		tag, _ := pool.Exec(ctx, "DELETE FROM transcriptions WHERE success = false AND created_at < now() - interval '7 days'")
		fmt.Printf("Deleted %d stale failed transcriptions\n", tag.RowsAffected())
		return
	}

	if len(os.Args) > 1 && os.Args[1] == "recent" {
		recentTranscriptions(ctx, pool)
		return
	}

	// Default: counts by provider and outcome
	rows, err := pool.Query(ctx, `
		SELECT provider, success, count(*)
		FROM transcriptions
		GROUP BY provider, success
		ORDER BY provider, success`)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query failed: %v\n", err)
		os.Exit(1)
	}
	defer rows.Close()

	fmt.Println("Provider        Success  Count")
	fmt.Println("──────────────────────────────")
	for rows.Next() {
		var prov string
		var ok bool
		var count int64
		if err := rows.Scan(&prov, &ok, &count); err != nil {
			continue
		}
		fmt.Printf("%-15s %-8t %d\n", prov, ok, count)
	}
}

func recentTranscriptions(ctx context.Context, pool *pgxpool.Pool) {
	rows, err := pool.Query(ctx, `
		SELECT filename, provider, success, duration_ms, created_at
		FROM transcriptions
		ORDER BY created_at DESC
		LIMIT 20`)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query failed: %v\n", err)
		os.Exit(1)
	}
	defer rows.Close()

	for rows.Next() {
		var filename, prov string
		var ok bool
		var durationMs *int
		var created time.Time
		if err := rows.Scan(&filename, &prov, &ok, &durationMs, &created); err != nil {
			continue
		}
		dur := "-"
		if durationMs != nil {
			dur = fmt.Sprintf("%dms", *durationMs)
		}
		fmt.Printf("%s  %-10s ok=%-5t %-8s %s\n", created.Format(time.RFC3339), prov, ok, dur, filename)
	}
}
