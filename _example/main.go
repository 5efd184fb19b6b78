package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hupe1980/dimgo"
	"github.com/hupe1980/dimgo/memio"
)

func main() {
	ctx := context.Background()

	const (
		devices = 2000
		hours   = 24
	)

	world, err := dimgo.New[dimgo.Tuple]([]dimgo.Dim{
		{Start: 0, End: devices, Granularity: 64}, // device id
		{Start: 0, End: hours, Granularity: 6},    // hour of day
	}, memio.New(memio.WithCompression(memio.CompressionLZ4)))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("--- Insert ---")
	fmt.Println("Records:", devices)

	start := time.Now()

	for d := uint64(0); d < devices; d++ {
		if err := world.Insert(ctx, dimgo.Tuple{d, d % hours}); err != nil {
			log.Fatal(err)
		}
	}

	end := time.Since(start)

	fmt.Printf("Seconds: %.2f\n\n", end.Seconds())

	stats := world.Stats()
	fmt.Println("Resident chunks:", stats.ResidentChunks)
	fmt.Println("Resident bytes:", stats.ResidentBytes)
	fmt.Println()

	fmt.Println("--- Count ---")

	start = time.Now()

	n, err := world.Select().Range(0, 0, 512).Range(1, 8, 16).Count(ctx)
	if err != nil {
		log.Fatal(err)
	}

	end = time.Since(start)

	fmt.Printf("Matches: %d\n", n)
	fmt.Printf("Seconds: %.8f\n\n", end.Seconds())

	fmt.Println("--- Lazy scan ---")

	start = time.Now()

	resolved := 0
	for lz, err := range world.Select().Range(1, 8, 16).Iter(ctx) {
		if err != nil {
			log.Fatal(err)
		}

		rec, err := lz.Get(ctx)
		if err != nil {
			log.Fatal(err)
		}

		if resolved < 3 {
			fmt.Printf("Device: %d, Hour: %d\n", rec.Dim(0), rec.Dim(1))
		}

		resolved++
		if resolved == 10 {
			break
		}
	}

	end = time.Since(start)

	fmt.Printf("Resolved: %d\n", resolved)
	fmt.Printf("Seconds: %.8f\n", end.Seconds())
}
