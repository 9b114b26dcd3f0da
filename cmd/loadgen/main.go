// Command loadgen fires concurrent place-order requests at a running
// fulfillment service. Point several workers at a product with limited stock
// to observe the reservation guarantee: total reserved units never exceed
// stock, losers get the full shortfall list back.
package main

import (
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

type orderResponse struct {
	Success bool    `json:"success"`
	OrderID string  `json:"order_id"`
	Total   float64 `json:"total_amount"`
	Message string  `json:"message"`
}

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:8080", "fulfillment service base URL")
		productID = flag.String("product", "", "product to order (required)")
		workers   = flag.Int("workers", 10, "concurrent workers")
		requests  = flag.Int("requests", 100, "total requests to send")
		quantity  = flag.Int("quantity", 1, "units per order")
	)
	flag.Parse()

	if *productID == "" {
		log.Fatal("missing -product")
	}

	client := resty.New().
		SetBaseURL(*baseURL).
		SetTimeout(10 * time.Second)

	var placed, rejected, failed int64
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := range jobs {
				body := map[string]interface{}{
					"user_id": fmt.Sprintf("loadgen-%d", worker),
					"items": []map[string]interface{}{
						{"product_id": *productID, "quantity": *quantity},
					},
					"shipping_address": map[string]string{
						"line1":       "1 Benchmark Way",
						"city":        "Loadville",
						"state":       "CA",
						"postal_code": "00000",
						"country":     "US",
					},
				}

				var parsed orderResponse
				resp, err := client.R().
					SetBody(body).
					SetResult(&parsed).
					SetError(&parsed).
					Post("/api/orders")
				switch {
				case err != nil:
					atomic.AddInt64(&failed, 1)
					log.Printf("❌ request %d failed: %v", i, err)
				case parsed.Success:
					atomic.AddInt64(&placed, 1)
				case resp.StatusCode() == 409:
					atomic.AddInt64(&rejected, 1)
				default:
					atomic.AddInt64(&failed, 1)
					log.Printf("❌ request %d: %s", i, parsed.Message)
				}
			}
		}(w)
	}

	start := time.Now()
	for i := 0; i < *requests; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	elapsed := time.Since(start)
	log.Printf("🏁 %d requests in %s: %d placed, %d out-of-stock, %d failed (%.1f req/s)",
		*requests, elapsed.Round(time.Millisecond), placed, rejected, failed,
		float64(*requests)/elapsed.Seconds())
}
