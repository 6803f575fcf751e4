package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
)

// envelope is the response wrapper used by every endpoint.
type envelope struct {
	Error   *string         `json:"error"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type loginResp struct {
	Token string `json:"token"`
}

type benchUser struct {
	Email string
	Token string
}

func main() {
	// --- Command-line flags ---
	var server string
	var duration int
	var concurrency int
	var csvFile string
	var trimPercent float64
	var certFile, keyFile string
	var readRatio int

	flag.StringVar(&server, "server", "http://localhost:8080/api", "API base URL including prefix")
	flag.IntVar(&duration, "duration", 30, "duration in seconds")
	flag.IntVar(&concurrency, "c", 50, "number of concurrent goroutines / users")
	flag.StringVar(&csvFile, "csv", "latencies.csv", "CSV file to save latencies")
	flag.Float64Var(&trimPercent, "trim", 1.0, "percent of latency to trim from top and bottom for trimmed mean")
	flag.StringVar(&certFile, "cert", "", "client certificate for mTLS (optional)")
	flag.StringVar(&keyFile, "key", "", "client key for mTLS (optional)")
	flag.IntVar(&readRatio, "reads", 4, "feed reads per tweet posted")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}
	if certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			panic(fmt.Sprintf("failed to load cert/key: %v", err))
		}
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
		}
	}

	// --- Register and log in one user per goroutine ---
	fmt.Printf("Creating %d users...\n", concurrency)
	users := make([]benchUser, concurrency)
	run := time.Now().UnixNano()
	for i := 0; i < concurrency; i++ {
		email := fmt.Sprintf("load-user-%d-%d@bench.local", i, run)
		creds := map[string]string{"name": fmt.Sprintf("Load User %d", i), "email": email, "password": "Bench#Pass1"}
		if _, err := call(client, http.MethodPost, server+"/register", "", creds); err != nil {
			panic(fmt.Sprintf("failed to register user: %v", err))
		}
		data, err := call(client, http.MethodPost, server+"/login", "", creds)
		if err != nil {
			panic(fmt.Sprintf("failed to log in: %v", err))
		}
		var lr loginResp
		if err := json.Unmarshal(data, &lr); err != nil {
			panic(fmt.Sprintf("failed to decode login response: %v", err))
		}
		users[i] = benchUser{Email: email, Token: lr.Token}
	}

	// Each user follows the next few so every feed has content.
	for i, u := range users {
		for j := 1; j <= 3 && j < len(users); j++ {
			target := users[(i+j)%len(users)]
			if _, err := call(client, http.MethodPatch, server+"/user/"+target.Email, u.Token, nil); err != nil {
				panic(fmt.Sprintf("failed to follow: %v", err))
			}
		}
	}
	fmt.Println("Users created.")

	// --- Prepare concurrency test ---
	stopTime := time.Now().Add(time.Duration(duration) * time.Second)
	var wg sync.WaitGroup

	// Atomic counters for thread-safe tracking
	var requests int64
	var successes int64
	var errors4xx int64
	var errors5xx int64

	latencySlices := make([][]float64, concurrency) // each goroutine records latencies

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			user := users[idx]
			var localLatencies []float64

			for n := 0; time.Now().Before(stopTime); n++ {
				var req *http.Request
				if n%(readRatio+1) == 0 {
					b, _ := json.Marshal(map[string]string{"body": fmt.Sprintf("load test tweet %d", time.Now().UnixNano())})
					req, _ = http.NewRequestWithContext(context.Background(), http.MethodPost, server+"/user/tweet", bytes.NewReader(b))
					req.Header.Set("Content-Type", "application/json")
				} else {
					req, _ = http.NewRequestWithContext(context.Background(), http.MethodGet, fmt.Sprintf("%s/tweets?pageNo=%d", server, n%3+1), nil)
				}
				req.Header.Set("auth-token", user.Token)

				start := time.Now()
				resp, err := client.Do(req)
				lat := time.Since(start).Seconds() * 1000 // latency in ms
				localLatencies = append(localLatencies, lat)
				atomic.AddInt64(&requests, 1)

				if err != nil {
					fmt.Printf("Request error: %v\n", err)
					continue
				}

				switch {
				case resp.StatusCode >= 200 && resp.StatusCode < 300:
					atomic.AddInt64(&successes, 1)
				case resp.StatusCode >= 400 && resp.StatusCode < 500:
					atomic.AddInt64(&errors4xx, 1)
				case resp.StatusCode >= 500:
					atomic.AddInt64(&errors5xx, 1)
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}

			latencySlices[idx] = localLatencies
		}(i)
	}

	wg.Wait()

	// --- Merge all latencies ---
	var allLatencies []float64
	for _, slice := range latencySlices {
		allLatencies = append(allLatencies, slice...)
	}
	sort.Float64s(allLatencies)

	// --- Compute statistics ---
	trimmedMeanVal := trimmedMean(allLatencies, trimPercent)
	p50 := percentile(allLatencies, 50)
	p90 := percentile(allLatencies, 90)
	p99 := percentile(allLatencies, 99)

	fmt.Printf("Requests: %d  Successes: %d  4xx: %d  5xx: %d\n", requests, successes, errors4xx, errors5xx)
	fmt.Printf("Latency (ms): trimmed_mean=%.2f p50=%.2f p90=%.2f p99=%.2f\n", trimmedMeanVal, p50, p90, p99)

	// --- Save latencies to CSV ---
	f, err := os.Create(csvFile)
	if err != nil {
		fmt.Printf("Failed to create CSV file: %v\n", err)
		return
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	w.Write([]string{"latency_ms"})
	for _, d := range allLatencies {
		w.Write([]string{fmt.Sprintf("%.3f", d)})
	}
	fmt.Printf("Saved latencies to %s\n", csvFile)
}

// call sends a JSON request and returns the envelope's data, failing on any
// non-success envelope.
func call(client *http.Client, method, url, token string, body any) (json.RawMessage, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("auth-token", token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, err)
	}
	if !env.Success {
		msg := ""
		if env.Error != nil {
			msg = *env.Error
		}
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}
	return env.Data, nil
}

// trimmedMean calculates mean latency after trimming top/bottom trimPercent values
func trimmedMean(data []float64, trimPercent float64) float64 {
	if len(data) == 0 {
		return 0
	}
	trim := int(float64(len(data)) * trimPercent / 100.0)
	if trim*2 >= len(data) {
		trim = len(data) / 2
	}
	trimmed := data[trim : len(data)-trim]
	if len(trimmed) == 0 {
		return 0
	}
	var sum float64
	for _, v := range trimmed {
		sum += v
	}
	return sum / float64(len(trimmed))
}

// percentile calculates the p-th percentile from sorted data
func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	k := (p / 100.0) * float64(len(data)-1)
	f := int(k)
	c := f + 1
	if c >= len(data) {
		return data[len(data)-1]
	}
	return data[f]*(float64(c)-k) + data[c]*(k-float64(f))
}
