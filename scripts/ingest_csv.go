// Package main provides a CLI tool to ingest restaurant feedback from a CSV
// file into the API. This simulates real production usage by making API calls
// with proper authentication, so every ingested record goes through the
// normal enrichment pipeline.
//
// Expected CSV columns (with header row):
//
//	restaurant_id,service_type,positive_text,negative_text
//
// Usage:
//
//	go run scripts/ingest_csv.go -file /path/to/feedback.csv -api-url http://localhost:8080 -api-key YOUR_API_KEY
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Config holds the CLI configuration
type Config struct {
	FilePath     string
	APIBaseURL   string
	APIKey       string
	RestaurantID string
	DelayMS      int
	DryRun       bool
}

// FeedbackRequest matches the create-feedback API body
type FeedbackRequest struct {
	RestaurantID string  `json:"restaurantId"`
	ServiceType  string  `json:"serviceType"`
	PositiveText string  `json:"positiveText"`
	NegativeText *string `json:"negativeText,omitempty"`
}

// APIResponse represents a generic API response
type APIResponse struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

// Stats tracks ingestion statistics
type Stats struct {
	TotalRows       int
	SkippedEmpty    int
	SuccessfulPosts int
	FailedPosts     int
}

// CSV column indices (0-based)
const (
	colRestaurantID = 0
	colServiceType  = 1
	colPositiveText = 2
	colNegativeText = 3
)

func main() {
	cfg := parseFlags()

	if cfg.FilePath == "" {
		fmt.Println("Error: -file is required")
		flag.Usage()
		os.Exit(1)
	}

	if cfg.APIKey == "" {
		fmt.Println("Error: -api-key is required")
		flag.Usage()
		os.Exit(1)
	}

	fmt.Printf("Feedback CSV Ingestion Tool\n")
	fmt.Printf("   API URL: %s\n", cfg.APIBaseURL)
	fmt.Printf("   CSV File: %s\n", cfg.FilePath)
	fmt.Printf("   Delay: %dms between requests\n", cfg.DelayMS)
	if cfg.DryRun {
		fmt.Printf("   DRY RUN MODE - No actual API calls will be made\n")
	}
	fmt.Println()

	stats := processCSV(cfg)

	fmt.Println()
	fmt.Println("Ingestion Summary")
	fmt.Printf("   Total rows processed:  %d\n", stats.TotalRows)
	fmt.Printf("   Skipped (empty):       %d\n", stats.SkippedEmpty)
	fmt.Printf("   Successfully created:  %d\n", stats.SuccessfulPosts)
	fmt.Printf("   Failed:                %d\n", stats.FailedPosts)
	fmt.Println()

	if stats.FailedPosts > 0 {
		os.Exit(1)
	}
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.FilePath, "file", "", "Path to CSV file (required)")
	flag.StringVar(&cfg.APIBaseURL, "api-url", "http://localhost:8080", "API base URL")
	flag.StringVar(&cfg.APIKey, "api-key", "", "API key for authentication (required)")
	flag.StringVar(&cfg.RestaurantID, "restaurant-id", "", "Override the restaurant_id column for all rows")
	flag.IntVar(&cfg.DelayMS, "delay", 100, "Delay in milliseconds between API calls")
	flag.BoolVar(&cfg.DryRun, "dry-run", false, "Parse CSV but don't make API calls")

	flag.Parse()
	return cfg
}

func processCSV(cfg Config) Stats {
	stats := Stats{}

	file, err := os.Open(cfg.FilePath)
	if err != nil {
		fmt.Printf("Error opening file: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable field counts
	reader.LazyQuotes = true    // Handle quotes more leniently

	client := &http.Client{Timeout: 10 * time.Second}

	// Skip header row
	_, err = reader.Read()
	if err != nil {
		fmt.Printf("Error reading header: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Ingesting feedback records...")

	rowNum := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Printf("   Row %d: Error reading: %v\n", rowNum, err)
			rowNum++
			continue
		}

		stats.TotalRows++

		feedback, ok := extractFeedbackFromRow(row, cfg)
		if !ok {
			stats.SkippedEmpty++
			rowNum++
			continue
		}

		if cfg.DryRun {
			stats.SuccessfulPosts++
			rowNum++
			continue
		}

		id, err := postFeedback(client, cfg, feedback)
		if err != nil {
			fmt.Printf("   Row %d: Failed: %v\n", rowNum, err)
			stats.FailedPosts++
		} else {
			stats.SuccessfulPosts++
			if stats.SuccessfulPosts%50 == 0 {
				fmt.Printf("   ... %d records created (last: %s)\n", stats.SuccessfulPosts, id)
			}
		}

		time.Sleep(time.Duration(cfg.DelayMS) * time.Millisecond)
		rowNum++
	}

	return stats
}

func extractFeedbackFromRow(row []string, cfg Config) (FeedbackRequest, bool) {
	get := func(idx int) string {
		if idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	restaurantID := cfg.RestaurantID
	if restaurantID == "" {
		restaurantID = get(colRestaurantID)
	}

	positive := get(colPositiveText)
	if restaurantID == "" || positive == "" {
		return FeedbackRequest{}, false
	}

	feedback := FeedbackRequest{
		RestaurantID: restaurantID,
		ServiceType:  get(colServiceType),
		PositiveText: positive,
	}
	if negative := get(colNegativeText); negative != "" {
		feedback.NegativeText = &negative
	}

	return feedback, true
}

func postFeedback(client *http.Client, cfg Config, feedback FeedbackRequest) (string, error) {
	body, _ := json.Marshal(feedback)
	httpReq, err := http.NewRequest("POST", cfg.APIBaseURL+"/v1/feedbacks", bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", err
	}

	return apiResp.ID, nil
}
