package api

import (
	"log"
	"time"
)

// LogRequest logs an API request being made.
func LogRequest(method, path string) {
	log.Printf("[api] %s %s", method, path)
}

// LogResponse logs an API response received.
func LogResponse(path string, statusCode int, duration time.Duration) {
	log.Printf("[api] %s response status=%d duration=%dms",
		path, statusCode, duration.Milliseconds())
}

// LogError logs an error from an API operation.
func LogError(operation string, err error) {
	log.Printf("[api] %s error: %v", operation, err)
}
