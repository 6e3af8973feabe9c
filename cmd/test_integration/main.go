package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Smoke test against a running server. KP_NAME picks the provider to ask;
// without it every configured KP is queried.
func main() {
	baseURL := os.Getenv("EXPAND_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	// Wait for server to start
	time.Sleep(2 * time.Second)

	fmt.Println("Starting Integration Test...")

	fmt.Println("1. Health check...")
	if _, ok := sendRequest(baseURL, "GET", "/healthz", nil); !ok {
		fmt.Println("FAILED: Health check")
		os.Exit(1)
	}
	fmt.Println("PASSED: Health check")

	fmt.Println("2. One-hop query...")
	payload := map[string]interface{}{
		"query_graph": map[string]interface{}{
			"nodes": map[string]interface{}{
				"n0": map[string]interface{}{"id": "MONDO:0005148", "category": "disease"},
				"n1": map[string]interface{}{"category": "gene"},
			},
			"edges": map[string]interface{}{
				"e0": map[string]interface{}{"subject": "n0", "object": "n1"},
			},
		},
	}
	if kp := os.Getenv("KP_NAME"); kp != "" {
		payload["kp"] = kp
	}
	body, ok := sendRequest(baseURL, "POST", "/one_hop", payload)
	if !ok {
		fmt.Println("FAILED: One-hop query")
		os.Exit(1)
	}
	var answer struct {
		Status         string `json:"status"`
		KnowledgeGraph struct {
			Nodes map[string]json.RawMessage `json:"nodes"`
			Edges map[string]json.RawMessage `json:"edges"`
		} `json:"knowledge_graph"`
	}
	if err := json.Unmarshal(body, &answer); err != nil || answer.Status != "OK" {
		fmt.Printf("FAILED: One-hop query returned status %q (%v)\n", answer.Status, err)
		os.Exit(1)
	}
	fmt.Printf("PASSED: One-hop query (%d nodes, %d edges)\n", len(answer.KnowledgeGraph.Nodes), len(answer.KnowledgeGraph.Edges))

	fmt.Println("3. Structural check...")
	check := map[string]interface{}{
		"query_graph":     payload["query_graph"],
		"knowledge_graph": answer.KnowledgeGraph,
	}
	if _, ok := sendRequest(baseURL, "POST", "/query_graph/check", check); !ok {
		fmt.Println("FAILED: Structural check")
		os.Exit(1)
	}
	fmt.Println("PASSED: Structural check")
}

func sendRequest(baseURL, method, endpoint string, payload interface{}) ([]byte, bool) {
	var body io.Reader
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL+endpoint, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return nil, false
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return nil, false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return nil, false
	}
	fmt.Printf("Response: %.300s\n", string(respBody))
	return respBody, true
}
