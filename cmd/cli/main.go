package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
)

func main() {
	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	adminKey := os.Getenv("ADMIN_API_KEY")

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Enter a site URL to monitor (e.g., https://example.com): ")
	raw, _ := reader.ReadString('\n')
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	if _, err := url.ParseRequestURI(raw); err != nil {
		fmt.Println("Invalid URL.")
		return
	}

	fmt.Print("Display name (optional): ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)

	body, _ := json.Marshal(map[string]string{"url": raw, "display_name": name})
	req, _ := http.NewRequest(http.MethodPost, api+"/api/websites", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if adminKey != "" {
		req.Header.Set("X-API-Key", adminKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Println("Error contacting API:", err)
		return
	}
	defer resp.Body.Close()

	var out struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Warning string `json:"warning"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)

	switch {
	case resp.StatusCode == http.StatusCreated:
		fmt.Println("Added! Check GET /api/websites for status.")
		if out.Warning != "" {
			fmt.Println("Warning:", out.Warning)
		}
	case out.Message != "":
		fmt.Println("API error:", out.Message)
	default:
		fmt.Println("API returned status:", resp.Status)
	}
}
