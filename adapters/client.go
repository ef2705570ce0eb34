package adapters

import (
	"encoding/json"
	"fmt"
	nethttp "net/http"

	chttp "citewatch.io/http"
)

// fetchJSON issues a single GET request against url and decodes the JSON
// response body into out. All six adapters route their one-request-per-step
// budget through this helper, sharing the process-wide client the Scheduler
// holds for its lifetime.
func fetchJSON(client *nethttp.Client, url string, out any) error {
	req := chttp.NewRequest("GET", url)
	resp, err := chttp.ExecuteWith(client, req)
	if err != nil {
		return fmt.Errorf("adapters: fetch %s: %w", url, err)
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("adapters: decode response from %s: %w", url, err)
	}
	return nil
}
