package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// fetchJSON GETs path relative to rootAddrFlag and decodes the response
// body as JSON into out.
func fetchJSON(path string, out any) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(rootAddrFlag + path)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: unexpected status %d: %s", path, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
