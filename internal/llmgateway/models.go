package llmgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ResolveModel implements §4.4's model-resolution rule: if target is
// present verbatim in the server's inventory, use it; otherwise fall back
// to the first available model whose name starts with familyPrefix. If
// neither matches, return an error — callers treat this as fatal at
// startup (§7).
func ResolveModel(ctx context.Context, client *http.Client, endpoint, target, familyPrefix string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/v1/models", nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("listing models: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("listing models: status %d", resp.StatusCode)
	}

	var listing ModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return "", fmt.Errorf("decoding model inventory: %w", err)
	}

	var familyMatch string
	for _, m := range listing.Models {
		if m.Name == target {
			return m.Name, nil
		}
		if familyMatch == "" && familyPrefix != "" && strings.HasPrefix(m.Name, familyPrefix) {
			familyMatch = m.Name
		}
	}
	if familyMatch != "" {
		return familyMatch, nil
	}
	return "", fmt.Errorf("no model available for target %q or family %q", target, familyPrefix)
}
