// Package catalog maintains the list of free models a user can pick from.
// The list is best effort: any failure degrades to the default model so
// the answer flow always has something to send.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/douletlabs/answerd/internal/events"
	"github.com/douletlabs/answerd/internal/secrets"
	"github.com/douletlabs/answerd/internal/store"
)

const DefaultModel = "amazon/nova-2-lite-v1:free"

const defaultBaseURL = "https://openrouter.ai/api/v1"

type Fetcher struct {
	store      store.Store
	broker     *events.Broker
	secretsKey []byte
	baseURL    string
	client     *http.Client
}

func NewFetcher(st store.Store, broker *events.Broker, secretsKey []byte, baseURL string) *Fetcher {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Fetcher{
		store:      st,
		broker:     broker,
		secretsKey: secretsKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

type catalogModel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Pricing     struct {
		Prompt     string `json:"prompt"`
		Completion string `json:"completion"`
	} `json:"pricing"`
}

type catalogPage struct {
	Data []catalogModel `json:"data"`
}

// Refresh fetches the free-model list, replaces the stored copy in full,
// and returns the new list. The default model is always present so the
// picker is never empty. It never returns an error: failures fall back
// to the default model alone.
func (f *Fetcher) Refresh(ctx context.Context) []string {
	settings, err := f.store.GetSettings(ctx)
	if err != nil {
		log.Printf("catalog: load settings: %v", err)
		return []string{DefaultModel}
	}
	if settings == nil {
		settings = &store.Settings{}
	}

	apiKey := ""
	if settings.APIKeyEnc != "" {
		apiKey, err = secrets.Decrypt(f.secretsKey, settings.APIKeyEnc)
		if err != nil {
			log.Printf("catalog: decrypt api key: %v", err)
		}
	}

	models := []string{DefaultModel}
	if apiKey != "" {
		if fetched, err := f.fetch(ctx, apiKey); err != nil {
			log.Printf("catalog: fetch models: %v", err)
		} else {
			models = ensureDefault(fetched)
		}
	}

	settings.FreeModels = models
	if err := f.store.UpsertSettings(ctx, *settings); err != nil {
		log.Printf("catalog: persist models: %v", err)
		return models
	}
	f.broker.Publish(events.Event{
		Topic:   events.SettingsTopic,
		Type:    "free_models_updated",
		Ts:      time.Now().UTC().Format(time.RFC3339),
		Source:  "catalog",
		Payload: map[string]any{"count": len(models)},
	})
	return models
}

func (f *Fetcher) fetch(ctx context.Context, apiKey string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("model listing failed: status %d", resp.StatusCode)
	}

	var page catalogPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	var free []string
	for _, model := range page.Data {
		if model.ID == "" || !isFree(model) {
			continue
		}
		if _, ok := seen[model.ID]; ok {
			continue
		}
		seen[model.ID] = struct{}{}
		free = append(free, model.ID)
	}
	if len(free) == 0 {
		return []string{DefaultModel}, nil
	}
	sort.Strings(free)
	return free, nil
}

// isFree applies three heuristics: zero pricing on both prompt and
// completion, a ":free" id suffix convention, or a "free" keyword
// anywhere in the listing text.
func isFree(model catalogModel) bool {
	if priceIsZero(model.Pricing.Prompt) && priceIsZero(model.Pricing.Completion) {
		return true
	}
	if strings.Contains(model.ID, ":free") {
		return true
	}
	haystack := strings.ToLower(model.ID + " " + model.Name + " " + model.Description)
	return strings.Contains(haystack, "free")
}

func priceIsZero(price string) bool {
	if price == "" {
		return false
	}
	value, err := strconv.ParseFloat(price, 64)
	return err == nil && value == 0
}
