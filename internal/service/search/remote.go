package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"radpad-intake-service/internal/httpclient"
	"radpad-intake-service/internal/schema"
)

const maxBodyBytes = 4 << 20

// RemoteConfig holds the list API settings.
type RemoteConfig struct {
	BaseURL   string
	AuthToken string
}

// RemoteSearcher queries BaseURL/<list>?search=<q>.
type RemoteSearcher struct {
	http    *http.Client
	baseURL string
	token   string
}

func NewRemote(cfg RemoteConfig, hc *http.Client) *RemoteSearcher {
	if hc == nil {
		hc = httpclient.New(httpclient.DefaultConfig())
	}
	return &RemoteSearcher{
		http:    hc,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.AuthToken,
	}
}

// Search returns the list items matching query. An empty query lists everything.
// The body may be a bare array or an object carrying "data" or "items".
func (s *RemoteSearcher) Search(ctx context.Context, list, query string) ([]json.RawMessage, error) {
	u := s.baseURL + "/" + url.PathEscape(list)
	if query != "" {
		u += "?" + url.Values{"search": {query}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", list, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("search %s: status %d: %s", list, resp.StatusCode, schema.Message(body))
	}
	return decodeItems(body)
}

func decodeItems(body []byte) ([]json.RawMessage, error) {
	if !gjson.ValidBytes(body) {
		return nil, schema.ErrInvalidJSON
	}
	root := gjson.ParseBytes(body)
	arr := root
	if !root.IsArray() {
		arr = root.Get("data")
		if !arr.IsArray() {
			arr = root.Get("items")
		}
		if !arr.IsArray() {
			return nil, fmt.Errorf("search response has no item array")
		}
	}

	items := make([]json.RawMessage, 0, len(arr.Array()))
	arr.ForEach(func(_, v gjson.Result) bool {
		items = append(items, json.RawMessage(v.Raw))
		return true
	})
	return items, nil
}
