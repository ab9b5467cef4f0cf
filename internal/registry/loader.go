package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"styled/internal/common/fsutil"
	"styled/pkg/types"
)

// maxCatalogBytes bounds how much of a remote catalog we are willing to read.
const maxCatalogBytes = 4 << 20

// record is the wire shape of one catalog entry. Catalogs published for the
// browser client use snake_case keys and carry the model input geometry
// alongside display metadata.
type record struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	SizeMB        float64 `json:"size_mb"`
	InputWidth    int     `json:"input_width"`
	InputHeight   int     `json:"input_height"`
	InputChannels int     `json:"input_channels"`
	URL           string  `json:"url"`
	Description   string  `json:"description"`
}

// envelope tolerates catalogs that wrap the list in an object. Bare arrays
// are handled separately in decode.
type envelope struct {
	Styles []record `json:"styles"`
	Models []record `json:"models"`
}

// Fetch downloads and parses a style catalog from url. A file path (or
// file:// URL) is read from disk instead, which keeps air-gapped deploys
// working.
func Fetch(ctx context.Context, client *http.Client, url string) ([]types.Style, error) {
	raw, err := readCatalog(ctx, client, url)
	if err != nil {
		return nil, err
	}
	recs, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", url, err)
	}
	return normalize(recs), nil
}

// FetchWithFallback tries the remote catalog and falls back to the builtin
// set on any failure. The returned bool reports whether the builtin set was
// used, so the caller can log it.
func FetchWithFallback(ctx context.Context, client *http.Client, url string) ([]types.Style, bool) {
	if url == "" {
		return Builtin(), true
	}
	styles, err := Fetch(ctx, client, url)
	if err != nil || len(styles) == 0 {
		return Builtin(), true
	}
	return styles, false
}

func readCatalog(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch catalog: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch catalog %s: status %d", url, resp.StatusCode)
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxCatalogBytes))
	}
	path := strings.TrimPrefix(url, "file://")
	path, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// decode accepts either a bare JSON array of records or an object wrapping
// the array under "styles" or "models".
func decode(raw []byte) ([]record, error) {
	trimmed := strings.TrimLeftFunc(string(raw), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if strings.HasPrefix(trimmed, "[") {
		var recs []record
		if err := json.Unmarshal(raw, &recs); err != nil {
			return nil, err
		}
		return recs, nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if len(env.Styles) > 0 {
		return env.Styles, nil
	}
	return env.Models, nil
}

// normalize converts wire records to domain styles: missing ids are derived
// from the name, missing geometry gets the standard 256x256x3, and duplicate
// ids keep the first occurrence.
func normalize(recs []record) []types.Style {
	seen := make(map[string]bool, len(recs))
	styles := make([]types.Style, 0, len(recs))
	for _, r := range recs {
		id := r.ID
		if id == "" {
			id = slug(r.Name)
		}
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		s := types.Style{
			ID:            id,
			Name:          r.Name,
			SizeMB:        r.SizeMB,
			InputWidth:    r.InputWidth,
			InputHeight:   r.InputHeight,
			InputChannels: r.InputChannels,
			URL:           r.URL,
			Description:   r.Description,
		}
		if s.Name == "" {
			s.Name = id
		}
		if s.InputWidth <= 0 {
			s.InputWidth = 256
		}
		if s.InputHeight <= 0 {
			s.InputHeight = 256
		}
		if s.InputChannels <= 0 {
			s.InputChannels = 3
		}
		styles = append(styles, s)
	}
	return styles
}

// slug lowercases a display name into a stable id: "Van Gogh - Starry Night"
// becomes "van_gogh_starry_night".
func slug(name string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}
