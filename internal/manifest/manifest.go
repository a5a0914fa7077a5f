package manifest

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"example.com/remusdec/internal/common"
)

type Item struct {
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Sha256   string    `json:"sha256"`
	Type     string    `json:"type"`
}

type Manifest struct {
	CreatedAt time.Time `json:"createdAt"`
	ShaAlgo   string    `json:"shaAlgo"`
	Items     []Item    `json:"items"`
}

// KindOf maps a file name to the role it plays in a run directory.
func KindOf(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".rlf"):
		return "runlog"
	case strings.HasSuffix(lower, ".adc"):
		return "profiler"
	case strings.HasSuffix(lower, ".gps"):
		return "gpsfixes"
	case strings.HasSuffix(lower, ".rmf"):
		return "mission"
	case strings.HasSuffix(lower, ".ndjson"):
		return "diagnostics"
	case strings.HasSuffix(lower, ".pdf"):
		return "report"
	case strings.HasSuffix(lower, ".json"):
		return "json"
	case strings.HasSuffix(lower, ".txt"):
		return "commands"
	}
	return "other"
}

func Build(paths []string) (Manifest, error) {
	m := Manifest{CreatedAt: time.Now().UTC(), ShaAlgo: "sha256"}
	for _, p := range paths {
		hex, sz, err := common.Sha256OfFile(p)
		if err != nil {
			return m, err
		}
		item := Item{Path: p, Size: sz, Sha256: hex, Type: KindOf(p)}
		if fi, err := os.Stat(p); err == nil {
			item.Modified = fi.ModTime().UTC()
		}
		m.Items = append(m.Items, item)
	}
	return m, nil
}

func Save(m Manifest, out string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0o644)
}

func Load(path string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, err
	}
	return m, nil
}
