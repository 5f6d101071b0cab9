package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/op/go-logging.v1"

	"ikedadada/go-torcircuit/internal/domain/entity"
	"ikedadada/go-torcircuit/internal/infrastructure/http"
)

// ParseRelayCatalog validates every entry of a catalog document. Entries
// that fail validation are logged and skipped.
func ParseRelayCatalog(dir entity.Directory, log *logging.Logger) []*entity.RelayDescriptor {
	if log == nil {
		log = logging.MustGetLogger("catalog")
	}
	out := make([]*entity.RelayDescriptor, 0, len(dir.Relays))
	seen := make(map[string]bool, len(dir.Relays))
	for i, ri := range dir.Relays {
		d, err := ri.Descriptor()
		if err != nil {
			log.Warningf("catalog entry %d (%q): %v", i, ri.Nickname, err)
			continue
		}
		key := d.Fingerprint().String()
		if seen[key] {
			log.Warningf("catalog entry %d (%q): duplicate fingerprint %s", i, ri.Nickname, key)
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	log.Infof("catalog: %d of %d relays usable", len(out), len(dir.Relays))
	return out
}

// LoadRelayCatalog reads a JSON catalog document from r.
func LoadRelayCatalog(r io.Reader, log *logging.Logger) ([]*entity.RelayDescriptor, error) {
	var dir entity.Directory
	if err := json.NewDecoder(r).Decode(&dir); err != nil {
		return nil, fmt.Errorf("decode relay catalog: %w", err)
	}
	return ParseRelayCatalog(dir, log), nil
}

// LoadRelayCatalogFile reads a JSON catalog document from path.
func LoadRelayCatalogFile(path string, log *logging.Logger) ([]*entity.RelayDescriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadRelayCatalog(f, log)
}

// FetchRelayCatalog downloads the catalog a directory publishes at
// <directoryURL>/relays.
func FetchRelayCatalog(ctx context.Context, c http.HTTPClient, directoryURL string, log *logging.Logger) ([]*entity.RelayDescriptor, error) {
	url := strings.TrimRight(directoryURL, "/") + "/relays"
	var dir entity.Directory
	if err := c.FetchJSON(ctx, url, &dir); err != nil {
		return nil, fmt.Errorf("fetch relay catalog: %w", err)
	}
	return ParseRelayCatalog(dir, log), nil
}
