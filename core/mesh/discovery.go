package mesh

import (
	"context"
	"os"

	"gopkg.in/yaml.v3"

	"coordinator-core/core"
)

// RegistryFeed is the authoritative control-plane seed of peer URLs, step 1
// of the discovery order in §4.C.
type RegistryFeed interface {
	PeerURLs(ctx context.Context) ([]string, error)
}

// cacheFile is the on-disk shape of the local peer cache, a supplemental
// feature per SPEC_FULL §3.
type cacheFile struct {
	Peers []cachedPeer `yaml:"peers"`
}

type cachedPeer struct {
	PeerID string `yaml:"peerId"`
	URL    string `yaml:"url"`
}

// LoadCache reads the last-known peer URLs from path (discovery step 2).
// A missing file is not an error; it just yields no cached peers.
func LoadCache(path string) ([]core.PeerCoordinator, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var cf cacheFile
	if err := yaml.Unmarshal(b, &cf); err != nil {
		return nil, err
	}
	out := make([]core.PeerCoordinator, 0, len(cf.Peers))
	for _, p := range cf.Peers {
		out = append(out, core.PeerCoordinator{PeerID: p.PeerID, URL: p.URL})
	}
	return out, nil
}

// SaveCache rewrites the local peer cache file with peers. No code in this
// module calls it; ANNOUNCE handling does not update the cache file.
func SaveCache(path string, peers []core.PeerCoordinator) error {
	cf := cacheFile{Peers: make([]cachedPeer, 0, len(peers))}
	for _, p := range peers {
		cf.Peers = append(cf.Peers, cachedPeer{PeerID: p.PeerID, URL: p.URL})
	}
	b, err := yaml.Marshal(cf)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Discover applies the 3-step discovery order: registry feed, then local
// cache file, then the static bootstrap list, deduplicating by URL as later
// steps are consulted.
func Discover(ctx context.Context, feed RegistryFeed, cachePath string, bootstrap []string) ([]core.PeerCoordinator, error) {
	seen := make(map[string]struct{})
	var out []core.PeerCoordinator

	addURL := func(url string) {
		if _, ok := seen[url]; ok {
			return
		}
		seen[url] = struct{}{}
		out = append(out, core.PeerCoordinator{URL: url})
	}

	if feed != nil {
		urls, err := feed.PeerURLs(ctx)
		if err == nil {
			for _, u := range urls {
				addURL(u)
			}
		}
	}

	if cachePath != "" {
		cached, err := LoadCache(cachePath)
		if err == nil {
			for _, p := range cached {
				addURL(p.URL)
			}
		}
	}

	for _, u := range bootstrap {
		addURL(u)
	}

	return out, nil
}
