package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/loonghao/msvc-kit/src/internal/httpclient"
	"github.com/loonghao/msvc-kit/src/internal/kiterrors"
	"github.com/loonghao/msvc-kit/src/internal/kitlog"
	"github.com/loonghao/msvc-kit/src/internal/manifestcache"
)

// ChannelItem is one entry of the top-level channel document. The
// "manifest" item (Type == "Manifest") names the catalog payload to fetch
// next, with an expected content hash (spec.md §3 Channel invariants).
type ChannelItem struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Payload ChannelRef `json:"payload"`
}

// ChannelRef is the child-payload reference a ChannelItem carries.
type ChannelRef struct {
	URL    string `json:"url"`
	SHA256 string `json:"sha256"`
}

// Channel is the top-level JSON document obtained from the well-known
// Microsoft channel URL.
type Channel struct {
	ChannelItems []ChannelItem `json:"channelItems"`
}

// ManifestItem returns the first channelItem of Type "Manifest", fatal
// (ManifestParse) if the channel carries none — the channel's entire
// purpose is to point at one.
func (c Channel) ManifestItem() (ChannelItem, error) {
	for _, item := range c.ChannelItems {
		if item.Type == "Manifest" {
			return item, nil
		}
	}
	return ChannelItem{}, kiterrors.New(kiterrors.ManifestParse, "channel document has no Manifest channelItem")
}

// Resolver is the C4 component: it owns a manifest cache and an HTTP
// facade and exposes the channel -> catalog -> package resolution chain.
type Resolver struct {
	ChannelURL string
	Cache      manifestcache.Cache
	HTTP       *httpclient.Facade
}

// New constructs a Resolver. channelURL is the fixed well-known channel
// document location (spec.md §6); cache and http are the injected
// collaborators spec.md §9 calls for.
func New(channelURL string, cache manifestcache.Cache, http *httpclient.Facade) *Resolver {
	return &Resolver{ChannelURL: channelURL, Cache: cache, HTTP: http}
}

const (
	cacheKeyChannel = "channel"
	cacheKeyCatalog = "catalog"
)

// FetchChannel fetches the channel document, conditionally against the
// cache (ETag > Last-Modified > fingerprint-equality, spec.md §4.3).
func (r *Resolver) FetchChannel(ctx context.Context) (Channel, error) {
	data, err := r.fetchConditional(ctx, cacheKeyChannel, r.ChannelURL)
	if err != nil {
		return Channel{}, err
	}
	var ch Channel
	if err := json.Unmarshal(data, &ch); err != nil {
		return Channel{}, kiterrors.Wrap(kiterrors.ManifestParse, "parse channel document", err)
	}
	if len(ch.ChannelItems) == 0 {
		return Channel{}, kiterrors.New(kiterrors.ManifestParse, "channel document has no channelItems")
	}
	return ch, nil
}

// FetchCatalog fetches the catalog (VS Manifest) named by the channel's
// Manifest item, validating the channel's declared SHA-256 against the
// fetched bytes (fatal ManifestParse on mismatch, spec.md §4.4).
func (r *Resolver) FetchCatalog(ctx context.Context, channel Channel) (Catalog, error) {
	item, err := channel.ManifestItem()
	if err != nil {
		return Catalog{}, err
	}

	data, err := r.fetchConditional(ctx, cacheKeyCatalog, item.Payload.URL)
	if err != nil {
		return Catalog{}, err
	}

	if item.Payload.SHA256 != "" {
		sum := sha256.Sum256(data)
		actual := hex.EncodeToString(sum[:])
		if actual != item.Payload.SHA256 {
			return Catalog{}, kiterrors.New(kiterrors.ManifestParse,
				fmt.Sprintf("catalog hash mismatch: channel declared %s, fetched %s", item.Payload.SHA256, actual))
		}
	}

	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return Catalog{}, kiterrors.Wrap(kiterrors.ManifestParse, "parse catalog document", err)
	}
	if err := cat.validate(); err != nil {
		return Catalog{}, err
	}
	return cat, nil
}

// fetchConditional implements the freshness contract of spec.md §4.3: a
// 304 response leaves cached bytes untouched and only refreshes the
// sidecar timestamp.
func (r *Resolver) fetchConditional(ctx context.Context, key, url string) ([]byte, error) {
	log := kitlog.From(ctx)
	cached, side, hit, err := r.Cache.Get(key)
	if err != nil {
		return nil, kiterrors.Wrap(kiterrors.Io, "read manifest cache", err)
	}

	var headers map[string][]string
	if hit {
		// ETag takes priority; Last-Modified is sent only without an ETag.
		if side.ETag != "" {
			headers = httpclient.Conditional(side.ETag, "")
		} else {
			headers = httpclient.Conditional("", side.LastModified)
		}
	}

	resp, err := r.HTTP.GetManifest(ctx, url, headers)
	if err != nil {
		return nil, kiterrors.Wrap(kiterrors.Http, fmt.Sprintf("fetch %s", url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		log.Debug().Str("url", url).Msg("manifest not modified, reusing cache")
		_ = r.Cache.Touch(key)
		if !hit {
			return nil, kiterrors.New(kiterrors.Http, "server returned 304 but no cached body exists")
		}
		return cached, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, kiterrors.New(kiterrors.Http, fmt.Sprintf("unexpected status %d fetching %s", resp.StatusCode, url))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, kiterrors.Wrap(kiterrors.Http, "read response body", err)
	}

	newSide := manifestcache.Sidecar{
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}
	if newSide.ETag == "" && newSide.LastModified == "" {
		sum := sha256.Sum256(body)
		newSide.Fingerprint = hex.EncodeToString(sum[:])
	}
	if hit && newSide.Fingerprint != "" && newSide.Fingerprint == side.Fingerprint {
		log.Debug().Str("url", url).Msg("manifest body unchanged, reusing cache")
		_ = r.Cache.Touch(key)
		return cached, nil
	}
	if err := r.Cache.Put(key, body, newSide); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to update manifest cache")
	}
	return body, nil
}
