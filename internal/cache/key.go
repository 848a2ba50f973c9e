// Package cache stores rendered artifacts under content-derived keys so that
// repeated runs with identical inputs skip generation.
package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"

	"repowiki/internal/config"
)

const (
	keyVersion = "v2"
	// MaxContextIDs bounds how many ranked evidence ids enter a key.
	MaxContextIDs = 64
)

// PageIdentity is the part of a page that shapes its content.
type PageIdentity struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Importance    string `json:"importance"`
	ParentSection string `json:"parent_section"`
}

// KeyInputs is everything a page artifact depends on.
type KeyInputs struct {
	Page       PageIdentity
	Section    string
	Retrieval  config.RetrievalConfig
	Generation config.GenerationConfig
	Language   string
	// ContextIDs are the selected evidence unit ids in ranked order.
	ContextIDs []string
}

// Key derives the cache key for in. It is a pure function of its input:
// object keys are serialized in sorted order and only the first
// MaxContextIDs ids count.
func Key(in KeyInputs) string {
	ids := in.ContextIDs
	if len(ids) > MaxContextIDs {
		ids = ids[:MaxContextIDs]
	}
	if ids == nil {
		ids = []string{}
	}
	payload := map[string]any{
		"v":          keyVersion,
		"page":       in.Page,
		"section":    in.Section,
		"retrieval":  in.Retrieval,
		"generation": in.Generation,
		"lang":       in.Language,
		"ctx_ids":    ids,
	}
	blob, err := json.Marshal(payload)
	if err != nil {
		// Only plain strings, ints and bools are marshalled.
		panic(err)
	}
	sum := sha1.Sum(blob)
	return hex.EncodeToString(sum[:])[:16]
}

// EntryName names the stored artifact of a page under key.
func EntryName(pageID, key string) string {
	return pageID + "__" + key + ".md"
}
