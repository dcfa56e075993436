package config

import (
	"sort"

	"github.com/shinji-kodama/deployctl/internal/model"
)

// defaultCatalog lists the variables the backend service reads. deployctl
// only displays them; values are passed through without parsing.
var defaultCatalog = []model.EnvVar{
	{Key: "MONGODB_URI", Description: "database connection string", Secret: true},
	{Key: "GROQ_API_KEY", Description: "LLM API credential", Secret: true},
	{Key: "WHISPER_MODEL_SIZE", Description: "speech-to-text model size"},
	{Key: "EMBEDDING_MODEL", Description: "document embedding model"},
	{Key: "CHUNK_SECONDS", Description: "audio chunk length in seconds"},
	{Key: "SYNTHESIS_SECONDS", Description: "note synthesis interval in seconds"},
}

// DefaultCatalog returns a copy of the built-in pass-through catalog.
func DefaultCatalog() []model.EnvVar {
	out := make([]model.EnvVar, len(defaultCatalog))
	copy(out, defaultCatalog)
	return out
}

// MergeCatalog adds the deploy file entries to the built-in catalog.
// An entry with a known key replaces its description when one is given,
// and can only tighten Secret (a built-in secret stays secret).
// The result is sorted by key.
func MergeCatalog(base, extra []model.EnvVar) []model.EnvVar {
	byKey := make(map[string]model.EnvVar, len(base)+len(extra))
	for _, v := range base {
		byKey[v.Key] = v
	}
	for _, v := range extra {
		existing, ok := byKey[v.Key]
		if !ok {
			byKey[v.Key] = v
			continue
		}
		if v.Description != "" {
			existing.Description = v.Description
		}
		existing.Secret = existing.Secret || v.Secret
		byKey[v.Key] = existing
	}

	out := make([]model.EnvVar, 0, len(byKey))
	for _, v := range byKey {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
