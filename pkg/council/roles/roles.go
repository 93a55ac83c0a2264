// Package roles holds the static, server-side-only role table: a role name
// paired with the system prompt that nudges a model's behavior under that
// role. Never derived from user input.
//
// Grounded on ai-notetaking-be's internal/repository/memory.SessionRepository
// for the go-cache lookup idiom, and on the reference council's
// backend/roles.py for the table contents and DEFAULT_ROLE fallback.
package roles

import (
	"github.com/patrickmn/go-cache"

	"ai-notetaking-be/pkg/council"
)

// DefaultRole is used when a model has no explicit entry in the table.
var DefaultRole = council.RoleSpec{
	RoleName: "Generalist",
	SystemPrompt: "You are a helpful generalist in an LLM council. " +
		"Be direct, accurate, and avoid inventing facts. " +
		"If something is unknown, say so and propose the next best step.",
}

var staticTable = map[string]council.RoleSpec{
	"openai/gpt-5.2": {
		RoleName: "Analyst",
		SystemPrompt: "You are the Analyst in an LLM council. " +
			"Prioritize clear structure, correct reasoning, and explicit assumptions. " +
			"Prefer short numbered steps. Avoid fluff and marketing language.",
	},
	"google/gemini-3-pro-preview": {
		RoleName: "Researcher",
		SystemPrompt: "You are the Researcher in an LLM council. " +
			"Prioritize factual coverage, edge-case facts, and crisp definitions. " +
			"If a claim is uncertain, label it as uncertain rather than guessing.",
	},
	"anthropic/claude-sonnet-4.5": {
		RoleName: "Critic",
		SystemPrompt: "You are the Critic in an LLM council. " +
			"Pressure-test the prompt and other answers: find ambiguity, missing constraints, " +
			"and likely failure modes. Offer concrete improvements. Stay grounded and avoid speculation.",
	},
	"x-ai/grok-4.1-fast": {
		RoleName: "Provocateur",
		SystemPrompt: "You are the Provocateur in an LLM council. " +
			"Challenge groupthink and propose alternative viewpoints or creative approaches. " +
			"Mark any speculation clearly; do not fabricate facts.",
	},
	"anthropic/claude-opus-4.5": {
		RoleName: "Chairman",
		SystemPrompt: "You are the Chairman of an LLM council. " +
			"Synthesize the best parts of the council into one final answer. " +
			"Prefer balance over dominance, and correct factual errors. " +
			"Be concise, practical, and avoid meta commentary.",
	},
}

// JudgeSystemPrompt is the role prompt every council member gets, after the
// contract stack and in place of its own role prompt, when it is dispatched
// for Stage 2: the ranking/critique instructions are shared across every
// judge regardless of role.
const JudgeSystemPrompt = "You are reviewing a set of anonymized responses from other council " +
	"members to the same prompt. Critique each response on its merits, citing specific text as " +
	"evidence. Do not try to guess which model produced which response. Follow the requested " +
	"output format exactly."

// AdjudicatorSystemPrompt is used for the optional tie-breaking pass, when a
// council's deliberation came out ambiguous or unreliable enough to warrant
// a fresh, independent read.
const AdjudicatorSystemPrompt = "You are an independent adjudicator brought in because the " +
	"council's own judges disagreed or produced unreliable critiques. Read the anonymized " +
	"responses fresh and produce your own honest ranking and critique. Do not defer to the " +
	"other judges' conclusions."

// Table caches role lookups behind go-cache, the way SessionRepository caches
// session lookups: a fixed table with no eviction pressure, so cache misses
// only happen for models the table genuinely has no entry for.
type Table struct {
	cache *cache.Cache
}

// NewTable builds a Table over the static role assignments. Entries never
// expire: the table is small and process-wide.
func NewTable() *Table {
	c := cache.New(cache.NoExpiration, 0)
	for modelID, spec := range staticTable {
		c.Set(modelID, spec, cache.NoExpiration)
	}
	return &Table{cache: c}
}

// Lookup returns the RoleSpec for modelID, falling back to DefaultRole.
func (t *Table) Lookup(modelID string) council.RoleSpec {
	if x, found := t.cache.Get(modelID); found {
		return x.(council.RoleSpec)
	}
	return DefaultRole
}

// Assign resolves RoleSpecs for every configured council member, in order.
func (t *Table) Assign(members []council.CouncilMember) []council.RoleSpec {
	specs := make([]council.RoleSpec, len(members))
	for i, m := range members {
		spec := t.Lookup(m.ModelID)
		if m.RoleName != "" {
			spec.RoleName = m.RoleName
		}
		specs[i] = spec
	}
	return specs
}
