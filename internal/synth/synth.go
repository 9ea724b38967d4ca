// Package synth turns ranked evidence into cited bullet answers.
package synth

import (
	"context"
	"strings"
	"time"

	"askace/internal/llm"
	"askace/internal/logging"
	"askace/internal/metrics"
	"askace/internal/types"
)

const (
	MinBullets        = 3
	MaxBullets        = 7
	fallbackSnippetLn = 220

	// two generation passes beyond this are worth a warning
	slowSynthesis = 30 * time.Second
)

const (
	draftSystem = "You are an expert AI/ML research analyst creating a Daily Digest. " +
		"Synthesize concise, actionable bullet points (news, tricks, updates) with precise inline citations."
	draftInstructions = "Instructions:\n" +
		"1. Write 3-7 bullet points using the format '- [Claim] [citation]'.\n" +
		"2. Each bullet must contain exactly one primary claim enriched with metrics/details.\n" +
		"3. Use citation tags like [1], [2] referencing the snippet IDs provided in Context.\n" +
		"4. Highlight practical tricks, breaking news, or benchmarks.\n" +
		"5. Do NOT write any introduction or conclusion. Start directly with the bullets.\n" +
		"6. After the bullets, add a section 'Sources:' listing titles and URLs."

	densitySystem = "You enhance AI research summaries using chain-of-density. " +
		"Output ONLY the refined bullet points."
	densityRules = "Improve density with these rules:\n" +
		"1. Preserve the bullet point format '- ...'.\n" +
		"2. Insert missing proper nouns, datasets, benchmarks, and license info.\n" +
		"3. Ensure every bullet has at least one citation [x].\n" +
		"4. Do not introduce information absent from the context.\n" +
		"5. Output ONLY the bullets. No preamble."
)

var generationOptions = llm.Options{Temperature: 0.2, MaxTokens: 600}

// Synthesizer drafts and densifies an answer with one generation client.
type Synthesizer struct {
	llm llm.Client
}

// New creates a synthesizer.
func New(client llm.Client) *Synthesizer {
	return &Synthesizer{llm: client}
}

// Synthesize builds the answer for question from chunks. It fails only
// with types.ErrEvidenceExhausted when chunks is empty; generation failures
// degrade to extractive fallback bullets.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, chunks []types.Chunk, runID string) (*types.AnswerResponse, types.SynthTrace, error) {
	trace := types.SynthTrace{Usage: map[string]int{}}
	if len(chunks) == 0 {
		return nil, trace, types.ErrEvidenceExhausted
	}
	timer := logging.StartTimer(logging.CategorySynth, "Synthesize")
	defer timer.StopWithThreshold(slowSynthesis)

	citations, byURL := BuildCitations(chunks)
	evidence := BuildContext(chunks, byURL)

	var bullets []types.AnswerBullet
	draft, err := s.generate(ctx, &trace, draftSystem,
		"Question: "+question+"\n\nContext snippets:\n"+evidence+"\n\n"+draftInstructions)
	if err == nil {
		trace.Draft = draft
		refined, err := s.generate(ctx, &trace, densitySystem,
			"Question: "+question+"\nContext:\n"+evidence+"\n\nDraft summary:\n"+draft+"\n\n"+densityRules)
		if err == nil {
			trace.Refined = refined
			bullets = ParseBullets(refined)
		} else {
			logging.Get(logging.CategorySynth).Warn("Density pass failed: %v", err)
		}
	} else {
		logging.Get(logging.CategorySynth).Warn("Draft pass failed: %v", err)
	}

	if len(bullets) == 0 {
		logging.Get(logging.CategorySynth).Warn("Synthesizer produced no bullets; generating fallback from top chunks")
		bullets = FallbackBullets(chunks, byURL)
		trace.UsedFallback = true
	}
	trace.BulletCount = len(bullets)

	logging.Synth("Synthesized %d bullets from %d chunks (%d sources, fallback=%v)",
		len(bullets), len(chunks), len(citations), trace.UsedFallback)

	return &types.AnswerResponse{
		Question: question,
		Bullets:  bullets,
		Sources:  citations,
		RunID:    runID,
		Metadata: map[string]interface{}{
			"raw_initial": trace.Draft,
			"raw_refined": trace.Refined,
		},
	}, trace, nil
}

func (s *Synthesizer) generate(ctx context.Context, trace *types.SynthTrace, system, user string) (string, error) {
	resp, err := s.llm.Generate(ctx, []llm.Message{llm.System(system), llm.User(user)}, generationOptions)
	if err != nil {
		return "", err
	}
	for k, v := range resp.Usage {
		trace.Usage[k] += v
		metrics.LLMTokens.WithLabelValues(s.llm.Name(), k).Add(float64(v))
	}
	return strings.TrimSpace(resp.Content), nil
}

// FallbackBullets emits one extractive bullet per distinct URL, in chunk
// order, until max(3, min(7, #sources)) bullets exist or chunks run out.
func FallbackBullets(chunks []types.Chunk, byURL map[string]types.Citation) []types.AnswerBullet {
	limit := len(byURL)
	if limit > MaxBullets {
		limit = MaxBullets
	}
	if limit < MinBullets {
		limit = MinBullets
	}

	var bullets []types.AnswerBullet
	used := make(map[string]bool)
	for _, c := range chunks {
		if used[c.URL] {
			continue
		}
		used[c.URL] = true
		label := byURL[c.URL].Label

		text := strings.TrimSpace(c.Text)
		sentence, _, _ := strings.Cut(text, ". ")
		sentence = firstRunes(strings.TrimSpace(sentence), fallbackSnippetLn)
		if sentence == "" {
			sentence = firstRunes(text, fallbackSnippetLn)
		}
		bullets = append(bullets, types.AnswerBullet{
			Text:      c.Title + ": " + sentence + " [" + label + "]",
			Citations: []string{label},
		})
		if len(bullets) >= limit {
			break
		}
	}
	return bullets
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
