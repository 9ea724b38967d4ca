package planner

import (
	"strings"

	"askace/internal/logging"
	"askace/internal/types"
)

type aliasEntry struct {
	source   types.SourceType
	keywords []string
}

// aliasTable is iterated in this order whenever sources are emitted.
var aliasTable = []aliasEntry{
	{types.SourceArxiv, []string{"paper", "arxiv", "research", "publication", "preprint", "pdf", "study", "journal"}},
	{types.SourceGitHub, []string{"github", "repo", "repository", "framework", "code", "implementation",
		"library", "sdk", "api", "install", "pip", "rust", "python"}},
	{types.SourceHuggingFace, []string{"huggingface", "model", "checkpoint", "dataset", "weights", "lora", "gguf", "quantized"}},
	{types.SourceNews, []string{"news", "announce", "launch", "report", "release", "update", "breaking",
		"business", "startup", "funding"}},
	{types.SourceBlogs, []string{"blog", "analysis", "review", "opinion", "newsletter", "guide", "tutorial",
		"how-to", "explained", "deep dive"}},
	{types.SourceTwitter, []string{"twitter", "tweet", "tweets", "x.com", "x", "reaction", "sentiment",
		"community", "thread", "digest", "influencers"}},
	{types.SourceReddit, []string{"reddit", "thread", "discussion", "subreddit", "tricks", "hacks", "tips",
		"experience", "review", "comparison", "vs"}},
}

var recencyTerms = []string{"latest", "breaking", "today", "recent", "updates", "digest", "tricks", "hacks", "tips"}

var defaultSources = []types.SourceType{
	types.SourceArxiv, types.SourceGitHub, types.SourceHuggingFace, types.SourceNews, types.SourceBlogs,
}

// MatchSourceTypes returns the sources whose keywords occur as substrings of
// text, in alias-table order. Recency language forces twitter and reddit.
// With includeDefaults, no match yields the broad default set.
func MatchSourceTypes(text string, includeDefaults bool) []types.SourceType {
	normalized := strings.ToLower(text)
	matched := make(map[types.SourceType]bool)
	for _, entry := range aliasTable {
		for _, kw := range entry.keywords {
			if strings.Contains(normalized, kw) {
				matched[entry.source] = true
				break
			}
		}
	}
	for _, term := range recencyTerms {
		if strings.Contains(normalized, term) {
			matched[types.SourceTwitter] = true
			matched[types.SourceReddit] = true
			break
		}
	}
	if len(matched) == 0 {
		if includeDefaults {
			return append([]types.SourceType(nil), defaultSources...)
		}
		return nil
	}
	return inAliasOrder(matched)
}

// effectiveSources is the union of task and question matches in alias order.
func effectiveSources(task, question []types.SourceType) []types.SourceType {
	set := make(map[types.SourceType]bool, len(task)+len(question))
	for _, s := range task {
		set[s] = true
	}
	for _, s := range question {
		set[s] = true
	}
	return inAliasOrder(set)
}

func inAliasOrder(set map[types.SourceType]bool) []types.SourceType {
	out := make([]types.SourceType, 0, len(set))
	for _, entry := range aliasTable {
		if set[entry.source] {
			out = append(out, entry.source)
		}
	}
	return out
}

// sourceMatches reports whether a hint namespace names source directly or
// through one of its aliases.
func sourceMatches(namespace string, source types.SourceType) bool {
	if namespace == string(source) {
		return true
	}
	for _, entry := range aliasTable {
		if entry.source != source {
			continue
		}
		for _, kw := range entry.keywords {
			if kw == namespace {
				return true
			}
		}
	}
	return false
}

// ResolveRewrite returns the rewrite of the first applicable hint, or "".
// Hints look like "trigger => rewrite" or "namespace: trigger => rewrite".
// A namespaced hint with an empty trigger applies unconditionally to its
// source. Hints without "=>" never rewrite.
func ResolveRewrite(hints []string, task, question string, source types.SourceType) string {
	taskLower := strings.ToLower(task)
	questionLower := strings.ToLower(question)

	for _, hint := range hints {
		triggerPart, rewrite, ok := strings.Cut(hint, "=>")
		if !ok {
			continue
		}
		triggerPart = strings.TrimSpace(triggerPart)
		rewrite = strings.TrimSpace(rewrite)
		if rewrite == "" {
			continue
		}

		trigger := triggerPart
		if ns, rest, hasNS := strings.Cut(triggerPart, ":"); hasNS {
			namespace := strings.ToLower(strings.TrimSpace(ns))
			trigger = strings.TrimSpace(rest)
			if namespace != "" && !sourceMatches(namespace, source) {
				continue
			}
		}
		trigger = strings.ToLower(trigger)

		if trigger == "" {
			logging.PlannerDebug("Applying source-only playbook rule %q for %s", triggerPart, source)
			return rewrite
		}
		if strings.Contains(taskLower, trigger) || strings.Contains(questionLower, trigger) {
			logging.PlannerDebug("Applying playbook trigger %q for %s", triggerPart, source)
			return rewrite
		}
	}
	return ""
}
