// Package contextmanager resolves a chat question against the conversation
// that precedes it: it finds back-references, rewrites the question so it
// stands on its own, picks the history worth showing the provider and decides
// when the question is too vague to answer.
package contextmanager

import (
	"regexp"
	"sort"
	"strings"

	"docqa-workers/internal/common/logger"
	"docqa-workers/internal/models"
	"docqa-workers/internal/reasoning/textutil"
)

const (
	DefaultHistoryLimit = 20

	// leading window searched for back-reference pronouns
	referenceWindow = 3
	// turns scoring below this share of query terms are not relevant
	minRelevance = 0.1
	maxRelevant  = 3
	// assistant answers are shortened to this many bytes in provider context
	answerPreviewLen = 150
	// short questions with no entities in play are sent back for clarification
	shortQueryTokens = 3
)

var (
	referencePronouns = textutil.SetOf([]string{
		"it", "this", "that", "these", "those", "them", "they",
		"its", "their", "theirs", "he", "she", "his", "her",
	})

	continuationPhrases = []string{
		"also", "what about", "how about", "tell me more",
		"more details", "elaborate", "further", "additionally",
	}

	vagueQueries = []string{
		"what about it", "tell me more", "and that", "anything else",
		"what else", "more info", "details",
	}

	subjectVerbs = textutil.SetOf([]string{"is", "are", "was", "were", "has", "have", "shows", "indicates"})

	numberRe = regexp.MustCompile(`\$?\d[\d,]*(?:\.\d+)?[MBK]?`)
	dateRe   = regexp.MustCompile(`\b\d{4}\b|Q[1-4]|\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\b`)
	topicRe  = regexp.MustCompile(`(?i)(?:about|regarding|concerning|for)\s+([a-zA-Z\s]+?)(?:\?|,|\.|\s+and\s+)`)
)

type Config struct {
	HistoryLimit int
}

// Manager is stateless; one instance serves every request.
type Manager struct {
	historyLimit int
	log          logger.Logger
}

func New(cfg Config, log logger.Logger) *Manager {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	return &Manager{
		historyLimit: cfg.HistoryLimit,
		log:          logger.OrNoOp(log).With(map[string]interface{}{"component": "context-manager"}),
	}
}

// Prepare resolves query against history.
func (m *Manager) Prepare(query string, history []models.ConversationTurn) models.PreparedContext {
	if len(history) > m.historyLimit {
		history = history[len(history)-m.historyLimit:]
	}

	hasRefs := HasReferences(query)
	entities := ExtractEntities(history)

	augmented := query
	if hasRefs && len(history) > 0 {
		augmented = resolveReferences(query, history, entities)
	}

	pc := models.PreparedContext{
		AugmentedQuery:     augmented,
		RelevantHistory:    relevantHistory(query, history),
		Entities:           entities,
		NeedsClarification: needsClarification(query, augmented, entities),
		HasReferences:      hasRefs,
	}

	m.log.Debug("Context prepared", map[string]interface{}{
		"historyTurns":       len(history),
		"entities":           len(entities),
		"hasReferences":      hasRefs,
		"augmented":          augmented != query,
		"relevantHistory":    len(pc.RelevantHistory),
		"needsClarification": pc.NeedsClarification,
	})
	return pc
}

// HasReferences reports whether query leans on earlier turns: a pronoun
// among its first three tokens or a continuation phrase anywhere.
func HasReferences(query string) bool {
	if pronounIndex(strings.Fields(query)) >= 0 {
		return true
	}
	lower := strings.ToLower(query)
	for _, phrase := range continuationPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// pronounIndex returns the index of the first reference pronoun within the
// leading window of words, or -1.
func pronounIndex(words []string) int {
	for i := 0; i < len(words) && i < referenceWindow; i++ {
		if referencePronouns.Has(normalizeWord(words[i])) {
			return i
		}
	}
	return -1
}

func normalizeWord(w string) string {
	toks := textutil.Tokens(w)
	if len(toks) == 0 {
		return ""
	}
	return toks[0]
}

// ExtractEntities collects proper nouns, numbers and dates from user turns.
// Mentions are deduplicated case-insensitively keeping the most recent one,
// and returned newest first; mentions from the same turn keep text order.
func ExtractEntities(history []models.ConversationTurn) []models.EntityMention {
	type candidate struct {
		models.EntityMention
		order int
	}

	latest := make(map[string]candidate)
	order := 0
	add := func(text string, kind models.EntityKind, turn int) {
		key := strings.ToLower(text)
		recency := len(history) - turn
		if prev, ok := latest[key]; ok && prev.Recency <= recency {
			return
		}
		latest[key] = candidate{
			EntityMention: models.EntityMention{Text: text, Kind: kind, TurnIndex: turn, Recency: recency},
			order:         order,
		}
		order++
	}

	for i, turn := range history {
		if turn.Role != models.RoleUser {
			continue
		}
		for _, m := range textutil.CapitalizedRuns(turn.Content) {
			add(m, models.EntityProperNoun, i)
		}
		for _, m := range numberRe.FindAllString(turn.Content, -1) {
			add(m, models.EntityNumber, i)
		}
		for _, m := range dateRe.FindAllString(turn.Content, -1) {
			add(m, models.EntityDate, i)
		}
	}

	cands := make([]candidate, 0, len(latest))
	for _, c := range latest {
		cands = append(cands, c)
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Recency != cands[j].Recency {
			return cands[i].Recency < cands[j].Recency
		}
		return cands[i].order < cands[j].order
	})

	out := make([]models.EntityMention, len(cands))
	for i, c := range cands {
		out[i] = c.EntityMention
	}
	return out
}

// resolveReferences makes one best-effort rewrite of query. Any branch that
// cannot find what it needs leaves the query unchanged.
func resolveReferences(query string, history []models.ConversationTurn, entities []models.EntityMention) string {
	words := strings.Fields(query)
	if idx := pronounIndex(words); idx >= 0 {
		if last, ok := lastAssistantTurn(history); ok {
			if subject := mainSubject(last.Content, entities); subject != "" {
				words[idx] = replaceWordCore(words[idx], subject)
				return strings.Join(words, " ")
			}
		}
	}

	lower := strings.ToLower(strings.TrimSpace(query))
	if strings.HasPrefix(lower, "also") || strings.HasPrefix(lower, "additionally") {
		questions := userTurns(tail(history, 5))
		if len(questions) >= 2 {
			if topic := mainSubject(questions[len(questions)-2].Content, entities); topic != "" {
				return query + " about " + topic
			}
		}
	}

	if strings.Contains(lower, "what about") || strings.Contains(lower, "how about") {
		if topic := recentTopic(tail(history, 4)); topic != "" {
			return query + " (in context of " + topic + ")"
		}
	}

	return query
}

// lastAssistantTurn looks at the three newest turns only.
func lastAssistantTurn(history []models.ConversationTurn) (models.ConversationTurn, bool) {
	recent := tail(history, 3)
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].Role == models.RoleAssistant {
			return recent[i], true
		}
	}
	return models.ConversationTurn{}, false
}

// mainSubject picks what a piece of text is about: the first known entity
// mentioned in it, proper nouns before other kinds, else the words following
// the first linking verb of its first sentence.
func mainSubject(text string, entities []models.EntityMention) string {
	for _, kindFirst := range []bool{true, false} {
		for _, e := range entities {
			if (e.Kind == models.EntityProperNoun) != kindFirst {
				continue
			}
			if mentions(text, e.Text) {
				return e.Text
			}
		}
	}

	first := strings.SplitN(text, ".", 2)[0]
	words := strings.Fields(first)
	for i, w := range words {
		if subjectVerbs.Has(strings.ToLower(w)) && i+1 < len(words) {
			end := i + 4
			if end > len(words) {
				end = len(words)
			}
			return strings.Join(words[i+1:end], " ")
		}
	}
	return ""
}

func mentions(text, phrase string) bool {
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`)
	if err != nil {
		return textutil.ContainsFold(text, phrase)
	}
	return re.MatchString(text)
}

// replaceWordCore swaps the alphabetic core of word for subject, keeping any
// trailing punctuation.
func replaceWordCore(word, subject string) string {
	end := len(word)
	for end > 0 && strings.ContainsRune(".,;:!?)\"'", rune(word[end-1])) {
		end--
	}
	return subject + word[end:]
}

// recentTopic returns the newest "about X" style phrase from user turns.
func recentTopic(turns []models.ConversationTurn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role != models.RoleUser {
			continue
		}
		matches := topicRe.FindAllStringSubmatch(turns[i].Content, -1)
		for j := len(matches) - 1; j >= 0; j-- {
			if topic := strings.TrimSpace(matches[j][1]); topic != "" {
				return topic
			}
		}
	}
	return ""
}

type scoredTurn struct {
	turn  models.ConversationTurn
	score float64
}

// relevantHistory keeps up to three turns sharing at least 10% of the
// query's terms, best first; equal scores keep transcript order.
func relevantHistory(query string, history []models.ConversationTurn) []models.ConversationTurn {
	terms := textutil.NewTokenSet(query)
	if len(terms) == 0 {
		return nil
	}

	var scored []scoredTurn
	for _, turn := range history {
		score := textutil.OverlapRatio(terms, textutil.NewTokenSet(turn.Content))
		if score >= minRelevance {
			scored = append(scored, scoredTurn{turn: turn, score: score})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	if len(scored) > maxRelevant {
		scored = scored[:maxRelevant]
	}
	out := make([]models.ConversationTurn, len(scored))
	for i, s := range scored {
		out[i] = s.turn
	}
	return out
}

func needsClarification(query, augmented string, entities []models.EntityMention) bool {
	if len(entities) > 0 {
		return false
	}
	lower := strings.ToLower(query)
	for _, vague := range vagueQueries {
		if strings.Contains(lower, vague) && query == augmented {
			return true
		}
	}
	return textutil.WordCount(query) <= shortQueryTokens
}

// FormatForProvider renders the relevant history ahead of the resolved
// question. Without relevant history it is just the resolved question.
func FormatForProvider(pc models.PreparedContext) string {
	if len(pc.RelevantHistory) == 0 {
		return pc.AugmentedQuery
	}

	parts := []string{"Conversation context:"}
	for _, turn := range pc.RelevantHistory {
		switch turn.Role {
		case models.RoleUser:
			parts = append(parts, "Previous question: "+turn.Content)
		case models.RoleAssistant:
			parts = append(parts, "Previous answer: "+textutil.Truncate(turn.Content, answerPreviewLen))
		}
	}
	parts = append(parts, "\nCurrent question: "+pc.AugmentedQuery)
	return strings.Join(parts, "\n")
}

func tail(history []models.ConversationTurn, n int) []models.ConversationTurn {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

func userTurns(turns []models.ConversationTurn) []models.ConversationTurn {
	var out []models.ConversationTurn
	for _, t := range turns {
		if t.Role == models.RoleUser {
			out = append(out, t)
		}
	}
	return out
}
