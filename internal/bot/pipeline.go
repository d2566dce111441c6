// ABOUTME: The agent's response pipeline: cache check, retrieval, prompt
// ABOUTME: construction, streamed generation, and local fallback synthesis.

package bot

import (
	"context"
	"math/rand"
	"strings"

	"github.com/socksthoughtshop/parlor/internal/protocol"
	"github.com/socksthoughtshop/parlor/internal/retrieval"
	"github.com/socksthoughtshop/parlor/internal/store"
	"github.com/socksthoughtshop/parlor/internal/stream"
)

// retrievalDepth is how many context documents back each generation.
const retrievalDepth = 3

// ProjectLister enumerates the corpus for the selection sub-dialog.
// *retrieval.Index implements it.
type ProjectLister interface {
	Projects(category string) []retrieval.Project
}

var fallbackResponses = []string{
	"That's an interesting question! I focus on web development, AI integration, and full-stack applications. What specific area interests you?",
	"Great question! My work spans Python, JavaScript, machine learning, and web technologies. Would you like to know more about any of these?",
	"I'd love to help! My projects involve modern web development, AI, and software engineering. What would you like to explore?",
	"Interesting! I work with technologies like Python, React, and AI systems. Is there a particular project type you're curious about?",
}

// respondPublic streams an answer on the open channel, wrapped in typing
// indicator frames. When preset is non-empty it is sent as-is instead of
// running the pipeline.
func (a *Agent) respondPublic(ctx context.Context, user, query, preset string) {
	a.sender.Broadcast(protocol.New(protocol.TypeBotTyping, protocol.BotTyping{User: a.name, Typing: true}))
	a.typingPause()

	asm := stream.New(a.name, func(f protocol.Frame) { a.sender.Broadcast(f) })

	var text, origin string
	if preset != "" {
		asm.Complete(preset)
		text, origin = preset, store.OriginCanned
	} else {
		text, origin = a.answer(ctx, user, query, asm)
	}

	a.sender.Broadcast(protocol.New(protocol.TypeBotTyping, protocol.BotTyping{User: a.name, Typing: false}))
	a.record(ctx, user, query, text, origin)
}

// privateReply resolves the reply text for a decrypted private message.
// Stream frames are not sent on private channels; the pipeline runs with a
// discard sink and the reply travels as one encrypted message.
func (a *Agent) privateReply(ctx context.Context, from, message string) string {
	a.mu.Lock()
	st := a.state(from)
	first := !st.greeted
	st.greeted = true
	awaiting := st.awaitingSelection
	a.mu.Unlock()

	if first {
		return greeting()
	}
	if awaiting {
		if reply, handled := a.resolveSelection(from, message); handled {
			return reply
		}
	}

	asm := stream.New(a.name, func(protocol.Frame) {})
	text, origin := a.answer(ctx, from, message, asm)
	a.record(ctx, from, message, text, origin)
	return text
}

// answer runs the full pipeline for one query and returns the reply text and
// its origin tag. Frames are emitted through asm; every path ends in exactly
// one completion frame.
func (a *Agent) answer(ctx context.Context, user, query string, asm *stream.Assembler) (string, string) {
	// Enumeration queries open the selection sub-dialog instead of
	// generating free text.
	if items, ok := a.selectionItems(query); ok {
		a.beginSelection(user, items)
		prompt := selectionPrompt(items)
		asm.Complete(prompt)
		return prompt, store.OriginCanned
	}

	if !a.inScope(query) {
		reply, ok := smallTalk(query)
		if !ok {
			reply = genericReply()
		}
		asm.Complete(reply)
		return reply, store.OriginCanned
	}

	if entry, ok := a.cache.Lookup(query); ok {
		a.logger.Info("cache hit", "query", query, "hits", entry.HitCount)
		asm.Complete(entry.Response)
		return entry.Response, store.OriginCache
	}

	category := retrieval.InferCategory(query)
	docs, err := a.retriever.Query(ctx, query, retrievalDepth, category)
	if err != nil {
		a.logger.Warn("retrieval failed", "error", err)
		docs = nil
	}

	chunks, err := a.generator.Generate(ctx, buildPrompt(query, docs))
	if err != nil {
		a.logger.Warn("generation unavailable", "error", err)
		fb := a.fallback(query, docs)
		asm.Complete(fb)
		return fb, store.OriginFallback
	}

	full, err := asm.Run(chunks)
	if err != nil {
		a.logger.Warn("generation stream failed", "error", err, "partial", len(full))
		fb := a.fallback(query, docs)
		asm.Complete(fb)
		return fb, store.OriginFallback
	}

	a.cache.Put(query, full, store.OriginGenerated)
	return full, store.OriginGenerated
}

// Answer resolves a reply for a query outside any conversation: cache, then
// retrieval and generation, then fallback. Used by administrative surfaces
// that want pipeline answers without a participant. Returns the text and its
// origin tag.
func (a *Agent) Answer(ctx context.Context, query string) (string, string) {
	asm := stream.New(a.name, func(protocol.Frame) {})

	if entry, ok := a.cache.Lookup(query); ok {
		return entry.Response, store.OriginCache
	}

	docs, err := a.retriever.Query(ctx, query, retrievalDepth, retrieval.InferCategory(query))
	if err != nil {
		docs = nil
	}

	chunks, err := a.generator.Generate(ctx, buildPrompt(query, docs))
	if err != nil {
		return a.fallback(query, docs), store.OriginFallback
	}
	full, err := asm.Run(chunks)
	if err != nil {
		return a.fallback(query, docs), store.OriginFallback
	}
	return full, store.OriginGenerated
}

// inScope reports whether the query matches the topic vocabulary.
func (a *Agent) inScope(query string) bool {
	lower := strings.ToLower(query)
	for _, topic := range a.topics {
		if strings.Contains(lower, topic) {
			return true
		}
	}
	return false
}

// selectionItems returns the choice set for enumeration-style queries
// ("list your projects", hobby questions) when the retriever can enumerate.
func (a *Agent) selectionItems(query string) ([]retrieval.Project, bool) {
	lister, ok := a.retriever.(ProjectLister)
	if !ok {
		return nil, false
	}

	lower := strings.ToLower(query)
	enumerating := strings.Contains(lower, "hobby") || strings.Contains(lower, "hobbies") ||
		(strings.Contains(lower, "list") && strings.Contains(lower, "project"))
	if !enumerating {
		return nil, false
	}

	items := lister.Projects(retrieval.InferCategory(query))
	if len(items) == 0 {
		return nil, false
	}
	return items, true
}

// buildPrompt assembles the generation prompt from retrieved context.
func buildPrompt(query string, docs []retrieval.Document) string {
	texts := make([]string, 0, len(docs))
	for _, d := range docs {
		texts = append(texts, d.Text)
	}
	context := strings.Join(texts, "\n---\n")

	return "You are an assistant that explains the portfolio's software and electrical projects clearly and concisely. " +
		"Label electrical projects as such. Use few words and only the most relevant details.\n\n" +
		"Context about the projects:\n" + context + "\n\n" +
		"User question: " + query + "\n\n" +
		"Provide a helpful, concise response based on the project information above."
}

// fallback synthesizes a reply from retrieved context when generation is
// unavailable, or picks a canned response when there is no context either.
func (a *Agent) fallback(query string, docs []retrieval.Document) string {
	if len(docs) == 0 {
		return fallbackResponses[rand.Intn(len(fallbackResponses))]
	}

	name, skills := parseDocument(docs[0].Text)
	lower := strings.ToLower(query)

	switch {
	case strings.Contains(lower, "skills") || strings.Contains(lower, "technologies") || strings.Contains(lower, "tech"):
		return "I have experience with " + strings.Join(skills, ", ") + " and more, particularly in projects like " + name + "."
	case strings.Contains(lower, "project") || strings.Contains(lower, "work") || strings.Contains(lower, "built"):
		return "I worked on " + name + ", which involved " + strings.Join(firstN(skills, 3), ", ") + ". It's a good example of my development experience."
	default:
		return "That relates to my work on " + name + ". I used technologies like " + strings.Join(firstN(skills, 3), ", ") + " for this project."
	}
}

// parseDocument pulls the project name and skill list back out of a rendered
// corpus document.
func parseDocument(text string) (name string, skills []string) {
	name = "a project"
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(line, "Project:"); ok {
			name = strings.TrimSpace(after)
		} else if after, ok := strings.CutPrefix(line, "Skills:"); ok {
			for _, s := range strings.Split(after, ",") {
				if s = strings.TrimSpace(s); s != "" {
					skills = append(skills, s)
				}
			}
		}
	}
	if len(skills) > 4 {
		skills = skills[:4]
	}
	return name, skills
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// record logs a completed exchange to the persistence collaborator.
func (a *Agent) record(ctx context.Context, participant, query, response, origin string) {
	if a.recorder == nil || query == "" {
		return
	}
	err := a.recorder.RecordExchange(ctx, store.Exchange{
		Participant: participant,
		Query:       query,
		Response:    response,
		Origin:      origin,
	})
	if err != nil {
		a.logger.Warn("recording exchange", "error", err)
	}
}
