// Package knowledge builds the agent's system instructions from the knowledge
// base articles.
package knowledge

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/voicedesk/internal/cache"
	"github.com/yoockh/voicedesk/internal/repositories/postgres"
)

const (
	instructionsCacheKey = "kb:instructions"
	instructionsCacheTTL = 5 * time.Minute
	maxArticles          = 100
)

const basePrompt = `You are a helpful phone support agent. Answer the caller's questions using
only the knowledge base below. If the knowledge base does not cover the
question, say so plainly, for example "I couldn't find information about that",
and offer to connect the caller with a human agent. Keep answers short and
conversational, this is a voice call. Ask for the caller's email address early
in the call so a summary can be sent afterwards.`

// Loader assembles session instructions from KB articles, caching the
// rendered prompt so every incoming call does not hit Postgres.
type Loader struct {
	repo  postgres.KBRepo
	cache cache.Cache
	log   *logrus.Entry
}

func NewLoader(repo postgres.KBRepo, c cache.Cache, log *logrus.Entry) *Loader {
	return &Loader{repo: repo, cache: c, log: log}
}

// Instructions returns the full system prompt. Cache and database failures
// degrade to the base prompt without any KB content rather than failing the
// call.
func (l *Loader) Instructions(ctx context.Context) string {
	if l.cache != nil {
		var cached string
		if hit, err := l.cache.GetJSON(ctx, instructionsCacheKey, &cached); err == nil && hit {
			return cached
		}
	}

	rendered := l.render(ctx)

	if l.cache != nil {
		if err := l.cache.SetJSON(ctx, instructionsCacheKey, rendered, instructionsCacheTTL); err != nil {
			l.log.WithError(err).Debug("kb instructions cache write failed")
		}
	}
	return rendered
}

func (l *Loader) render(ctx context.Context) string {
	if l.repo == nil {
		return basePrompt
	}

	articles, err := l.repo.ListEnabled(ctx, maxArticles)
	if err != nil {
		l.log.WithError(err).Warn("kb load failed, using base prompt")
		return basePrompt
	}
	if len(articles) == 0 {
		return basePrompt
	}

	var sb strings.Builder
	sb.WriteString(basePrompt)
	sb.WriteString("\n\nKnowledge base:\n")
	for _, a := range articles {
		sb.WriteString("\n## ")
		sb.WriteString(a.Title)
		sb.WriteString("\n")
		sb.WriteString(a.Body)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Invalidate drops the cached prompt, for use after KB edits.
func (l *Loader) Invalidate(ctx context.Context) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Del(ctx, instructionsCacheKey); err != nil {
		l.log.WithError(err).Debug("kb instructions cache invalidate failed")
	}
}
