package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/tbourn/nemo-backend/internal/domain"
	"github.com/tbourn/nemo-backend/internal/services"
)

const analysisTemplate = `Analyse cette conversation pour extraire des informations de mémoire à long terme.
User: %s
Bot: %s

Objectif: Identifier les noms, intérêts, compétences, projets, objectifs, faiblesses et préférences.

Retourne un JSON avec ce format:
{
  "level": "Beginner|Intermediate|Advanced",
  "weaknesses": ["nouveau point faible identifié"],
  "strengths": ["nouveau point fort identifié"],
  "progress": 2,
  "memoryEntry": "Une information clé à retenir (ex: 'L'utilisateur travaille sur un projet de robotique')",
  "summary": "Résumé mis à jour de la session",
  "topic": "Sujet technique actuel",
  "goals": ["nouvel objectif détecté"]
}
"progress" est un incrément de progression entre 0 et 5.`

// parseAnalysis decodes the model's JSON answer, tolerating a Markdown
// code fence around it.
func parseAnalysis(text string) (services.Analysis, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	var a services.Analysis
	if text == "" {
		return a, nil
	}
	if err := json.Unmarshal([]byte(text), &a); err != nil {
		return a, goerr.Wrap(err, "failed to decode analysis", goerr.V("text", text))
	}
	return a, nil
}

// maybeAnalyze starts a profile analysis on every AnalyzeEvery-th user
// message of the conversation. The autoMemory setting is a client
// preference and does not gate it.
func (a *Assistant) maybeAnalyze(ctx context.Context, u *domain.User, conversationID, userText, botText string) {
	if a.cfg.AnalyzeEvery <= 0 || u == nil {
		return
	}
	n, err := a.messages.Count(ctx, u.ID, conversationID, domain.RoleUser)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("conversation_id", conversationID).Msg("count user messages")
		return
	}
	if n == 0 || n%int64(a.cfg.AnalyzeEvery) != 0 {
		return
	}

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.AnalysisTimeout)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer cancel()
		if err := a.analyze(actx, u.ID, userText, botText); err != nil {
			zerolog.Ctx(actx).Warn().Err(err).Str("user_id", u.ID).Msg("profile analysis failed")
		}
	}()
}

func (a *Assistant) analyze(ctx context.Context, uid, userText, botText string) error {
	prompt := fmt.Sprintf(analysisTemplate, userText, botText)
	resp, err := a.gemini.GenerateContent(ctx, a.cfg.ChatModel,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return err
	}
	analysis, err := parseAnalysis(responseText(resp))
	if err != nil {
		return err
	}
	_, err = a.profiles.Analyze(ctx, uid, analysis)
	return err
}

// Wait blocks until background analyses have finished.
func (a *Assistant) Wait() {
	a.wg.Wait()
}
