package assistant

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tbourn/nemo-backend/internal/domain"
	"github.com/tbourn/nemo-backend/internal/search"
)

const searchPrefix = "/search "

// imageRE captures the prompt up to the end of the first line.
var imageRE = regexp.MustCompile(`(?i)^(génère|générer|generate|create image)\s+(.+)`)

// Modes toggle extra paragraphs of the system prompt. They grant nothing.
type Modes struct {
	Admin      bool
	Python     bool
	Simulation bool
}

// Input is a parsed chat message.
type Input struct {
	Text        string
	Search      bool
	ImagePrompt string
	Modes       Modes
}

// ParseInput strips the command prefixes of raw and merges the mode flags
// sent alongside it.
func ParseInput(raw string, modes []string) Input {
	in := Input{}
	for _, m := range modes {
		in.Modes.set(m)
	}

	text := strings.TrimSpace(raw)
	for {
		tok, rest, _ := strings.Cut(text, " ")
		if !in.Modes.set(tok) {
			break
		}
		text = strings.TrimSpace(rest)
	}

	if strings.HasPrefix(strings.ToLower(text), searchPrefix) {
		in.Search = true
		text = strings.TrimSpace(text[len(searchPrefix):])
	}
	if m := imageRE.FindStringSubmatch(text); m != nil {
		in.ImagePrompt = strings.TrimSpace(m[2])
	}
	in.Text = text
	return in
}

func (m *Modes) set(tok string) bool {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tok), "/")) {
	case "admin":
		m.Admin = true
	case "python":
		m.Python = true
	case "simulation":
		m.Simulation = true
	default:
		return false
	}
	return true
}

const persona = `Tu es Nemo Bot, un assistant IA de nouvelle génération conçu par Lazarus Lab.
Lazarus Lab est un programme d'apprentissage et de développement axé sur l'intelligence artificielle, la programmation et la création de projets technologiques avancés.
Ton objectif est de former des développeurs capables de comprendre, construire et déployer des systèmes intelligents modernes.

STYLE DE RÉPONSE:
- Utilise des titres Markdown (# et ##) pour les sections principales et ### pour les détails.
- Sépare les sections avec des lignes horizontales (---).
- Mets les points importants en gras et les nuances en italique.
- Utilise des tableaux pour comparer des données et des listes ordonnées pour les processus.
- Quelques emojis stratégiques (📌, ⚡, 💎, 🚀) structurent les informations.

Ton rôle:
- Tu suis la progression de l'utilisateur et adaptes tes explications à son niveau.
- Tu disposes d'un outil de recherche web. Utilise-le quand une information externe ou récente est nécessaire, et cite tes sources.
- Tu as accès à la mémoire à long terme de l'utilisateur. Si l'utilisateur mentionne un projet, souviens-t'en.`

const instructions = `INSTRUCTIONS:
- Sois technique mais pédagogique.
- Encourage l'expérimentation.
- Si l'utilisateur fait une erreur, guide-le pour qu'il la trouve lui-même.`

const (
	adminParagraph = `MODE ADMIN:
- L'utilisateur travaille sur la configuration de Nemo. Réponds de façon directe et détaillée sur le fonctionnement interne de tes réponses.`
	pythonParagraph = `MODE PYTHON:
- Réponds avec du code Python complet et exécutable, suivi d'une courte explication.`
	simulationParagraph = `MODE SIMULATION:
- Simule l'environnement ou le système décrit par l'utilisateur et réponds comme il le ferait, étape par étape.`
	searchParagraph = `- L'utilisateur a explicitement demandé une recherche web. Utilise l'outil de recherche pour répondre.`
)

// SystemPrompt assembles the chat system instruction. memories is already
// trimmed to what should appear in the prompt.
func SystemPrompt(u *domain.User, memories []string, in Input) string {
	var b strings.Builder
	b.WriteString(persona)
	if u != nil {
		b.WriteString("\n\nPROFIL UTILISATEUR:\n")
		fmt.Fprintf(&b, "- Nom: %s\n", u.Name)
		fmt.Fprintf(&b, "- Niveau: %s\n", orDash(u.Level))
		fmt.Fprintf(&b, "- Objectifs: %s\n", orDash(strings.Join(u.Goals, ", ")))
		fmt.Fprintf(&b, "- Points faibles: %s\n", orDash(strings.Join(u.Weaknesses, ", ")))
		fmt.Fprintf(&b, "- Points forts: %s\n", orDash(strings.Join(u.Strengths, ", ")))
		fmt.Fprintf(&b, "- Résumé des sessions passées: %s\n", orDash(u.ConversationSummary))
		fmt.Fprintf(&b, "- Dernier sujet abordé: %s\n", orDash(u.LastTopic))
		fmt.Fprintf(&b, "- MÉMOIRE PERSISTANTE: %s", orDash(strings.Join(memories, "; ")))
	}
	if in.Modes.Admin {
		b.WriteString("\n\n" + adminParagraph)
	}
	if in.Modes.Python {
		b.WriteString("\n\n" + pythonParagraph)
	}
	if in.Modes.Simulation {
		b.WriteString("\n\n" + simulationParagraph)
	}
	b.WriteString("\n\n" + instructions)
	if in.Search {
		b.WriteString("\n" + searchParagraph)
	}
	return b.String()
}

// VoicePrompt is the short instruction used during voice calls.
func VoicePrompt(u *domain.User, memories []string) string {
	var b strings.Builder
	b.WriteString("Tu es Nemo Bot, un mentor IA intelligent. Tu es en appel vocal.\n")
	if u != nil {
		fmt.Fprintf(&b, "L'utilisateur s'appelle %s.\n", u.Name)
		fmt.Fprintf(&b, "Niveau: %s.\n", orDash(u.Level))
		fmt.Fprintf(&b, "Mémoire: %s.\n", orDash(strings.Join(memories, "; ")))
	}
	b.WriteString("Parle de manière naturelle, calme et encourageante. Adapte ton langage au niveau de l'utilisateur. Sois concis mais profond.")
	return b.String()
}

// SelectMemories keeps every entry when there are at most limit of them.
// Otherwise it keeps the entries most similar to query, topped up with the
// most recent ones, in their stored order.
func SelectMemories(entries []string, query string, limit int) []string {
	if limit <= 0 || len(entries) <= limit {
		return entries
	}
	ranker := search.NewRanker(entries, search.FrenchStopwords)

	picked := make(map[int]struct{}, limit)
	for _, m := range ranker.Rank(query, limit) {
		picked[m.Position] = struct{}{}
	}
	for i := len(entries) - 1; i >= 0 && len(picked) < limit; i-- {
		picked[i] = struct{}{}
	}

	pos := make([]int, 0, len(picked))
	for p := range picked {
		pos = append(pos, p)
	}
	sort.Ints(pos)
	out := make([]string, len(pos))
	for i, p := range pos {
		out[i] = entries[p]
	}
	return out
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// optimizePrompt asks the chat model to rewrite an image prompt.
func optimizePrompt(prompt string) string {
	return "Optimise ce prompt pour une génération d'image de haute qualité. Sois descriptif et artistique. Prompt original: \"" +
		prompt + "\". Réponds UNIQUEMENT avec le prompt optimisé en anglais."
}
