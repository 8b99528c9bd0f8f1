package assistant_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/tbourn/nemo-backend/internal/assistant"
	"github.com/tbourn/nemo-backend/internal/domain"
)

var t0 = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func TestParseInput(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		modes []string
		want  assistant.Input
	}{
		{
			name: "plain text",
			raw:  "  Bonjour Nemo ",
			want: assistant.Input{Text: "Bonjour Nemo"},
		},
		{
			name: "search prefix",
			raw:  "/search météo à Lyon",
			want: assistant.Input{Text: "météo à Lyon", Search: true},
		},
		{
			name: "image request",
			raw:  "Génère un chat astronaute",
			want: assistant.Input{Text: "Génère un chat astronaute", ImagePrompt: "un chat astronaute"},
		},
		{
			name: "english image request",
			raw:  "create image a lighthouse at dusk",
			want: assistant.Input{Text: "create image a lighthouse at dusk", ImagePrompt: "a lighthouse at dusk"},
		},
		{
			name: "image prompt stops at the line break",
			raw:  "Génère un phare\nen style aquarelle",
			want: assistant.Input{Text: "Génère un phare\nen style aquarelle", ImagePrompt: "un phare"},
		},
		{
			name: "generate without a prompt is text",
			raw:  "generate",
			want: assistant.Input{Text: "generate"},
		},
		{
			name: "leading mode tokens",
			raw:  "/python /simulation trie une liste",
			want: assistant.Input{Text: "trie une liste", Modes: assistant.Modes{Python: true, Simulation: true}},
		},
		{
			name:  "modes array",
			raw:   "/search go 1.23",
			modes: []string{"admin", "unknown"},
			want:  assistant.Input{Text: "go 1.23", Search: true, Modes: assistant.Modes{Admin: true}},
		},
		{
			name: "mode token mid sentence is text",
			raw:  "que fait /admin ?",
			want: assistant.Input{Text: "que fait /admin ?"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gt.Equal(t, assistant.ParseInput(tc.raw, tc.modes), tc.want)
		})
	}
}

func TestSystemPrompt(t *testing.T) {
	u := domain.NewUser("u1", "", "Ada", "", t0)
	u.Goals = []string{"Go", "Kubernetes"}
	u.LastTopic = "channels"

	p := assistant.SystemPrompt(u, []string{"a", "b"}, assistant.Input{Modes: assistant.Modes{Python: true}})
	gt.S(t, p).Contains("Tu es Nemo Bot")
	gt.S(t, p).Contains("- Nom: Ada")
	gt.S(t, p).Contains("- Niveau: -")
	gt.S(t, p).Contains("- Objectifs: Go, Kubernetes")
	gt.S(t, p).Contains("- Dernier sujet abordé: channels")
	gt.S(t, p).Contains("MÉMOIRE PERSISTANTE: a; b")
	gt.S(t, p).Contains("MODE PYTHON")
	gt.S(t, p).NotContains("MODE ADMIN")
	gt.S(t, p).NotContains("recherche web. Utilise l'outil de recherche pour répondre")

	anon := assistant.SystemPrompt(nil, nil, assistant.Input{Search: true})
	gt.S(t, anon).NotContains("PROFIL UTILISATEUR")
	gt.S(t, anon).Contains("explicitement demandé une recherche web")
}

func TestVoicePrompt(t *testing.T) {
	u := domain.NewUser("u1", "", "Ada", "", t0)
	u.Level = "Beginner"
	p := assistant.VoicePrompt(u, []string{"aime Python"})
	gt.S(t, p).Contains("Tu es en appel vocal")
	gt.S(t, p).Contains("L'utilisateur s'appelle Ada.")
	gt.S(t, p).Contains("Niveau: Beginner.")
	gt.S(t, p).Contains("Mémoire: aime Python.")
}

func TestSelectMemories(t *testing.T) {
	entries := []string{
		"L'utilisateur apprend le Rust",
		"Travaille sur un robot en Go",
		"Prépare un entretien Kubernetes",
		"Aime la photographie",
		"Déploie ses projets sur le cloud",
	}

	t.Run("under the limit keeps everything", func(t *testing.T) {
		gt.Equal(t, assistant.SelectMemories(entries, "robot", 5), entries)
	})

	t.Run("ranks and keeps stored order", func(t *testing.T) {
		got := assistant.SelectMemories(entries, "mon robot en Go", 2)
		gt.A(t, got).Length(2)
		gt.Equal(t, got[0], "Travaille sur un robot en Go")
		// topped up with the most recent entry
		gt.Equal(t, got[1], "Déploie ses projets sur le cloud")
	})

	t.Run("accent insensitive", func(t *testing.T) {
		got := assistant.SelectMemories(entries, "deploie", 1)
		gt.Equal(t, got, []string{"Déploie ses projets sur le cloud"})
	})

	t.Run("no match falls back to recent", func(t *testing.T) {
		got := assistant.SelectMemories(entries, "zzz", 2)
		gt.Equal(t, got, []string{"Aime la photographie", "Déploie ses projets sur le cloud"})
	})
}
