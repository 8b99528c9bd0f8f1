// Package assistant runs chat turns against Gemini on behalf of a signed-in
// user. A turn reads the profile and recent messages, persists the user
// message, calls the model and persists the answer. Every few user messages
// the exchange is analysed in the background and merged into the profile.
package assistant

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/tbourn/nemo-backend/internal/config"
	"github.com/tbourn/nemo-backend/internal/domain"
	"github.com/tbourn/nemo-backend/internal/services"
)

// Canned bot texts.
const (
	FallbackReply   = "Désolé, je n'ai pas pu traiter votre demande."
	ErrorReply      = "Une erreur système est survenue. Veuillez patienter."
	ImageErrorReply = "Désolé, une erreur est survenue lors de la génération de l'image. Le contenu est peut-être bloqué par les filtres de sécurité."
	filePrompt      = "Analyse ce fichier."
)

const (
	chatTitleRunes  = 30
	imageTitleRunes = 20
)

var (
	// ErrUnavailable is returned when no Gemini client is configured.
	ErrUnavailable = errors.New("assistant unavailable")

	// ErrGeneration is returned when a call without a canned fallback fails.
	ErrGeneration = errors.New("generation failed")

	// ErrEmptyInput is returned when a turn carries neither text nor file.
	ErrEmptyInput = errors.New("empty input")
)

// Conversations creates and loads the caller's conversations.
type Conversations interface {
	Create(ctx context.Context, uid, title, summary string) (*domain.Conversation, error)
	Get(ctx context.Context, uid, id string) (*domain.Conversation, error)
}

// Messages reads and appends the messages of a conversation.
type Messages interface {
	List(ctx context.Context, uid, conversationID string, limit int) ([]domain.Message, error)
	Append(ctx context.Context, uid, conversationID string, in services.NewMessage, key string) (*domain.Message, bool, error)
	Count(ctx context.Context, uid, conversationID, role string) (int64, error)
}

// Users loads the caller's profile.
type Users interface {
	Me(ctx context.Context, uid string) (*domain.User, error)
}

// Profiles merges analyses into the profile.
type Profiles interface {
	Analyze(ctx context.Context, uid string, a services.Analysis) (*domain.User, error)
}

// Uploader stores generated media and returns a URL for it.
type Uploader interface {
	Upload(ctx context.Context, path string, data []byte, mimeType string) (string, error)
}

// Config tunes the assistant.
type Config struct {
	ChatModel         string
	ImageModel        string
	SpeechModel       string
	Voice             string
	AnalyzeEvery      int
	ContextMessages   int
	MemoryPromptLimit int
	AnalysisTimeout   time.Duration
}

// NewConfig merges the Gemini and assistant settings.
func NewConfig(g config.GeminiConfig, a config.AssistantConfig) Config {
	return Config{
		ChatModel:         g.ChatModel,
		ImageModel:        g.ImageModel,
		SpeechModel:       g.SpeechModel,
		Voice:             g.Voice,
		AnalyzeEvery:      a.AnalyzeEvery,
		ContextMessages:   a.ContextMessages,
		MemoryPromptLimit: a.MemoryPromptLimit,
		AnalysisTimeout:   a.AnalysisTimeout,
	}
}

// Deps are the collaborators of an Assistant. Uploader is optional.
type Deps struct {
	Gemini        Gemini
	Conversations Conversations
	Messages      Messages
	Users         Users
	Profiles      Profiles
	Uploader      Uploader
}

// Assistant orchestrates chat, image, speech and voice turns.
type Assistant struct {
	gemini        Gemini
	conversations Conversations
	messages      Messages
	users         Users
	profiles      Profiles
	uploader      Uploader
	cfg           Config
	now           func() time.Time

	wg sync.WaitGroup
}

// New builds an Assistant. A nil d.Gemini makes every turn fail with
// ErrUnavailable.
func New(d Deps, cfg Config) *Assistant {
	if cfg.ContextMessages <= 0 {
		cfg.ContextMessages = 10
	}
	if cfg.AnalysisTimeout <= 0 {
		cfg.AnalysisTimeout = 30 * time.Second
	}
	if cfg.Voice == "" {
		cfg.Voice = "Zephyr"
	}
	return &Assistant{
		gemini:        d.Gemini,
		conversations: d.Conversations,
		messages:      d.Messages,
		users:         d.Users,
		profiles:      d.Profiles,
		uploader:      d.Uploader,
		cfg:           cfg,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Enabled reports whether a Gemini client is configured.
func (a *Assistant) Enabled() bool { return a != nil && a.gemini != nil }

func tracer() trace.Tracer { return otel.Tracer("assistant") }

func startSpan(ctx context.Context, name, uid string) (context.Context, trace.Span) {
	return tracer().Start(ctx, name, trace.WithAttributes(attribute.String("user.id", uid)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Attachment is a file sent with a chat message.
type Attachment struct {
	Name string
	Type string
	Data []byte
}

// ChatRequest is one user turn.
type ChatRequest struct {
	ConversationID string
	Content        string
	File           *Attachment
	Modes          []string
}

// Reply is the outcome of a turn. When Failed is set, Message is a canned
// answer that was not stored.
type Reply struct {
	ConversationID string          `json:"conversationId"`
	UserMessage    *domain.Message `json:"userMessage,omitempty"`
	Message        *domain.Message `json:"message"`
	Failed         bool            `json:"failed,omitempty"`
}

// Chat runs a text turn, or an image turn when the text asks for one.
func (a *Assistant) Chat(ctx context.Context, uid string, req ChatRequest) (_ *Reply, err error) {
	if !a.Enabled() {
		return nil, ErrUnavailable
	}
	in := ParseInput(req.Content, req.Modes)
	if in.Text == "" && req.File == nil {
		return nil, ErrEmptyInput
	}
	if in.ImagePrompt != "" && req.File == nil {
		return a.Image(ctx, uid, ImageRequest{ConversationID: req.ConversationID, Prompt: in.ImagePrompt})
	}

	ctx, span := startSpan(ctx, "Chat", uid)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Bool("search", in.Search), attribute.Bool("file", req.File != nil))

	user, err := a.users.Me(ctx, uid)
	if err != nil {
		return nil, err
	}
	title := in.Text
	if title == "" {
		title = req.File.Name
	}
	conv, err := a.conversation(ctx, uid, req.ConversationID, clip(title, chatTitleRunes))
	if err != nil {
		return nil, err
	}
	history, err := a.messages.List(ctx, uid, conv.ID, a.cfg.ContextMessages)
	if err != nil {
		return nil, err
	}

	stored := services.NewMessage{Role: domain.RoleUser, Content: strings.TrimSpace(req.Content)}
	if req.File != nil {
		stored.File = &domain.FileMeta{Name: req.File.Name, Type: req.File.Type, Size: int64(len(req.File.Data))}
		if stored.Content == "" {
			stored.Content = "File: " + req.File.Name
		}
	}
	userMsg, _, err := a.messages.Append(ctx, uid, conv.ID, stored, "")
	if err != nil {
		return nil, err
	}

	contents := historyContents(history)
	contents = append(contents, userContent(in.Text, req.File))
	memories := SelectMemories(user.MemoryEntries, in.Text, a.cfg.MemoryPromptLimit)
	resp, gerr := a.gemini.GenerateContent(ctx, a.cfg.ChatModel, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt(user, memories, in), ""),
		Tools:             []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	})
	if gerr != nil {
		zerolog.Ctx(ctx).Error().Err(gerr).Str("conversation_id", conv.ID).Msg("chat generation failed")
		return a.failed(conv.ID, userMsg, ErrorReply), nil
	}

	text := strings.TrimSpace(responseText(resp))
	if text == "" {
		text = FallbackReply
	}
	botMsg, _, err := a.messages.Append(ctx, uid, conv.ID, services.NewMessage{
		Role:              domain.RoleBot,
		Content:           text,
		GroundingMetadata: groundingMetadata(ctx, resp),
	}, "")
	if err != nil {
		return nil, err
	}

	a.maybeAnalyze(ctx, user, conv.ID, in.Text, text)
	return &Reply{ConversationID: conv.ID, UserMessage: userMsg, Message: botMsg}, nil
}

// ImageRequest asks for a generated image.
type ImageRequest struct {
	ConversationID string
	Prompt         string
}

// Image runs an image turn: the prompt is rewritten by the chat model, then
// rendered by the image model.
func (a *Assistant) Image(ctx context.Context, uid string, req ImageRequest) (_ *Reply, err error) {
	if !a.Enabled() {
		return nil, ErrUnavailable
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, ErrEmptyInput
	}

	ctx, span := startSpan(ctx, "Image", uid)
	defer func() { endSpan(span, err) }()

	conv, err := a.conversation(ctx, uid, req.ConversationID, "Image: "+clip(prompt, imageTitleRunes))
	if err != nil {
		return nil, err
	}
	userMsg, _, err := a.messages.Append(ctx, uid, conv.ID, services.NewMessage{
		Role:    domain.RoleUser,
		Content: "Génère une image : " + prompt,
	}, "")
	if err != nil {
		return nil, err
	}

	optimized := prompt
	if resp, err := a.gemini.GenerateContent(ctx, a.cfg.ChatModel,
		[]*genai.Content{genai.NewContentFromText(optimizePrompt(prompt), genai.RoleUser)}, nil); err == nil {
		if t := strings.TrimSpace(responseText(resp)); t != "" {
			optimized = t
		}
	} else {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("image prompt optimisation failed")
	}

	resp, gerr := a.gemini.GenerateContent(ctx, a.cfg.ImageModel,
		[]*genai.Content{genai.NewContentFromText(optimized, genai.RoleUser)},
		&genai.GenerateContentConfig{ImageConfig: &genai.ImageConfig{AspectRatio: "1:1"}},
	)
	blob := inlineData(resp)
	if gerr != nil || blob == nil {
		zerolog.Ctx(ctx).Error().Err(gerr).Str("conversation_id", conv.ID).Msg("image generation failed")
		return a.failed(conv.ID, userMsg, ImageErrorReply), nil
	}

	botMsg, _, err := a.messages.Append(ctx, uid, conv.ID, services.NewMessage{
		Role:    domain.RoleBot,
		Content: "Voici l'image générée pour : \"" + prompt + "\"",
		Image:   a.imageURL(ctx, uid, blob),
	}, "")
	if err != nil {
		return nil, err
	}
	return &Reply{ConversationID: conv.ID, UserMessage: userMsg, Message: botMsg}, nil
}

// Speech synthesises text with the given prebuilt voice, or the default one.
func (a *Assistant) Speech(ctx context.Context, text, voice string) (_ *Audio, err error) {
	if !a.Enabled() {
		return nil, ErrUnavailable
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}
	if voice = strings.TrimSpace(voice); voice == "" {
		voice = a.cfg.Voice
	}

	ctx, span := tracer().Start(ctx, "Speech", trace.WithAttributes(attribute.String("voice", voice)))
	defer func() { endSpan(span, err) }()

	resp, err := a.gemini.GenerateContent(ctx, a.cfg.SpeechModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.GenerateContentConfig{
			ResponseModalities: []string{string(genai.ModalityAudio)},
			SpeechConfig: &genai.SpeechConfig{
				VoiceConfig: &genai.VoiceConfig{
					PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
				},
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	blob := inlineData(resp)
	if blob == nil {
		return nil, fmt.Errorf("%w: no audio in response", ErrGeneration)
	}
	out := toWAV(blob.Data, blob.MIMEType)
	return &out, nil
}

// VoiceRequest is one spoken turn, already transcribed.
type VoiceRequest struct {
	ConversationID string
	Text           string
	Voice          string
}

// VoiceReply carries the stored answer and its audio when synthesis worked.
type VoiceReply struct {
	Reply
	Audio *Audio `json:"-"`
}

// Voice answers a spoken turn with the short call prompt and no history,
// then synthesises the answer.
func (a *Assistant) Voice(ctx context.Context, uid string, req VoiceRequest) (_ *VoiceReply, err error) {
	if !a.Enabled() {
		return nil, ErrUnavailable
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	ctx, span := startSpan(ctx, "Voice", uid)
	defer func() { endSpan(span, err) }()

	user, err := a.users.Me(ctx, uid)
	if err != nil {
		return nil, err
	}
	conv, err := a.conversation(ctx, uid, req.ConversationID, clip(text, chatTitleRunes))
	if err != nil {
		return nil, err
	}
	userMsg, _, err := a.messages.Append(ctx, uid, conv.ID, services.NewMessage{Role: domain.RoleUser, Content: text}, "")
	if err != nil {
		return nil, err
	}

	memories := SelectMemories(user.MemoryEntries, text, a.cfg.MemoryPromptLimit)
	resp, gerr := a.gemini.GenerateContent(ctx, a.cfg.ChatModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.GenerateContentConfig{SystemInstruction: genai.NewContentFromText(VoicePrompt(user, memories), "")},
	)
	if gerr != nil {
		zerolog.Ctx(ctx).Error().Err(gerr).Str("conversation_id", conv.ID).Msg("voice generation failed")
		return &VoiceReply{Reply: *a.failed(conv.ID, userMsg, ErrorReply)}, nil
	}
	answer := strings.TrimSpace(responseText(resp))
	if answer == "" {
		answer = FallbackReply
	}
	botMsg, _, err := a.messages.Append(ctx, uid, conv.ID, services.NewMessage{Role: domain.RoleBot, Content: answer}, "")
	if err != nil {
		return nil, err
	}

	out := &VoiceReply{Reply: Reply{ConversationID: conv.ID, UserMessage: userMsg, Message: botMsg}}
	voice := req.Voice
	if voice == "" {
		voice = user.Settings.Voice
	}
	audio, serr := a.Speech(ctx, answer, voice)
	if serr != nil {
		zerolog.Ctx(ctx).Warn().Err(serr).Msg("speech synthesis failed")
	} else {
		out.Audio = audio
	}
	return out, nil
}

// conversation loads id for uid, or creates a conversation titled title
// when id is empty.
func (a *Assistant) conversation(ctx context.Context, uid, id, title string) (*domain.Conversation, error) {
	if id = strings.TrimSpace(id); id != "" {
		return a.conversations.Get(ctx, uid, id)
	}
	return a.conversations.Create(ctx, uid, title, "")
}

func (a *Assistant) failed(conversationID string, userMsg *domain.Message, text string) *Reply {
	return &Reply{
		ConversationID: conversationID,
		UserMessage:    userMsg,
		Message: &domain.Message{
			ConversationID: conversationID,
			Role:           domain.RoleBot,
			Content:        text,
			Timestamp:      a.now(),
		},
		Failed: true,
	}
}

// imageURL uploads the image when a bucket is configured and falls back to
// a data URL.
func (a *Assistant) imageURL(ctx context.Context, uid string, blob *genai.Blob) string {
	mimeType := blob.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	if a.uploader != nil {
		ext := ".png"
		if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
			ext = exts[0]
		}
		path := fmt.Sprintf("images/%s/%s%s", uid, uuid.NewString(), ext)
		url, err := a.uploader.Upload(ctx, path, blob.Data, mimeType)
		if err == nil {
			return url
		}
		zerolog.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("image upload failed, storing data URL")
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(blob.Data)
}

// historyContents maps stored messages to model turns.
func historyContents(history []domain.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if m.Role == domain.RoleBot {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(m.Content, role))
	}
	return out
}

func userContent(text string, file *Attachment) *genai.Content {
	if text == "" {
		text = filePrompt
	}
	parts := []*genai.Part{genai.NewPartFromText(text)}
	if file != nil && len(file.Data) > 0 {
		parts = append(parts, genai.NewPartFromBytes(file.Data, file.Type))
	}
	return genai.NewContentFromParts(parts, genai.RoleUser)
}

// groundingMetadata returns the first candidate's grounding metadata as a
// plain map for storage.
func groundingMetadata(ctx context.Context, resp *genai.GenerateContentResponse) map[string]any {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	raw, err := json.Marshal(resp.Candidates[0].GroundingMetadata)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("encode grounding metadata")
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil || len(out) == 0 {
		return nil
	}
	return out
}

func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
