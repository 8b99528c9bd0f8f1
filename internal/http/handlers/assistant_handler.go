// Assistant HTTP handlers.
//
//   - POST /chat    one chat turn (text, optional file, modes)
//   - POST /images  one image turn
//   - POST /speech  text to speech
//   - POST /voice   one spoken turn answered with text and audio
//
// Generation failures inside a turn are not errors: the reply is a canned
// bot message with failed=true. Only a missing Gemini configuration (503)
// or invalid input fail the request.
package handlers

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/nemo-backend/internal/assistant"
)

// FilePayload is an attachment encoded as base64, optionally as a data URL.
type FilePayload struct {
	Name string `json:"name" example:"notes.pdf"`
	Type string `json:"type" example:"application/pdf"`
	Data string `json:"data" example:"JVBERi0xLjQK..."`
}

// ChatRequest is one chat turn.
type ChatRequest struct {
	ConversationID string       `json:"conversationId,omitempty"`
	Content        string       `json:"content" example:"/search actualité Go 1.25"`
	File           *FilePayload `json:"file,omitempty"`
	Modes          []string     `json:"modes,omitempty" example:"python"`
}

// ImageRequest asks for a generated image.
type ImageRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
	Prompt         string `json:"prompt" example:"un renard roux dans la neige"`
}

// SpeechRequest asks for synthesized speech.
type SpeechRequest struct {
	Text  string `json:"text" example:"Bonjour !"`
	Voice string `json:"voice,omitempty" example:"Kore"`
}

// SpeechResponse carries base64 audio.
type SpeechResponse struct {
	Audio    string `json:"audio"`
	MIMEType string `json:"mimeType" example:"audio/wav"`
}

// VoiceRequest is one transcribed spoken turn.
type VoiceRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
	Text           string `json:"text" example:"Comment ça va ?"`
	Voice          string `json:"voice,omitempty"`
}

// VoiceResponse is the stored reply plus its audio when synthesis worked.
type VoiceResponse struct {
	assistant.Reply
	Audio    string `json:"audio,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
}

// decodeFile turns a FilePayload into an attachment. Data URLs keep their
// declared media type when Type is empty.
func decodeFile(p *FilePayload) (*assistant.Attachment, error) {
	if p == nil {
		return nil, nil
	}
	data, typ := strings.TrimSpace(p.Data), strings.TrimSpace(p.Type)
	if rest, found := strings.CutPrefix(data, "data:"); found {
		meta, payload, _ := strings.Cut(rest, ",")
		if typ == "" {
			typ, _, _ = strings.Cut(meta, ";")
		}
		data = payload
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}
	if typ == "" {
		typ = "application/octet-stream"
	}
	return &assistant.Attachment{Name: strings.TrimSpace(p.Name), Type: typ, Data: raw}, nil
}

func (h *Handlers) assistantReady(c *gin.Context) bool {
	if h.Assistant == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "Assistant is not configured")
		return false
	}
	return true
}

// Chat godoc
// @ID          chat
// @Summary     Run a chat turn
// @Description Persists the user message, asks Gemini with the profile and the last messages as context, and persists the answer.
// @Description "/search " forces web search; "génère …" switches to image generation.
// @Tags        Assistant
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.ChatRequest  true  "Turn"
// @Success     200   {object}  assistant.Reply
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404   {object}  handlers.ErrorResponse  "Conversation not found"
// @Failure     503   {object}  handlers.ErrorResponse  "Assistant not configured"
// @Router      /chat [post]
func (h *Handlers) Chat(c *gin.Context) {
	if !h.assistantReady(c) {
		return
	}
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	file, err := decodeFile(req.File)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid file data")
		return
	}
	reply, err := h.Assistant.Chat(c.Request.Context(), userID(c), assistant.ChatRequest{
		ConversationID: req.ConversationID,
		Content:        sanitizeContent(req.Content),
		File:           file,
		Modes:          req.Modes,
	})
	if err != nil {
		serviceError(c, err, "Error processing message")
		return
	}
	ok(c, http.StatusOK, reply)
}

// GenerateImage godoc
// @ID          generateImage
// @Summary     Run an image turn
// @Tags        Assistant
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.ImageRequest  true  "Prompt"
// @Success     200   {object}  assistant.Reply
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     503   {object}  handlers.ErrorResponse  "Assistant not configured"
// @Router      /images [post]
func (h *Handlers) GenerateImage(c *gin.Context) {
	if !h.assistantReady(c) {
		return
	}
	var req ImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	reply, err := h.Assistant.Image(c.Request.Context(), userID(c), assistant.ImageRequest{
		ConversationID: req.ConversationID,
		Prompt:         req.Prompt,
	})
	if err != nil {
		serviceError(c, err, "Error generating image")
		return
	}
	ok(c, http.StatusOK, reply)
}

// Speech godoc
// @ID          speech
// @Summary     Text to speech
// @Tags        Assistant
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.SpeechRequest  true  "Text"
// @Success     200   {object}  handlers.SpeechResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     502   {object}  handlers.ErrorResponse  "Synthesis failed"
// @Failure     503   {object}  handlers.ErrorResponse  "Assistant not configured"
// @Router      /speech [post]
func (h *Handlers) Speech(c *gin.Context) {
	if !h.assistantReady(c) {
		return
	}
	var req SpeechRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	audio, err := h.Assistant.Speech(c.Request.Context(), req.Text, req.Voice)
	if err != nil {
		serviceError(c, err, "Error generating speech")
		return
	}
	ok(c, http.StatusOK, SpeechResponse{
		Audio:    base64.StdEncoding.EncodeToString(audio.Data),
		MIMEType: audio.MIMEType,
	})
}

// Voice godoc
// @ID          voice
// @Summary     Run a spoken turn
// @Description Answers with the short call prompt, persists both messages and returns the answer with its audio.
// @Tags        Assistant
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.VoiceRequest  true  "Transcribed text"
// @Success     200   {object}  handlers.VoiceResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     503   {object}  handlers.ErrorResponse  "Assistant not configured"
// @Router      /voice [post]
func (h *Handlers) Voice(c *gin.Context) {
	if !h.assistantReady(c) {
		return
	}
	var req VoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	reply, err := h.Assistant.Voice(c.Request.Context(), userID(c), assistant.VoiceRequest{
		ConversationID: req.ConversationID,
		Text:           req.Text,
		Voice:          req.Voice,
	})
	if err != nil {
		serviceError(c, err, "Error processing voice message")
		return
	}
	resp := VoiceResponse{Reply: reply.Reply}
	if reply.Audio != nil {
		resp.Audio = base64.StdEncoding.EncodeToString(reply.Audio.Data)
		resp.MIMEType = reply.Audio.MIMEType
	}
	ok(c, http.StatusOK, resp)
}
