package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/gorilla/websocket"

	"wattson/internal/model"
	"wattson/internal/repository"
	"wattson/pkg/llm"
	"wattson/pkg/log"
)

// Wattson persona. The assistant gives practical lifestyle advice to
// amateur triathletes and never writes training plans; those belong to the
// human coach.
const (
	botName     = "Wattson"
	botRole     = "intervenant en préparation et hygiène de vie pour triathlètes amateurs"
	botAudience = "triathlètes amateurs avec vie pro/famille chargée"
	botTone     = "chaleureux, motivant, rassurant, concret"
	botLanguage = "français"
	botStyle    = "structuré, clair, puces et tableaux si utile"
)

var botConstraints = []string{
	"NE JAMAIS fournir de plans/séances détaillés. Rediriger vers le Coach.",
	"Se concentrer sur : gestion du temps, récupération, sommeil, charge, psycho/motivation, nutrition simple, organisation pro/famille, matériel/transition, prévention blessures.",
	"Conseils 80/20 : 3–5 actions immédiates (≤10 min) + alternatives si contrainte forte.",
	"Ton rassurant, bienveillant, sans culpabilisation.",
	"Format : titres courts + puces ; 1 tableau synthétique si pertinent.",
}

const supportChecklist = `- Temps : micro-créneaux, plan B, batching, sac prêt.
- Récupération : sommeil (rituel), mobilité 5–10', auto-massage, RPE.
- Psycho : routine mentale, auto-parler positif, gestion du stress.
- Nutrition : structure repas/collations, hydratation simple, timing avant/après.
- Vie pro/famille : communication, créneaux négociés, logistique minimaliste.`

// workoutRedirect is sent instead of calling the model when the question
// asks for training content.
const workoutRedirect = `Le Coach fournit les **séances** et plans détaillés 💪.
De mon côté, voici des **pistes pratiques** pour t'aider autour de l'entraînement :
- Organisation du temps (micro-créneaux, plan B, sac prêt).
- Récupération (sommeil, mobilité 5–10', auto-massage, RPE).
- Psycho/motivation (rituel de mise en action, ancrages positifs).
- Nutrition/hydratation simple avant/après.
Dis-moi ton contexte (semaine type, fatigue, contraintes) et je t'aide à optimiser tout ça.`

var workoutRe = regexp.MustCompile(`(?i)(échauffement|echauffement|bloc principal|retour au calme|\d+\s*x\s*\d+)`)

// IsWorkoutRequest reports whether the text asks for a training session or
// plan.
func IsWorkoutRequest(text string) bool {
	return workoutRe.MatchString(text)
}

// AdviceService streams retrieval-grounded advice answers over a
// websocket.
type AdviceService interface {
	StreamAdvice(ctx context.Context, question string, user *model.User, ws *websocket.Conn, shouldStop func() bool) error
	HealthCheck(ctx context.Context) (string, error)
}

type adviceService struct {
	retrieval     RetrievalService
	userService   UserService
	llmClient     llm.Client
	conversations repository.ConversationRepository
}

// NewAdviceService creates an AdviceService.
func NewAdviceService(retrieval RetrievalService, userService UserService, llmClient llm.Client, conversations repository.ConversationRepository) AdviceService {
	return &adviceService{
		retrieval:     retrieval,
		userService:   userService,
		llmClient:     llmClient,
		conversations: conversations,
	}
}

// StreamAdvice runs the RAG advice flow for one question: retrieve
// context, build the persona prompt with the athlete's profile, stream the
// model's answer to the websocket and record the turn in the conversation
// history.
func (s *adviceService) StreamAdvice(ctx context.Context, question string, user *model.User, ws *websocket.Conn, shouldStop func() bool) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return errors.New("empty question")
	}

	// Training plans are the coach's job; do not even ask the model.
	if IsWorkoutRequest(question) {
		if err := writeChunk(ws, workoutRedirect); err != nil {
			return err
		}
		return sendCompletion(ws, nil)
	}

	result, err := s.retrieval.Query(ctx, question, DefaultTopK)
	if err != nil {
		// Advice still works without grounding; degrade to no context.
		log.Warnf("[AdviceService] retrieval failed, answering without context: %v", err)
		result = model.RetrievalResult{Sources: []string{}}
	}

	profile, err := s.userService.GetProfile(user.ID)
	if err != nil {
		log.Warnf("[AdviceService] loading profile failed: %v", err)
		profile = nil
	}

	history, err := s.conversations.GetHistory(ctx, user.ID)
	if err != nil {
		log.Warnf("[AdviceService] loading conversation history failed: %v", err)
		history = nil
	}

	system := BuildSystemPrompt(profile, result.Context)
	messages := composeMessages(history, question)

	answerBuilder := &strings.Builder{}
	interceptor := &wsWriterInterceptor{conn: ws, writer: answerBuilder, shouldStop: shouldStop}

	if err := s.llmClient.StreamChat(ctx, system, messages, nil, interceptor); err != nil {
		return err
	}
	if err := sendCompletion(ws, result.Sources); err != nil {
		return err
	}

	// Save with a background context: a successfully generated answer is
	// worth keeping even when the request context was canceled afterwards.
	if answer := answerBuilder.String(); answer != "" {
		if err := s.conversations.AppendTurn(context.Background(), user.ID, question, answer); err != nil {
			log.Errorf("[AdviceService] failed to save conversation turn: %v", err)
		}
	}
	return nil
}

// HealthCheck runs a tiny completion round trip against the model.
func (s *adviceService) HealthCheck(ctx context.Context) (string, error) {
	maxTokens := 5
	temperature := 0.1
	return s.llmClient.Complete(ctx,
		"Tu es un test automatique. Réponds uniquement par 'OK'.",
		[]llm.Message{{Role: "user", Content: "ping"}},
		&llm.GenerationParams{MaxTokens: &maxTokens, Temperature: &temperature},
	)
}

// BuildSystemPrompt assembles the persona prompt, optionally extended with
// the athlete context and the retrieved reference block.
func BuildSystemPrompt(profile map[string]string, ragContext string) string {
	var constraints strings.Builder
	for _, c := range botConstraints {
		constraints.WriteString("- ")
		constraints.WriteString(c)
		constraints.WriteString("\n")
	}

	parts := []string{
		fmt.Sprintf("Tu es %q, %s.", botName, botRole),
		fmt.Sprintf("Public: %s.", botAudience),
		fmt.Sprintf("Langue: %s.", botLanguage),
		fmt.Sprintf("Ton: %s.", botTone),
		fmt.Sprintf("Style: %s.", botStyle),
		fmt.Sprintf("Contraintes:\n%s", constraints.String()),
		fmt.Sprintf("Inclure quand utile : %s", supportChecklist),
		`Si on te demande un plan/séance, réponds : "Le Coach fournit l'entraînement. Je peux t'aider sur récupération, temps, nutrition, psychologie, etc."`,
	}

	if len(profile) > 0 {
		keys := make([]string, 0, len(profile))
		for k := range profile {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s=%s", k, profile[k]))
		}
		parts = append(parts, fmt.Sprintf("Contexte athlète: %s.", strings.Join(pairs, ", ")))
	}

	if strings.TrimSpace(ragContext) != "" {
		parts = append(parts,
			"Réponds STRICTEMENT à partir du CONTEXTE fourni. Si insuffisant, dis-le.",
			"CONTEXTE:\n"+ragContext,
		)
	}

	return strings.Join(parts, "\n\n")
}

// composeMessages maps the stored history plus the new question onto the
// model's role convention ("assistant" turns become "model").
func composeMessages(history []model.ChatMessage, question string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Content})
	}
	return append(msgs, llm.Message{Role: "user", Content: question})
}

// wsWriterInterceptor wraps a websocket connection: it captures the full
// answer for the conversation history and wraps each raw chunk in a JSON
// envelope for the client.
type wsWriterInterceptor struct {
	conn       *websocket.Conn
	writer     *strings.Builder
	shouldStop func() bool
}

// WriteMessage satisfies llm.MessageWriter.
func (w *wsWriterInterceptor) WriteMessage(messageType int, data []byte) error {
	if w.shouldStop != nil && w.shouldStop() {
		return nil
	}
	w.writer.Write(data)
	payload := map[string]string{"chunk": string(data)}
	b, _ := json.Marshal(payload)
	return w.conn.WriteMessage(messageType, b)
}

func writeChunk(ws *websocket.Conn, text string) error {
	payload := map[string]string{"chunk": text}
	b, _ := json.Marshal(payload)
	return ws.WriteMessage(websocket.TextMessage, b)
}

func sendCompletion(ws *websocket.Conn, sources []string) error {
	if sources == nil {
		sources = []string{}
	}
	payload := map[string]interface{}{"done": true, "sources": sources}
	b, _ := json.Marshal(payload)
	return ws.WriteMessage(websocket.TextMessage, b)
}
