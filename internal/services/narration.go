package services

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/minischools/academy-backend/internal/data/repos"
	types "github.com/minischools/academy-backend/internal/domain"
	contentmod "github.com/minischools/academy-backend/internal/modules/content"
	"github.com/minischools/academy-backend/internal/platform/apierr"
	"github.com/minischools/academy-backend/internal/platform/dbctx"
	"github.com/minischools/academy-backend/internal/platform/gcp"
	"github.com/minischools/academy-backend/internal/platform/logger"
	"github.com/minischools/academy-backend/internal/platform/openai"
)

type NarrationService interface {
	Narrate(dbc dbctx.Context, creatorID, chapterID uuid.UUID, voice string) (*types.Chapter, error)
}

type narrationService struct {
	log          *logger.Logger
	ai           openai.Client
	bucket       gcp.BucketService
	content      ContentService
	chapters     repos.ChapterRepo
	defaultVoice string
}

func NewNarrationService(baseLog *logger.Logger, ai openai.Client, bucket gcp.BucketService, content ContentService, chapters repos.ChapterRepo, defaultVoice string) NarrationService {
	return &narrationService{
		log:          baseLog.With("service", "NarrationService"),
		ai:           ai,
		bucket:       bucket,
		content:      content,
		chapters:     chapters,
		defaultVoice: strings.TrimSpace(defaultVoice),
	}
}

// narrationKey is stable for a given voice and text, so unchanged chapters
// reuse their audio.
func narrationKey(voice, text string) string {
	sum := sha256.Sum256([]byte(voice + "\x00" + text))
	return "narration/" + hex.EncodeToString(sum[:]) + ".mp3"
}

func (s *narrationService) Narrate(dbc dbctx.Context, creatorID, chapterID uuid.UUID, voice string) (*types.Chapter, error) {
	if s.bucket == nil {
		return nil, apierr.New(http.StatusServiceUnavailable, "storage_unavailable", errStorageUnavailable)
	}
	ch, err := s.content.GetChapter(dbc, creatorID, chapterID)
	if err != nil {
		return nil, err
	}
	if ch.Kind == types.ChapterKindCover {
		return nil, apierr.BadRequest("cover_has_no_text", errors.New("the cover chapter cannot be narrated"))
	}
	text := contentmod.PlainText(ch.BodyHTML)
	if r := []rune(text); len(r) > openai.MaxSpeechInput {
		text = string(r[:openai.MaxSpeechInput])
	}
	if text == "" {
		return nil, apierr.BadRequest("empty_chapter", errors.New("chapter has no text to narrate"))
	}
	voice = strings.TrimSpace(voice)
	if voice == "" {
		voice = s.defaultVoice
	}
	key := narrationKey(voice, text)
	if ch.NarrationKey == key && ch.NarrationURL != "" {
		return ch, nil
	}

	exists, err := s.bucket.Exists(dbc.Ctx, gcp.BucketCategoryAudio, key)
	if err != nil {
		s.log.Warn("narration exists check failed", "key", key, "error", err)
	}
	if !exists {
		if s.ai == nil {
			return nil, apierr.New(http.StatusServiceUnavailable, "ai_unavailable", errors.New("AI provider not configured"))
		}
		speech, err := s.ai.Synthesize(dbc.Ctx, text, voice)
		if err != nil {
			return nil, apierr.New(http.StatusBadGateway, "narration_failed", err)
		}
		if err := s.bucket.UploadFile(dbc.Ctx, gcp.BucketCategoryAudio, key, bytes.NewReader(speech.Bytes)); err != nil {
			return nil, fmt.Errorf("upload narration: %w", err)
		}
	}

	url := s.bucket.GetPublicURL(gcp.BucketCategoryAudio, key)
	if err := s.chapters.UpdateFields(dbc, ch.ID, map[string]interface{}{
		"narration_key": key,
		"narration_url": url,
	}); err != nil {
		return nil, fmt.Errorf("save narration: %w", err)
	}
	ch.NarrationKey = key
	ch.NarrationURL = url
	s.log.Info("chapter narrated", "chapter_id", ch.ID, "reused", exists)
	return ch, nil
}
