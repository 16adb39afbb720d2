package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type imagesRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n,omitempty"`
	Size   string `json:"size,omitempty"`
}

type imagesResponse struct {
	Data []struct {
		B64JSON       string `json:"b64_json"`
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

func (c *client) GenerateImage(ctx context.Context, prompt string) (Image, error) {
	var out Image
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return out, errors.New("image prompt required")
	}
	req := imagesRequest{Model: c.cfg.ImageModel, Prompt: prompt, N: 1, Size: c.cfg.ImageSize}
	var resp imagesResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/images/generations", req, &resp); err != nil {
		return out, err
	}
	if len(resp.Data) == 0 {
		return out, errors.New("no image returned")
	}
	item := resp.Data[0]
	out.RevisedPrompt = strings.TrimSpace(item.RevisedPrompt)
	if b64 := strings.TrimSpace(item.B64JSON); b64 != "" {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil || len(raw) == 0 {
			return out, fmt.Errorf("decode image base64: %w", err)
		}
		out.Bytes = raw
		out.MimeType = "image/png"
		return out, nil
	}
	if u := strings.TrimSpace(item.URL); u != "" {
		raw, ct, err := c.download(ctx, u)
		if err != nil {
			return out, fmt.Errorf("download generated image: %w", err)
		}
		out.Bytes = raw
		out.MimeType = strings.TrimSpace(strings.Split(ct, ";")[0])
		if out.MimeType == "" {
			out.MimeType = "image/png"
		}
		return out, nil
	}
	return out, errors.New("image response missing b64_json and url")
}

// MaxSpeechInput is the provider limit on characters per speech request.
const MaxSpeechInput = 4096

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

func (c *client) Synthesize(ctx context.Context, text, voice string) (Speech, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Speech{}, errors.New("speech input required")
	}
	if r := []rune(text); len(r) > MaxSpeechInput {
		text = string(r[:MaxSpeechInput])
	}
	if strings.TrimSpace(voice) == "" {
		voice = c.cfg.TTSVoice
	}
	raw, ct, err := c.do(ctx, http.MethodPost, "/v1/audio/speech", speechRequest{
		Model:          c.cfg.TTSModel,
		Input:          text,
		Voice:          voice,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return Speech{}, err
	}
	mime := strings.TrimSpace(strings.Split(ct, ";")[0])
	if mime == "" || mime == "application/octet-stream" {
		mime = "audio/mpeg"
	}
	return Speech{Bytes: raw, MimeType: mime}, nil
}
