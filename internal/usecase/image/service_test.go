package image

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/profundo-ai/profundo/internal/domain"
	"github.com/profundo-ai/profundo/internal/transport/openai"
)

type mockGenerator struct {
	model, prompt, size string
	err                 error
}

func (m *mockGenerator) CreateImage(_ context.Context, model, prompt, size string) (openai.GeneratedImage, error) {
	m.model, m.prompt, m.size = model, prompt, size
	if m.err != nil {
		return openai.GeneratedImage{}, m.err
	}
	return openai.GeneratedImage{URL: "https://img.example/1.png"}, nil
}

func TestGenerate(t *testing.T) {
	gen := &mockGenerator{}
	svc := New(gen, "gpt-image-1", zap.NewNop())

	res, err := svc.Generate(context.Background(), Request{Prompt: "capa sobre IA", Size: "1536x1024"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.URL != "https://img.example/1.png" {
		t.Errorf("url = %s", res.URL)
	}
	if gen.model != "gpt-image-1" || gen.size != "1536x1024" {
		t.Errorf("call = %s/%s", gen.model, gen.size)
	}
}

func TestGenerate_Validation(t *testing.T) {
	svc := New(&mockGenerator{}, "gpt-image-1", zap.NewNop())

	if _, err := svc.Generate(context.Background(), Request{Prompt: "  "}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty prompt err = %v, want validation error", err)
	}
	if _, err := svc.Generate(context.Background(), Request{Prompt: "x", Size: "99x99"}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("bad size err = %v, want validation error", err)
	}
}

func TestGenerate_ProviderError(t *testing.T) {
	gen := &mockGenerator{err: domain.ErrTransientProvider}
	svc := New(gen, "gpt-image-1", zap.NewNop())

	if _, err := svc.Generate(context.Background(), Request{Prompt: "x"}); !domain.IsTransient(err) {
		t.Errorf("err = %v, want transient", err)
	}
}
