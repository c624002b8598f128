package challenge

import (
	"bytes"

	"go.uber.org/zap"
)

// Kind identifies the family of challenge presented to a member.
type Kind string

const (
	KindMath  Kind = "math"
	KindImage Kind = "image"
)

// Difficulty controls operand ranges for math challenges and text length
// for image challenges.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Challenge holds the material shown to a member and the answer expected
// back. Image is nil for math-kind challenges. Answer is already
// normalized (lowercase, trimmed).
type Challenge struct {
	Kind   Kind
	Prompt string
	Image  *bytes.Buffer
	Answer string
}

// Renderer produces a visual challenge artifact plus its literal answer.
// Implementations may fail (missing fonts, headless environments); the
// generator falls back to a math challenge in that case.
type Renderer interface {
	Render(difficulty Difficulty) (*bytes.Buffer, string, error)
}

// Generator produces challenges for the verification session manager.
type Generator struct {
	renderer Renderer
	logger   *zap.Logger
}

// NewGenerator creates a challenge generator. A nil renderer disables
// image challenges entirely.
func NewGenerator(renderer Renderer, logger *zap.Logger) *Generator {
	return &Generator{
		renderer: renderer,
		logger:   logger.Named("challenge"),
	}
}

// Generate produces a challenge of the requested kind. Image generation
// never surfaces an error to the caller: if the renderer is unavailable
// or fails, a math challenge is returned instead.
func (g *Generator) Generate(kind Kind, difficulty Difficulty) Challenge {
	if kind == KindImage {
		if g.renderer == nil {
			g.logger.Debug("No image renderer configured, using math challenge")
		} else {
			buf, answer, err := g.renderer.Render(difficulty)
			if err == nil {
				return Challenge{
					Kind:   KindImage,
					Prompt: "Type the characters shown in the image",
					Image:  buf,
					Answer: Normalize(answer),
				}
			}

			g.logger.Warn("Image challenge rendering failed, falling back to math",
				zap.String("difficulty", string(difficulty)),
				zap.Error(err))
		}
	}

	prompt, answer := mathChallenge(difficulty)

	return Challenge{
		Kind:   KindMath,
		Prompt: prompt,
		Answer: Normalize(answer),
	}
}
