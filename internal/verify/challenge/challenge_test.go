package challenge_test

import (
	"bytes"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardenhq/warden/internal/verify/challenge"
	"go.uber.org/zap"
)

type failingRenderer struct{}

func (failingRenderer) Render(challenge.Difficulty) (*bytes.Buffer, string, error) {
	return nil, "", errors.New("no font available")
}

type stubRenderer struct{}

func (stubRenderer) Render(challenge.Difficulty) (*bytes.Buffer, string, error) {
	return bytes.NewBufferString("png-bytes"), "AB3D9", nil
}

func TestGenerateMath(t *testing.T) {
	t.Parallel()

	generator := challenge.NewGenerator(nil, zap.NewNop())

	for range 50 {
		c := generator.Generate(challenge.KindMath, challenge.DifficultyMedium)

		assert.Equal(t, challenge.KindMath, c.Kind)
		assert.NotEmpty(t, c.Prompt)
		assert.NotEmpty(t, c.Answer)
		assert.Nil(t, c.Image)

		// Every math answer is either a number or yes/no
		if c.Answer != "yes" && c.Answer != "no" {
			_, err := strconv.Atoi(c.Answer)
			require.NoError(t, err, "prompt %q produced non-numeric answer %q", c.Prompt, c.Answer)
		}
	}
}

func TestGenerateImage(t *testing.T) {
	t.Parallel()

	generator := challenge.NewGenerator(stubRenderer{}, zap.NewNop())
	c := generator.Generate(challenge.KindImage, challenge.DifficultyMedium)

	assert.Equal(t, challenge.KindImage, c.Kind)
	require.NotNil(t, c.Image)
	// Answers are normalized for comparison
	assert.Equal(t, "ab3d9", c.Answer)
}

func TestGenerateImageFallsBackToMath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		renderer challenge.Renderer
	}{
		{name: "renderer fails", renderer: failingRenderer{}},
		{name: "no renderer configured", renderer: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			generator := challenge.NewGenerator(tt.renderer, zap.NewNop())
			c := generator.Generate(challenge.KindImage, challenge.DifficultyHard)

			assert.Equal(t, challenge.KindMath, c.Kind)
			assert.Nil(t, c.Image)
			assert.NotEmpty(t, c.Answer)
		})
	}
}

func TestCaptchaRenderer(t *testing.T) {
	t.Parallel()

	renderer := challenge.NewCaptchaRenderer()

	tests := []struct {
		difficulty challenge.Difficulty
		length     int
	}{
		{challenge.DifficultyEasy, 4},
		{challenge.DifficultyMedium, 5},
		{challenge.DifficultyHard, 7},
	}

	for _, tt := range tests {
		t.Run(string(tt.difficulty), func(t *testing.T) {
			t.Parallel()

			buf, answer, err := renderer.Render(tt.difficulty)
			require.NoError(t, err)
			assert.Len(t, answer, tt.length)
			assert.Positive(t, buf.Len())

			// PNG magic bytes
			assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, buf.Bytes()[:4])

			for _, r := range answer {
				assert.GreaterOrEqual(t, r, '0')
				assert.LessOrEqual(t, r, '9')
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ab3d9", challenge.Normalize("  AB3D9 "))
	assert.Equal(t, "yes", challenge.Normalize("Yes"))
	assert.Empty(t, challenge.Normalize("   "))
}
