package challenge

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"image/png"

	"github.com/dchest/captcha"
)

// CaptchaRenderer renders distorted-digit images. Text length scales
// with difficulty.
type CaptchaRenderer struct{}

// NewCaptchaRenderer creates an image renderer backed by the captcha
// library.
func NewCaptchaRenderer() *CaptchaRenderer {
	return &CaptchaRenderer{}
}

// Render produces a PNG image and the digit string it encodes.
func (r *CaptchaRenderer) Render(difficulty Difficulty) (*bytes.Buffer, string, error) {
	length := 5
	switch difficulty {
	case DifficultyEasy:
		length = 4
	case DifficultyHard:
		length = 7
	}

	digits := captcha.RandomDigits(length)

	// Random hex string used as the image seed ID
	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return nil, "", fmt.Errorf("failed to generate image ID: %w", err)
	}

	img := captcha.NewImage(hex.EncodeToString(idBytes), digits, captcha.StdWidth, captcha.StdHeight)

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		return nil, "", fmt.Errorf("failed to encode challenge image: %w", err)
	}

	answer := make([]byte, len(digits))
	for i, d := range digits {
		answer[i] = '0' + d
	}

	return buf, string(answer), nil
}
