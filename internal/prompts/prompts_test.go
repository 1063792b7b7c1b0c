package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/realenhance/restage/internal/domain"
)

func TestBuildPerStage(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	for _, stage := range domain.Order() {
		text := b.Build("sell fast", "living room", stage, false)
		assert.NotEmpty(t, text, "stage %s", stage)
		assert.Contains(t, text, "living room")
		assert.Contains(t, text, "sell fast")
		assert.Contains(t, text, "camera position")
	}
}

func TestBuildRetryIsStricter(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	base := b.Build("", "", domain.StageStaging, false)
	strict := b.Build("", "", domain.StageStaging, true)

	assert.NotEqual(t, base, strict)
	assert.Contains(t, strict, base[:40])
	assert.Contains(t, strict, "Change nothing")
}
