package goroutine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orris-inc/storefront/internal/shared/logger"
)

func TestRun_RecoversPanic(t *testing.T) {
	ran := false
	assert.NotPanics(t, func() {
		Run(logger.NewNop(), "boom", func() {
			ran = true
			panic("subscriber exploded")
		})
	})
	assert.True(t, ran)
}

func TestSafeGo_RunsFunction(t *testing.T) {
	done := make(chan struct{})
	SafeGo(logger.NewNop(), "worker", func() { close(done) })
	<-done
}
