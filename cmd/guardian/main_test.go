package main_test

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMainExitsOnInvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", "run", "./cmd/guardian")
	cmd.Dir = "../.."
	cmd.Env = append(os.Environ(),
		"API_PORT=-1",
	)

	err := cmd.Run()
	assert.Error(t, err)
	assert.NotEqual(t, context.DeadlineExceeded, ctx.Err())
}
