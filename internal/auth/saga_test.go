package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSaga_RollbackRunsInReverseAndKeepsCause(t *testing.T) {
	var order []string
	sg := newSaga(zap.NewNop())
	sg.onFailure("first", func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	sg.onFailure("second", func(context.Context) error {
		order = append(order, "second")
		return errors.New("second failed")
	})
	sg.onFailure("third", func(context.Context) error {
		order = append(order, "third")
		return nil
	})

	cause := NewError(CodeSyncFailed, nil)
	err := sg.rollback(context.Background(), cause)

	assert.Same(t, cause, err)
	assert.Equal(t, []string{"third", "second", "first"}, order)
}

func TestSaga_RollbackIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sawErr error
	sg := newSaga(zap.NewNop())
	sg.onFailure("delete", func(ctx context.Context) error {
		sawErr = ctx.Err()
		return nil
	})
	_ = sg.rollback(ctx, errors.New("boom"))

	assert.NoError(t, sawErr)
}
