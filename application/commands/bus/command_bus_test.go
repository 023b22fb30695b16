package bus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type echo struct{ Value string }

func (e echo) Validate() error {
	if e.Value == "" {
		return errors.New("value is required")
	}
	return nil
}

func TestSendRunsMiddlewareInOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next CommandHandler) CommandHandler {
			return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
				order = append(order, name)
				return next.Handle(ctx, cmd)
			})
		}
	}
	b := NewCommandBus(tag("outer"), tag("inner"))
	require.NoError(t, b.Register(echo{}, CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
		return cmd.(echo).Value, nil
	})))

	out, err := b.Send(context.Background(), echo{Value: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestSendValidatesBeforeDispatch(t *testing.T) {
	called := false
	b := NewCommandBus()
	require.NoError(t, b.Register(echo{}, CommandHandlerFunc(func(context.Context, Command) (interface{}, error) {
		called = true
		return nil, nil
	})))

	_, err := b.Send(context.Background(), echo{})
	assert.EqualError(t, err, "value is required")
	assert.False(t, called)
}

func TestRegisterTwiceFails(t *testing.T) {
	b := NewCommandBus()
	h := CommandHandlerFunc(func(context.Context, Command) (interface{}, error) { return nil, nil })
	require.NoError(t, b.Register(echo{}, h))
	assert.Error(t, b.Register(echo{}, h))
}

func TestUnknownCommand(t *testing.T) {
	_, err := NewCommandBus().Send(context.Background(), echo{Value: "x"})
	assert.True(t, errors.Is(err, ErrHandlerNotFound))
}

func TestLoggingMiddlewareLogsFailures(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	b := NewCommandBus(LoggingMiddleware(zap.New(core)))
	require.NoError(t, b.Register(echo{}, CommandHandlerFunc(func(context.Context, Command) (interface{}, error) {
		return nil, errors.New("boom")
	})))

	_, err := b.Send(context.Background(), echo{Value: "x"})
	require.Error(t, err)
	require.Equal(t, 1, logs.FilterMessage("Command failed").Len())
	assert.Equal(t, "echo", logs.FilterMessage("Command failed").All()[0].ContextMap()["type"])
}
