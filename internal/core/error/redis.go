package errx

import (
	"context"
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// WrapRedis maps Redis errors to the unified Error type with appropriate
// status codes. Commands here run under request-scoped deadlines, so a
// context timeout is reported as such rather than as a generic store failure.
func WrapRedis(err error) *Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, redis.Nil) {
		return New(err, http.StatusNotFound, RedisNotFoundMessage)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(err, http.StatusGatewayTimeout, RedisErrorMessage)
	}

	return New(err, http.StatusBadGateway, RedisErrorMessage)
}
