package request

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Request 共享的 HTTP 客户端，代理读取环境变量，429/5xx 自动重试
var Request = New()

// New builds a resty client with the shared transport and retry policy.
func New() *resty.Client {
	return newClient(RetryOnThrottle)
}

// NewNonIdempotent is New for requests that must not run twice, e.g. creating a
// tweet: only 429 responses, which the server rejected outright, are retried.
func NewNonIdempotent() *resty.Client {
	return newClient(RetryOnRateLimit)
}

func newClient(condition resty.RetryConditionFunc) *resty.Client {
	return resty.New().SetTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment, // 通用适配环境变量
	}).
		SetRetryCount(3).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(8 * time.Second).
		AddRetryCondition(condition)
}

// RetryOnThrottle retries rate limited and server side failures.
func RetryOnThrottle(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
}

// RetryOnRateLimit retries 429 only; transport errors and 5xx may have reached the server.
func RetryOnRateLimit(r *resty.Response, err error) bool {
	if err != nil || r == nil {
		return false
	}
	return r.StatusCode() == http.StatusTooManyRequests
}
