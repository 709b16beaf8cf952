package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/songzhibin97/pumpsentinel/internal/metrics"
	"github.com/songzhibin97/pumpsentinel/internal/utils/request"
	"github.com/songzhibin97/pumpsentinel/internal/utils/retry"
)

const (
	defaultBaseURL  = "https://api.twitter.com"
	defaultInterval = time.Second
)

var ErrMissingToken = errors.New("twitter bearer token is not configured")

type Options struct {
	BaseURL     string
	BearerToken string        // OAuth2 用户令牌，需要 tweet.write 权限
	Interval    time.Duration // 线程内两条推文的间隔
	DryRun      bool
}

// Client posts tweets through the v2 API.
type Client struct {
	baseURL    string
	token      string
	interval   time.Duration
	dryRun     bool
	httpClient *resty.Client
	log        *slog.Logger

	dryRunSeq atomic.Int64
}

func NewClient(opts Options, log *slog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.BearerToken,
		interval:   opts.Interval,
		dryRun:     opts.DryRun,
		httpClient: request.NewNonIdempotent(),
		log:        log,
	}
}

type reply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type createRequest struct {
	Text  string `json:"text"`
	Reply *reply `json:"reply,omitempty"`
}

type createResponse struct {
	Data *struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// Post publishes text, as a reply when replyTo is set, and returns the new tweet id.
func (c *Client) Post(ctx context.Context, text, replyTo string) (string, error) {
	if c.dryRun {
		id := "dry-run-" + strconv.FormatInt(c.dryRunSeq.Add(1), 10)
		c.log.Info("dry run tweet", "id", id, "reply_to", replyTo, "text", text)
		return id, nil
	}
	if c.token == "" {
		return "", ErrMissingToken
	}

	body := createRequest{Text: text}
	if replyTo != "" {
		body.Reply = &reply{InReplyToTweetID: replyTo}
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(c.token).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(c.baseURL + "/2/tweets")
	if err != nil {
		return "", fmt.Errorf("failed to send tweet: %w", err)
	}

	var out createResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("failed to parse response: status=%d: %w", resp.StatusCode(), err)
	}

	if resp.StatusCode() != http.StatusCreated && resp.StatusCode() != http.StatusOK {
		msg := out.Detail
		if msg == "" {
			msg = out.Title
		}
		return "", fmt.Errorf("api error: status=%d, message=%s", resp.StatusCode(), msg)
	}
	if len(out.Errors) > 0 {
		return "", fmt.Errorf("api error: %s", out.Errors[0].Message)
	}
	if out.Data == nil || out.Data.ID == "" {
		return "", errors.New("api response missing tweet id")
	}

	metrics.TweetsPosted.Inc()
	return out.Data.ID, nil
}

// PostThread posts tweets in order, each replying to the previous one. It returns
// the ids posted so far together with the first error.
func (c *Client) PostThread(ctx context.Context, tweets []string) ([]string, error) {
	ids := make([]string, 0, len(tweets))
	replyTo := ""
	for i, text := range tweets {
		if i > 0 {
			if err := retry.Sleep(ctx, c.interval); err != nil {
				return ids, err
			}
		}

		id, err := c.Post(ctx, text, replyTo)
		if err != nil {
			return ids, fmt.Errorf("failed to post tweet %d/%d: %w", i+1, len(tweets), err)
		}
		c.log.Info("tweet posted", "id", id, "index", i+1, "total", len(tweets))
		ids = append(ids, id)
		replyTo = id
	}
	return ids, nil
}
