package social

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dghubble/go-twitter/twitter" //nolint:staticcheck // Using stable v1.1 API
	"github.com/dghubble/oauth1"
	"github.com/sirupsen/logrus"

	"github.com/hoganho/kingsroom-sub012/internal/store"
)

// PostSink receives ingested posts.
type PostSink interface {
	CreatePost(ctx context.Context, p *store.SocialPost) error
}

// TwitterIngester pulls an account's timeline into the post store as
// PENDING posts for the matcher.
type TwitterIngester struct {
	client *twitter.Client
	posts  PostSink
	log    *logrus.Logger
}

// NewTwitterIngester creates an ingester using environment variables
// Required environment variables:
// - TWITTER_API_KEY
// - TWITTER_API_SECRET
// - TWITTER_ACCESS_TOKEN
// - TWITTER_ACCESS_SECRET
func NewTwitterIngester(posts PostSink, log *logrus.Logger) (*TwitterIngester, error) {
	apiKey := os.Getenv("TWITTER_API_KEY")
	apiSecret := os.Getenv("TWITTER_API_SECRET")
	accessToken := os.Getenv("TWITTER_ACCESS_TOKEN")
	accessSecret := os.Getenv("TWITTER_ACCESS_SECRET")

	if apiKey == "" || apiSecret == "" || accessToken == "" || accessSecret == "" {
		return nil, fmt.Errorf("missing required Twitter credentials in environment variables")
	}

	config := oauth1.NewConfig(apiKey, apiSecret)
	token := oauth1.NewToken(accessToken, accessSecret)
	httpClient := config.Client(oauth1.NoContext, token)

	return &TwitterIngester{
		client: twitter.NewClient(httpClient),
		posts:  posts,
		log:    log,
	}, nil
}

// Ingest fetches up to count recent tweets for the account's handle and
// stores the new ones. Duplicate platform post ids converge on the store's
// insert-or-ignore, so repeated ingestion is safe.
func (t *TwitterIngester) Ingest(ctx context.Context, account *store.SocialAccount, count int) (int, error) {
	if count <= 0 || count > 200 {
		count = 50
	}
	includeRTs := false
	tweets, _, err := t.client.Timelines.UserTimeline(&twitter.UserTimelineParams{
		ScreenName:      account.Handle,
		Count:           count,
		IncludeRetweets: &includeRTs,
		TweetMode:       "extended",
	})
	if err != nil {
		return 0, fmt.Errorf("fetching timeline for @%s: %w", account.Handle, err)
	}

	stored := 0
	for _, tw := range tweets {
		postedAt, err := time.Parse(time.RubyDate, tw.CreatedAt)
		if err != nil {
			postedAt = time.Now().UTC()
		}
		content := tw.FullText
		if content == "" {
			content = tw.Text
		}
		post := &store.SocialPost{
			SocialAccountID: account.ID,
			PlatformPostID:  strconv.FormatInt(tw.ID, 10),
			Content:         content,
			MediaRefs:       mediaRefs(tw),
			PostedAt:        postedAt,
		}
		if err := t.posts.CreatePost(ctx, post); err != nil {
			return stored, err
		}
		stored++
	}

	t.log.WithFields(logrus.Fields{
		"handle": account.Handle,
		"tweets": len(tweets),
	}).Info("twitter timeline ingested")
	return stored, nil
}

func mediaRefs(tw twitter.Tweet) string {
	if tw.Entities == nil {
		return ""
	}
	refs := ""
	for _, m := range tw.Entities.Media {
		if refs != "" {
			refs += ","
		}
		refs += m.MediaURLHttps
	}
	return refs
}
