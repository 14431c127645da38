package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix       = "user:%d"
	PostKeyPrefix       = "post:%d"
	ActiveBannersKey    = "banners:active"
	TrendingTopicsKey   = "topics:trending"
	UnreadMessagesKey   = "messages:unread:%d"
	WSTicketKeyPrefix   = "ws_ticket:%s"
	TokenBlacklistKey   = "blacklist:%s"
	PostsListKeyPrefix  = "posts:list:%d"
	postsListKeyPattern = "posts:list:*"
)

const (
	UserTTL     = 5 * time.Minute
	PostTTL     = 30 * time.Minute
	ListTTL     = 2 * time.Minute
	BannerTTL   = 10 * time.Minute
	TrendingTTL = 15 * time.Minute
	UnreadTTL   = 1 * time.Minute
	WSTicketTTL = 30 * time.Second
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

// PostsListKey keys the anonymous first page of the feed by page size.
func PostsListKey(limit int) string {
	return fmt.Sprintf(PostsListKeyPrefix, limit)
}

func UnreadKey(userID uint) string {
	return fmt.Sprintf(UnreadMessagesKey, userID)
}

func WSTicketKey(ticket string) string {
	return fmt.Sprintf(WSTicketKeyPrefix, ticket)
}

func BlacklistKey(jti string) string {
	return fmt.Sprintf(TokenBlacklistKey, jti)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidateBanners(ctx context.Context) {
	Invalidate(ctx, ActiveBannersKey)
}

func InvalidateTrending(ctx context.Context) {
	Invalidate(ctx, TrendingTopicsKey)
}

// InvalidatePost drops a post and the feed pages that embed its counters.
func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
	InvalidatePostsList(ctx)
}

// InvalidatePostsList drops every cached page of the post feed.
func InvalidatePostsList(ctx context.Context) {
	if client == nil {
		return
	}
	iter := client.Scan(ctx, 0, postsListKeyPattern, 100).Iterator()
	for iter.Next(ctx) {
		client.Del(ctx, iter.Val())
	}
}
