//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"patrol/internal/platform/logger"
	platformredis "patrol/internal/platform/redis"
	"patrol/internal/template/cache"
	"patrol/internal/template/models"
	id "patrol/pkg/domain"
	"patrol/pkg/testutil/containers"
)

func newResolver(t *testing.T) *cache.Resolver {
	t.Helper()
	redisContainer := containers.NewRedisContainer(t)
	client, err := platformredis.New(redisContainer.Addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewResolver(client, time.Minute, logger.New())
}

func publishedTemplate(t *testing.T) *models.FormTemplate {
	t.Helper()
	templateID := id.NewTemplateID()
	tmpl, err := models.NewFormTemplate(templateID, id.LineageID(templateID), 1,
		"Cached check", "", models.AllStores(),
		[]models.Question{{
			ID:     id.NewQuestionID(),
			Type:   models.QuestionShortText,
			Title:  "Notes",
			Order:  1,
			Config: models.Config{Weight: 1},
		}},
		time.Now().UTC().Truncate(time.Millisecond), "tester")
	require.NoError(t, err)
	tmpl.ApplyPublish(nil, time.Now().UTC().Truncate(time.Millisecond), "tester")
	return tmpl
}

func TestResolverCacheRoundTrip(t *testing.T) {
	resolver := newResolver(t)
	ctx := context.Background()
	storeID := id.StoreID(uuid.New())
	tmpl := publishedTemplate(t)

	_, gen, ok := resolver.Get(ctx, storeID, "convenience")
	require.False(t, ok)

	resolver.Set(ctx, storeID, "convenience", tmpl, gen)

	cached, _, ok := resolver.Get(ctx, storeID, "convenience")
	require.True(t, ok)
	require.Equal(t, tmpl.ID, cached.ID)
	require.Equal(t, tmpl.Name, cached.Name)

	// A different (store, format) pair is a separate entry.
	_, _, ok = resolver.Get(ctx, storeID, "hypermarket")
	require.False(t, ok)
}

func TestResolverCacheGenerationBumpOrphansEntries(t *testing.T) {
	resolver := newResolver(t)
	ctx := context.Background()
	storeID := id.StoreID(uuid.New())
	tmpl := publishedTemplate(t)

	_, gen, ok := resolver.Get(ctx, storeID, "convenience")
	require.False(t, ok)

	resolver.Set(ctx, storeID, "convenience", tmpl, gen)
	_, _, ok = resolver.Get(ctx, storeID, "convenience")
	require.True(t, ok)

	resolver.Invalidate(ctx)

	_, _, ok = resolver.Get(ctx, storeID, "convenience")
	require.False(t, ok, "entries written under the previous generation must not be served")
}

func TestResolverCacheWriteAfterInvalidationIsOrphaned(t *testing.T) {
	resolver := newResolver(t)
	ctx := context.Background()
	storeID := id.StoreID(uuid.New())
	tmpl := publishedTemplate(t)

	// A resolution starts: the miss captures the current generation.
	_, gen, ok := resolver.Get(ctx, storeID, "convenience")
	require.False(t, ok)

	// A lifecycle mutation lands before the resolution finishes.
	resolver.Invalidate(ctx)

	// The write goes under the captured generation, so the bumped
	// generation never serves it.
	resolver.Set(ctx, storeID, "convenience", tmpl, gen)
	_, _, ok = resolver.Get(ctx, storeID, "convenience")
	require.False(t, ok, "a resolution computed before an invalidation must not outlive it")
}
