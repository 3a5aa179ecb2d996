package experience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEffectiveContentSynthesizesFromCodeArtifact(t *testing.T) {
	e := &Experience{
		Artifact: &Artifact{
			Kind:        ArtifactKindCode,
			Language:    "python",
			Body:        "print('hi')",
			Description: "Prints a greeting.",
		},
	}
	require.Equal(t, "Prints a greeting.\n\n```python\nprint('hi')\n```", e.EffectiveContent())
}

func TestEffectiveContentPrefersExplicitContent(t *testing.T) {
	e := &Experience{
		Content: "explicit",
		Artifact: &Artifact{
			Kind: ArtifactKindCode,
			Body: "ignored",
		},
	}
	require.Equal(t, "explicit", e.EffectiveContent())
}

func TestMemoryStoreSaveAssignsIDAndFindByID(t *testing.T) {
	store := NewMemoryStore()
	e := &Experience{Type: TypeCommon, Scope: ScopeGlobal, Title: "t"}
	require.NoError(t, store.Save(context.Background(), e))
	require.NotEmpty(t, e.ID)

	found, err := store.FindByID(context.Background(), e.ID)
	require.NoError(t, err)
	require.Equal(t, "t", found.Title)
}

func TestMemoryStoreQueryOrdersByScopeSpecificityThenRecency(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()

	global := &Experience{Type: TypeCommon, Scope: ScopeGlobal, Title: "global", UpdatedAt: now}
	userProject := &Experience{
		Type: TypeCommon, Scope: ScopeUser, Title: "user+project",
		Attribution: Attribution{Owner: "u1", Project: "p1"}, UpdatedAt: now,
	}
	userOnly := &Experience{
		Type: TypeCommon, Scope: ScopeUser, Title: "user",
		Attribution: Attribution{Owner: "u1"}, UpdatedAt: now.Add(time.Hour),
	}
	team := &Experience{
		Type: TypeCommon, Scope: ScopeTeam, Title: "team",
		Attribution: Attribution{Owner: "team1"}, UpdatedAt: now,
	}
	unrelatedUser := &Experience{
		Type: TypeCommon, Scope: ScopeUser, Title: "other-user",
		Attribution: Attribution{Owner: "someone-else"}, UpdatedAt: now.Add(2 * time.Hour),
	}

	for _, e := range []*Experience{global, userProject, userOnly, team, unrelatedUser} {
		require.NoError(t, store.Save(context.Background(), e))
	}

	results, err := store.Query(context.Background(), Query{Type: TypeCommon}, QueryContext{
		UserID: "u1", TeamID: "team1", ProjectID: "p1",
	})
	require.NoError(t, err)

	titles := make([]string, len(results))
	for i, r := range results {
		titles[i] = r.Title
	}
	require.Equal(t, []string{"user+project", "user", "team", "global"}, titles)
}

func TestMemoryStoreQueryFiltersByTagsAndLanguage(t *testing.T) {
	store := NewMemoryStore()
	match := &Experience{Type: TypeCode, Scope: ScopeGlobal, Language: "go", Tags: []string{"llm_generated", "retry"}}
	noTag := &Experience{Type: TypeCode, Scope: ScopeGlobal, Language: "go", Tags: []string{"other"}}
	wrongLang := &Experience{Type: TypeCode, Scope: ScopeGlobal, Language: "python", Tags: []string{"llm_generated", "retry"}}
	for _, e := range []*Experience{match, noTag, wrongLang} {
		require.NoError(t, store.Save(context.Background(), e))
	}

	results, err := store.Query(context.Background(), Query{
		Type: TypeCode, Language: "go", Tags: []string{"llm_generated", "retry"},
	}, QueryContext{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, match.ID, results[0].ID)
}

func TestMemoryStoreCountByTypeAndScope(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), &Experience{Type: TypeReact, Scope: ScopeGlobal}))
	require.NoError(t, store.Save(context.Background(), &Experience{Type: TypeReact, Scope: ScopeGlobal}))
	require.NoError(t, store.Save(context.Background(), &Experience{Type: TypeCode, Scope: ScopeGlobal}))

	n, err := store.CountByTypeAndScope(context.Background(), TypeReact, ScopeGlobal)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestFastIntentRuleMatching(t *testing.T) {
	rule := FastIntentRule{Kind: "metadata_equals", Key: "intent", Value: "greet"}
	require.True(t, rule.Matches(map[string]string{"intent": "greet"}, ""))
	require.False(t, rule.Matches(map[string]string{"intent": "other"}, ""))

	prefixRule := FastIntentRule{Kind: "message_prefix", Value: "/help"}
	require.True(t, prefixRule.Matches(nil, "/help me"))
	require.False(t, prefixRule.Matches(nil, "hello"))
}
