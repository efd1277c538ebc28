package frontier

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecideMovie(t *testing.T) {
	t.Parallel()

	payload := MoviePayload{
		Title:           "Days of Being Wild",
		Directors:       []Credit{{ID: 1, Name: "Wong Kar-wai"}},
		Writers:         []Credit{{ID: 1, Name: "Wong Kar-wai"}, {ID: 0, Name: "uncredited"}},
		Casts:           []Credit{{ID: 2, Name: "Leslie Cheung"}, {ID: -1, Name: "extra"}},
		Recommendations: IDList{20, 21},
	}

	tests := []struct {
		name    string
		outcome MovieOutcome
		want    Decision
	}{
		{
			name:    "login wall",
			outcome: MovieNotFound(5, false),
			want:    Decision{Update: Update{State: StateNeedsAuth}},
		},
		{
			name:    "missing with credentials",
			outcome: MovieNotFound(5, true),
			want:    Decision{Update: Update{State: StateBroken, MarkCrawled: true}},
		},
		{
			name:    "fetched",
			outcome: MovieFetched(5, payload),
			want: Decision{
				Update:          Update{MarkCrawled: true},
				PersistArtifact: true,
				Discover: []Ref{
					{Kind: KindActor, ID: 1},
					{Kind: KindActor, ID: 1},
					{Kind: KindActor, ID: 2},
					{Kind: KindMovie, ID: 20},
					{Kind: KindMovie, ID: 21},
				},
			},
		},
		{
			name:    "unknown status",
			outcome: MovieOutcome{MID: 5, Status: "weird"},
			want:    Decision{},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, DecideMovie(tc.outcome))
		})
	}
}

func TestDecideActor(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		Decision{Update: Update{State: StateBroken, MarkCrawled: true}},
		DecideActor(ActorNotFound(7)),
	)

	finished := DecideActor(ActorFetched(7, true, []int64{10}))
	require.Equal(t, Update{MarkCrawled: true}, finished.Update)
	require.Equal(t, []Ref{{Kind: KindMovie, ID: 10}}, finished.Discover)
	require.False(t, finished.PersistArtifact)

	partial := DecideActor(ActorFetched(7, false, []int64{10, 11}))
	require.True(t, partial.Update.IsZero())
	require.Len(t, partial.Discover, 2)
}

func TestApplyIsMonotonic(t *testing.T) {
	t.Parallel()

	updates := []Update{
		{State: StateNeedsAuth},
		{MarkCrawled: true},
		{State: StateBroken, MarkCrawled: true},
		{State: StateNeedsAuth},
		{},
	}
		e := Entity{Kind: KindMovie, ID: 1}
	for _, u := range updates {
		next := Apply(e, u)
		require.GreaterOrEqual(t, next.State, e.State)
		if e.Crawled {
			require.True(t, next.Crawled)
		}
		e = next
	}
	require.Equal(t, StateBroken, e.State)
	require.True(t, e.Crawled)
}

func TestTerminalStateIsStable(t *testing.T) {
	t.Parallel()

	broken := Entity{Kind: KindMovie, ID: 9, State: StateBroken, Crawled: true}
	for _, o := range []MovieOutcome{
		MovieNotFound(9, false),
		MovieNotFound(9, true),
		MovieFetched(9, MoviePayload{Title: "x"}),
	} {
		require.Equal(t, broken, Apply(broken, DecideMovie(o).Update))
	}
	require.True(t, StateBroken.Terminal())
	require.False(t, StateNeedsAuth.Terminal())
}

func TestSuccessKeepsNeedsAuth(t *testing.T) {
	t.Parallel()

	e := Entity{Kind: KindMovie, ID: 3, State: StateNeedsAuth}
	got := Apply(e, DecideMovie(MovieFetched(3, MoviePayload{})).Update)
	require.Equal(t, StateNeedsAuth, got.State)
	require.True(t, got.Crawled)
}
