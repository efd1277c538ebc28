package frontier

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Capability tags an item with the producer that emitted it. Stages register
// for capabilities; everything else passes them by.
type Capability string

// Producer capabilities.
const (
	CapabilitySeed      Capability = "seed"
	CapabilityMovie     Capability = "movie"
	CapabilityMovieAuth Capability = "movie_auth"
	CapabilityActor     Capability = "actor"
)

// OutcomeStatus distinguishes the two variants of a fetch outcome.
type OutcomeStatus string

// Fetch outcome variants.
const (
	OutcomeNotFound OutcomeStatus = "not_found"
	OutcomeFetched  OutcomeStatus = "fetched"
)

// IDList is a list of entity ids. It decodes from JSON numbers or numeric
// strings, since scraped link ids usually arrive as text.
type IDList []int64

// UnmarshalJSON accepts [1, "2", 3].
func (l *IDList) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode id list: %w", err)
	}
	out := make(IDList, 0, len(raw))
	for _, r := range raw {
		id, err := parseFlexibleID(r)
		if err != nil {
			return err
		}
		out = append(out, id)
	}
	*l = out
	return nil
}

func parseFlexibleID(r json.RawMessage) (int64, error) {
	r = bytes.TrimSpace(r)
	if len(r) > 0 && r[0] == '"' {
		var s string
		if err := json.Unmarshal(r, &s); err != nil {
			return 0, fmt.Errorf("decode id: %w", err)
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse id %q: %w", s, err)
		}
		return id, nil
	}
	var id int64
	if err := json.Unmarshal(r, &id); err != nil {
		return 0, fmt.Errorf("decode id: %w", err)
	}
	return id, nil
}

// Credit is a person referenced from a movie page. ID is zero or negative
// for names without a profile link.
type Credit struct {
	ID   int64  `json:"id" bson:"id"`
	Name string `json:"name" bson:"name"`
}

// UnmarshalJSON accepts either {"id":1,"name":"x"} or the [1, "x"] pair form.
func (c *Credit) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var pair []json.RawMessage
		if err := json.Unmarshal(b, &pair); err != nil {
			return fmt.Errorf("decode credit pair: %w", err)
		}
		if len(pair) != 2 {
			return errors.New("credit pair must have two elements")
		}
		id, err := parseFlexibleID(pair[0])
		if err != nil {
			return err
		}
		var name string
		if err := json.Unmarshal(pair[1], &name); err != nil {
			return fmt.Errorf("decode credit name: %w", err)
		}
		*c = Credit{ID: id, Name: name}
		return nil
	}
	type plain Credit
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("decode credit: %w", err)
	}
	*c = Credit(p)
	return nil
}

// MoviePayload is everything the parser extracted from a movie page.
type MoviePayload struct {
	Title           string   `json:"title"`
	OriginalTitle   string   `json:"original_title,omitempty"`
	Year            int      `json:"year,omitempty"`
	Rating          float64  `json:"rating,omitempty"`
	RatingCount     int      `json:"rating_count,omitempty"`
	Directors       []Credit `json:"directors,omitempty"`
	Writers         []Credit `json:"writers,omitempty"`
	Casts           []Credit `json:"casts,omitempty"`
	Genres          []string `json:"genres,omitempty"`
	Countries       []string `json:"countries,omitempty"`
	Languages       []string `json:"languages,omitempty"`
	ReleaseDates    []string `json:"release_dates,omitempty"`
	RuntimeMinutes  int      `json:"runtime_minutes,omitempty"`
	AKA             []string `json:"aka,omitempty"`
	IMDB            string   `json:"imdb,omitempty"`
	Summary         string   `json:"summary,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Recommendations IDList   `json:"recommendations,omitempty"`
}

// MovieArtifact is the stored document for a crawled movie. Recommendations
// drive discovery and are deliberately absent.
type MovieArtifact struct {
	MID            int64     `json:"mid" bson:"mid"`
	Title          string    `json:"title" bson:"title"`
	OriginalTitle  string    `json:"original_title,omitempty" bson:"original_title,omitempty"`
	Year           int       `json:"year,omitempty" bson:"year,omitempty"`
	Rating         float64   `json:"rating" bson:"rating"`
	RatingCount    int       `json:"rating_count" bson:"rating_count"`
	Directors      []Credit  `json:"directors" bson:"directors"`
	Writers        []Credit  `json:"writers" bson:"writers"`
	Casts          []Credit  `json:"casts" bson:"casts"`
	Genres         []string  `json:"genres,omitempty" bson:"genres,omitempty"`
	Countries      []string  `json:"countries,omitempty" bson:"countries,omitempty"`
	Languages      []string  `json:"languages,omitempty" bson:"languages,omitempty"`
	ReleaseDates   []string  `json:"release_dates,omitempty" bson:"release_dates,omitempty"`
	RuntimeMinutes int       `json:"runtime_minutes,omitempty" bson:"runtime_minutes,omitempty"`
	AKA            []string  `json:"aka,omitempty" bson:"aka,omitempty"`
	IMDB           string    `json:"imdb,omitempty" bson:"imdb,omitempty"`
	Summary        string    `json:"summary,omitempty" bson:"summary,omitempty"`
	Tags           []string  `json:"tags,omitempty" bson:"tags,omitempty"`
	CrawledAt      time.Time `json:"crawled_at" bson:"crawled_at"`
}

// Artifact builds the stored document for mid, stripping recommendations.
func (p MoviePayload) Artifact(mid int64, crawledAt time.Time) MovieArtifact {
	return MovieArtifact{
		MID:            mid,
		Title:          p.Title,
		OriginalTitle:  p.OriginalTitle,
		Year:           p.Year,
		Rating:         p.Rating,
		RatingCount:    p.RatingCount,
		Directors:      p.Directors,
		Writers:        p.Writers,
		Casts:          p.Casts,
		Genres:         p.Genres,
		Countries:      p.Countries,
		Languages:      p.Languages,
		ReleaseDates:   p.ReleaseDates,
		RuntimeMinutes: p.RuntimeMinutes,
		AKA:            p.AKA,
		IMDB:           p.IMDB,
		Summary:        p.Summary,
		Tags:           p.Tags,
		CrawledAt:      crawledAt.UTC(),
	}
}

// SeedBatch is a list of movie ids from an external seed list.
type SeedBatch struct {
	IDs IDList `json:"ids"`
}

// MovieOutcome is the result of fetching one movie page: NotFound (with the
// session's authentication) or Fetched (with the payload).
type MovieOutcome struct {
	MID           int64         `json:"mid"`
	Status        OutcomeStatus `json:"status"`
	Authenticated bool          `json:"authenticated,omitempty"`
	Payload       *MoviePayload `json:"payload,omitempty"`
}

// MovieNotFound builds the unreachable variant.
func MovieNotFound(mid int64, authenticated bool) MovieOutcome {
	return MovieOutcome{MID: mid, Status: OutcomeNotFound, Authenticated: authenticated}
}

// MovieFetched builds the parsed variant.
func MovieFetched(mid int64, payload MoviePayload) MovieOutcome {
	return MovieOutcome{MID: mid, Status: OutcomeFetched, Payload: &payload}
}

// ActorOutcome is the result of fetching one actor page. Finished is false
// while the filmography is still being paged through.
type ActorOutcome struct {
	AID         int64         `json:"aid"`
	Status      OutcomeStatus `json:"status"`
	Finished    bool          `json:"finished,omitempty"`
	Filmography IDList        `json:"filmography,omitempty"`
}

// ActorNotFound builds the unreachable variant.
func ActorNotFound(aid int64) ActorOutcome {
	return ActorOutcome{AID: aid, Status: OutcomeNotFound}
}

// ActorFetched builds the parsed variant.
func ActorFetched(aid int64, finished bool, filmography []int64) ActorOutcome {
	return ActorOutcome{AID: aid, Status: OutcomeFetched, Finished: finished, Filmography: filmography}
}

// Item is one unit handed from the crawl engine to the pipeline. Exactly one
// of Seed, Movie or Actor is set, matching Capability.
type Item struct {
	Capability Capability    `json:"capability"`
	Seed       *SeedBatch    `json:"seed,omitempty"`
	Movie      *MovieOutcome `json:"movie,omitempty"`
	Actor      *ActorOutcome `json:"actor,omitempty"`
}

// SeedItem wraps a seed batch.
func SeedItem(ids ...int64) Item {
	return Item{Capability: CapabilitySeed, Seed: &SeedBatch{IDs: ids}}
}

// MovieItem wraps a movie outcome. Authenticated not-found outcomes are
// tagged with the authenticated producer capability.
func MovieItem(o MovieOutcome) Item {
	capability := CapabilityMovie
	if o.Status == OutcomeNotFound && o.Authenticated {
		capability = CapabilityMovieAuth
	}
	return Item{Capability: capability, Movie: &o}
}

// ActorItem wraps an actor outcome.
func ActorItem(o ActorOutcome) Item {
	return Item{Capability: CapabilityActor, Actor: &o}
}

// Validate checks that the item carries the variant its capability implies
// and that every id it names is positive.
func (it Item) Validate() error {
	switch it.Capability {
	case CapabilitySeed:
		if it.Seed == nil {
			return errors.New("seed item requires seed batch")
		}
		for _, id := range it.Seed.IDs {
			if id <= 0 {
				return fmt.Errorf("seed id %d must be positive", id)
			}
		}
	case CapabilityMovie, CapabilityMovieAuth:
		if it.Movie == nil {
			return errors.New("movie item requires movie outcome")
		}
		if it.Movie.MID <= 0 {
			return fmt.Errorf("movie id %d must be positive", it.Movie.MID)
		}
		return validateStatus(it.Movie.Status, it.Movie.Status == OutcomeFetched && it.Movie.Payload == nil)
	case CapabilityActor:
		if it.Actor == nil {
			return errors.New("actor item requires actor outcome")
		}
		if it.Actor.AID <= 0 {
			return fmt.Errorf("actor id %d must be positive", it.Actor.AID)
		}
		return validateStatus(it.Actor.Status, false)
	default:
		return fmt.Errorf("unknown capability %q", string(it.Capability))
	}
	return nil
}

func validateStatus(status OutcomeStatus, missingPayload bool) error {
	switch status {
	case OutcomeNotFound:
		return nil
	case OutcomeFetched:
		if missingPayload {
			return errors.New("fetched outcome requires payload")
		}
		return nil
	default:
		return fmt.Errorf("unknown outcome status %q", string(status))
	}
}

// Subject returns the entity the item reports on. Seed batches have none.
func (it Item) Subject() (Ref, bool) {
	switch {
	case it.Movie != nil:
		return Ref{Kind: KindMovie, ID: it.Movie.MID}, true
	case it.Actor != nil:
		return Ref{Kind: KindActor, ID: it.Actor.AID}, true
	default:
		return Ref{}, false
	}
}
