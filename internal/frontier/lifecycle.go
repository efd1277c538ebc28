package frontier

// Decision is what the state machine concludes from one fetch outcome.
type Decision struct {
	// Update is applied to the subject entity after discovery and persist.
	Update Update
	// Discover lists references to insert into the frontier.
	Discover []Ref
	// PersistArtifact is true when the outcome carries a payload to store.
	PersistArtifact bool
}

// DecideMovie maps a movie fetch outcome to a lifecycle decision.
//
// An unauthenticated miss asks for a retry with credentials (NEEDS_AUTH); an
// authenticated miss is final (BROKEN, crawled). A parsed page marks the
// movie crawled without touching its state, discovers its people and
// recommendations, and persists the artifact.
func DecideMovie(o MovieOutcome) Decision {
	switch o.Status {
	case OutcomeNotFound:
		if o.Authenticated {
			return Decision{Update: Update{State: StateBroken, MarkCrawled: true}}
		}
		return Decision{Update: Update{State: StateNeedsAuth}}
	case OutcomeFetched:
		d := Decision{Update: Update{MarkCrawled: true}, PersistArtifact: o.Payload != nil}
		if o.Payload != nil {
			d.Discover = movieReferences(*o.Payload)
		}
		return d
	default:
		return Decision{}
	}
}

// DecideActor maps an actor fetch outcome to a lifecycle decision. A partial
// filmography still discovers movies but leaves the actor uncrawled.
func DecideActor(o ActorOutcome) Decision {
	switch o.Status {
	case OutcomeNotFound:
		return Decision{Update: Update{State: StateBroken, MarkCrawled: true}}
	case OutcomeFetched:
		refs := make([]Ref, 0, len(o.Filmography))
		for _, mid := range o.Filmography {
			refs = append(refs, Ref{Kind: KindMovie, ID: mid})
		}
		return Decision{Update: Update{MarkCrawled: o.Finished}, Discover: refs}
	default:
		return Decision{}
	}
}

func movieReferences(p MoviePayload) []Ref {
	refs := make([]Ref, 0, len(p.Directors)+len(p.Writers)+len(p.Casts)+len(p.Recommendations))
	for _, group := range [][]Credit{p.Directors, p.Writers, p.Casts} {
		for _, c := range group {
			// Uncredited names carry no profile id.
			if c.ID > 0 {
				refs = append(refs, Ref{Kind: KindActor, ID: c.ID})
			}
		}
	}
	for _, mid := range p.Recommendations {
		refs = append(refs, Ref{Kind: KindMovie, ID: mid})
	}
	return refs
}

// Apply merges an update into an entity the same way stores do: state only
// moves forward and crawled only flips to true.
func Apply(e Entity, u Update) Entity {
	if u.State > e.State {
		e.State = u.State
	}
	if u.MarkCrawled {
		e.Crawled = true
	}
	return e
}
