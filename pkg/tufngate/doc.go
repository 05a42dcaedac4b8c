// Package tufngate guards the public Tufn forms (waitlist, reviews and
// feedback) against double submits and bursts.
//
// A Gate combines two checks. The global cooldown accepts at most one
// submission every two seconds across all forms. The per-key sliding
// window accepts at most Limit submissions per trailing Window for one
// key, counted from acceptance instants rather than fixed buckets. Rejected
// attempts are never recorded, so hammering a closed gate does not extend
// the wait.
//
// # Quick Start
//
//	gate, err := tufngate.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	gate.Start()
//	defer gate.Close()
//
//	d, err := gate.CheckRateLimit(ctx, "waitlist_"+id, 3, 30*time.Second, time.Now())
//	if err == nil && !d.Allowed {
//	    fmt.Printf("Rate limited. Retry after %v\n", d.RetryAfter)
//	}
//
// # Submissions
//
// A Submitter runs the whole client flow for a typed Command and returns an
// Outcome that carries a user-facing message:
//
//	sub, _ := tufngate.NewSubmitter(gate, localState, rest.New(endpoint, apiKey))
//	out := sub.Dispatch(ctx, tufngate.JoinWaitlist{Email: "ada@example.com"})
//	fmt.Println(out.Message)
//
// The flow is: already joined, cooldown, rate limit, validation, one remote
// write. Only a confirmed write marks the client as joined. Conflicts and
// failures leave local state untouched and are never retried automatically.
//
// # Configuration
//
// Policies load from YAML. Anything omitted keeps its default:
//
//	cooldown: 2s
//	sweep_interval: 5m
//	retention: 10m
//	key_extractor: "fingerprint,ip-proxy"
//	forms:
//	  waitlist:
//	    rate_limit: {limit: 3, window: 30s}
//	  review:
//	    rate_limit: {limit: 2, window: 1m}
//	    fields:
//	      comment: {required: true, min: 10, max: 500}
//
// # Storage
//
// Windows live in a store.Store. The in-memory store fits a single process;
// store.RedisStore shares windows between server replicas.
package tufngate
