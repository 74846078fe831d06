package coach

import (
	"context"
	"log"
	"time"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/llm"
)

// ProviderSource resolves a credential to a ready provider. *llm.Registry
// implements it.
type ProviderSource interface {
	Provider(ctx context.Context, credential string) (llm.Provider, error)
}

// failover drives the bounded retry loop shared by both orchestrators:
// attempts are sequential, quota/network failures rotate to the next
// credential after a fixed backoff, anything else stops the loop.
type failover struct {
	pool        *Pool
	quota       *QuotaGuard
	providers   ProviderSource
	obs         Observer
	backoff     time.Duration
	callTimeout time.Duration
}

type failoverResult struct {
	Attempts  int
	Index     int
	Cred      Credential
	Err       *llm.ClassifiedError
	Exhausted bool
	// Superseded is set when the credentials were replaced while the loop
	// ran; the outcome says nothing about the new list.
	Superseded bool
	PoolGen    uint64
}

func (r failoverResult) ok() bool { return r.Err == nil && !r.Exhausted && !r.Superseded }

func (f *failover) run(ctx context.Context, op Op, call func(ctx context.Context, p llm.Provider) error) failoverResult {
	snap := f.pool.Snapshot()
	creds, n := snap.Creds, len(snap.Creds)
	res := failoverResult{Index: snap.Current, PoolGen: snap.Gen}
	if n == 0 {
		res.Exhausted = true
		return res
	}

	idx := snap.Current
	for res.Attempts < n {
		cred := creds[idx]
		err := f.attempt(ctx, cred, call)
		res.Attempts++
		if err == nil {
			f.pool.Commit(snap.Gen, idx)
			f.quota.Increment()
			f.obs.Attempt(op, cred.Kind, nil)
			res.Index, res.Cred, res.Err = idx, cred, nil
			return res
		}

		ce := llm.Classify(err)
		f.obs.Attempt(op, cred.Kind, ce)
		res.Index, res.Cred, res.Err = idx, cred, ce
		if ctx.Err() != nil || !ce.Retryable() {
			return res
		}
		if f.pool.Generation() != snap.Gen {
			res.Superseded = true
			return res
		}

		next := rotate(idx, n)
		log.Printf("coach: %s key %d (%s) failed with %s, rotating to %d", op, idx, cred.Masked(), ce.Kind, next)
		f.obs.Rotated(op, idx, next)
		idx = next
		if res.Attempts < n {
			if err := sleepCtx(ctx, f.backoff); err != nil {
				res.Err = llm.Classify(err)
				return res
			}
		}
	}
	res.Exhausted = true
	return res
}

func (f *failover) attempt(ctx context.Context, cred Credential, call func(ctx context.Context, p llm.Provider) error) error {
	p, err := f.providers.Provider(ctx, cred.Value)
	if err != nil {
		return &llm.ClassifiedError{Kind: llm.KindRejected, Detail: err.Error(), Err: err}
	}
	if f.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.callTimeout)
		defer cancel()
	}
	return call(ctx, p)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
