package engine

import (
	"context"
	"net/netip"
	"sync"

	"github.com/jsribeiro/ddnsd/internal/contracts"
	"github.com/jsribeiro/ddnsd/internal/ddnserr"
	"github.com/jsribeiro/ddnsd/internal/domain"
)

// fakeSource is a channel-backed IpSource the test drives directly.
type fakeSource struct {
	ch      chan contracts.IpChangeEvent
	current netip.Addr
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan contracts.IpChangeEvent, 16)}
}

func (f *fakeSource) Current(ctx context.Context) (netip.Addr, error) {
	if !f.current.IsValid() {
		return netip.Addr{}, ddnserr.New(ddnserr.KindTransient, "no current ip")
	}
	return f.current, nil
}

func (f *fakeSource) Watch(ctx context.Context) (<-chan contracts.IpChangeEvent, error) {
	out := make(chan contracts.IpChangeEvent)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-f.ch:
				if !ok {
					return
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (f *fakeSource) Version() contracts.IpVersion { return contracts.IpVersionBoth }

func (f *fakeSource) send(ev contracts.IpChangeEvent) { f.ch <- ev }
func (f *fakeSource) closeStream()                    { close(f.ch) }

// scriptedCall describes one canned response a fakeProvider returns.
type scriptedCall struct {
	result contracts.UpdateResult
	err    error
}

// fakeProvider replays a fixed script of responses per call, recording
// every invocation for assertions on call count and timing.
type fakeProvider struct {
	mu      sync.Mutex
	script  []scriptedCall
	calls   int
	support func(domain.Name) bool
}

func newFakeProvider(script ...scriptedCall) *fakeProvider {
	return &fakeProvider{script: script, support: func(domain.Name) bool { return true }}
}

func (p *fakeProvider) UpdateRecord(_ context.Context, name domain.Name, newIP netip.Addr) (contracts.UpdateResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.calls
	p.calls++
	if idx >= len(p.script) {
		idx = len(p.script) - 1
	}
	call := p.script[idx]
	return call.result, call.err
}

func (p *fakeProvider) GetRecord(_ context.Context, name domain.Name) (contracts.RecordMetadata, error) {
	return contracts.RecordMetadata{}, ddnserr.New(ddnserr.KindNotFound, "not implemented in fake")
}

func (p *fakeProvider) SupportsRecord(name domain.Name) bool { return p.support(name) }

func (p *fakeProvider) ProviderName() string { return "fake" }

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
