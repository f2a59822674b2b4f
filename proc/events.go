package proc

import (
	"context"
	"sync"

	"github.com/leeineian/resonance/sys"
)

// Dispatch runs one event loop per connection until ctx ends or every event
// channel closes, then waits for the work the loops spawned.
func (o *Orchestrator) Dispatch(ctx context.Context) {
	var wg sync.WaitGroup
	for i, c := range o.conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.eventLoop(ctx, i, c.Events())
		}()
	}
	wg.Wait()
	o.tasks.Wait()
}

func (o *Orchestrator) eventLoop(ctx context.Context, idx int, events <-chan Event) {
	defer sys.LogCalls(sys.MsgCallsDispatcherDone, idx)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			o.handleEvent(ctx, ev)
		}
	}
}

// handleEvent never blocks on the work it schedules.
func (o *Orchestrator) handleEvent(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventStreamEnded:
		sys.CallEventsTotal.WithLabelValues("stream_ended").Inc()
		sys.LogCalls(sys.MsgCallsStreamEnded, ev.Stream, ev.Chat)
		o.spawn(func() {
			if err := o.PlayNext(ctx, ev.Chat); err != nil && Classify(err) != ClassCanceled {
				sys.LogDebug(sys.MsgGenericError, err)
			}
		})
	case EventChatUpdate:
		sys.CallEventsTotal.WithLabelValues(ev.Status.String()).Inc()
		if !ev.Status.Terminal() {
			sys.LogCalls(sys.MsgCallsMuteEvent, ev.Status, ev.Chat)
			return
		}
		sys.LogCalls(sys.MsgCallsChatUpdate, ev.Status, ev.Chat)
		o.spawn(func() { _ = o.Stop(context.WithoutCancel(ctx), ev.Chat) })
	}
}

func (o *Orchestrator) spawn(f func()) {
	o.tasks.Add(1)
	sys.SafeGo(func() {
		defer o.tasks.Done()
		f()
	})
}

// Wait blocks until every scheduled task has finished.
func (o *Orchestrator) Wait() { o.tasks.Wait() }
