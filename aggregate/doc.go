// Package aggregate implements the aggregate-root protocol for event-sourced
// domain objects: state is rebuilt exclusively by replaying committed events,
// and new events emitted by commands pass through the very same state-update
// functions before they are committed.
//
// A domain aggregate embeds *Root and registers one transition function per
// event type it understands:
//
//	type Booking struct {
//		*aggregate.Root
//		booked bool
//	}
//
//	func NewBooking(id string) *Booking {
//		b := &Booking{Root: aggregate.NewRoot(id)}
//		b.On(PurchaseOrderBookedEventType, func(e aggregate.Event) {
//			b.booked = true
//		})
//		return b
//	}
//
// Command methods are pure decisions: they inspect replayed state and either
// return a failure Result without side effects, or call Emit and return a
// success Result. Domain rule violations are ordinary result values, not
// errors.
//
// The single-source-of-truth transition table guarantees the replay/emit
// equivalence law: state after Replay(history) followed by Emit(e1..ek)
// equals state after Replay(history ++ e1..ek) from scratch.
package aggregate
