// Package guardrail tracks the safety review result of assistant transcript
// items.
//
// Every assistant item starts review as [StatusInProgress] when its first
// content arrives. Two signals resolve it: a session scoped trip, which marks
// the attributed item [CategoryOffBrand], and a turn completion, which
// resolves a still pending review to [CategoryNone]. A trip always wins: a
// later completion never overwrites it, and a trip overwrites an earlier
// completion.
//
// Trip signals carry no item id. Which item they land on is decided by an
// [Attributor]; [LatestAssistant] targets the most recently created assistant
// item.
package guardrail
