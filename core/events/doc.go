// Package events defines the typed realtime session event contract.
//
// Inbound event kinds are grouped by receiver-facing namespaces:
//
//   - connection.*
//   - user_input.*
//   - assistant_response.*
//   - guardrail.*
//   - turn_state.*
//   - history.*
//   - transport.*
//
// Semantics used across the package:
//
//   - Delta: append-only text fragment emitted in stream order.
//   - Completed: authoritative final text that replaces any deltas.
//   - Snapshot: authoritative, possibly repeated full item description.
//
// connection events
//
//   - ConnectionStatusChanged (connection.status_changed): transport
//     lifecycle transition (connecting, connected, disconnected).
//
// user_input events
//
//   - UserSpeechStarted (user_input.speech_started): voice activity began for
//     an input item.
//   - UserTranscriptDelta (user_input.transcript_delta): live transcription
//     fragment for an input item.
//   - UserTranscriptCompleted (user_input.transcript_completed): final
//     transcription for an input item.
//
// assistant_response events
//
//   - AssistantTranscriptDelta (assistant_response.transcript_delta): text or
//     audio-transcript fragment keyed by item id, response id, or both.
//
// guardrail events
//
//   - GuardrailTripped (guardrail.tripped): session-scoped output guardrail
//     trip. Carries no item id.
//
// turn_state events
//
//   - ResponseDone (turn_state.response_done): the generation engine finished
//     the assistant turn.
//
// history events
//
//   - HistoryItemAdded (history.item_added): a single authoritative item
//     snapshot was added.
//   - HistoryUpdated (history.updated): the authoritative item list changed.
//
// transport events
//
//   - TransportError (transport.error): the transport reported an error.
//   - Unrecognized (transport.unrecognized): a wire message with no mapping.
//
// Outbound client events (session.update, conversation.item.create,
// response.create, response.cancel, input_audio_buffer.clear and
// input_audio_buffer.commit) implement [ClientEvent].
package events
